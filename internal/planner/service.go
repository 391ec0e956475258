// Package planner runs item stats computations for stored or inline accounts
// and notifies live subscribers when an account changes.
package planner

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"fgoplanner.app/internal/account"
	"fgoplanner.app/internal/gamedata"
	"fgoplanner.app/internal/itemstats"
	"fgoplanner.app/internal/metrics"
	"fgoplanner.app/internal/persistence/accountdb"
	"fgoplanner.app/internal/persistence/statslog"
)

type AccountStore interface {
	PutAccount(ctx context.Context, a *account.Account) error
	GetAccount(ctx context.Context, id string) (*account.Account, error)
	ListAccounts(ctx context.Context) ([]accountdb.AccountSummary, error)
}

type RunRecorder interface {
	RecordRun(r accountdb.Run)
}

type RunArchive interface {
	WriteRun(r statslog.RunRecord) error
}

// Report is the result of one computation as served to clients.
type Report struct {
	RunID      string           `json:"run_id"`
	AccountID  string           `json:"account_id,omitempty"`
	Filter     itemstats.Filter `json:"filter"`
	Rows       []itemstats.Row  `json:"rows"`
	Digest     string           `json:"digest"`
	ElapsedMS  float64          `json:"elapsed_ms"`
	Warnings   []string         `json:"warnings,omitempty"`
	ComputedAt time.Time        `json:"computed_at"`
}

type Option func(*Service)

func WithLogger(l *log.Logger) Option       { return func(s *Service) { s.logger = l } }
func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }
func WithRecorder(r RunRecorder) Option     { return func(s *Service) { s.recorder = r } }
func WithArchive(a RunArchive) Option       { return func(s *Service) { s.archive = a } }
func WithItemOrder(order []int) Option      { return func(s *Service) { s.order = order } }
func withClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

type Service struct {
	cats  *gamedata.Catalogs
	store AccountStore

	logger   *log.Logger
	metrics  *metrics.Metrics
	recorder RunRecorder
	archive  RunArchive
	order    []int
	now      func() time.Time

	mu   sync.Mutex
	subs map[string]map[*subscription]struct{}
}

type subscription struct {
	ch chan struct{}
}

// NewService wires a service over cats. store may be nil, in which case only
// ComputeAccount is usable.
func NewService(cats *gamedata.Catalogs, store AccountStore, opts ...Option) *Service {
	s := &Service{
		cats:   cats,
		store:  store,
		logger: log.New(os.Stdout, "[planner] ", log.LstdFlags|log.Lmicroseconds),
		now:    time.Now,
		subs:   map[string]map[*subscription]struct{}{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) Catalogs() *gamedata.Catalogs { return s.cats }

// ComputeAccount builds a fresh stats table for acct. source labels the
// computation in metrics ("http", "ws", "cli").
func (s *Service) ComputeAccount(acct *account.Account, f itemstats.Filter, source string) *Report {
	start := time.Now()
	res := itemstats.Compute(s.cats.Servants.ByID, s.cats.Soundtracks.List, acct, f)
	elapsed := time.Since(start)

	rep := &Report{
		RunID:      uuid.NewString(),
		Filter:     f,
		Rows:       res.Ledger.Rows(s.order),
		Digest:     res.Ledger.Digest(),
		ElapsedMS:  float64(elapsed.Microseconds()) / 1000,
		ComputedAt: s.now().UTC(),
	}
	if acct != nil {
		rep.AccountID = acct.ID
	}
	for _, w := range res.Warnings {
		rep.Warnings = append(rep.Warnings, w.Error())
		s.logger.Printf("stats account=%s: %v", rep.AccountID, w)
	}
	if err := res.Ledger.Check(); err != nil {
		s.logger.Printf("stats account=%s: ledger invariant: %v", rep.AccountID, err)
	}
	s.logger.Printf("stats computed account=%s run=%s in %.2fms", rep.AccountID, rep.RunID, rep.ElapsedMS)
	s.metrics.ObserveCompute(source, elapsed, len(res.Warnings))

	s.record(rep)
	return rep
}

func (s *Service) record(rep *Report) {
	if s.recorder != nil {
		s.recorder.RecordRun(accountdb.Run{
			RunID:      rep.RunID,
			AccountID:  rep.AccountID,
			ComputedAt: rep.ComputedAt,
			Digest:     rep.Digest,
			ElapsedMS:  rep.ElapsedMS,
			Warnings:   len(rep.Warnings),
			Filter:     rep.Filter,
			Rows:       rep.Rows,
		})
	}
	if s.archive != nil {
		err := s.archive.WriteRun(statslog.RunRecord{
			RunID:      rep.RunID,
			AccountID:  rep.AccountID,
			ComputedAt: rep.ComputedAt,
			Filter:     rep.Filter,
			Digest:     rep.Digest,
			ElapsedMS:  rep.ElapsedMS,
			Warnings:   rep.Warnings,
			Rows:       rep.Rows,
		})
		if err != nil {
			s.logger.Printf("archive run %s: %v", rep.RunID, err)
		}
	}
}

// Compute loads accountID from the store and computes its stats table.
func (s *Service) Compute(ctx context.Context, accountID string, f itemstats.Filter, source string) (*Report, error) {
	acct, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return s.ComputeAccount(acct, f, source), nil
}

func (s *Service) GetAccount(ctx context.Context, id string) (*account.Account, error) {
	if s.store == nil {
		return nil, fmt.Errorf("%w: %s (no account store)", accountdb.ErrAccountNotFound, id)
	}
	return s.store.GetAccount(ctx, id)
}

func (s *Service) ListAccounts(ctx context.Context) ([]accountdb.AccountSummary, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.ListAccounts(ctx)
}

// PutAccount saves acct and notifies its subscribers.
func (s *Service) PutAccount(ctx context.Context, acct *account.Account) error {
	if s.store == nil {
		return fmt.Errorf("no account store configured")
	}
	if err := s.store.PutAccount(ctx, acct); err != nil {
		return err
	}
	s.notify(acct.ID)
	return nil
}

// Subscribe returns a channel that receives a value after every change of
// accountID, and a function that ends the subscription. Notifications
// coalesce: a slow reader sees at least one signal per burst of changes.
func (s *Service) Subscribe(accountID string) (<-chan struct{}, func()) {
	sub := &subscription{ch: make(chan struct{}, 1)}

	s.mu.Lock()
	set := s.subs[accountID]
	if set == nil {
		set = map[*subscription]struct{}{}
		s.subs[accountID] = set
	}
	set[sub] = struct{}{}
	s.mu.Unlock()
	s.metrics.SubscriberAdded()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs[accountID], sub)
			if len(s.subs[accountID]) == 0 {
				delete(s.subs, accountID)
			}
			s.mu.Unlock()
			s.metrics.SubscriberRemoved()
		})
	}
	return sub.ch, cancel
}

func (s *Service) notify(accountID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sub := range s.subs[accountID] {
		select {
		case sub.ch <- struct{}{}:
		default:
		}
	}
}
