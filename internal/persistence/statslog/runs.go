package statslog

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"fgoplanner.app/internal/itemstats"
)

const runPrefix = "runs"

// RunRecord is one archived stats computation.
type RunRecord struct {
	RunID      string           `json:"run_id"`
	AccountID  string           `json:"account_id"`
	ComputedAt time.Time        `json:"computed_at"`
	Filter     itemstats.Filter `json:"filter"`
	Digest     string           `json:"digest"`
	ElapsedMS  float64          `json:"elapsed_ms"`
	Warnings   []string         `json:"warnings,omitempty"`
	Rows       []itemstats.Row  `json:"rows"`
}

// RunLogger writes RunRecords under <dataDir>/runs.
type RunLogger struct{ w *ArchiveWriter }

func NewRunLogger(dataDir string) *RunLogger {
	return &RunLogger{w: NewArchiveWriter(filepath.Join(dataDir, "runs"), runPrefix)}
}

func (l *RunLogger) WriteRun(r RunRecord) error { return l.w.Write(r) }
func (l *RunLogger) Close() error               { return l.w.Close() }

// ReadRuns returns the archived runs under <dataDir>/runs in file order,
// keeping only accountID's runs when accountID is non-empty. Files still being
// written are readable; a frame cut short by a concurrent write ends that file
// early.
func ReadRuns(dataDir, accountID string) ([]RunRecord, error) {
	files, err := listRunFiles(filepath.Join(dataDir, "runs"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []RunRecord
	for _, path := range files {
		recs, err := readRunFile(path, accountID)
		out = append(out, recs...)
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

func listRunFiles(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, runPrefix+"-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

func readRunFile(path, accountID string) ([]RunRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)

	var out []RunRecord
	for sc.Scan() {
		var rec RunRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return out, fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		if accountID != "" && rec.AccountID != accountID {
			continue
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return out, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return out, nil
}
