// Package httpapi exposes the planner over HTTP.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"fgoplanner.app/internal/account"
	"fgoplanner.app/internal/itemstats"
	"fgoplanner.app/internal/metrics"
	"fgoplanner.app/internal/persistence/accountdb"
	"fgoplanner.app/internal/planner"
	"fgoplanner.app/internal/protocol"
)

const maxBodyBytes = 8 << 20

type Config struct {
	DefaultFilter  itemstats.Filter
	RateLimitRPS   float64
	RateLimitBurst int
}

// Server is the planner HTTP API.
type Server struct {
	svc     *planner.Service
	cfg     Config
	log     *log.Logger
	metrics *metrics.Metrics
	limiter *ipLimiter
	ws      http.Handler
}

func NewServer(svc *planner.Service, cfg Config, logger *log.Logger) *Server {
	s := &Server{svc: svc, cfg: cfg, log: logger}
	if cfg.RateLimitRPS > 0 {
		s.limiter = newIPLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	return s
}

// EnableMetrics mounts /metrics and counts requests per route.
func (s *Server) EnableMetrics(m *metrics.Metrics) { s.metrics = m }

// SetWSHandler mounts the live stats feed at /v1/ws.
func (s *Server) SetWSHandler(h http.Handler) { s.ws = h }

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if s.metrics != nil {
		r.Use(s.countRequests)
	}
	if s.limiter != nil {
		r.Use(s.rateLimit)
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/catalogs", s.handleCatalogs)
		r.Get("/accounts", s.handleListAccounts)
		r.Get("/accounts/{id}", s.handleGetAccount)
		r.Put("/accounts/{id}", s.handlePutAccount)
		r.Post("/accounts/{id}/stats", s.handleAccountStats)
		r.Post("/stats", s.handleInlineStats)
		if s.ws != nil {
			r.Handle("/ws", s.ws)
		}
	})

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}
	return r
}

func (s *Server) handleCatalogs(w http.ResponseWriter, r *http.Request) {
	cats := s.svc.Catalogs()
	writeJSON(w, http.StatusOK, protocol.CatalogDigests{
		Items:       protocol.DigestRef{Digest: cats.Items.Digest, Count: len(cats.Items.ByID)},
		Servants:    protocol.DigestRef{Digest: cats.Servants.Digest, Count: len(cats.Servants.ByID)},
		Soundtracks: protocol.DigestRef{Digest: cats.Soundtracks.Digest, Count: len(cats.Soundtracks.List)},
	})
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.ListAccounts(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if list == nil {
		list = []accountdb.AccountSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": list})
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	a, err := s.svc.GetAccount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handlePutAccount(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var a account.Account
	if err := decodeBody(w, r, &a, false); err != nil {
		writeError(w, http.StatusBadRequest, protocol.ErrBadRequest, err.Error())
		return
	}
	if a.ID == "" {
		a.ID = id
	}
	if a.ID != id {
		writeError(w, http.StatusConflict, protocol.ErrConflict, "account _id does not match path")
		return
	}
	if err := s.svc.PutAccount(r.Context(), &a); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &a)
}

func (s *Server) handleAccountStats(w http.ResponseWriter, r *http.Request) {
	f := s.cfg.DefaultFilter
	if err := decodeBody(w, r, &f, true); err != nil {
		writeError(w, http.StatusBadRequest, protocol.ErrBadRequest, err.Error())
		return
	}
	rep, err := s.svc.Compute(r.Context(), chi.URLParam(r, "id"), f, "http")
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleInlineStats(w http.ResponseWriter, r *http.Request) {
	var req protocol.StatsRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, protocol.ErrBadRequest, err.Error())
		return
	}
	f := s.cfg.DefaultFilter
	if req.Filter != nil {
		f = *req.Filter
	}
	writeJSON(w, http.StatusOK, s.svc.ComputeAccount(&req.Account, f, "http"))
}

func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, accountdb.ErrAccountNotFound) {
		writeError(w, http.StatusNotFound, protocol.ErrNotFound, err.Error())
		return
	}
	s.log.Printf("http: %v", err)
	writeError(w, http.StatusInternalServerError, protocol.ErrInternal, "internal error")
}

// countRequests records one sample per request labelled by route pattern.
func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	})
}

// decodeBody reads a JSON body into v. With allowEmpty an empty body leaves v
// untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	e := protocol.NewError(code, msg)
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    e.Code,
			"message": e.Message,
		},
	})
}

