// Package ws serves live item stats: a client subscribes to an account and
// receives a fresh STATS message whenever the account or its filter changes.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"fgoplanner.app/internal/itemstats"
	"fgoplanner.app/internal/persistence/accountdb"
	"fgoplanner.app/internal/planner"
	"fgoplanner.app/internal/protocol"
)

const (
	handshakeTimeout = 5 * time.Second
	readTimeout      = 60 * time.Second
	writeTimeout     = 5 * time.Second
	outQueue         = 8
)

type Server struct {
	svc           *planner.Service
	defaultFilter itemstats.Filter
	log           *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(svc *planner.Service, defaultFilter itemstats.Filter, logger *log.Logger) *Server {
	return &Server{
		svc:           svc,
		defaultFilter: defaultFilter,
		log:           logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		sub, ok := s.handshake(ctx, conn)
		if !ok {
			return
		}

		changes, unsubscribe := s.svc.Subscribe(sub.AccountID)
		defer unsubscribe()

		out := make(chan []byte, outQueue)
		filters := make(chan itemstats.Filter, 1)

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Session goroutine: owns the filter and recomputes on every trigger.
		go func() {
			f := s.defaultFilter
			if sub.Filter != nil {
				f = *sub.Filter
			}
			s.push(ctx, out, s.stats(ctx, sub.AccountID, f, protocol.ReasonSubscribe))
			for {
				select {
				case <-ctx.Done():
					return
				case f = <-filters:
					s.push(ctx, out, s.stats(ctx, sub.AccountID, f, protocol.ReasonFilter))
				case <-changes:
					s.push(ctx, out, s.stats(ctx, sub.AccountID, f, protocol.ReasonAccountUpdated))
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil || base.Type != protocol.TypeFilter {
				s.push(ctx, out, protocol.NewError(protocol.ErrProtoBadRequest, "expected FILTER"))
				continue
			}
			var fm protocol.FilterMsg
			if err := json.Unmarshal(msg, &fm); err != nil || fm.ProtocolVersion != protocol.Version {
				s.push(ctx, out, protocol.NewError(protocol.ErrProtoBadRequest, "bad FILTER"))
				continue
			}
			// Only the newest filter matters.
			select {
			case <-filters:
			default:
			}
			filters <- fm.Filter
		}
	}
}

func (s *Server) handshake(ctx context.Context, conn *websocket.Conn) (protocol.SubscribeMsg, bool) {
	var sub protocol.SubscribeMsg

	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return sub, false
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeSubscribe {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
		return sub, false
	}
	if err := json.Unmarshal(msg, &sub); err != nil {
		return sub, false
	}
	if sub.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return sub, false
	}
	if sub.AccountID == "" {
		_ = writeJSON(conn, protocol.NewError(protocol.ErrBadRequest, "account_id required"))
		return sub, false
	}
	if _, err := s.svc.GetAccount(ctx, sub.AccountID); err != nil {
		_ = writeJSON(conn, errorFor(err))
		return sub, false
	}

	cats := s.svc.Catalogs()
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       uuid.NewString(),
		AccountID:       sub.AccountID,
		Catalogs: protocol.CatalogDigests{
			Items:       protocol.DigestRef{Digest: cats.Items.Digest, Count: len(cats.Items.ByID)},
			Servants:    protocol.DigestRef{Digest: cats.Servants.Digest, Count: len(cats.Servants.ByID)},
			Soundtracks: protocol.DigestRef{Digest: cats.Soundtracks.Digest, Count: len(cats.Soundtracks.List)},
		},
	}
	if err := writeJSON(conn, welcome); err != nil {
		return sub, false
	}
	s.log.Printf("ws session=%s account=%s subscribed", welcome.SessionID, sub.AccountID)
	return sub, true
}

func (s *Server) stats(ctx context.Context, accountID string, f itemstats.Filter, reason string) any {
	rep, err := s.svc.Compute(ctx, accountID, f, "ws")
	if err != nil {
		s.log.Printf("ws account=%s: %v", accountID, err)
		return errorFor(err)
	}
	return protocol.StatsMsg{
		Type:            protocol.TypeStats,
		ProtocolVersion: protocol.Version,
		Reason:          reason,
		RunID:           rep.RunID,
		AccountID:       rep.AccountID,
		Filter:          rep.Filter,
		Rows:            rep.Rows,
		Digest:          rep.Digest,
		ElapsedMS:       rep.ElapsedMS,
		Warnings:        rep.Warnings,
		ComputedAt:      rep.ComputedAt,
	}
}

func (s *Server) push(ctx context.Context, out chan<- []byte, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		s.log.Printf("ws marshal: %v", err)
		return
	}
	select {
	case out <- b:
	case <-ctx.Done():
	}
}

func errorFor(err error) protocol.ErrorMsg {
	if errors.Is(err, accountdb.ErrAccountNotFound) {
		return protocol.NewError(protocol.ErrNotFound, err.Error())
	}
	return protocol.NewError(protocol.ErrInternal, err.Error())
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, b)
}
