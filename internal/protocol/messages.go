package protocol

import (
	"time"

	"fgoplanner.app/internal/account"
	"fgoplanner.app/internal/itemstats"
)

// SUBSCRIBE (client -> server): first message of a live session.
type SubscribeMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	AccountID       string            `json:"account_id"`
	Filter          *itemstats.Filter `json:"filter,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	SessionID       string         `json:"session_id"`
	AccountID       string         `json:"account_id"`
	Catalogs        CatalogDigests `json:"catalogs"`
}

type CatalogDigests struct {
	Items       DigestRef `json:"items"`
	Servants    DigestRef `json:"servants"`
	Soundtracks DigestRef `json:"soundtracks"`
}

type DigestRef struct {
	Digest string `json:"digest"`
	Count  int    `json:"count"`
}

// FILTER (client -> server): replaces the session filter and triggers a
// recomputation.
type FilterMsg struct {
	Type            string           `json:"type"`
	ProtocolVersion string           `json:"protocol_version"`
	Filter          itemstats.Filter `json:"filter"`
}

// STATS (server -> client)
type StatsMsg struct {
	Type            string           `json:"type"`
	ProtocolVersion string           `json:"protocol_version"`
	Reason          string           `json:"reason"`
	RunID           string           `json:"run_id"`
	AccountID       string           `json:"account_id"`
	Filter          itemstats.Filter `json:"filter"`
	Rows            []itemstats.Row  `json:"rows"`
	Digest          string           `json:"digest"`
	ElapsedMS       float64          `json:"elapsed_ms"`
	Warnings        []string         `json:"warnings,omitempty"`
	ComputedAt      time.Time        `json:"computed_at"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}

// NewError builds an ERROR message. Codes outside the known set are reported
// as E_INTERNAL.
func NewError(code, message string) ErrorMsg {
	if code == "" || !IsKnownCode(code) {
		code = ErrInternal
	}
	return ErrorMsg{Type: TypeError, ProtocolVersion: Version, Code: code, Message: message}
}

// StatsRequest is the body of a one-shot computation over an inline account.
type StatsRequest struct {
	Account account.Account   `json:"account"`
	Filter  *itemstats.Filter `json:"filter,omitempty"`
}
