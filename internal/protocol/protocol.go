package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeSubscribe = "SUBSCRIBE"
	TypeWelcome   = "WELCOME"
	TypeFilter    = "FILTER"
	TypeStats     = "STATS"
	TypeError     = "ERROR"
)

// Reasons carried by STATS.
const (
	ReasonSubscribe      = "subscribe"
	ReasonFilter         = "filter"
	ReasonAccountUpdated = "account_updated"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
