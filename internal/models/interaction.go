package models

import "time"

type InteractionKind string

const (
	InteractionOpen       InteractionKind = "open"
	InteractionClick      InteractionKind = "click"
	InteractionSubmission InteractionKind = "submission"
)

func (k InteractionKind) Valid() bool {
	switch k {
	case InteractionOpen, InteractionClick, InteractionSubmission:
		return true
	}
	return false
}

// Status is the email status an interaction of this kind advances to.
func (k InteractionKind) Status() EmailStatus {
	switch k {
	case InteractionOpen:
		return StatusOpened
	case InteractionClick:
		return StatusClicked
	case InteractionSubmission:
		return StatusSubmitted
	}
	return ""
}

// Interaction is an append-only engagement event keyed by tracking token.
// The token is not required to match an existing EmailRecord.
type Interaction struct {
	ID            int64           `json:"id"`
	TrackingToken string          `json:"tracking_key"`
	Kind          InteractionKind `json:"interaction_type"`
	IPAddress     string          `json:"ip_address"`
	UserAgent     string          `json:"user_agent,omitempty"`
	Metadata      string          `json:"metadata,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}
