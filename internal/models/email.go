package models

import "time"

type EmailStatus string

const (
	StatusPending   EmailStatus = "pending"
	StatusSent      EmailStatus = "sent"
	StatusOpened    EmailStatus = "opened"
	StatusClicked   EmailStatus = "clicked"
	StatusSubmitted EmailStatus = "submitted"
	StatusFailed    EmailStatus = "failed"
)

// AllStatuses lists every status in progression order, failed last.
var AllStatuses = []EmailStatus{
	StatusPending,
	StatusSent,
	StatusOpened,
	StatusClicked,
	StatusSubmitted,
	StatusFailed,
}

// progression rank; failed is outside the forward chain.
var statusRank = map[EmailStatus]int{
	StatusPending:   0,
	StatusSent:      1,
	StatusOpened:    2,
	StatusClicked:   3,
	StatusSubmitted: 4,
}

func (s EmailStatus) Valid() bool {
	if s == StatusFailed {
		return true
	}
	_, ok := statusRank[s]
	return ok
}

func (s EmailStatus) Terminal() bool {
	return s == StatusFailed
}

// CanTransition reports whether an email in status from may move to status to.
// Forward moves along pending → sent → opened → clicked → submitted are allowed,
// skipping steps included. Only pending and sent may fail. Failed never moves.
func CanTransition(from, to EmailStatus) bool {
	if !from.Valid() || !to.Valid() || from.Terminal() {
		return false
	}
	if to == StatusFailed {
		return from == StatusPending || from == StatusSent
	}
	return statusRank[to] > statusRank[from]
}

// Predecessors returns every status from which to is reachable in one step.
// Stores use it as the guard set of a conditional update.
func Predecessors(to EmailStatus) []EmailStatus {
	var out []EmailStatus
	for _, s := range AllStatuses {
		if CanTransition(s, to) {
			out = append(out, s)
		}
	}
	return out
}

// EmailRecord is one simulated phishing email sent to one recipient.
// Subject and Body are rendered once at creation and never rewritten.
type EmailRecord struct {
	ID             int64  `json:"id"`
	RecipientEmail string `json:"recipient_email"`
	CampaignID     int64  `json:"campaign_id"`
	TemplateID     int64  `json:"template_id"`
	TrackingToken  string `json:"tracking_key"`

	Subject string `json:"subject"`
	Body    string `json:"body"`

	Status   EmailStatus `json:"status"`
	ErrorMsg string      `json:"error_message,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
}
