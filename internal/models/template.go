package models

// Template is the email content attached to a phishing scenario.
// Content may carry the TrackingPlaceholder marker.
type Template struct {
	ID         int64  `json:"id"`
	ScenarioID int64  `json:"scenario_id"`
	Subject    string `json:"subject"`
	Content    string `json:"content"`
}

const TrackingPlaceholder = "{{tracking_key}}"
