package models

import "time"

type Campaign struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	StartDate  time.Time `json:"start_date"`
	StartedBy  string    `json:"started_by"`
	ScenarioID int64     `json:"scenario_id"`
}

// StatusCounts aggregates the emails of one campaign by status.
type StatusCounts struct {
	Total     int `json:"total_emails"`
	Pending   int `json:"pending_emails"`
	Sent      int `json:"sent_emails"`
	Failed    int `json:"failed_emails"`
	Opened    int `json:"opened_emails"`
	Clicked   int `json:"clicked_links"`
	Submitted int `json:"submitted_data"`
}

func CountStatuses(emails []EmailRecord) StatusCounts {
	c := StatusCounts{Total: len(emails)}
	for _, e := range emails {
		switch e.Status {
		case StatusPending:
			c.Pending++
		case StatusSent:
			c.Sent++
		case StatusFailed:
			c.Failed++
		case StatusOpened:
			c.Opened++
		case StatusClicked:
			c.Clicked++
		case StatusSubmitted:
			c.Submitted++
		}
	}
	return c
}

type CampaignStatus struct {
	Campaign Campaign      `json:"campaign"`
	Status   StatusCounts  `json:"status"`
	Emails   []EmailRecord `json:"emails"`
}
