package db

import (
	"context"
	"fmt"
	"time"

	"PhishSim/internal/models"
)

const emailColumns = `id, recipient_email, campaign_id, template_id, tracking_token,
	subject, body, status, COALESCE(error_message, ''), created_at, sent_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanEmail(row scanner) (*models.EmailRecord, error) {
	var e models.EmailRecord
	err := row.Scan(
		&e.ID,
		&e.RecipientEmail,
		&e.CampaignID,
		&e.TemplateID,
		&e.TrackingToken,
		&e.Subject,
		&e.Body,
		&e.Status,
		&e.ErrorMsg,
		&e.CreatedAt,
		&e.SentAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) CreateEmail(ctx context.Context, rec *models.EmailRecord) error {
	err := s.Pool.QueryRow(ctx,
		`INSERT INTO phishing_emails
		 (recipient_email, campaign_id, template_id, tracking_token, subject, body, status, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,COALESCE($8, NOW()))
		 RETURNING id, created_at`,
		rec.RecipientEmail,
		rec.CampaignID,
		rec.TemplateID,
		rec.TrackingToken,
		rec.Subject,
		rec.Body,
		models.StatusPending,
		nullTime(rec.CreatedAt),
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return mapErr(err, "insert email")
	}

	rec.Status = models.StatusPending
	return nil
}

func (s *Store) GetEmail(ctx context.Context, id int64) (*models.EmailRecord, error) {
	row := s.Pool.QueryRow(ctx,
		`SELECT `+emailColumns+` FROM phishing_emails WHERE id = $1`, id)

	e, err := scanEmail(row)
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("email %d", id))
	}
	return e, nil
}

func (s *Store) ListEmailsByCampaign(ctx context.Context, campaignID int64) ([]models.EmailRecord, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT `+emailColumns+` FROM phishing_emails WHERE campaign_id = $1 ORDER BY id`,
		campaignID,
	)
	if err != nil {
		return nil, mapErr(err, "list emails")
	}
	defer rows.Close()

	out := []models.EmailRecord{}
	for rows.Next() {
		e, err := scanEmail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (s *Store) EmailIDByToken(ctx context.Context, token string) (int64, error) {
	var id int64
	err := s.Pool.QueryRow(ctx,
		`SELECT id FROM phishing_emails WHERE tracking_token = $1`, token,
	).Scan(&id)
	if err != nil {
		return 0, mapErr(err, "tracking token")
	}
	return id, nil
}

// AdvanceStatus is a compare-and-set: the row only changes when its current
// status is a legal predecessor of to, evaluated by the database under the
// row lock, so racing interactions cannot downgrade each other.
func (s *Store) AdvanceStatus(ctx context.Context, id int64, to models.EmailStatus) (bool, error) {
	tag, err := s.Pool.Exec(ctx,
		`UPDATE phishing_emails
		 SET status = $2
		 WHERE id = $1 AND status = ANY($3)`,
		id,
		to,
		statusStrings(models.Predecessors(to)),
	)
	if err != nil {
		return false, mapErr(err, "advance status")
	}
	return tag.RowsAffected() > 0, nil
}

// MarkSent stamps the send time and moves pending to sent. An interaction
// may have advanced the row already, in which case only the timestamp moves.
func (s *Store) MarkSent(ctx context.Context, id int64, sentAt time.Time) (bool, error) {
	tag, err := s.Pool.Exec(ctx,
		`UPDATE phishing_emails
		 SET status = CASE WHEN status = $3 THEN $4 ELSE status END,
		     sent_at = $2,
		     error_message = NULL
		 WHERE id = $1 AND status <> $5`,
		id,
		sentAt,
		models.StatusPending,
		models.StatusSent,
		models.StatusFailed,
	)
	if err != nil {
		return false, mapErr(err, "mark sent")
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) MarkFailed(ctx context.Context, id int64, reason string) (bool, error) {
	tag, err := s.Pool.Exec(ctx,
		`UPDATE phishing_emails
		 SET status = $2,
		     error_message = $3
		 WHERE id = $1 AND status = ANY($4)`,
		id,
		models.StatusFailed,
		reason,
		statusStrings(models.Predecessors(models.StatusFailed)),
	)
	if err != nil {
		return false, mapErr(err, "mark failed")
	}
	return tag.RowsAffected() > 0, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
