package db

import (
	"context"
	"fmt"

	"PhishSim/internal/models"
)

func (s *Store) CreateCampaign(ctx context.Context, c *models.Campaign) error {
	err := s.Pool.QueryRow(ctx,
		`INSERT INTO campaigns (name, start_date, started_by, scenario_id)
		 VALUES ($1, COALESCE($2, NOW()), $3, $4)
		 RETURNING id, start_date`,
		c.Name,
		nullTime(c.StartDate),
		c.StartedBy,
		c.ScenarioID,
	).Scan(&c.ID, &c.StartDate)

	return mapErr(err, "insert campaign")
}

func (s *Store) GetCampaign(ctx context.Context, id int64) (*models.Campaign, error) {
	var c models.Campaign
	err := s.Pool.QueryRow(ctx,
		`SELECT id, name, start_date, started_by, scenario_id
		 FROM campaigns WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.Name, &c.StartDate, &c.StartedBy, &c.ScenarioID)
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("campaign %d", id))
	}
	return &c, nil
}

func (s *Store) ListCampaigns(ctx context.Context) ([]models.Campaign, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT id, name, start_date, started_by, scenario_id
		 FROM campaigns ORDER BY id DESC`)
	if err != nil {
		return nil, mapErr(err, "list campaigns")
	}
	defer rows.Close()

	out := []models.Campaign{}
	for rows.Next() {
		var c models.Campaign
		if err := rows.Scan(&c.ID, &c.Name, &c.StartDate, &c.StartedBy, &c.ScenarioID); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteCampaign removes a campaign and its email records in one transaction.
func (s *Store) DeleteCampaign(ctx context.Context, id int64) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM phishing_emails WHERE campaign_id = $1`, id); err != nil {
		return mapErr(err, "delete campaign emails")
	}

	tag, err := tx.Exec(ctx, `DELETE FROM campaigns WHERE id = $1`, id)
	if err != nil {
		return mapErr(err, "delete campaign")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("campaign %d: %w", id, models.ErrNotFound)
	}

	return tx.Commit(ctx)
}
