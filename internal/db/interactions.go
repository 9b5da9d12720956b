package db

import (
	"context"

	"github.com/jackc/pgx/v5"

	"PhishSim/internal/models"
)

func (s *Store) AppendInteraction(ctx context.Context, in *models.Interaction) error {
	err := s.Pool.QueryRow(ctx,
		`INSERT INTO phishing_interactions
		 (tracking_token, interaction_type, ip_address, user_agent, metadata, timestamp)
		 VALUES ($1,$2,$3,NULLIF($4, ''),NULLIF($5, ''),COALESCE($6, NOW()))
		 RETURNING id, timestamp`,
		in.TrackingToken,
		in.Kind,
		in.IPAddress,
		in.UserAgent,
		in.Metadata,
		nullTime(in.Timestamp),
	).Scan(&in.ID, &in.Timestamp)

	return mapErr(err, "insert interaction")
}

const interactionColumns = `id, tracking_token, interaction_type, ip_address,
	COALESCE(user_agent, ''), COALESCE(metadata, ''), timestamp`

func (s *Store) ListInteractions(ctx context.Context, token string) ([]models.Interaction, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT `+interactionColumns+` FROM phishing_interactions
		 WHERE tracking_token = $1 ORDER BY timestamp, id`,
		token,
	)
	if err != nil {
		return nil, mapErr(err, "list interactions")
	}
	return collectInteractions(rows)
}

func (s *Store) ListAllInteractions(ctx context.Context) ([]models.Interaction, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT `+interactionColumns+` FROM phishing_interactions ORDER BY timestamp, id`)
	if err != nil {
		return nil, mapErr(err, "list interactions")
	}
	return collectInteractions(rows)
}

func collectInteractions(rows pgx.Rows) ([]models.Interaction, error) {
	defer rows.Close()

	out := []models.Interaction{}
	for rows.Next() {
		var in models.Interaction
		if err := rows.Scan(
			&in.ID,
			&in.TrackingToken,
			&in.Kind,
			&in.IPAddress,
			&in.UserAgent,
			&in.Metadata,
			&in.Timestamp,
		); err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}
