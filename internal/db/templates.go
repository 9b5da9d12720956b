package db

import (
	"context"
	"fmt"

	"PhishSim/internal/models"
)

func (s *Store) TemplateByScenarioID(ctx context.Context, scenarioID int64) (*models.Template, error) {
	var t models.Template
	err := s.Pool.QueryRow(ctx,
		`SELECT id, scenario_id, subject, content
		 FROM phishing_templates WHERE scenario_id = $1`,
		scenarioID,
	).Scan(&t.ID, &t.ScenarioID, &t.Subject, &t.Content)
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("template for scenario %d", scenarioID))
	}
	return &t, nil
}

// UpsertTemplate stores the template of a scenario, replacing any previous one.
func (s *Store) UpsertTemplate(ctx context.Context, t *models.Template) error {
	err := s.Pool.QueryRow(ctx,
		`INSERT INTO phishing_templates (scenario_id, subject, content)
		 VALUES ($1,$2,$3)
		 ON CONFLICT (scenario_id) DO UPDATE
		 SET subject = EXCLUDED.subject, content = EXCLUDED.content
		 RETURNING id`,
		t.ScenarioID,
		t.Subject,
		t.Content,
	).Scan(&t.ID)

	return mapErr(err, "upsert template")
}
