// Package memstore keeps campaigns, emails, interactions and templates in
// process memory. It backs STORE_DRIVER=memory and the package tests.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"PhishSim/internal/models"
)

type Store struct {
	mu sync.Mutex

	nextID       int64
	campaigns    map[int64]models.Campaign
	emails       map[int64]models.EmailRecord
	tokens       map[string]int64
	interactions []models.Interaction
	templates    map[int64]models.Template

	// FailCreateEmail, when set, is consulted before every email insert.
	// A non-nil result aborts that insert.
	FailCreateEmail func(rec *models.EmailRecord) error
}

func New() *Store {
	return &Store{
		campaigns: make(map[int64]models.Campaign),
		emails:    make(map[int64]models.EmailRecord),
		tokens:    make(map[string]int64),
		templates: make(map[int64]models.Template),
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// ----------------------------
// Templates
// ----------------------------

func (s *Store) PutTemplate(t models.Template) models.Template {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == 0 {
		t.ID = s.id()
	}
	s.templates[t.ScenarioID] = t
	return t
}

func (s *Store) TemplateByScenarioID(_ context.Context, scenarioID int64) (*models.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.templates[scenarioID]
	if !ok {
		return nil, fmt.Errorf("template for scenario %d: %w", scenarioID, models.ErrNotFound)
	}
	return &t, nil
}

// ----------------------------
// Campaigns
// ----------------------------

func (s *Store) CreateCampaign(_ context.Context, c *models.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.ID = s.id()
	if c.StartDate.IsZero() {
		c.StartDate = time.Now().UTC()
	}
	s.campaigns[c.ID] = *c
	return nil
}

func (s *Store) GetCampaign(_ context.Context, id int64) (*models.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.campaigns[id]
	if !ok {
		return nil, fmt.Errorf("campaign %d: %w", id, models.ErrNotFound)
	}
	return &c, nil
}

func (s *Store) ListCampaigns(_ context.Context) ([]models.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Campaign, 0, len(s.campaigns))
	for _, c := range s.campaigns {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// DeleteCampaign removes the campaign together with its email records.
func (s *Store) DeleteCampaign(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.campaigns[id]; !ok {
		return fmt.Errorf("campaign %d: %w", id, models.ErrNotFound)
	}
	for eid, e := range s.emails {
		if e.CampaignID == id {
			delete(s.tokens, e.TrackingToken)
			delete(s.emails, eid)
		}
	}
	delete(s.campaigns, id)
	return nil
}

// ----------------------------
// Emails
// ----------------------------

func (s *Store) CreateEmail(_ context.Context, rec *models.EmailRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailCreateEmail != nil {
		if err := s.FailCreateEmail(rec); err != nil {
			return err
		}
	}
	if _, ok := s.campaigns[rec.CampaignID]; !ok {
		return fmt.Errorf("campaign %d: %w", rec.CampaignID, models.ErrNotFound)
	}
	if _, dup := s.tokens[rec.TrackingToken]; dup {
		return fmt.Errorf("tracking token already in use: %w", models.ErrConflict)
	}

	rec.ID = s.id()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	s.emails[rec.ID] = *rec
	s.tokens[rec.TrackingToken] = rec.ID
	return nil
}

func (s *Store) GetEmail(_ context.Context, id int64) (*models.EmailRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.emails[id]
	if !ok {
		return nil, fmt.Errorf("email %d: %w", id, models.ErrNotFound)
	}
	return &e, nil
}

func (s *Store) ListEmailsByCampaign(_ context.Context, campaignID int64) ([]models.EmailRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.EmailRecord
	for _, e := range s.emails {
		if e.CampaignID == campaignID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) EmailIDByToken(_ context.Context, token string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.tokens[token]
	if !ok {
		return 0, fmt.Errorf("tracking token: %w", models.ErrNotFound)
	}
	return id, nil
}

// AdvanceStatus moves the email to status to if its current status is one of
// the predecessors of to.
func (s *Store) AdvanceStatus(_ context.Context, id int64, to models.EmailStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.emails[id]
	if !ok {
		return false, fmt.Errorf("email %d: %w", id, models.ErrNotFound)
	}
	if !models.CanTransition(e.Status, to) {
		return false, nil
	}
	e.Status = to
	s.emails[id] = e
	return true, nil
}

// MarkSent stamps the send time. The status only changes when still pending,
// an interaction may already have moved it further.
func (s *Store) MarkSent(_ context.Context, id int64, sentAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.emails[id]
	if !ok {
		return false, fmt.Errorf("email %d: %w", id, models.ErrNotFound)
	}
	if e.Status.Terminal() {
		return false, nil
	}
	if e.Status == models.StatusPending {
		e.Status = models.StatusSent
	}
	e.SentAt = &sentAt
	e.ErrorMsg = ""
	s.emails[id] = e
	return true, nil
}

func (s *Store) MarkFailed(_ context.Context, id int64, reason string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.emails[id]
	if !ok {
		return false, fmt.Errorf("email %d: %w", id, models.ErrNotFound)
	}
	if !models.CanTransition(e.Status, models.StatusFailed) {
		return false, nil
	}
	e.Status = models.StatusFailed
	e.ErrorMsg = reason
	s.emails[id] = e
	return true, nil
}

// ----------------------------
// Interactions
// ----------------------------

func (s *Store) AppendInteraction(_ context.Context, in *models.Interaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	in.ID = s.id()
	if in.Timestamp.IsZero() {
		in.Timestamp = time.Now().UTC()
	}
	s.interactions = append(s.interactions, *in)
	return nil
}

func (s *Store) ListInteractions(_ context.Context, token string) ([]models.Interaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Interaction
	for _, in := range s.interactions {
		if in.TrackingToken == token {
			out = append(out, in)
		}
	}
	sortInteractions(out)
	return out, nil
}

func (s *Store) ListAllInteractions(_ context.Context) ([]models.Interaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := slices.Clone(s.interactions)
	sortInteractions(out)
	return out, nil
}

func sortInteractions(in []models.Interaction) {
	sort.SliceStable(in, func(i, j int) bool {
		if in[i].Timestamp.Equal(in[j].Timestamp) {
			return in[i].ID < in[j].ID
		}
		return in[i].Timestamp.Before(in[j].Timestamp)
	})
}
