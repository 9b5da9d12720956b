package campaign

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"PhishSim/internal/dispatch"
	"PhishSim/internal/metrics"
	"PhishSim/internal/models"
)

const maxNameLength = 100

type Store interface {
	CreateCampaign(ctx context.Context, c *models.Campaign) error
	GetCampaign(ctx context.Context, id int64) (*models.Campaign, error)
	ListCampaigns(ctx context.Context) ([]models.Campaign, error)
	DeleteCampaign(ctx context.Context, id int64) error
	ListEmailsByCampaign(ctx context.Context, campaignID int64) ([]models.EmailRecord, error)
}

type Templates interface {
	TemplateByScenarioID(ctx context.Context, scenarioID int64) (*models.Template, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, campaignID int64, recipients []string, tmpl models.Template) (dispatch.Result, error)
}

type Service struct {
	store      Store
	templates  Templates
	dispatcher Dispatcher
	log        *zap.Logger
	now        func() time.Time
}

func NewService(store Store, templates Templates, dispatcher Dispatcher, logger *zap.Logger) *Service {
	return &Service{
		store:      store,
		templates:  templates,
		dispatcher: dispatcher,
		log:        logger,
		now:        time.Now,
	}
}

type StartRequest struct {
	Name       string   `json:"name"`
	Recipients []string `json:"employee_emails"`
	ScenarioID int64    `json:"scenario_id"`

	// StartedBy comes from the authenticated session, never from the body.
	StartedBy string `json:"-"`
}

// StartCampaign validates the request, creates the campaign and hands its
// recipients to the dispatcher. The campaign is deleted again when not a
// single email record could be created. Delivery itself is asynchronous.
func (s *Service) StartCampaign(ctx context.Context, req StartRequest) (*models.Campaign, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || len(name) > maxNameLength {
		return nil, fmt.Errorf("%w: campaign name must be 1-%d characters", models.ErrValidation, maxNameLength)
	}
	if req.StartedBy == "" {
		return nil, fmt.Errorf("%w: campaign creator is unknown", models.ErrValidation)
	}

	recipients := NormalizeRecipients(req.Recipients)
	if len(recipients) == 0 {
		return nil, fmt.Errorf("%w: recipient list is empty", models.ErrValidation)
	}

	tmpl, err := s.templates.TemplateByScenarioID(ctx, req.ScenarioID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("%w: scenario %d has no template", models.ErrValidation, req.ScenarioID)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve template: %w", err)
	}

	c := &models.Campaign{
		Name:       name,
		StartDate:  s.now().UTC(),
		StartedBy:  req.StartedBy,
		ScenarioID: req.ScenarioID,
	}
	if err := s.store.CreateCampaign(ctx, c); err != nil {
		return nil, fmt.Errorf("%w: create campaign: %v", models.ErrOperation, err)
	}

	res, err := s.dispatcher.Dispatch(ctx, c.ID, recipients, *tmpl)
	if err == nil && len(res.CreatedIDs) == 0 {
		err = fmt.Errorf("%w: no email records created", models.ErrOperation)
	}
	if err != nil {
		s.rollback(ctx, c.ID, err)
		if !errors.Is(err, models.ErrOperation) {
			err = fmt.Errorf("%w: dispatch: %v", models.ErrOperation, err)
		}
		return nil, err
	}

	if len(res.FailedRecipients) > 0 {
		s.log.Warn("campaign started with partial failures",
			zap.Int64("campaign_id", c.ID),
			zap.Strings("failed_recipients", res.FailedRecipients),
		)
	}

	metrics.CampaignsStarted.Inc()
	s.log.Info("campaign started",
		zap.Int64("campaign_id", c.ID),
		zap.String("started_by", c.StartedBy),
		zap.Int("emails", len(res.CreatedIDs)),
	)
	return c, nil
}

func (s *Service) rollback(ctx context.Context, campaignID int64, cause error) {
	metrics.CampaignRollbacks.Inc()
	s.log.Error("dispatch failed, rolling back campaign",
		zap.Int64("campaign_id", campaignID),
		zap.Error(cause),
	)

	if err := s.store.DeleteCampaign(context.WithoutCancel(ctx), campaignID); err != nil {
		s.log.Error("failed to delete campaign during rollback",
			zap.Int64("campaign_id", campaignID),
			zap.Error(err),
		)
	}
}

func (s *Service) CampaignStatus(ctx context.Context, campaignID int64) (*models.CampaignStatus, error) {
	c, err := s.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	emails, err := s.store.ListEmailsByCampaign(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list emails: %w", err)
	}
	if emails == nil {
		emails = []models.EmailRecord{}
	}

	return &models.CampaignStatus{
		Campaign: *c,
		Status:   models.CountStatuses(emails),
		Emails:   emails,
	}, nil
}

func (s *Service) ListCampaigns(ctx context.Context) ([]models.Campaign, error) {
	return s.store.ListCampaigns(ctx)
}

// NormalizeRecipients trims addresses, drops blanks and removes
// case-insensitive duplicates, keeping first-seen order.
func NormalizeRecipients(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, r := range in {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		key := strings.ToLower(r)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}
