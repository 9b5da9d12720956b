package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"PhishSim/internal/campaign"
	"PhishSim/internal/models"
	"PhishSim/internal/tracking"
)

type CampaignService interface {
	StartCampaign(ctx context.Context, req campaign.StartRequest) (*models.Campaign, error)
	CampaignStatus(ctx context.Context, id int64) (*models.CampaignStatus, error)
	ListCampaigns(ctx context.Context) ([]models.Campaign, error)
}

type Tracker interface {
	RecordInteraction(ctx context.Context, ev tracking.Event) error
	Interactions(ctx context.Context, token string) ([]models.Interaction, error)
	AllInteractions(ctx context.Context) ([]models.Interaction, error)
}

type Handler struct {
	Campaigns CampaignService
	Tracker   Tracker
	Log       *zap.Logger

	// LandingURL is where click tracking redirects; empty serves a plain page.
	LandingURL  string
	JWTSecret   []byte
	CORSOrigins []string
	MaxCSVRows  int
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.Health)

	r.Route("/api/tracking", func(r chi.Router) {
		r.Get("/open/{token}", h.TrackOpen)
		r.Get("/click/{token}", h.TrackClick)
		r.Post("/submit/{token}", h.TrackSubmission)

		r.Group(func(r chi.Router) {
			r.Use(h.requireIdentity)
			r.Get("/interactions", h.AllInteractions)
			r.Get("/interactions/{token}", h.Interactions)
		})
	})

	r.Route("/api/campaigns", func(r chi.Router) {
		r.Use(h.requireIdentity)
		r.Get("/", h.ListCampaigns)
		r.Post("/", h.StartCampaign)
		r.Post("/upload", h.UploadCampaign)
		r.Get("/{id}/status", h.CampaignStatus)
	})

	return r
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		h.Log.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
