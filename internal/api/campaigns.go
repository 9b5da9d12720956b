package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"PhishSim/internal/campaign"
	"PhishSim/internal/csvparser"
)

const maxUploadBytes = 10 << 20

func (h *Handler) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	list, err := h.Campaigns.ListCampaigns(r.Context())
	if err != nil {
		h.Log.Error("failed to list campaigns", zap.Error(err))
		failErr(w, err)
		return
	}
	success(w, map[string]any{"campaigns": list}, "")
}

func (h *Handler) StartCampaign(w http.ResponseWriter, r *http.Request) {
	var req campaign.StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "Invalid input body", err.Error())
		return
	}
	req.StartedBy = Identity(r.Context())

	h.start(w, r, req)
}

// UploadCampaign starts a campaign whose recipients come from a CSV file.
func (h *Handler) UploadCampaign(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		fail(w, http.StatusBadRequest, "Invalid multipart body", err.Error())
		return
	}

	scenarioID, err := strconv.ParseInt(r.FormValue("scenario_id"), 10, 64)
	if err != nil {
		fail(w, http.StatusBadRequest, "scenario_id must be an integer", nil)
		return
	}

	f, _, err := r.FormFile("file")
	if err != nil {
		fail(w, http.StatusBadRequest, "file is required", nil)
		return
	}
	defer f.Close()

	recipients, err := csvparser.ParseRecipients(f, h.MaxCSVRows)
	if err != nil {
		fail(w, http.StatusBadRequest, "Invalid recipients file", err.Error())
		return
	}

	h.start(w, r, campaign.StartRequest{
		Name:       r.FormValue("name"),
		Recipients: recipients,
		ScenarioID: scenarioID,
		StartedBy:  Identity(r.Context()),
	})
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request, req campaign.StartRequest) {
	c, err := h.Campaigns.StartCampaign(r.Context(), req)
	if err != nil {
		h.Log.Warn("campaign rejected",
			zap.String("name", req.Name),
			zap.String("started_by", req.StartedBy),
			zap.Error(err),
		)
		failErr(w, err)
		return
	}
	success(w, map[string]any{"campaign": c}, "Campaign started successfully")
}

func (h *Handler) CampaignStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		fail(w, http.StatusNotFound, "campaign not found", nil)
		return
	}

	status, err := h.Campaigns.CampaignStatus(r.Context(), id)
	if err != nil {
		failErr(w, err)
		return
	}
	success(w, status, "")
}
