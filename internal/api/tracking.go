package api

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"PhishSim/internal/models"
	"PhishSim/internal/tracking"
)

// 1x1 transparent GIF
var pixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00,
	0x80, 0x00, 0x00, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x21,
	0xf9, 0x04, 0x01, 0x00, 0x00, 0x00, 0x00, 0x2c, 0x00, 0x00,
	0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x02, 0x02, 0x44,
	0x01, 0x00, 0x3b,
}

const trackingTimeout = 5 * time.Second

const submissionAck = "Form submitted. Thank you."

// record hands an event to the tracker. Failures never reach the target.
func (h *Handler) record(r *http.Request, kind models.InteractionKind, metadata map[string]string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), trackingTimeout)
	defer cancel()

	ev := tracking.Event{
		Token:     tracking.ParseToken(chi.URLParam(r, "token")),
		Kind:      kind,
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
		Metadata:  metadata,
	}
	if err := h.Tracker.RecordInteraction(ctx, ev); err != nil {
		h.Log.Debug("tracking error swallowed",
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
	}
}

func (h *Handler) TrackOpen(w http.ResponseWriter, r *http.Request) {
	h.record(r, models.InteractionOpen, nil)
	servePixel(w)
}

func (h *Handler) TrackClick(w http.ResponseWriter, r *http.Request) {
	h.record(r, models.InteractionClick, nil)

	if h.LandingURL == "" {
		writeOK(w)
		return
	}

	target, err := url.Parse(h.LandingURL)
	if err != nil {
		h.Log.Error("invalid landing url", zap.String("url", h.LandingURL), zap.Error(err))
		writeOK(w)
		return
	}
	q := target.Query()
	q.Set("tracking_key", tracking.ParseToken(chi.URLParam(r, "token")))
	target.RawQuery = q.Encode()

	http.Redirect(w, r, target.String(), http.StatusFound)
}

func (h *Handler) TrackSubmission(w http.ResponseWriter, r *http.Request) {
	var fields map[string]string
	if err := r.ParseForm(); err != nil {
		h.Log.Warn("unreadable submission form", zap.Error(err))
	} else if len(r.PostForm) > 0 {
		fields = make(map[string]string, len(r.PostForm))
		for k := range r.PostForm {
			fields[k] = r.PostForm.Get(k)
		}
	}

	h.record(r, models.InteractionSubmission, fields)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(submissionAck))
}

func (h *Handler) Interactions(w http.ResponseWriter, r *http.Request) {
	token := tracking.ParseToken(chi.URLParam(r, "token"))

	list, err := h.Tracker.Interactions(r.Context(), token)
	if err != nil {
		h.Log.Error("failed to list interactions", zap.String("token", token), zap.Error(err))
		fail(w, http.StatusInternalServerError, "Failed to retrieve interactions", nil)
		return
	}
	success(w, map[string]any{"interactions": nonNil(list)}, "")
}

func (h *Handler) AllInteractions(w http.ResponseWriter, r *http.Request) {
	list, err := h.Tracker.AllInteractions(r.Context())
	if err != nil {
		h.Log.Error("failed to list interactions", zap.Error(err))
		fail(w, http.StatusInternalServerError, "Failed to retrieve interactions", nil)
		return
	}
	success(w, map[string]any{"interactions": nonNil(list)}, "")
}

func writeOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("OK"))
}

func servePixel(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.WriteHeader(http.StatusOK)
	w.Write(pixelGIF)
}

// clientIP strips the port from RemoteAddr, which RealIP may have replaced
// with a bare forwarded address.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func nonNil(in []models.Interaction) []models.Interaction {
	if in == nil {
		return []models.Interaction{}
	}
	return in
}
