package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"PhishSim/internal/tracking"
)

func TestSampleTemplate_FollowsTrackingURL(t *testing.T) {
	tmpl := sampleTemplate("https://phish.corp.test:9443/api/tracking/open")

	body := tracking.RenderBody(tmpl.Content, "tok-1", "https://phish.corp.test:9443/api/tracking/open")

	assert.Contains(t, body, `href="https://phish.corp.test:9443/api/tracking/click/tok-1"`)
	assert.NotContains(t, body, "localhost")
}
