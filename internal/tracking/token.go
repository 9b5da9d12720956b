package tracking

import (
	"fmt"
	"html"
	"strings"

	"github.com/google/uuid"

	"PhishSim/internal/models"
)

const pixelTag = `<img src="%s" alt="" width="1" height="1" style="display:none;visibility:hidden;" />`

// Mint returns a fresh tracking token: a random (v4) UUID read from crypto/rand.
// Nothing about the email record or the recipient goes into it.
func Mint() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("mint tracking token: %w", err)
	}
	return id.String(), nil
}

// Artifacts are the values a token contributes to an outgoing email.
type Artifacts struct {
	PixelURL         string
	PlaceholderValue string
}

func RenderArtifacts(token, baseURL string) Artifacts {
	return Artifacts{
		PixelURL:         strings.TrimRight(baseURL, "/") + "/" + token + ".png",
		PlaceholderValue: token,
	}
}

// RenderBody appends the invisible open pixel to content and replaces every
// tracking placeholder with the token.
func RenderBody(content, token, baseURL string) string {
	a := RenderArtifacts(token, baseURL)

	body := content + fmt.Sprintf(pixelTag, html.EscapeString(a.PixelURL))
	return strings.ReplaceAll(body, models.TrackingPlaceholder, a.PlaceholderValue)
}

// ClickURL builds the click-tracking link for token. The click endpoint is a
// sibling of the open pixel base, so ".../tracking/open" becomes
// ".../tracking/click/{token}".
func ClickURL(openBaseURL, token string) string {
	base := strings.TrimRight(openBaseURL, "/")
	if i := strings.LastIndex(base, "/"); i >= 0 && base[i+1:] == "open" {
		base = base[:i]
	}
	return base + "/click/" + token
}

// ParseToken normalizes a token taken from a request path. The pixel URL
// carries a ".png" suffix which is not part of the token.
func ParseToken(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimSuffix(raw, ".png")
	return raw
}
