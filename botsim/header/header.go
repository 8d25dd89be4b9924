// Package header provides header handling for the simulated bot.
//
// The simulator sits where the real bot service would:
//
//	Client <--> Simulated bot
//
// and answers every turn with an SSE stream, so it owns both the inbound
// authorization check and the outbound streaming headers.
package header

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Handler manages headers of simulated bot exchanges.
type Handler struct {
	accessKey string
}

// NewHandler creates a new header Handler. An empty accessKey accepts every
// request.
func NewHandler(accessKey string) *Handler {
	return &Handler{accessKey: accessKey}
}

// streamHeaders are set on every event stream response.
var streamHeaders = map[string]string{
	"Content-Type": "text/event-stream",

	// Intermediaries must not buffer or cache the stream.
	"Cache-Control":     "no-cache",
	"X-Accel-Buffering": "no",
}

// BearerToken returns the token of a "Bearer" Authorization header.
func BearerToken(c *fiber.Ctx) (string, bool) {
	scheme, token, ok := strings.Cut(c.Get(fiber.HeaderAuthorization), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Authorized reports whether the request carries the configured access key.
func (h *Handler) Authorized(c *fiber.Ctx) bool {
	if h.accessKey == "" {
		return true
	}
	token, ok := BearerToken(c)
	return ok && token == h.accessKey
}

// SetStreamHeaders prepares the response for an SSE body.
func (h *Handler) SetStreamHeaders(c *fiber.Ctx) {
	for k, v := range streamHeaders {
		c.Set(k, v)
	}
}
