package vk

import (
	"net/http"
	"strings"
	"time"

	"github.com/SevereCloud/vksdk/v2/api"
	"github.com/example/matchbot/internal/apperr"
)

// DefaultAPIVersion is used when the configuration does not name one
const DefaultAPIVersion = "5.199"

// GroupRateLimit is how many requests per second VK accepts from a
// community token
const GroupRateLimit = 20

const userAgent = "matchbot"

// Option customises a client
type Option func(*api.VK)

// WithAPIURL points the client at another endpoint, e.g. a test server
func WithAPIURL(u string) Option {
	return func(vk *api.VK) {
		if !strings.HasSuffix(u, "/") {
			u += "/"
		}
		vk.MethodURL = u
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(vk *api.VK) { vk.Client = hc }
}

// WithRateLimit sets the requests per second the client allows itself.
// Zero turns throttling off
func WithRateLimit(rps int) Option {
	return func(vk *api.VK) { vk.Limit = rps }
}

// NewClient creates an API client for one access token. timeout bounds every
// request
func NewClient(token, version string, timeout time.Duration, opts ...Option) (*api.VK, error) {
	if token == "" {
		return nil, apperr.New(apperr.ErrAuth, "vk client: empty token")
	}
	if version == "" {
		version = DefaultAPIVersion
	}
	vk := api.NewVK(token)
	vk.Version = version
	vk.UserAgent = userAgent
	vk.Client = &http.Client{Timeout: timeout}
	for _, opt := range opts {
		opt(vk)
	}
	return vk, nil
}
