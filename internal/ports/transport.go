package ports

import (
	"context"
	"net/http"
	"time"

	"github.com/bft-labs/offlinesync/internal/domain"
)

// Request is one HTTP exchange with the remote API.
type Request struct {
	Method  string
	URL     string
	Body    []byte
	Headers map[string]string
}

// Response is a completed 2xx exchange.
type Response struct {
	StatusCode int
	Body       []byte
}

// HTTPClient is satisfied by *http.Client. Adapters and the prober take it
// so tests can inject httptest clients.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Transport executes requests against the remote API.
//
// Implementations return *domain.NetworkError when the exchange could not be
// completed and *domain.HTTPError for non-2xx statuses.
type Transport interface {
	Do(ctx context.Context, req Request) (*Response, error)
}

// NetworkStatus exposes the current connectivity snapshot.
type NetworkStatus interface {
	IsOnline() bool
	CurrentState() domain.NetworkState
}

// TokenSource supplies the bearer token, or "" when none is available.
type TokenSource interface {
	Token() string
}

// StaticToken is a TokenSource with a fixed value.
type StaticToken string

// Token returns the fixed token.
func (t StaticToken) Token() string { return string(t) }

// NetworkReporter accepts connectivity observations. Report returns true
// when the observation changed online/offline.
type NetworkReporter interface {
	Report(online bool, effectiveType string, rtt time.Duration) bool
}
