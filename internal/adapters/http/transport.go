package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/bft-labs/offlinesync/internal/domain"
	"github.com/bft-labs/offlinesync/internal/ports"
)

var _ ports.Transport = (*Transport)(nil)

// maxErrorBody caps how much of a failed response body is kept.
const maxErrorBody = 4096

// Transport implements ports.Transport against the remote API.
type Transport struct {
	client  ports.HTTPClient
	baseURL string
	tokens  ports.TokenSource
	agent   string
}

// NewTransport creates a transport. Relative request URLs are resolved
// against baseURL; tokens may be nil.
func NewTransport(client ports.HTTPClient, baseURL string, tokens ports.TokenSource) *Transport {
	if client == nil {
		client = http.DefaultClient
	}
	return &Transport{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		agent:   "offlinesync (" + runtime.GOOS + "/" + runtime.GOARCH + ")",
	}
}

// ResolveURL joins a relative path onto the base URL. Absolute URLs are
// returned unchanged.
func (t *Transport) ResolveURL(u string) string {
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") || t.baseURL == "" {
		return u
	}
	if !strings.HasPrefix(u, "/") {
		u = "/" + u
	}
	return t.baseURL + u
}

// Do performs one exchange. Failures to reach the server come back as
// *domain.NetworkError, non-2xx statuses as *domain.HTTPError.
func (t *Transport) Do(ctx context.Context, r ports.Request) (*ports.Response, error) {
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, t.ResolveURL(r.URL), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", t.agent)
	req.Header.Set("Accept", "application/json")
	if r.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if t.tokens != nil {
		if tok := t.tokens.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &domain.NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &domain.HTTPError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.NetworkError{Err: fmt.Errorf("read response: %w", err)}
	}
	return &ports.Response{StatusCode: resp.StatusCode, Body: respBody}, nil
}
