package offlinesync

import (
	"net/http"

	"go.opentelemetry.io/otel/trace"

	"github.com/bft-labs/offlinesync/pkg/log"
)

// Option configures optional behavior of a Service.
type Option func(*options)

type options struct {
	httpClient   HTTPClient
	logger       Logger
	eventHandler EventHandler
	plugins      []Plugin
	metrics      MetricsRecorder
	tracer       trace.Tracer
	lease        Lease
}

func defaultOptions(client *http.Client) options {
	return options{
		httpClient: client,
		logger:     log.NewNoopLogger(),
	}
}

// WithHTTPClient sets the HTTP client used for the remote API.
// If not provided, a client with Config.HTTPTimeout is used.
func WithHTTPClient(client HTTPClient) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithLogger sets a structured logger. The default discards everything.
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithEventHandler sets a handler for service events.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// WithPlugin registers a plugin to be initialized when the service starts.
func WithPlugin(plugin Plugin) Option {
	return func(o *options) {
		o.plugins = append(o.plugins, plugin)
	}
}

// WithMetrics sets the recorder for queue metrics.
func WithMetrics(m MetricsRecorder) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithTracer sets the tracer for drain and delivery spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		o.tracer = t
	}
}

// WithLease overrides the lease backend chosen by Config.Lease.
func WithLease(l Lease) Option {
	return func(o *options) {
		o.lease = l
	}
}
