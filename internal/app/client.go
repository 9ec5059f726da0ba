package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bft-labs/offlinesync/internal/domain"
	"github.com/bft-labs/offlinesync/internal/ports"
)

// Default remote endpoints.
const (
	DefaultAssessmentsPath = "/api/assessments"
	DefaultJournalsPath    = "/api/journals"
	DefaultSettingsPath    = "/api/settings"
)

// Endpoints are the remote collection paths for each record kind.
type Endpoints struct {
	Assessments string
	Journals    string
	Settings    string
}

// DefaultEndpoints returns the default collection paths.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Assessments: DefaultAssessmentsPath,
		Journals:    DefaultJournalsPath,
		Settings:    DefaultSettingsPath,
	}
}

// RequestOptions configures a Client.Request call.
type RequestOptions struct {
	Method  string
	Body    []byte
	Headers map[string]string

	// QueueOffline enqueues a mutation that cannot be sent now.
	QueueOffline bool
	Priority     domain.Priority

	RecordKind domain.RecordKind
	RecordID   string
}

// Response is the outcome of a Client call.
type Response struct {
	Status    int
	Body      []byte
	Queued    bool
	QueueID   string
	FromCache bool
	CachedAt  time.Time
}

// Client is the offline-aware API used by the application. Reads fall back
// to cached responses and writes land in the durable store before any
// network attempt.
type Client struct {
	transport  ports.Transport
	network    ports.NetworkStatus
	cache      ports.ResponseCache
	records    ports.RecordStore
	queue      *SyncQueue
	reconciler *Reconciler
	endpoints  Endpoints
	logger     ports.Logger
	now        func() time.Time
}

// NewClient wires a client. network may be nil to treat the device as
// always online.
func NewClient(
	transport ports.Transport,
	network ports.NetworkStatus,
	cache ports.ResponseCache,
	records ports.RecordStore,
	queue *SyncQueue,
	reconciler *Reconciler,
	endpoints Endpoints,
	logger ports.Logger,
) *Client {
	def := DefaultEndpoints()
	if endpoints.Assessments == "" {
		endpoints.Assessments = def.Assessments
	}
	if endpoints.Journals == "" {
		endpoints.Journals = def.Journals
	}
	if endpoints.Settings == "" {
		endpoints.Settings = def.Settings
	}
	return &Client{
		transport:  transport,
		network:    network,
		cache:      cache,
		records:    records,
		queue:      queue,
		reconciler: reconciler,
		endpoints:  endpoints,
		logger:     scoped(logger, "client"),
		now:        time.Now,
	}
}

func (c *Client) online() bool {
	return c.network == nil || c.network.IsOnline()
}

// Request performs a call against endpoint with offline fallbacks.
//
// GETs are cached on success and served from cache when offline or when the
// network fails; with nothing cached they return domain.ErrNoCachedData.
// Mutations that cannot reach the server are queued when QueueOffline is
// set, and fail with domain.ErrOffline (offline) or the network error
// otherwise. Non-2xx statuses come back as *domain.HTTPError.
func (c *Client) Request(ctx context.Context, endpoint string, opts RequestOptions) (*Response, error) {
	method := strings.ToUpper(opts.Method)
	if method == "" {
		method = http.MethodGet
	}

	if method == http.MethodGet {
		return c.get(ctx, endpoint, opts.Headers)
	}

	if !c.online() {
		if !opts.QueueOffline {
			return nil, domain.ErrOffline
		}
		return c.enqueue(ctx, endpoint, method, opts)
	}

	resp, err := c.transport.Do(ctx, ports.Request{
		Method:  method,
		URL:     endpoint,
		Body:    opts.Body,
		Headers: opts.Headers,
	})
	if err == nil {
		return &Response{Status: resp.StatusCode, Body: resp.Body}, nil
	}
	if domain.IsNetworkError(err) && opts.QueueOffline && ctx.Err() == nil {
		c.logger.Info("request failed, queued for sync",
			ports.String("method", method),
			ports.String("endpoint", endpoint),
			ports.Err(err),
		)
		return c.enqueue(ctx, endpoint, method, opts)
	}
	return nil, err
}

func (c *Client) get(ctx context.Context, endpoint string, headers map[string]string) (*Response, error) {
	if c.online() {
		resp, err := c.transport.Do(ctx, ports.Request{Method: http.MethodGet, URL: endpoint, Headers: headers})
		if err == nil {
			if err := c.cache.PutCached(ctx, endpoint, resp.Body); err != nil {
				c.logger.Warn("failed to cache response", ports.String("endpoint", endpoint), ports.Err(err))
			}
			return &Response{Status: resp.StatusCode, Body: resp.Body}, nil
		}
		if !domain.IsNetworkError(err) {
			return nil, err
		}
		c.logger.Debug("network failed, serving from cache", ports.String("endpoint", endpoint), ports.Err(err))
	}

	body, at, err := c.cache.GetCached(ctx, endpoint)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrNoCachedData
	}
	if err != nil {
		return nil, err
	}
	return &Response{Status: http.StatusOK, Body: body, FromCache: true, CachedAt: at}, nil
}

func (c *Client) enqueue(ctx context.Context, endpoint, method string, opts RequestOptions) (*Response, error) {
	id, err := c.queue.AddItem(ctx, NewItem{
		URL:        endpoint,
		Method:     method,
		Body:       opts.Body,
		Headers:    opts.Headers,
		Priority:   opts.Priority,
		RecordKind: opts.RecordKind,
		RecordID:   opts.RecordID,
	})
	if err != nil {
		return nil, err
	}
	return &Response{Status: http.StatusAccepted, Queued: true, QueueID: id}, nil
}

// SaveAssessmentOffline stores an assessment and syncs it at high priority.
func (c *Client) SaveAssessmentOffline(ctx context.Context, a domain.Assessment) (*Response, error) {
	if a.ID == "" {
		return nil, fmt.Errorf("%w: assessment id is required", domain.ErrInvalidConfig)
	}
	rec := a.Record()
	return c.save(ctx, &rec, http.MethodPut, c.endpoints.Assessments+"/"+a.ID, domain.PriorityHigh)
}

// SaveJournalOffline stores a journal entry and syncs it.
func (c *Client) SaveJournalOffline(ctx context.Context, j domain.JournalEntry) (*Response, error) {
	if j.ID == "" {
		return nil, fmt.Errorf("%w: journal id is required", domain.ErrInvalidConfig)
	}
	rec := j.Record()
	return c.save(ctx, &rec, http.MethodPut, c.endpoints.Journals+"/"+j.ID, domain.PriorityMedium)
}

// SaveSettingsOffline stores the user's settings and syncs them at low
// priority. The settings record is keyed by username.
func (c *Client) SaveSettingsOffline(ctx context.Context, username string, settings map[string]any) (*Response, error) {
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", domain.ErrInvalidConfig)
	}
	rec := domain.Record{
		ID:       username,
		Kind:     domain.KindSettings,
		Username: username,
		Payload:  domain.CopyPayload(settings),
	}
	return c.save(ctx, &rec, http.MethodPut, c.endpoints.Settings, domain.PriorityLow)
}

// save writes rec locally, then sends it directly when online and nothing
// older for the record is still queued; otherwise it is queued.
func (c *Client) save(ctx context.Context, rec *domain.Record, method, endpoint string, priority domain.Priority) (*Response, error) {
	now := c.now().UTC()
	if existing, err := c.records.Get(ctx, rec.Kind, rec.ID); err == nil {
		rec.CreatedAt = existing.CreatedAt
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	rec.UpdatedAt = now

	body, err := EncodeRecord(*rec)
	if err != nil {
		return nil, err
	}

	direct := false
	var queued *Response
	err = c.reconciler.SaveLocal(ctx, rec, func() error {
		if c.online() {
			claimed, err := c.reconciler.ClaimSend(ctx, rec.Kind, rec.ID)
			if err != nil {
				return err
			}
			if claimed {
				direct = true
				return nil
			}
		}
		resp, err := c.enqueue(ctx, endpoint, method, RequestOptions{Body: body, Priority: priority, RecordKind: rec.Kind, RecordID: rec.ID})
		queued = resp
		return err
	})
	if err != nil {
		return nil, err
	}
	if !direct {
		return queued, nil
	}

	// The claim is released on every path below, even if ctx is canceled.
	bg := context.WithoutCancel(ctx)
	resp, err := c.transport.Do(ctx, ports.Request{Method: method, URL: endpoint, Body: body})
	if err == nil {
		if err := c.reconciler.SettleSent(bg, rec.Kind, rec.ID, resp.Body); err != nil {
			c.logger.Warn("failed to settle record", ports.String("record_id", rec.ID), ports.Err(err))
		}
		return &Response{Status: resp.StatusCode, Body: resp.Body}, nil
	}

	if _, terminal := Classify(err); terminal {
		if ferr := c.reconciler.FailSent(bg, rec.Kind, rec.ID); ferr != nil {
			c.logger.Warn("failed to flag record", ports.String("record_id", rec.ID), ports.Err(ferr))
		}
		return nil, err
	}

	c.logger.Info("save failed, queued for sync",
		ports.String("kind", string(rec.Kind)),
		ports.String("record_id", rec.ID),
		ports.Err(err),
	)
	var resp2 *Response
	enqueued, err := c.reconciler.RequeueSent(bg, rec.Kind, rec.ID, func() error {
		var qerr error
		resp2, qerr = c.enqueue(bg, endpoint, method, RequestOptions{Body: body, Priority: priority, RecordKind: rec.Kind, RecordID: rec.ID})
		return qerr
	})
	if err != nil {
		return nil, err
	}
	if !enqueued {
		// A newer edit of the record is already queued and carries it.
		return &Response{Status: http.StatusAccepted, Queued: true}, nil
	}
	return resp2, nil
}

// DeleteJournalOffline removes a journal entry locally and queues the
// remote delete.
func (c *Client) DeleteJournalOffline(ctx context.Context, id string) (*Response, error) {
	var resp *Response
	err := c.reconciler.Locked(func() error {
		if err := c.records.Delete(ctx, domain.KindJournal, id); err != nil {
			return err
		}
		var err error
		resp, err = c.enqueue(ctx, c.endpoints.Journals+"/"+id, http.MethodDelete, RequestOptions{
			Priority:   domain.PriorityMedium,
			RecordKind: domain.KindJournal,
			RecordID:   id,
		})
		return err
	})
	return resp, err
}

// RecentJournals returns the user's newest n journal records.
func (c *Client) RecentJournals(ctx context.Context, username string, n int) ([]domain.Record, error) {
	return c.records.Query(ctx, ports.RecordQuery{
		Kind:     domain.KindJournal,
		Username: username,
		Limit:    n,
	})
}

// GetRecord returns a record from the durable store.
func (c *Client) GetRecord(ctx context.Context, kind domain.RecordKind, id string) (domain.Record, error) {
	return c.records.Get(ctx, kind, id)
}

// RefreshRecord fetches the remote copy of a record and reconciles it with
// the local one. A local or merged result with nothing queued for the record
// is pushed back with a PUT to endpoint.
func (c *Client) RefreshRecord(ctx context.Context, kind domain.RecordKind, id, endpoint string) (domain.Record, domain.Resolved, error) {
	if !c.online() {
		return domain.Record{}, domain.Resolved{}, domain.ErrOffline
	}
	resp, err := c.transport.Do(ctx, ports.Request{Method: http.MethodGet, URL: endpoint})
	if err != nil {
		return domain.Record{}, domain.Resolved{}, err
	}
	remote, ok, err := DecodeRemoteRecord(kind, resp.Body)
	if err != nil {
		return domain.Record{}, domain.Resolved{}, err
	}
	if !ok {
		return domain.Record{}, domain.Resolved{}, fmt.Errorf("refresh %s/%s: response has no updated_at", kind, id)
	}
	if remote.ID == "" {
		remote.ID = id
	}

	stored, res, needsPush, err := c.reconciler.Apply(ctx, remote)
	if err != nil {
		return domain.Record{}, domain.Resolved{}, err
	}
	if needsPush {
		body, err := EncodeRecord(stored)
		if err != nil {
			return stored, res, err
		}
		if _, err := c.queue.AddItem(ctx, NewItem{
			URL: endpoint, Method: http.MethodPut, Body: body,
			Priority: priorityFor(kind), RecordKind: kind, RecordID: id,
		}); err != nil {
			return stored, res, err
		}
	}
	return stored, res, nil
}

// Logout wipes every local table.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.records.ClearAll(ctx); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

func priorityFor(kind domain.RecordKind) domain.Priority {
	switch kind {
	case domain.KindAssessment:
		return domain.PriorityHigh
	case domain.KindSettings:
		return domain.PriorityLow
	default:
		return domain.PriorityMedium
	}
}
