package offlinesync

import (
	"github.com/bft-labs/offlinesync/internal/app"
	"github.com/bft-labs/offlinesync/internal/domain"
	"github.com/bft-labs/offlinesync/internal/ports"
	"github.com/bft-labs/offlinesync/pkg/log"
)

// Types re-exported from the implementation packages.
type (
	Client          = app.Client
	RequestOptions  = app.RequestOptions
	Response        = app.Response
	Endpoints       = app.Endpoints
	Queue           = app.SyncQueue
	NetworkMonitor  = app.NetworkMonitor
	Record          = domain.Record
	RecordKind      = domain.RecordKind
	JournalEntry    = domain.JournalEntry
	Assessment      = domain.Assessment
	Priority        = domain.Priority
	QueueItem       = domain.QueueItem
	QueueStats      = domain.QueueStats
	DeadLetter      = domain.DeadLetter
	DeliveryResult  = domain.DeliveryResult
	NetworkState    = domain.NetworkState
	Resolved        = domain.Resolved
	HTTPClient      = ports.HTTPClient
	MetricsRecorder = ports.MetricsRecorder
	Lease           = ports.Lease
	Logger          = log.Logger
	LogField        = log.Field
)

// Record kinds and priorities.
const (
	KindAssessment = domain.KindAssessment
	KindJournal    = domain.KindJournal
	KindSettings   = domain.KindSettings

	PriorityHigh   = domain.PriorityHigh
	PriorityMedium = domain.PriorityMedium
	PriorityLow    = domain.PriorityLow
)

// BackgroundSyncTag is the background delivery tag that drains the queue.
const BackgroundSyncTag = app.BackgroundSyncTag

// Errors returned by the service, checkable with errors.Is.
var (
	ErrAlreadyRunning  = domain.ErrAlreadyRunning
	ErrNotRunning      = domain.ErrNotRunning
	ErrShutdownTimeout = domain.ErrShutdownTimeout
	ErrInvalidConfig   = domain.ErrInvalidConfig
	ErrNotFound        = domain.ErrNotFound
	ErrNoCachedData    = domain.ErrNoCachedData
	ErrOffline         = domain.ErrOffline
)
