package cart

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/codewandler/cartes-go/core/es"
)

type serviceOpts struct {
	log        *slog.Logger
	metrics    es.ESMetrics
	now        func() time.Time
	newID      func() string
	retries    int
	serialized bool
}

type ServiceOption func(*serviceOpts)

func WithLog(log *slog.Logger) ServiceOption       { return func(o *serviceOpts) { o.log = log } }
func WithMetrics(m es.ESMetrics) ServiceOption     { return func(o *serviceOpts) { o.metrics = m } }
func WithClock(now func() time.Time) ServiceOption { return func(o *serviceOpts) { o.now = now } }

// WithIDGenerator sets the generator for new cart ids. Default: random UUIDs.
func WithIDGenerator(gen func() string) ServiceOption {
	return func(o *serviceOpts) { o.newID = gen }
}

// WithConflictRetries makes a command reload the cart and decide again up to
// n times when its append loses a race. Default: 0, conflicts are returned.
func WithConflictRetries(n int) ServiceOption {
	return func(o *serviceOpts) { o.retries = max(n, 0) }
}

// WithSerializedCommands runs commands for the same cart one at a time within
// this process. Commands from other processes can still conflict.
func WithSerializedCommands() ServiceOption {
	return func(o *serviceOpts) { o.serialized = true }
}

func newServiceOpts(opts ...ServiceOption) serviceOpts {
	options := serviceOpts{
		log:     slog.Default(),
		metrics: es.NopESMetrics(),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.log == nil {
		options.log = slog.Default()
	}
	if options.metrics == nil {
		options.metrics = es.NopESMetrics()
	}
	return options
}
