package es

import (
	"errors"

	"github.com/codewandler/cartes-go/core/metrics"
)

// ESMetrics defines the metrics interface for the event store, repositories
// and command handling. Implementations must be safe for concurrent use.
type ESMetrics interface {
	// Store operations
	StoreReadDuration(kind string) metrics.Timer
	StoreAppendDuration(kind string) metrics.Timer
	EventsAppended(kind string, count int)

	// Repository operations
	RepoLoadDuration(kind string) metrics.Timer
	RepoSaveDuration(kind string) metrics.Timer
	ConcurrencyConflict(kind string)

	// Commands
	CommandHandled(command string, outcome string)
}

type nopESMetrics struct{}

func (nopESMetrics) StoreReadDuration(string) metrics.Timer   { return metrics.NopTimer() }
func (nopESMetrics) StoreAppendDuration(string) metrics.Timer { return metrics.NopTimer() }
func (nopESMetrics) EventsAppended(string, int)               {}

func (nopESMetrics) RepoLoadDuration(string) metrics.Timer { return metrics.NopTimer() }
func (nopESMetrics) RepoSaveDuration(string) metrics.Timer { return metrics.NopTimer() }
func (nopESMetrics) ConcurrencyConflict(string)            {}

func (nopESMetrics) CommandHandled(string, string) {}

// NopESMetrics returns a no-op ESMetrics implementation.
func NopESMetrics() ESMetrics { return nopESMetrics{} }

// Command outcomes reported through ESMetrics.CommandHandled.
const (
	OutcomeOK        = "ok"
	OutcomeRejected  = "rejected"
	OutcomeConflict  = "conflict"
	OutcomeNotFound  = "not_found"
	OutcomeTransient = "transient"
	OutcomeError     = "error"
)

// Outcome classifies err into one of the Outcome* labels.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrDomainViolation):
		return OutcomeRejected
	case errors.Is(err, ErrConcurrencyConflict):
		return OutcomeConflict
	case errors.Is(err, ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, ErrTransient):
		return OutcomeTransient
	default:
		return OutcomeError
	}
}
