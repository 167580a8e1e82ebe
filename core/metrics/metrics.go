// Package metrics provides abstract metric types so the event store,
// repository and cart service can be instrumented without depending on a
// specific backend. See adapters/prometheus for the Prometheus implementation.
package metrics

// Timer measures the duration of an operation. Call ObserveDuration when
// the operation completes to record the elapsed time:
//
//	defer m.StoreAppendDuration(kind).ObserveDuration()
type Timer interface {
	ObserveDuration()
}
