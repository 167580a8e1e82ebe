package es

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

// MustEventData builds a valid EventData for tests. payload is marshalled
// to JSON.
func MustEventData(t testing.TB, eventType string, payload any) EventData {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return EventData{ID: DefaultIDGenerator()(), Type: eventType, Data: data}
}

// MustAppend appends events and fails the test on error.
func MustAppend(t testing.TB, s EventStore, stream string, expected ExpectedRevision, events ...EventData) Revision {
	t.Helper()
	res, err := s.Append(t.Context(), stream, expected, events)
	require.NoError(t, err)
	require.NotNil(t, res)
	return res.Revision
}

// MustReadAll reads the whole stream and fails the test on error.
func MustReadAll(t testing.TB, s EventStore, stream string, opts ...ReadOption) []StreamRecord {
	t.Helper()
	records, err := s.ReadStream(t.Context(), stream, opts...)
	require.NoError(t, err)
	out, err := Collect(records)
	require.NoError(t, err)
	return out
}
