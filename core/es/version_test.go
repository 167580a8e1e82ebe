package es

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRevision(t *testing.T) {
	r1, r2 := Revision(1), Revision(2)
	require.True(t, r1 < r2)
	require.Equal(t, r1, Revision(1))
	require.Equal(t, uint64(2), r2.Uint64())

	data, err := json.Marshal(r1)
	require.NoError(t, err)
	require.Equal(t, `1`, string(data))

	var x Revision
	require.NoError(t, json.Unmarshal([]byte("1234"), &x))
	require.Equal(t, Revision(1234), x)
}

func TestExpectedRevision_Matches(t *testing.T) {
	for _, tc := range []struct {
		name     string
		expected ExpectedRevision
		actual   ExpectedRevision
		match    bool
	}{
		{"any on missing", AnyRevision, NoStream, true},
		{"any on existing", AnyRevision, ExactRevision(4), true},
		{"no stream on missing", NoStream, NoStream, true},
		{"no stream on existing", NoStream, ExactRevision(0), false},
		{"exact on missing", ExactRevision(0), NoStream, false},
		{"exact equal", ExactRevision(3), ExactRevision(3), true},
		{"exact behind", ExactRevision(2), ExactRevision(3), false},
		{"exact ahead", ExactRevision(4), ExactRevision(3), false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.match, tc.expected.Matches(tc.actual))
		})
	}
}

func TestExpectedRevision(t *testing.T) {
	require.True(t, AnyRevision.IsAny())
	require.True(t, NoStream.IsNoStream())
	require.False(t, ExactRevision(0).IsNoStream())

	_, ok := NoStream.Revision()
	require.False(t, ok)
	r, ok := ExactRevision(7).Revision()
	require.True(t, ok)
	require.Equal(t, Revision(7), r)

	require.Equal(t, Revision(0), NoStream.NextRevision())
	require.Equal(t, Revision(8), ExactRevision(7).NextRevision())

	require.Equal(t, "any", AnyRevision.String())
	require.Equal(t, "no_stream", NoStream.String())
	require.Equal(t, "7", ExactRevision(7).String())

	require.Equal(t, NoStream, CurrentRevision(false, 3))
	require.Equal(t, ExactRevision(3), CurrentRevision(true, 3))
}
