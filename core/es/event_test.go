package es

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type (
	pinged struct {
		N int `json:"n"`
	}
	ponged struct {
		By string `json:"by"`
	}
)

func (pinged) EventType() string { return "pinged" }

func (p ponged) Validate() error {
	if p.By == "" {
		return errors.New("by is empty")
	}
	return nil
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	RegisterEvent[pinged](reg)
	RegisterEvent[ponged](reg)

	require.Equal(t, []string{"github.com/codewandler/cartes-go/core/es.ponged", "pinged"}, reg.Types())

	ev, err := reg.Decode(StreamRecord{EventType: "pinged", Data: json.RawMessage(`{"n":3}`)})
	require.NoError(t, err)
	require.Equal(t, pinged{N: 3}, ev)

	_, err = reg.Decode(StreamRecord{EventType: "unknown"})
	require.ErrorIs(t, err, ErrUnknownEventType)

	_, err = reg.Decode(StreamRecord{EventType: "pinged", Data: json.RawMessage(`{"n":"x"}`)})
	require.Error(t, err)
}

func TestEncode(t *testing.T) {
	n := 0
	gen := func() string {
		n++
		return string(rune('a' + n - 1))
	}

	data, err := Encode(gen, json.RawMessage(`{"command":"ping"}`), pinged{N: 1}, ponged{By: "me"})
	require.NoError(t, err)
	require.Len(t, data, 2)

	require.Equal(t, "a", data[0].ID)
	require.Equal(t, "pinged", data[0].Type)
	require.JSONEq(t, `{"n":1}`, string(data[0].Data))
	require.JSONEq(t, `{"command":"ping"}`, string(data[0].Metadata))

	require.Equal(t, "b", data[1].ID)
	require.Equal(t, EventTypeOf(ponged{}), data[1].Type)

	_, err = Encode(gen, nil)
	require.ErrorIs(t, err, ErrNoEvents)

	_, err = Encode(gen, nil, ponged{})
	require.ErrorContains(t, err, "by is empty")
}

func TestEventData_Validate(t *testing.T) {
	require.NoError(t, EventData{ID: "1", Type: "t", Data: json.RawMessage(`{}`)}.Validate())
	require.Error(t, EventData{Type: "t"}.Validate())
	require.Error(t, EventData{ID: "1"}.Validate())
	require.Error(t, EventData{ID: "1", Type: "t", Data: json.RawMessage(`{`)}.Validate())
	require.Error(t, EventData{ID: "1", Type: "t", Metadata: json.RawMessage(`nope`)}.Validate())
}

func TestStreamKind(t *testing.T) {
	require.Equal(t, "shopping_cart-42", StreamName("shopping_cart", "42"))
	require.Equal(t, "shopping_cart", StreamKind("shopping_cart-42"))
	require.Equal(t, "shopping_cart", StreamKind("shopping_cart-a-b"))
	require.Equal(t, "plain", StreamKind("plain"))
}
