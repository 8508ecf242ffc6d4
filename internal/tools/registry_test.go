package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistryValidation(t *testing.T) {
	handler := func(ctx context.Context, tenantID string, args json.RawMessage) (any, error) {
		return nil, nil
	}

	t.Run("rejects unnamed tool", func(t *testing.T) {
		_, err := NewRegistry(Definition{Handler: handler})
		assert.Error(t, err)
	})

	t.Run("rejects missing handler", func(t *testing.T) {
		_, err := NewRegistry(Definition{Name: "x"})
		assert.Error(t, err)
	})

	t.Run("rejects duplicates", func(t *testing.T) {
		_, err := NewRegistry(
			Definition{Name: "x", Handler: handler},
			Definition{Name: "x", Handler: handler},
		)
		assert.Error(t, err)
	})
}

func TestRegistrySpecs(t *testing.T) {
	r := MustNewRegistry(Definition{
		Name:        "lookup",
		Description: "look something up",
		Parameters:  map[string]any{"type": "object"},
		Handler: func(ctx context.Context, tenantID string, args json.RawMessage) (any, error) {
			return "ok", nil
		},
	})

	specs := r.Specs()
	require.Len(t, specs, 1)
	assert.Equal(t, "function", specs[0].Type)
	assert.Equal(t, "lookup", specs[0].Function.Name)
}

func TestRegistryExecute(t *testing.T) {
	r := MustNewRegistry(
		Definition{
			Name: "echo_tenant",
			Handler: func(ctx context.Context, tenantID string, args json.RawMessage) (any, error) {
				return map[string]string{"tenant": tenantID}, nil
			},
		},
		Definition{
			Name: "failing",
			Handler: func(ctx context.Context, tenantID string, args json.RawMessage) (any, error) {
				return nil, fmt.Errorf("backend unavailable")
			},
		},
	)
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		out := r.Execute(ctx, "tenant-a", "echo_tenant", json.RawMessage(`{}`))
		assert.JSONEq(t, `{"tenant":"tenant-a"}`, string(out))
	})

	t.Run("handler error becomes payload", func(t *testing.T) {
		out := r.Execute(ctx, "tenant-a", "failing", json.RawMessage(`{}`))
		assert.JSONEq(t, `{"error":"backend unavailable"}`, string(out))
	})

	t.Run("unknown tool becomes payload", func(t *testing.T) {
		out := r.Execute(ctx, "tenant-a", "nope", json.RawMessage(`{}`))

		var payload map[string]string
		require.NoError(t, json.Unmarshal(out, &payload))
		assert.Contains(t, payload["error"], "nope")
	})
}
