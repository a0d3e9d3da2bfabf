package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithMessagefDoesNotMutateSentinel(t *testing.T) {
	err := ErrNotFound.WithMessagef("model card %s not found", "abc")

	assert.Equal(t, "model card abc not found", err.Error())
	assert.Equal(t, "not found", ErrNotFound.Message)
	assert.Equal(t, ErrNotFound.Code, err.Code)
}

func TestIsMatchesOnKind(t *testing.T) {
	err := NotFound("missing %s", "x")

	assert.True(t, Is(err, ErrNotFound))
	assert.False(t, Is(err, ErrValidation))

	wrapped := fmt.Errorf("reconstruct: %w", err)
	assert.True(t, Is(wrapped, ErrNotFound))
	assert.Equal(t, KindNotFound, KindOf(wrapped))
}

func TestStoreHidesRawCause(t *testing.T) {
	raw := stderrors.New("Neo.ClientError.Statement.SyntaxError: secret detail")
	err := Store("create_model", raw)

	require.Error(t, err)
	assert.Equal(t, "graph store failure (code -32050) during create_model", err.Error())
	assert.NotContains(t, err.Error(), "secret")
	assert.True(t, stderrors.Is(err, raw))
	assert.Equal(t, KindStore, KindOf(err))
}

func TestStoreKeepsExistingClassification(t *testing.T) {
	inner := NotPermitted("ModelCard", "Device")
	err := Store("link", inner)

	assert.Same(t, inner, err)
	assert.Equal(t, KindRelationshipNotPermitted, KindOf(err))
}

func TestStoreAndEmbeddingNil(t *testing.T) {
	assert.NoError(t, Store("x", nil))
	assert.NoError(t, Embedding(nil))
}

func TestKindOfUnclassified(t *testing.T) {
	assert.Equal(t, Kind(0), KindOf(stderrors.New("plain")))
	assert.Equal(t, "unknown", Kind(0).String())
	assert.Equal(t, "relationship_not_permitted", KindRelationshipNotPermitted.String())
}

func TestRetryWithBackoff(t *testing.T) {
	config := &RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  time.Millisecond,
		MaxDelay:      2 * time.Millisecond,
		BackoffFactor: 2,
	}

	calls := 0
	err := RetryWithBackoff(config, func() error {
		calls++
		if calls < 2 {
			return stderrors.New("not yet")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 2, calls)

	calls = 0
	err = RetryWithBackoff(config, func() error {
		calls++
		return stderrors.New("down")
	})

	assert.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "after 3 attempts")
}
