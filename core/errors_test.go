package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorTaxonomyMatching(t *testing.T) {
	validation := NewValidationError("importance", "must be in [0,1]")
	notFound := NewNotFoundError("conversation", "abc")
	gatewayErr := &GatewayError{Op: "embed", Err: errors.New("connection refused")}
	storeErr := &StoreUnavailableError{Op: "append", Err: errors.New("disk full")}

	assert.True(t, IsValidation(validation))
	assert.False(t, IsValidation(notFound))

	assert.True(t, IsNotFound(notFound))
	assert.False(t, IsNotFound(validation))

	assert.True(t, IsGateway(gatewayErr))
	assert.True(t, IsStoreUnavailable(storeErr))

	// Wrapped errors still match.
	wrapped := fmt.Errorf("handling request: %w", notFound)
	assert.True(t, IsNotFound(wrapped))
}

func TestAgentExecutionErrorUnwrap(t *testing.T) {
	cause := &GatewayError{Op: "complete", Timeout: true, Err: errors.New("deadline")}
	err := &AgentExecutionError{AgentName: "research", Err: cause}

	assert.Contains(t, err.Error(), "research")
	assert.True(t, IsGateway(err))

	var ge *GatewayError
	assert.True(t, errors.As(err, &ge))
	assert.True(t, ge.Timeout)
}

func TestNormalizeMemoryKind(t *testing.T) {
	assert.Equal(t, MemoryKindEpisodic, NormalizeMemoryKind("episodic"))
	assert.Equal(t, MemoryKindPreference, NormalizeMemoryKind("preference"))
	assert.Equal(t, MemoryKindOther, NormalizeMemoryKind("free-form label"))
	assert.Equal(t, MemoryKindOther, NormalizeMemoryKind(""))
}
