package store_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/formaworks/forma-api/internal/store"
)

func TestIsNotFoundError(t *testing.T) {
	t.Parallel()

	assert.True(t, store.IsNotFoundError(store.ErrNotFound))
	assert.True(t, store.IsNotFoundError(store.ErrFeedbackNotFound))
	assert.True(t, store.IsNotFoundError(fmt.Errorf("get: %w", store.ErrFeedbackNotFound)))
	assert.False(t, store.IsNotFoundError(store.ErrDuplicate))
	assert.False(t, store.IsNotFoundError(errors.New("other")))
}

func TestFeedbackNotFoundWrapsNotFound(t *testing.T) {
	t.Parallel()

	assert.ErrorIs(t, store.ErrFeedbackNotFound, store.ErrNotFound)
}
