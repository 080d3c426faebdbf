package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterError(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := New(KindConstruction, "filter.ensureClient", cause)

	assert.Contains(t, err.Error(), "construction")
	assert.Contains(t, err.Error(), "connection refused")
	assert.ErrorIs(t, err, cause)
}

func TestKindOf(t *testing.T) {
	err := New(KindStore, "client.Search", stderrors.New("timeout"))
	assert.Equal(t, KindStore, KindOf(err))

	// The tag survives wrapping.
	wrapped := fmt.Errorf("inlet failed: %w", err)
	assert.Equal(t, KindStore, KindOf(wrapped))

	assert.Equal(t, Kind(""), KindOf(stderrors.New("untagged")))
	assert.Equal(t, Kind(""), KindOf(nil))
}
