package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocumentComplete(t *testing.T) {
	assert.True(t, Document{Status: StatusCompleted, ChunksCreated: 2, ChunksTotal: 2}.Complete())
	assert.False(t, Document{Status: StatusCompleted, ChunksCreated: 1, ChunksTotal: 2}.Complete())
	assert.False(t, Document{Status: StatusProcessing, ChunksCreated: 2, ChunksTotal: 2}.Complete())
	assert.False(t, Document{Status: StatusFailed}.Complete())
	assert.False(t, Document{Status: StatusCompleted}.Complete())
}
