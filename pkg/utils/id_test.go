package utils

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConnectionID(t *testing.T) {
	id := NewConnectionID()
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.NotEqual(t, id, NewConnectionID())
}

func TestNewMessageID(t *testing.T) {
	_, err := uuid.Parse(NewMessageID())
	require.NoError(t, err)
}

func TestNewRequestID(t *testing.T) {
	id := NewRequestID()
	assert.True(t, strings.HasPrefix(id, "req_"))
	assert.NotEqual(t, id, NewRequestID())
}
