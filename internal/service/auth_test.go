package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndValidateToken(t *testing.T) {
	auth := NewAuthService("test-secret")
	convID := uuid.New()

	token, err := auth.IssueToken(convID)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, err := auth.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, convID, got)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	token, err := NewAuthService("secret-a").IssueToken(uuid.New())
	require.NoError(t, err)

	_, err = NewAuthService("secret-b").ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	_, err := NewAuthService("test-secret").ValidateToken("not-a-token")
	assert.Error(t, err)
}
