package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	tg := NewTokenGenerator()

	token, hash, err := tg.GenerateToken()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(token, TokenPrefix))
	assert.Len(t, hash, 64, "sha256 hex digest")
	assert.Equal(t, hash, tg.HashToken(token))
	assert.NoError(t, tg.ValidateTokenFormat(token))
}

func TestGenerateToken_Unique(t *testing.T) {
	tg := NewTokenGenerator()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, _, err := tg.GenerateToken()
		require.NoError(t, err)
		assert.False(t, seen[token], "token collision")
		seen[token] = true
	}
}

func TestValidateTokenFormat(t *testing.T) {
	tg := NewTokenGenerator()

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{"valid", "tally_abc123DEF456", false},
		{"wrong prefix", "token_abc123", true},
		{"no prefix", "abc123", true},
		{"prefix only", "tally_", true},
		{"invalid base64url", "tally_!!!", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tg.ValidateTokenFormat(tt.token)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
