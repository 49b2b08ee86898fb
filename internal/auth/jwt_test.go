package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTM() *TokenManager {
	return NewTokenManager("access-secret", "refresh-secret", "escrow-test", 15*time.Minute, 24*time.Hour)
}

func TestGenerateAndParsePair(t *testing.T) {
	tm := newTM()
	access, refresh, exp, err := tm.GeneratePair("u1", []string{"buyer", "admin"})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), exp, time.Minute)

	claims, isRefresh, err := tm.ParseAny(access)
	require.NoError(t, err)
	assert.False(t, isRefresh)
	assert.Equal(t, "u1", claims.UserID)
	assert.True(t, claims.HasRole("admin"))
	assert.False(t, claims.HasRole("seller"))

	claims, isRefresh, err = tm.ParseAny(refresh)
	require.NoError(t, err)
	assert.True(t, isRefresh)
	assert.Equal(t, "u1", claims.UserID)
}

func TestParseRejectsForeignToken(t *testing.T) {
	tm := newTM()
	other := NewTokenManager("other-a", "other-r", "escrow-test", time.Minute, time.Minute)
	access, _, _, err := other.GeneratePair("u1", nil)
	require.NoError(t, err)

	_, _, err = tm.ParseAny(access)
	assert.Error(t, err)
	_, _, err = tm.ParseAny("not.a.token")
	assert.Error(t, err)
}

func TestParseRejectsExpired(t *testing.T) {
	tm := NewTokenManager("a", "r", "escrow-test", -time.Minute, -time.Minute)
	access, refresh, _, err := tm.GeneratePair("u1", nil)
	require.NoError(t, err)

	_, _, err = tm.ParseAny(access)
	assert.Error(t, err)
	_, _, err = tm.ParseAny(refresh)
	assert.Error(t, err)
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("hunter22")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", hash)
	assert.NoError(t, VerifyPassword("hunter22", hash))
	assert.Error(t, VerifyPassword("hunter23", hash))
}
