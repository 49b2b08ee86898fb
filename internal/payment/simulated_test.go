package payment

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmokoena/escrow-backend/internal/models"
)

func TestForcedOutcomes(t *testing.T) {
	s := NewSimulated(0)

	out, err := s.Attempt(WithForcedOutcome(context.Background(), true), "t1", 1000, models.MethodCard)
	require.NoError(t, err)
	assert.True(t, out.Success)

	out, err = s.Attempt(WithForcedOutcome(context.Background(), false), "t1", 1000, models.MethodCard)
	require.NoError(t, err)
	assert.False(t, out.Success)
}

func TestReferenceFormat(t *testing.T) {
	s := NewSimulated(0)
	re := regexp.MustCompile(`^SIM-\d+-[A-Z0-9]{6}$`)
	for i := 0; i < 20; i++ {
		out, err := s.Attempt(context.Background(), "t1", 500, models.MethodEFT)
		require.NoError(t, err)
		assert.Regexp(t, re, out.Reference)
	}
}

func TestBadAmountRejected(t *testing.T) {
	s := NewSimulated(0)
	_, err := s.Attempt(context.Background(), "t1", 0, models.MethodCard)
	assert.Error(t, err)
	_, err = s.Attempt(context.Background(), "t1", -100, models.MethodCard)
	assert.Error(t, err)
}

func TestCancelledContextAbortsLatency(t *testing.T) {
	s := NewSimulated(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Attempt(ctx, "t1", 1000, models.MethodCard)
	assert.ErrorIs(t, err, context.Canceled)
}
