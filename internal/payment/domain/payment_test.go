package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestNewSession(t *testing.T) {
	s := NewSession("s-1", "order-1", 2, 20000, "INR", now)

	assert.Equal(t, "order-1-2", s.Receipt)
	assert.Equal(t, StateRequested, s.State)
	assert.True(t, s.Active())
}

func TestSessionStates(t *testing.T) {
	s := NewSession("s-1", "order-1", 1, 20000, "INR", now)

	s.Created("gw_1", now)
	assert.True(t, s.Active())
	assert.Equal(t, "gw_1", s.GatewayOrderID)

	s.Fail("", now)
	assert.False(t, s.Active())
	assert.Equal(t, "payment failed", s.ErrorReason)

	s.MarkPaid("pay_1", now)
	assert.Equal(t, StatePaid, s.State)
	assert.Empty(t, s.ErrorReason)

	s.Dismiss(now)
	s.Fail("late failure", now)
	assert.Equal(t, StatePaid, s.State, "paid is final")
}
