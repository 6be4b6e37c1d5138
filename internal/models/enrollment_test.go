package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to EnrollmentStatus
		allowed  bool
	}{
		{EnrollmentStatusPendingPayment, EnrollmentStatusActive, true},
		{EnrollmentStatusPendingPayment, EnrollmentStatusDropped, true},
		{EnrollmentStatusPendingPayment, EnrollmentStatusCompleted, false},
		{EnrollmentStatusWaitlisted, EnrollmentStatusActive, true},
		{EnrollmentStatusWaitlisted, EnrollmentStatusDropped, true},
		{EnrollmentStatusWaitlisted, EnrollmentStatusCompleted, false},
		{EnrollmentStatusActive, EnrollmentStatusDropped, true},
		{EnrollmentStatusActive, EnrollmentStatusCompleted, true},
		{EnrollmentStatusActive, EnrollmentStatusWaitlisted, false},
		{EnrollmentStatusDropped, EnrollmentStatusActive, false},
		{EnrollmentStatusCompleted, EnrollmentStatusActive, false},
		{EnrollmentStatusCompleted, EnrollmentStatusDropped, false},
	}
	for _, tc := range cases {
		assert.Equalf(t, tc.allowed, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestTerminalStatuses(t *testing.T) {
	assert.True(t, EnrollmentStatusDropped.Terminal())
	assert.True(t, EnrollmentStatusCompleted.Terminal())
	assert.False(t, EnrollmentStatusActive.Terminal())
	assert.False(t, EnrollmentStatusPendingPayment.Terminal())
	assert.False(t, EnrollmentStatusWaitlisted.Terminal())
}

func TestBlockingStatuses(t *testing.T) {
	assert.ElementsMatch(t, []EnrollmentStatus{
		EnrollmentStatusActive,
		EnrollmentStatusPendingPayment,
		EnrollmentStatusWaitlisted,
	}, BlockingStatuses)
}
