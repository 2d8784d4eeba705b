package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestInvitation_Pending(t *testing.T) {
	now := time.Now()

	open := Invitation{ExpiresAt: now.Add(time.Hour)}
	assert.True(t, open.Pending(now))
	assert.False(t, open.Accepted())
	assert.False(t, open.Expired(now))

	expired := Invitation{ExpiresAt: now.Add(-time.Minute)}
	assert.False(t, expired.Pending(now))
	assert.True(t, expired.Expired(now))

	acceptedAt := now.Add(-time.Hour)
	accepterID := uuid.New()
	accepted := Invitation{
		ExpiresAt:  now.Add(time.Hour),
		AcceptedAt: &acceptedAt,
		AccepterID: &accepterID,
	}
	assert.False(t, accepted.Pending(now))
	assert.True(t, accepted.Accepted())
}

func TestInvitation_ExpiresExactlyAtDeadline(t *testing.T) {
	now := time.Now()
	inv := Invitation{ExpiresAt: now}

	assert.True(t, inv.Expired(now))
	assert.False(t, inv.Expired(now.Add(-time.Nanosecond)))
}
