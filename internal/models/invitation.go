package models

import (
	"time"

	"github.com/google/uuid"
)

type Invitation struct {
	ID           uuid.UUID   `json:"id"`
	CollectionID uuid.UUID   `json:"collection_id"`
	InviterID    uuid.UUID   `json:"inviter_id"`
	Email        string      `json:"email"`
	Level        Level       `json:"level"`
	Token        string      `json:"-"`
	CreatedAt    time.Time   `json:"created_at"`
	ExpiresAt    time.Time   `json:"expires_at"`
	AcceptedAt   *time.Time  `json:"accepted_at,omitempty"`
	AccepterID   *uuid.UUID  `json:"accepter_id,omitempty"`
	Collection   *Collection `json:"collection,omitempty"`
	Inviter      *Account    `json:"inviter,omitempty"`
}

// InvitationTTL is how long a new or resent invitation stays open.
const InvitationTTL = 7 * 24 * time.Hour

func (i *Invitation) Accepted() bool {
	return i.AcceptedAt != nil
}

func (i *Invitation) Expired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

// Pending reports whether the invitation can still be accepted.
func (i *Invitation) Pending(now time.Time) bool {
	return !i.Accepted() && !i.Expired(now)
}
