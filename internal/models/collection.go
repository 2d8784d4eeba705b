package models

import (
	"time"

	"github.com/google/uuid"
)

// Collection groups versioned images under one owner. OwnerID is nil while the
// collection is unowned; any remaining member may then claim it.
type Collection struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	OwnerID     *uuid.UUID `json:"owner_id,omitempty"`
	IsPublic    bool       `json:"is_public"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Owned reports whether the collection currently has an owner.
func (c *Collection) Owned() bool {
	return c.OwnerID != nil
}

// OwnedBy reports whether accountID is the current owner.
func (c *Collection) OwnedBy(accountID uuid.UUID) bool {
	return c.OwnerID != nil && *c.OwnerID == accountID
}
