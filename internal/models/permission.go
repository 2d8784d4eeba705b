package models

import (
	"time"

	"github.com/google/uuid"
)

// Level is an access level on a collection. Levels form a total order
// read < write < admin, both for comparisons and for storage encoding.
type Level string

const (
	LevelRead  Level = "read"
	LevelWrite Level = "write"
	LevelAdmin Level = "admin"
)

var levelRank = map[Level]int{
	LevelRead:  1,
	LevelWrite: 2,
	LevelAdmin: 3,
}

// Valid reports whether l is one of the three defined levels.
func (l Level) Valid() bool {
	_, ok := levelRank[l]
	return ok
}

// AtLeast reports whether l grants everything required grants.
func (l Level) AtLeast(required Level) bool {
	return levelRank[l] >= levelRank[required]
}

type Permission struct {
	ID           uuid.UUID `json:"id"`
	AccountID    uuid.UUID `json:"account_id"`
	CollectionID uuid.UUID `json:"collection_id"`
	Level        Level     `json:"level"`
	CreatedAt    time.Time `json:"created_at"`
	Account      *Account  `json:"account,omitempty"`
}
