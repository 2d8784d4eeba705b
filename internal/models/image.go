package models

import (
	"time"

	"github.com/google/uuid"
)

type Image struct {
	ID               uuid.UUID  `json:"id"`
	CollectionID     uuid.UUID  `json:"collection_id"`
	UploaderID       uuid.UUID  `json:"uploader_id"`
	DisplayName      string     `json:"display_name"`
	PublishPath      string     `json:"publish_path"`
	CurrentVersionID *uuid.UUID `json:"current_version_id,omitempty"`
	IsPublished      bool       `json:"is_published"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// ImageVersion is one entry in an image's append-only history. Exactly one
// version per image carries IsCurrent, and it is always the highest
// VersionNumber.
type ImageVersion struct {
	ID            uuid.UUID `json:"id"`
	ImageID       uuid.UUID `json:"image_id"`
	VersionNumber int       `json:"version_number"`
	UploaderID    uuid.UUID `json:"uploader_id"`
	Data          []byte    `json:"-"`
	UploadedAt    time.Time `json:"uploaded_at"`
	IsCurrent     bool      `json:"is_current"`
}
