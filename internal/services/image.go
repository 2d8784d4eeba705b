package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkolev/texturevault/internal/database"
	"github.com/pkolev/texturevault/internal/models"
	"github.com/pkolev/texturevault/internal/storage"
)

var (
	ErrImageNotFound          = errors.New("image not found")
	ErrVersionNotFound        = errors.New("image version not found")
	ErrAlreadyCurrent         = errors.New("version is already the current version")
	ErrNoPublishTarget        = errors.New("no publish path configured for this image")
	ErrConcurrentModification = errors.New("image was modified concurrently")
	ErrStorageWrite           = errors.New("failed to write to publish target")
)

// ImageService manages the append-only version history of images. Exactly one
// version per image is current, and it is always the one with the highest
// version number. Concurrent uploads racing on the same version number are
// caught by the UNIQUE(image_id, version_number) constraint and retried once.
type ImageService struct {
	db    *database.DB
	blobs storage.BlobStore
}

func NewImageService(db *database.DB, blobs storage.BlobStore) *ImageService {
	return &ImageService{db: db, blobs: blobs}
}

// Create inserts an image together with version 1 as its current version.
func (s *ImageService) Create(ctx context.Context, collectionID, uploaderID uuid.UUID, displayName, publishPath string, payload []byte) (*models.Image, error) {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var exists bool
	if err := tx.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM collections WHERE id = $1)
	`, collectionID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrCollectionNotFound
	}

	var image models.Image
	err = tx.QueryRow(ctx, `
		INSERT INTO images (collection_id, uploader_id, display_name, publish_path)
		VALUES ($1, $2, $3, $4)
		RETURNING id, collection_id, uploader_id, display_name, publish_path, current_version_id, is_published, created_at, updated_at
	`, collectionID, uploaderID, displayName, publishPath).Scan(
		&image.ID, &image.CollectionID, &image.UploaderID, &image.DisplayName,
		&image.PublishPath, &image.CurrentVersionID, &image.IsPublished,
		&image.CreatedAt, &image.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create image: %w", err)
	}

	var versionID uuid.UUID
	err = tx.QueryRow(ctx, `
		INSERT INTO image_versions (image_id, version_number, uploader_id, data, is_current)
		VALUES ($1, 1, $2, $3, TRUE)
		RETURNING id
	`, image.ID, uploaderID, payload).Scan(&versionID)
	if err != nil {
		return nil, fmt.Errorf("failed to create initial version: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE images SET current_version_id = $1, updated_at = NOW() WHERE id = $2
	`, versionID, image.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to set current version: %w", err)
	}
	image.CurrentVersionID = &versionID

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &image, nil
}

// UploadVersion appends a new current version. The new version invalidates any
// earlier publish. A version-number collision with a concurrent upload is
// retried once before surfacing ErrConcurrentModification.
func (s *ImageService) UploadVersion(ctx context.Context, imageID, uploaderID uuid.UUID, payload []byte) (*models.ImageVersion, error) {
	for attempt := 0; attempt < 2; attempt++ {
		version, err := s.appendVersion(ctx, imageID, uploaderID, payload)
		if err == nil {
			return version, nil
		}
		if !isUniqueViolation(err) {
			return nil, err
		}
	}
	return nil, ErrConcurrentModification
}

// RestoreVersion appends a new version carrying a copy of an older version's
// bytes. History is never rewritten: restoring version 2 at version 5 yields
// a version 6 with version 2's payload.
func (s *ImageService) RestoreVersion(ctx context.Context, versionID, uploaderID uuid.UUID) (*models.ImageVersion, error) {
	target, err := s.GetVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}
	if target.IsCurrent {
		return nil, ErrAlreadyCurrent
	}
	return s.UploadVersion(ctx, target.ImageID, uploaderID, target.Data)
}

// Publish copies the current version's bytes to the image's external publish
// path. A storage failure rolls everything back, so the image never claims to
// be published when the write did not land.
func (s *ImageService) Publish(ctx context.Context, imageID uuid.UUID) (*models.Image, error) {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var image models.Image
	err = tx.QueryRow(ctx, `
		SELECT id, collection_id, uploader_id, display_name, publish_path, current_version_id, is_published, created_at, updated_at
		FROM images WHERE id = $1 FOR UPDATE
	`, imageID).Scan(
		&image.ID, &image.CollectionID, &image.UploaderID, &image.DisplayName,
		&image.PublishPath, &image.CurrentVersionID, &image.IsPublished,
		&image.CreatedAt, &image.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrImageNotFound
		}
		return nil, err
	}
	if image.PublishPath == "" {
		return nil, ErrNoPublishTarget
	}

	var data []byte
	err = tx.QueryRow(ctx, `
		SELECT data FROM image_versions WHERE image_id = $1 AND is_current
	`, imageID).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVersionNotFound
		}
		return nil, err
	}

	if err := s.blobs.Write(image.PublishPath, data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE images SET is_published = TRUE, updated_at = NOW() WHERE id = $1
	`, imageID)
	if err != nil {
		return nil, fmt.Errorf("failed to mark image published: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	image.IsPublished = true
	return &image, nil
}

func (s *ImageService) GetByID(ctx context.Context, imageID uuid.UUID) (*models.Image, error) {
	var image models.Image
	err := s.db.Pool.QueryRow(ctx, `
		SELECT id, collection_id, uploader_id, display_name, publish_path, current_version_id, is_published, created_at, updated_at
		FROM images WHERE id = $1
	`, imageID).Scan(
		&image.ID, &image.CollectionID, &image.UploaderID, &image.DisplayName,
		&image.PublishPath, &image.CurrentVersionID, &image.IsPublished,
		&image.CreatedAt, &image.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrImageNotFound
		}
		return nil, err
	}
	return &image, nil
}

func (s *ImageService) GetVersion(ctx context.Context, versionID uuid.UUID) (*models.ImageVersion, error) {
	var version models.ImageVersion
	err := s.db.Pool.QueryRow(ctx, `
		SELECT id, image_id, version_number, uploader_id, data, uploaded_at, is_current
		FROM image_versions WHERE id = $1
	`, versionID).Scan(
		&version.ID, &version.ImageID, &version.VersionNumber, &version.UploaderID,
		&version.Data, &version.UploadedAt, &version.IsCurrent,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVersionNotFound
		}
		return nil, err
	}
	return &version, nil
}

// CurrentVersion returns the image's single current version.
func (s *ImageService) CurrentVersion(ctx context.Context, imageID uuid.UUID) (*models.ImageVersion, error) {
	var version models.ImageVersion
	err := s.db.Pool.QueryRow(ctx, `
		SELECT id, image_id, version_number, uploader_id, data, uploaded_at, is_current
		FROM image_versions WHERE image_id = $1 AND is_current
	`, imageID).Scan(
		&version.ID, &version.ImageID, &version.VersionNumber, &version.UploaderID,
		&version.Data, &version.UploadedAt, &version.IsCurrent,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVersionNotFound
		}
		return nil, err
	}
	return &version, nil
}

// ListVersions returns an image's history in version order, without payloads.
func (s *ImageService) ListVersions(ctx context.Context, imageID uuid.UUID) ([]models.ImageVersion, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT id, image_id, version_number, uploader_id, uploaded_at, is_current
		FROM image_versions WHERE image_id = $1
		ORDER BY version_number
	`, imageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []models.ImageVersion
	for rows.Next() {
		var v models.ImageVersion
		if err := rows.Scan(
			&v.ID, &v.ImageID, &v.VersionNumber, &v.UploaderID, &v.UploadedAt, &v.IsCurrent,
		); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, nil
}

func (s *ImageService) ListByCollection(ctx context.Context, collectionID uuid.UUID) ([]models.Image, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT id, collection_id, uploader_id, display_name, publish_path, current_version_id, is_published, created_at, updated_at
		FROM images WHERE collection_id = $1
		ORDER BY created_at
	`, collectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var images []models.Image
	for rows.Next() {
		var img models.Image
		if err := rows.Scan(
			&img.ID, &img.CollectionID, &img.UploaderID, &img.DisplayName,
			&img.PublishPath, &img.CurrentVersionID, &img.IsPublished,
			&img.CreatedAt, &img.UpdatedAt,
		); err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, nil
}

func (s *ImageService) appendVersion(ctx context.Context, imageID, uploaderID uuid.UUID, payload []byte) (*models.ImageVersion, error) {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var exists bool
	if err := tx.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM images WHERE id = $1)
	`, imageID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrImageNotFound
	}

	var next int
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(MAX(version_number), 0) + 1 FROM image_versions WHERE image_id = $1
	`, imageID).Scan(&next)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE image_versions SET is_current = FALSE WHERE image_id = $1 AND is_current
	`, imageID)
	if err != nil {
		return nil, fmt.Errorf("failed to clear current version: %w", err)
	}

	var version models.ImageVersion
	err = tx.QueryRow(ctx, `
		INSERT INTO image_versions (image_id, version_number, uploader_id, data, is_current)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING id, image_id, version_number, uploader_id, data, uploaded_at, is_current
	`, imageID, next, uploaderID, payload).Scan(
		&version.ID, &version.ImageID, &version.VersionNumber, &version.UploaderID,
		&version.Data, &version.UploadedAt, &version.IsCurrent,
	)
	if err != nil {
		return nil, err
	}

	// a new version invalidates any earlier publish
	_, err = tx.Exec(ctx, `
		UPDATE images SET current_version_id = $1, is_published = FALSE, updated_at = NOW() WHERE id = $2
	`, version.ID, imageID)
	if err != nil {
		return nil, fmt.Errorf("failed to update current version: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &version, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
