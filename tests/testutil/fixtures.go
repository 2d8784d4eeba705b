package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkolev/texturevault/internal/database"
	"github.com/pkolev/texturevault/internal/models"
)

// Fixtures provides factory methods for creating test data
type Fixtures struct {
	db      *database.DB
	counter int
}

// NewFixtures creates a new fixtures factory
func NewFixtures(db *database.DB) *Fixtures {
	return &Fixtures{db: db}
}

// CreateAccount creates a test account with default values
func (f *Fixtures) CreateAccount(t *testing.T, opts ...AccountOption) *models.Account {
	t.Helper()
	f.counter++

	account := &models.Account{
		Username:     fmt.Sprintf("user%d", f.counter),
		Email:        fmt.Sprintf("user%d@example.com", f.counter),
		PasswordHash: "test-hash",
	}

	for _, opt := range opts {
		opt(account)
	}

	ctx := context.Background()
	err := f.db.Pool.QueryRow(ctx, `
		INSERT INTO accounts (username, email, password_hash, is_admin)
		VALUES ($1, $2, $3, $4)
		RETURNING id, username, email, password_hash, is_admin, created_at, updated_at
	`, account.Username, account.Email, account.PasswordHash, account.IsAdmin).Scan(
		&account.ID, &account.Username, &account.Email, &account.PasswordHash,
		&account.IsAdmin, &account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("failed to create account: %v", err)
	}

	return account
}

// AccountOption configures a test account
type AccountOption func(*models.Account)

// WithEmail sets the account's email
func WithEmail(email string) AccountOption {
	return func(a *models.Account) {
		a.Email = email
	}
}

// WithUsername sets the account's username
func WithUsername(username string) AccountOption {
	return func(a *models.Account) {
		a.Username = username
	}
}

// AsPlatformAdmin marks the account as a platform admin
func AsPlatformAdmin() AccountOption {
	return func(a *models.Account) {
		a.IsAdmin = true
	}
}

// CreateCollection creates a test collection owned by the given account
func (f *Fixtures) CreateCollection(t *testing.T, owner *models.Account, opts ...CollectionOption) *models.Collection {
	t.Helper()
	f.counter++

	collection := &models.Collection{
		Name:    fmt.Sprintf("Test Collection %d", f.counter),
		OwnerID: &owner.ID,
	}

	for _, opt := range opts {
		opt(collection)
	}

	ctx := context.Background()
	err := f.db.Pool.QueryRow(ctx, `
		INSERT INTO collections (name, description, owner_id, is_public)
		VALUES ($1, $2, $3, $4)
		RETURNING id, name, description, owner_id, is_public, created_at, updated_at
	`, collection.Name, collection.Description, collection.OwnerID, collection.IsPublic).Scan(
		&collection.ID, &collection.Name, &collection.Description,
		&collection.OwnerID, &collection.IsPublic, &collection.CreatedAt, &collection.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("failed to create collection: %v", err)
	}

	return collection
}

// CollectionOption configures a test collection
type CollectionOption func(*models.Collection)

// WithCollectionName sets the collection name
func WithCollectionName(name string) CollectionOption {
	return func(c *models.Collection) {
		c.Name = name
	}
}

// AsPublic makes the collection joinable by anyone
func AsPublic() CollectionOption {
	return func(c *models.Collection) {
		c.IsPublic = true
	}
}

// Unowned clears the collection's owner
func Unowned() CollectionOption {
	return func(c *models.Collection) {
		c.OwnerID = nil
	}
}

// GrantPermission gives an account a permission row on a collection
func (f *Fixtures) GrantPermission(t *testing.T, account *models.Account, collection *models.Collection, level models.Level) *models.Permission {
	t.Helper()
	ctx := context.Background()

	perm := &models.Permission{}
	err := f.db.Pool.QueryRow(ctx, `
		INSERT INTO collection_permissions (account_id, collection_id, level)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_id, collection_id) DO UPDATE SET level = EXCLUDED.level
		RETURNING id, account_id, collection_id, level, created_at
	`, account.ID, collection.ID, level).Scan(
		&perm.ID, &perm.AccountID, &perm.CollectionID, &perm.Level, &perm.CreatedAt,
	)
	if err != nil {
		t.Fatalf("failed to grant permission: %v", err)
	}

	return perm
}

// CreateInvitation creates a pending invitation for an email address
func (f *Fixtures) CreateInvitation(t *testing.T, collection *models.Collection, inviter *models.Account, email string, level models.Level) *models.Invitation {
	t.Helper()
	ctx := context.Background()

	now := time.Now()
	inv := &models.Invitation{}
	err := f.db.Pool.QueryRow(ctx, `
		INSERT INTO collection_invitations (collection_id, inviter_id, email, level, token, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, collection_id, inviter_id, email, level, token, created_at, expires_at, accepted_at, accepter_id
	`, collection.ID, inviter.ID, email, level, uuid.NewString(), now, now.Add(models.InvitationTTL)).Scan(
		&inv.ID, &inv.CollectionID, &inv.InviterID, &inv.Email,
		&inv.Level, &inv.Token, &inv.CreatedAt, &inv.ExpiresAt,
		&inv.AcceptedAt, &inv.AccepterID,
	)
	if err != nil {
		t.Fatalf("failed to create invitation: %v", err)
	}

	return inv
}

// CreateImage creates an image with an initial current version holding payload
func (f *Fixtures) CreateImage(t *testing.T, collection *models.Collection, uploader *models.Account, payload []byte, opts ...ImageOption) *models.Image {
	t.Helper()
	f.counter++

	image := &models.Image{
		CollectionID: collection.ID,
		UploaderID:   uploader.ID,
		DisplayName:  fmt.Sprintf("texture_%d", f.counter),
	}

	for _, opt := range opts {
		opt(image)
	}

	ctx := context.Background()
	tx, err := f.db.Pool.Begin(ctx)
	if err != nil {
		t.Fatalf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO images (collection_id, uploader_id, display_name, publish_path)
		VALUES ($1, $2, $3, $4)
		RETURNING id, collection_id, uploader_id, display_name, publish_path, current_version_id, is_published, created_at, updated_at
	`, image.CollectionID, image.UploaderID, image.DisplayName, image.PublishPath).Scan(
		&image.ID, &image.CollectionID, &image.UploaderID, &image.DisplayName,
		&image.PublishPath, &image.CurrentVersionID, &image.IsPublished,
		&image.CreatedAt, &image.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("failed to create image: %v", err)
	}

	var versionID uuid.UUID
	err = tx.QueryRow(ctx, `
		INSERT INTO image_versions (image_id, version_number, uploader_id, data, is_current)
		VALUES ($1, 1, $2, $3, TRUE)
		RETURNING id
	`, image.ID, image.UploaderID, payload).Scan(&versionID)
	if err != nil {
		t.Fatalf("failed to create image version: %v", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE images SET current_version_id = $1 WHERE id = $2
	`, versionID, image.ID)
	if err != nil {
		t.Fatalf("failed to set current version: %v", err)
	}
	image.CurrentVersionID = &versionID

	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("failed to commit transaction: %v", err)
	}

	return image
}

// ImageOption configures a test image
type ImageOption func(*models.Image)

// WithDisplayName sets the image's display name
func WithDisplayName(name string) ImageOption {
	return func(i *models.Image) {
		i.DisplayName = name
	}
}

// WithPublishPath sets the image's external publish target
func WithPublishPath(path string) ImageOption {
	return func(i *models.Image) {
		i.PublishPath = path
	}
}
