package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkolev/texturevault/internal/database"
	"github.com/pkolev/texturevault/internal/models"
)

var (
	ErrCollectionNotFound = errors.New("collection not found")
	ErrNotMember          = errors.New("not a member of this collection")
	ErrAlreadyOwned       = errors.New("collection already has an owner")
	ErrNotOwner           = errors.New("only the owner can do this")
	ErrTargetNotMember    = errors.New("target account is not a member of this collection")
	ErrAlreadyMember      = errors.New("account already has access to this collection")
	ErrPrivateCollection  = errors.New("collection is private and cannot be joined directly")
)

// CollectionService manages collections and their ownership transitions.
// Ownership is a two-state machine: owned by exactly one account, or unowned
// (owner_id NULL) and claimable by any remaining member. Every transition
// re-checks the ownership state inside its transaction, so a stale resolver
// check can never commit a conflicting change.
type CollectionService struct {
	db *database.DB
}

func NewCollectionService(db *database.DB) *CollectionService {
	return &CollectionService{db: db}
}

func (s *CollectionService) Create(ctx context.Context, name, description string, ownerID uuid.UUID) (*models.Collection, error) {
	var collection models.Collection
	err := s.db.Pool.QueryRow(ctx, `
		INSERT INTO collections (name, description, owner_id)
		VALUES ($1, $2, $3)
		RETURNING id, name, description, owner_id, is_public, created_at, updated_at
	`, name, description, ownerID).Scan(
		&collection.ID, &collection.Name, &collection.Description,
		&collection.OwnerID, &collection.IsPublic, &collection.CreatedAt, &collection.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}
	return &collection, nil
}

func (s *CollectionService) GetByID(ctx context.Context, collectionID uuid.UUID) (*models.Collection, error) {
	var collection models.Collection
	err := s.db.Pool.QueryRow(ctx, `
		SELECT id, name, description, owner_id, is_public, created_at, updated_at
		FROM collections WHERE id = $1
	`, collectionID).Scan(
		&collection.ID, &collection.Name, &collection.Description,
		&collection.OwnerID, &collection.IsPublic, &collection.CreatedAt, &collection.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCollectionNotFound
		}
		return nil, err
	}
	return &collection, nil
}

func (s *CollectionService) Update(ctx context.Context, collectionID uuid.UUID, name, description string) (*models.Collection, error) {
	var collection models.Collection
	err := s.db.Pool.QueryRow(ctx, `
		UPDATE collections SET name = $1, description = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING id, name, description, owner_id, is_public, created_at, updated_at
	`, name, description, collectionID).Scan(
		&collection.ID, &collection.Name, &collection.Description,
		&collection.OwnerID, &collection.IsPublic, &collection.CreatedAt, &collection.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCollectionNotFound
		}
		return nil, err
	}
	return &collection, nil
}

func (s *CollectionService) SetPublic(ctx context.Context, collectionID uuid.UUID, isPublic bool) error {
	result, err := s.db.Pool.Exec(ctx, `
		UPDATE collections SET is_public = $1, updated_at = NOW() WHERE id = $2
	`, isPublic, collectionID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrCollectionNotFound
	}
	return nil
}

// Join grants read access on a public collection to the caller. Owners and
// existing members are rejected.
func (s *CollectionService) Join(ctx context.Context, account *models.Account, collectionID uuid.UUID) (*models.Permission, error) {
	collection, err := s.GetByID(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	if !collection.IsPublic {
		return nil, ErrPrivateCollection
	}
	if collection.OwnedBy(account.ID) {
		return nil, ErrAlreadyMember
	}

	var perm models.Permission
	err = s.db.Pool.QueryRow(ctx, `
		INSERT INTO collection_permissions (account_id, collection_id, level)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_id, collection_id) DO NOTHING
		RETURNING id, account_id, collection_id, level, created_at
	`, account.ID, collectionID, models.LevelRead).Scan(
		&perm.ID, &perm.AccountID, &perm.CollectionID, &perm.Level, &perm.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAlreadyMember
		}
		return nil, err
	}
	return &perm, nil
}

// ListForAccount returns every collection the account owns or holds a
// permission row on, newest first.
func (s *CollectionService) ListForAccount(ctx context.Context, accountID uuid.UUID) ([]models.Collection, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT DISTINCT c.id, c.name, c.description, c.owner_id, c.is_public, c.created_at, c.updated_at
		FROM collections c
		LEFT JOIN collection_permissions p ON c.id = p.collection_id AND p.account_id = $1
		WHERE c.owner_id = $1 OR p.id IS NOT NULL
		ORDER BY c.created_at DESC
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCollections(rows)
}

// Discover returns public collections (including unowned ones) the account is
// not yet a member of.
func (s *CollectionService) Discover(ctx context.Context, accountID uuid.UUID) ([]models.Collection, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT c.id, c.name, c.description, c.owner_id, c.is_public, c.created_at, c.updated_at
		FROM collections c
		WHERE c.is_public
		  AND (c.owner_id IS NULL OR c.owner_id != $1)
		  AND NOT EXISTS (
			SELECT 1 FROM collection_permissions p
			WHERE p.collection_id = c.id AND p.account_id = $1
		  )
		ORDER BY c.created_at DESC
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCollections(rows)
}

// Leave removes the caller from the collection. An owner leaving makes the
// collection unowned; a permission row, when present, is deleted either way.
func (s *CollectionService) Leave(ctx context.Context, account *models.Account, collectionID uuid.UUID) error {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var ownerID *uuid.UUID
	err = tx.QueryRow(ctx, `
		SELECT owner_id FROM collections WHERE id = $1 FOR UPDATE
	`, collectionID).Scan(&ownerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCollectionNotFound
		}
		return err
	}
	isOwner := ownerID != nil && *ownerID == account.ID

	var permissionID uuid.UUID
	hasPermission := true
	err = tx.QueryRow(ctx, `
		SELECT id FROM collection_permissions
		WHERE account_id = $1 AND collection_id = $2
	`, account.ID, collectionID).Scan(&permissionID)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		hasPermission = false
	}

	if !isOwner && !hasPermission {
		return ErrNotMember
	}

	if isOwner {
		_, err = tx.Exec(ctx, `
			UPDATE collections SET owner_id = NULL, updated_at = NOW() WHERE id = $1
		`, collectionID)
		if err != nil {
			return fmt.Errorf("failed to relinquish ownership: %w", err)
		}
	}

	if hasPermission {
		_, err = tx.Exec(ctx, `
			DELETE FROM collection_permissions WHERE id = $1
		`, permissionID)
		if err != nil {
			return fmt.Errorf("failed to remove permission: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// Claim makes the caller owner of an unowned collection. Only accounts that
// still hold a permission row may claim; that row is raised to admin if lower.
// The conditional UPDATE guards against a concurrent claim winning first.
func (s *CollectionService) Claim(ctx context.Context, account *models.Account, collectionID uuid.UUID) (*models.Collection, error) {
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

	var permissionID uuid.UUID
	var level models.Level
	err = tx.QueryRow(ctx, `
		SELECT id, level FROM collection_permissions
		WHERE account_id = $1 AND collection_id = $2
	`, account.ID, collectionID).Scan(&permissionID, &level)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotMember
		}
		return nil, err
	}

	var collection models.Collection
	err = tx.QueryRow(ctx, `
		UPDATE collections SET owner_id = $1, updated_at = NOW()
		WHERE id = $2 AND owner_id IS NULL
		RETURNING id, name, description, owner_id, is_public, created_at, updated_at
	`, account.ID, collectionID).Scan(
		&collection.ID, &collection.Name, &collection.Description,
		&collection.OwnerID, &collection.IsPublic, &collection.CreatedAt, &collection.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAlreadyOwned
		}
		return nil, err
	}

	if !level.AtLeast(models.LevelAdmin) {
		_, err = tx.Exec(ctx, `
			UPDATE collection_permissions SET level = $1 WHERE id = $2
		`, models.LevelAdmin, permissionID)
		if err != nil {
			return nil, fmt.Errorf("failed to upgrade permission: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &collection, nil
}

// TransferOwnership hands the collection to an existing member. The new owner's
// permission row is raised to admin and the outgoing owner keeps admin access
// through a permission row of their own.
func (s *CollectionService) TransferOwnership(ctx context.Context, owner *models.Account, collectionID, newOwnerID uuid.UUID) (*models.Collection, error) {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var ownerID *uuid.UUID
	err = tx.QueryRow(ctx, `
		SELECT owner_id FROM collections WHERE id = $1 FOR UPDATE
	`, collectionID).Scan(&ownerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCollectionNotFound
		}
		return nil, err
	}
	if ownerID == nil || *ownerID != owner.ID {
		return nil, ErrNotOwner
	}

	var permissionID uuid.UUID
	var level models.Level
	err = tx.QueryRow(ctx, `
		SELECT id, level FROM collection_permissions
		WHERE account_id = $1 AND collection_id = $2
	`, newOwnerID, collectionID).Scan(&permissionID, &level)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTargetNotMember
		}
		return nil, err
	}

	var collection models.Collection
	err = tx.QueryRow(ctx, `
		UPDATE collections SET owner_id = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING id, name, description, owner_id, is_public, created_at, updated_at
	`, newOwnerID, collectionID).Scan(
		&collection.ID, &collection.Name, &collection.Description,
		&collection.OwnerID, &collection.IsPublic, &collection.CreatedAt, &collection.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to transfer ownership: %w", err)
	}

	if !level.AtLeast(models.LevelAdmin) {
		_, err = tx.Exec(ctx, `
			UPDATE collection_permissions SET level = $1 WHERE id = $2
		`, models.LevelAdmin, permissionID)
		if err != nil {
			return nil, fmt.Errorf("failed to upgrade permission: %w", err)
		}
	}

	// the outgoing owner stays on as an admin-level member
	_, err = tx.Exec(ctx, `
		INSERT INTO collection_permissions (account_id, collection_id, level)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_id, collection_id) DO UPDATE SET level = EXCLUDED.level
	`, owner.ID, collectionID, models.LevelAdmin)
	if err != nil {
		return nil, fmt.Errorf("failed to retain outgoing owner: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &collection, nil
}

// Delete removes a collection and everything hanging off it. Allowed for the
// owner, a platform admin, or an admin-level member of an unowned collection.
// The cascade is an explicit ordered cleanup inside one transaction, so a
// partial deletion is never observable.
func (s *CollectionService) Delete(ctx context.Context, actor *models.Account, collectionID uuid.UUID) error {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var ownerID *uuid.UUID
	err = tx.QueryRow(ctx, `
		SELECT owner_id FROM collections WHERE id = $1 FOR UPDATE
	`, collectionID).Scan(&ownerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCollectionNotFound
		}
		return err
	}

	canDelete := actor.IsAdmin || (ownerID != nil && *ownerID == actor.ID)
	if !canDelete && ownerID == nil {
		var level models.Level
		err = tx.QueryRow(ctx, `
			SELECT level FROM collection_permissions
			WHERE account_id = $1 AND collection_id = $2
		`, actor.ID, collectionID).Scan(&level)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		canDelete = err == nil && level.AtLeast(models.LevelAdmin)
	}
	if !canDelete {
		return ErrPermissionDenied
	}

	// permissions -> invitations -> versions -> images -> collection
	steps := []string{
		`DELETE FROM collection_permissions WHERE collection_id = $1`,
		`DELETE FROM collection_invitations WHERE collection_id = $1`,
		`DELETE FROM image_versions WHERE image_id IN (SELECT id FROM images WHERE collection_id = $1)`,
		`DELETE FROM images WHERE collection_id = $1`,
		`DELETE FROM collections WHERE id = $1`,
	}
	for _, step := range steps {
		if _, err := tx.Exec(ctx, step, collectionID); err != nil {
			return fmt.Errorf("failed to delete collection: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func scanCollections(rows pgx.Rows) ([]models.Collection, error) {
	var collections []models.Collection
	for rows.Next() {
		var c models.Collection
		if err := rows.Scan(
			&c.ID, &c.Name, &c.Description, &c.OwnerID, &c.IsPublic, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, err
		}
		collections = append(collections, c)
	}
	return collections, nil
}
