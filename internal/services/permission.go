package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkolev/texturevault/internal/database"
	"github.com/pkolev/texturevault/internal/models"
)

var ErrPermissionNotFound = errors.New("permission not found")

// PermissionService owns the (account, collection) -> level mapping. Grant is
// an upsert so at most one row ever exists per pair.
type PermissionService struct {
	db *database.DB
}

func NewPermissionService(db *database.DB) *PermissionService {
	return &PermissionService{db: db}
}

func (s *PermissionService) Get(ctx context.Context, accountID, collectionID uuid.UUID) (*models.Permission, error) {
	var perm models.Permission
	err := s.db.Pool.QueryRow(ctx, `
		SELECT id, account_id, collection_id, level, created_at
		FROM collection_permissions
		WHERE account_id = $1 AND collection_id = $2
	`, accountID, collectionID).Scan(
		&perm.ID, &perm.AccountID, &perm.CollectionID, &perm.Level, &perm.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPermissionNotFound
		}
		return nil, err
	}
	return &perm, nil
}

func (s *PermissionService) Grant(ctx context.Context, accountID, collectionID uuid.UUID, level models.Level) (*models.Permission, error) {
	if !level.Valid() {
		return nil, ErrInvalidLevel
	}

	var perm models.Permission
	err := s.db.Pool.QueryRow(ctx, `
		INSERT INTO collection_permissions (account_id, collection_id, level)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_id, collection_id) DO UPDATE SET level = EXCLUDED.level
		RETURNING id, account_id, collection_id, level, created_at
	`, accountID, collectionID, level).Scan(
		&perm.ID, &perm.AccountID, &perm.CollectionID, &perm.Level, &perm.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &perm, nil
}

func (s *PermissionService) Revoke(ctx context.Context, permissionID uuid.UUID) error {
	result, err := s.db.Pool.Exec(ctx, `
		DELETE FROM collection_permissions WHERE id = $1
	`, permissionID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrPermissionNotFound
	}
	return nil
}

func (s *PermissionService) ListForCollection(ctx context.Context, collectionID uuid.UUID) ([]models.Permission, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT p.id, p.account_id, p.collection_id, p.level, p.created_at,
		       a.id, a.username, a.email, a.is_admin, a.created_at, a.updated_at
		FROM collection_permissions p
		JOIN accounts a ON p.account_id = a.id
		WHERE p.collection_id = $1
		ORDER BY p.created_at
	`, collectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []models.Permission
	for rows.Next() {
		var perm models.Permission
		var account models.Account
		if err := rows.Scan(
			&perm.ID, &perm.AccountID, &perm.CollectionID, &perm.Level, &perm.CreatedAt,
			&account.ID, &account.Username, &account.Email, &account.IsAdmin,
			&account.CreatedAt, &account.UpdatedAt,
		); err != nil {
			return nil, err
		}
		perm.Account = &account
		perms = append(perms, perm)
	}
	return perms, nil
}

func (s *PermissionService) ListForAccount(ctx context.Context, accountID uuid.UUID) ([]models.Permission, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT id, account_id, collection_id, level, created_at
		FROM collection_permissions
		WHERE account_id = $1
		ORDER BY created_at
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []models.Permission
	for rows.Next() {
		var perm models.Permission
		if err := rows.Scan(
			&perm.ID, &perm.AccountID, &perm.CollectionID, &perm.Level, &perm.CreatedAt,
		); err != nil {
			return nil, err
		}
		perms = append(perms, perm)
	}
	return perms, nil
}
