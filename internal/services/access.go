package services

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/pkolev/texturevault/internal/database"
	"github.com/pkolev/texturevault/internal/models"
)

var ErrPermissionDenied = errors.New("permission denied")

// AccessService decides whether an account may act on a collection at a given
// level. It only reads committed state and never mutates anything; mutating
// services re-check ownership inside their own transactions.
type AccessService struct {
	db *database.DB
}

func NewAccessService(db *database.DB) *AccessService {
	return &AccessService{db: db}
}

// Can reports whether account holds at least the required level on collection.
// Platform admins and the collection owner pass unconditionally; everyone else
// needs an explicit permission row at or above the required level.
func (s *AccessService) Can(ctx context.Context, account *models.Account, collection *models.Collection, required models.Level) (bool, error) {
	if account.IsAdmin {
		return true, nil
	}
	if collection.OwnedBy(account.ID) {
		return true, nil
	}

	var level models.Level
	err := s.db.Pool.QueryRow(ctx, `
		SELECT level FROM collection_permissions
		WHERE account_id = $1 AND collection_id = $2
	`, account.ID, collection.ID).Scan(&level)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}

	return level.AtLeast(required), nil
}
