package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkolev/texturevault/internal/database"
	"github.com/pkolev/texturevault/internal/models"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountExists   = errors.New("an account with this email already exists")
	ErrUsernameTaken   = errors.New("username already taken")
)

type AccountService struct {
	db *database.DB
}

func NewAccountService(db *database.DB) *AccountService {
	return &AccountService{db: db}
}

// Create registers a new account. Credential hashing happens upstream; the
// service stores whatever hash it is handed. The very first account on the
// instance becomes a platform admin.
func (s *AccountService) Create(ctx context.Context, username, email, passwordHash string) (*models.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var usernameTaken, emailTaken bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM accounts WHERE username = $1),
		       EXISTS(SELECT 1 FROM accounts WHERE LOWER(email) = $2)
	`, username, email).Scan(&usernameTaken, &emailTaken)
	if err != nil {
		return nil, err
	}
	if usernameTaken {
		return nil, ErrUsernameTaken
	}
	if emailTaken {
		return nil, ErrAccountExists
	}

	var total int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&total); err != nil {
		return nil, err
	}

	var account models.Account
	err = tx.QueryRow(ctx, `
		INSERT INTO accounts (username, email, password_hash, is_admin)
		VALUES ($1, $2, $3, $4)
		RETURNING id, username, email, password_hash, is_admin, created_at, updated_at
	`, username, email, passwordHash, total == 0).Scan(
		&account.ID, &account.Username, &account.Email, &account.PasswordHash,
		&account.IsAdmin, &account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &account, nil
}

func (s *AccountService) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	var account models.Account
	err := s.db.Pool.QueryRow(ctx, `
		SELECT id, username, email, password_hash, is_admin, created_at, updated_at
		FROM accounts WHERE id = $1
	`, id).Scan(
		&account.ID, &account.Username, &account.Email, &account.PasswordHash,
		&account.IsAdmin, &account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (s *AccountService) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	var account models.Account
	err := s.db.Pool.QueryRow(ctx, `
		SELECT id, username, email, password_hash, is_admin, created_at, updated_at
		FROM accounts WHERE LOWER(email) = LOWER($1)
	`, email).Scan(
		&account.ID, &account.Username, &account.Email, &account.PasswordHash,
		&account.IsAdmin, &account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// PromoteAdmin flips the platform admin flag for the account with the given
// email.
func (s *AccountService) PromoteAdmin(ctx context.Context, email string) error {
	result, err := s.db.Pool.Exec(ctx, `
		UPDATE accounts SET is_admin = TRUE, updated_at = NOW()
		WHERE LOWER(email) = LOWER($1)
	`, email)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}
