package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkolev/texturevault/internal/database"
	"github.com/pkolev/texturevault/internal/models"
	"github.com/rs/zerolog"
)

var (
	ErrInvitationNotFound        = errors.New("invitation not found")
	ErrInvitationExpired         = errors.New("invitation has expired")
	ErrInvitationAlreadyAccepted = errors.New("invitation has already been accepted")
	ErrEmailMismatch             = errors.New("invitation is for a different email address")
	ErrInvalidLevel              = errors.New("invalid permission level")
)

// InvitationService manages the pending -> accepted/expired/cancelled
// lifecycle of collection invitations. Accepting an invitation and granting
// the permission it carries happen in one transaction.
type InvitationService struct {
	db      *database.DB
	access  *AccessService
	email   *EmailService
	baseURL string
	logger  zerolog.Logger
}

func NewInvitationService(db *database.DB, access *AccessService, email *EmailService, baseURL string, logger zerolog.Logger) *InvitationService {
	return &InvitationService{
		db:      db,
		access:  access,
		email:   email,
		baseURL: baseURL,
		logger:  logger,
	}
}

// Invite creates (or refreshes) an invitation for an email address. A pending
// invitation for the same address and collection is resent with the new level
// and a fresh expiry instead of being duplicated. The notification email is
// best-effort: a send failure is logged and otherwise ignored.
func (s *InvitationService) Invite(ctx context.Context, inviter *models.Account, collectionID uuid.UUID, email string, level models.Level) (*models.Invitation, error) {
	if !level.Valid() {
		return nil, ErrInvalidLevel
	}
	email = strings.ToLower(strings.TrimSpace(email))

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

	allowed, err := s.access.Can(ctx, inviter, &collection, models.LevelAdmin)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ErrPermissionDenied
	}

	var alreadyMember bool
	err = s.db.Pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM collection_permissions p
			JOIN accounts a ON p.account_id = a.id
			WHERE LOWER(a.email) = $1 AND p.collection_id = $2
		)
	`, email, collectionID).Scan(&alreadyMember)
	if err != nil {
		return nil, err
	}
	if alreadyMember {
		return nil, ErrAlreadyMember
	}

	now := time.Now()
	expiresAt := now.Add(models.InvitationTTL)

	var invitation models.Invitation
	err = s.db.Pool.QueryRow(ctx, `
		UPDATE collection_invitations
		SET level = $1, inviter_id = $2, created_at = $3, expires_at = $4
		WHERE email = $5 AND collection_id = $6 AND accepted_at IS NULL
		RETURNING id, collection_id, inviter_id, email, level, token, created_at, expires_at, accepted_at, accepter_id
	`, level, inviter.ID, now, expiresAt, email, collectionID).Scan(
		&invitation.ID, &invitation.CollectionID, &invitation.InviterID, &invitation.Email,
		&invitation.Level, &invitation.Token, &invitation.CreatedAt, &invitation.ExpiresAt,
		&invitation.AcceptedAt, &invitation.AccepterID,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		err = s.db.Pool.QueryRow(ctx, `
			INSERT INTO collection_invitations (collection_id, inviter_id, email, level, token, created_at, expires_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, collection_id, inviter_id, email, level, token, created_at, expires_at, accepted_at, accepter_id
		`, collectionID, inviter.ID, email, level, uuid.NewString(), now, expiresAt).Scan(
			&invitation.ID, &invitation.CollectionID, &invitation.InviterID, &invitation.Email,
			&invitation.Level, &invitation.Token, &invitation.CreatedAt, &invitation.ExpiresAt,
			&invitation.AcceptedAt, &invitation.AccepterID,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create invitation: %w", err)
	}

	inviteURL := fmt.Sprintf("%s/invitations/%s", s.baseURL, invitation.Token)
	if err := s.email.SendCollectionInvite(email, collection.Name, inviter.Username, inviteURL); err != nil {
		s.logger.Warn().Err(err).Str("email", email).Msg("failed to send invitation email")
	}

	return &invitation, nil
}

func (s *InvitationService) GetByToken(ctx context.Context, token string) (*models.Invitation, error) {
	var invitation models.Invitation
	err := s.db.Pool.QueryRow(ctx, `
		SELECT id, collection_id, inviter_id, email, level, token, created_at, expires_at, accepted_at, accepter_id
		FROM collection_invitations WHERE token = $1
	`, token).Scan(
		&invitation.ID, &invitation.CollectionID, &invitation.InviterID, &invitation.Email,
		&invitation.Level, &invitation.Token, &invitation.CreatedAt, &invitation.ExpiresAt,
		&invitation.AcceptedAt, &invitation.AccepterID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvitationNotFound
		}
		return nil, err
	}
	return &invitation, nil
}

// Accept redeems an invitation for an existing account. The account's email
// must match the invited address. An existing permission row is only ever
// raised to the invitation's level, never lowered.
func (s *InvitationService) Accept(ctx context.Context, token string, account *models.Account) (*models.Permission, error) {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	invitation, err := lockInvitationByToken(ctx, tx, token)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if invitation.Expired(now) {
		return nil, ErrInvitationExpired
	}
	if invitation.Accepted() {
		return nil, ErrInvitationAlreadyAccepted
	}
	if !strings.EqualFold(account.Email, invitation.Email) {
		return nil, ErrEmailMismatch
	}

	perm, err := grantAtLeast(ctx, tx, account.ID, invitation.CollectionID, invitation.Level)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE collection_invitations SET accepted_at = $1, accepter_id = $2 WHERE id = $3
	`, now, account.ID, invitation.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to mark invitation accepted: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return perm, nil
}

// AcceptAndRegister creates a brand-new account for the invited email and
// accepts the invitation, atomically. If the email already belongs to an
// account the caller should send the user through Accept after login instead.
func (s *InvitationService) AcceptAndRegister(ctx context.Context, token, username, passwordHash string) (*models.Account, error) {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	invitation, err := lockInvitationByToken(ctx, tx, token)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if invitation.Expired(now) {
		return nil, ErrInvitationExpired
	}
	if invitation.Accepted() {
		return nil, ErrInvitationAlreadyAccepted
	}

	var emailTaken, usernameTaken bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM accounts WHERE LOWER(email) = $1),
		       EXISTS(SELECT 1 FROM accounts WHERE username = $2)
	`, strings.ToLower(invitation.Email), username).Scan(&emailTaken, &usernameTaken)
	if err != nil {
		return nil, err
	}
	if emailTaken {
		return nil, ErrAccountExists
	}
	if usernameTaken {
		return nil, ErrUsernameTaken
	}

	var account models.Account
	err = tx.QueryRow(ctx, `
		INSERT INTO accounts (username, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, username, email, password_hash, is_admin, created_at, updated_at
	`, username, strings.ToLower(invitation.Email), passwordHash).Scan(
		&account.ID, &account.Username, &account.Email, &account.PasswordHash,
		&account.IsAdmin, &account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	if _, err := grantAtLeast(ctx, tx, account.ID, invitation.CollectionID, invitation.Level); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE collection_invitations SET accepted_at = $1, accepter_id = $2 WHERE id = $3
	`, now, account.ID, invitation.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to mark invitation accepted: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &account, nil
}

// Cancel deletes an invitation. Only the collection owner or a platform admin
// may cancel. Cancelling an already-accepted invitation just removes the
// historical record.
func (s *InvitationService) Cancel(ctx context.Context, actor *models.Account, invitationID uuid.UUID) error {
	var collectionID uuid.UUID
	err := s.db.Pool.QueryRow(ctx, `
		SELECT collection_id FROM collection_invitations WHERE id = $1
	`, invitationID).Scan(&collectionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrInvitationNotFound
		}
		return err
	}

	if !actor.IsAdmin {
		var ownerID *uuid.UUID
		err = s.db.Pool.QueryRow(ctx, `
			SELECT owner_id FROM collections WHERE id = $1
		`, collectionID).Scan(&ownerID)
		if err != nil {
			return err
		}
		if ownerID == nil || *ownerID != actor.ID {
			return ErrPermissionDenied
		}
	}

	_, err = s.db.Pool.Exec(ctx, `
		DELETE FROM collection_invitations WHERE id = $1
	`, invitationID)
	return err
}

// ListPending returns the open invitations for a collection.
func (s *InvitationService) ListPending(ctx context.Context, collectionID uuid.UUID) ([]models.Invitation, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT id, collection_id, inviter_id, email, level, token, created_at, expires_at, accepted_at, accepter_id
		FROM collection_invitations
		WHERE collection_id = $1 AND accepted_at IS NULL AND expires_at > NOW()
		ORDER BY created_at DESC
	`, collectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invitations []models.Invitation
	for rows.Next() {
		var inv models.Invitation
		if err := rows.Scan(
			&inv.ID, &inv.CollectionID, &inv.InviterID, &inv.Email,
			&inv.Level, &inv.Token, &inv.CreatedAt, &inv.ExpiresAt,
			&inv.AcceptedAt, &inv.AccepterID,
		); err != nil {
			return nil, err
		}
		invitations = append(invitations, inv)
	}
	return invitations, nil
}

// PurgeExpired deletes invitations that lapsed without being accepted and
// reports how many were removed.
func (s *InvitationService) PurgeExpired(ctx context.Context) (int64, error) {
	result, err := s.db.Pool.Exec(ctx, `
		DELETE FROM collection_invitations WHERE accepted_at IS NULL AND expires_at < NOW()
	`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

func lockInvitationByToken(ctx context.Context, tx pgx.Tx, token string) (*models.Invitation, error) {
	var invitation models.Invitation
	err := tx.QueryRow(ctx, `
		SELECT id, collection_id, inviter_id, email, level, token, created_at, expires_at, accepted_at, accepter_id
		FROM collection_invitations WHERE token = $1 FOR UPDATE
	`, token).Scan(
		&invitation.ID, &invitation.CollectionID, &invitation.InviterID, &invitation.Email,
		&invitation.Level, &invitation.Token, &invitation.CreatedAt, &invitation.ExpiresAt,
		&invitation.AcceptedAt, &invitation.AccepterID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvitationNotFound
		}
		return nil, err
	}
	return &invitation, nil
}

// grantAtLeast inserts a permission row at level, or raises an existing row to
// level when it is lower. The row is never downgraded.
func grantAtLeast(ctx context.Context, tx pgx.Tx, accountID, collectionID uuid.UUID, level models.Level) (*models.Permission, error) {
	var perm models.Permission
	err := tx.QueryRow(ctx, `
		SELECT id, account_id, collection_id, level, created_at
		FROM collection_permissions
		WHERE account_id = $1 AND collection_id = $2
	`, accountID, collectionID).Scan(
		&perm.ID, &perm.AccountID, &perm.CollectionID, &perm.Level, &perm.CreatedAt,
	)
	switch {
	case err == nil:
		if perm.Level.AtLeast(level) {
			return &perm, nil
		}
		_, err = tx.Exec(ctx, `
			UPDATE collection_permissions SET level = $1 WHERE id = $2
		`, level, perm.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to upgrade permission: %w", err)
		}
		perm.Level = level
		return &perm, nil
	case errors.Is(err, pgx.ErrNoRows):
		err = tx.QueryRow(ctx, `
			INSERT INTO collection_permissions (account_id, collection_id, level)
			VALUES ($1, $2, $3)
			RETURNING id, account_id, collection_id, level, created_at
		`, accountID, collectionID, level).Scan(
			&perm.ID, &perm.AccountID, &perm.CollectionID, &perm.Level, &perm.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to grant permission: %w", err)
		}
		return &perm, nil
	default:
		return nil, err
	}
}
