package database

import (
	"context"
	"fmt"
)

var migrations = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`,

	`CREATE TABLE IF NOT EXISTS accounts (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		username VARCHAR(80) UNIQUE NOT NULL,
		email VARCHAR(255) UNIQUE NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		is_admin BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,

	// owner_id is nullable: a NULL owner marks the collection as unowned and
	// claimable by any remaining member
	`CREATE TABLE IF NOT EXISTS collections (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		name VARCHAR(120) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		owner_id UUID REFERENCES accounts(id) ON DELETE SET NULL,
		is_public BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS collection_permissions (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		account_id UUID NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
		collection_id UUID NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
		level VARCHAR(20) NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		UNIQUE(account_id, collection_id)
	)`,

	`CREATE TABLE IF NOT EXISTS collection_invitations (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		collection_id UUID NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
		inviter_id UUID NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
		email VARCHAR(255) NOT NULL,
		level VARCHAR(20) NOT NULL,
		token VARCHAR(36) UNIQUE NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
		accepted_at TIMESTAMP WITH TIME ZONE,
		accepter_id UUID REFERENCES accounts(id)
	)`,

	// at most one open invitation per address and collection
	`CREATE UNIQUE INDEX IF NOT EXISTS uniq_pending_invitation
		ON collection_invitations(email, collection_id)
		WHERE accepted_at IS NULL`,

	`CREATE TABLE IF NOT EXISTS images (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		collection_id UUID NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
		uploader_id UUID NOT NULL REFERENCES accounts(id),
		display_name VARCHAR(255) NOT NULL,
		publish_path VARCHAR(500) NOT NULL DEFAULT '',
		current_version_id UUID,
		is_published BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,

	// UNIQUE(image_id, version_number) doubles as the conflict detector for
	// concurrent uploads racing on the same version number
	`CREATE TABLE IF NOT EXISTS image_versions (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		image_id UUID NOT NULL REFERENCES images(id) ON DELETE CASCADE,
		version_number INTEGER NOT NULL,
		uploader_id UUID NOT NULL REFERENCES accounts(id),
		data BYTEA NOT NULL,
		uploaded_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		is_current BOOLEAN NOT NULL DEFAULT FALSE,
		UNIQUE(image_id, version_number)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_collections_owner_id ON collections(owner_id)`,
	`CREATE INDEX IF NOT EXISTS idx_collection_permissions_account_id ON collection_permissions(account_id)`,
	`CREATE INDEX IF NOT EXISTS idx_collection_permissions_collection_id ON collection_permissions(collection_id)`,
	`CREATE INDEX IF NOT EXISTS idx_collection_invitations_collection_id ON collection_invitations(collection_id)`,
	`CREATE INDEX IF NOT EXISTS idx_collection_invitations_token ON collection_invitations(token)`,
	`CREATE INDEX IF NOT EXISTS idx_images_collection_id ON images(collection_id)`,
	`CREATE INDEX IF NOT EXISTS idx_image_versions_image_id ON image_versions(image_id)`,
}

func (db *DB) Migrate(ctx context.Context) error {
	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
