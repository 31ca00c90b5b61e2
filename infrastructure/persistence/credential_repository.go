package persistence

import (
	"context"
	"database/sql"
	"time"

	"social-gateway/domain/autherror"
	"social-gateway/domain/model"
	"social-gateway/infrastructure/crypto"
)

// CredentialRepository stores one encrypted credential blob per
// (user_id, platform) pair in PostgreSQL. The upsert is a single statement,
// so concurrent refreshes stay last-write-wins without in-process locking.
type CredentialRepository struct {
	db     *sql.DB
	cipher *crypto.TokenCipher
}

func NewCredentialRepository(db *sql.DB, cipher *crypto.TokenCipher) *CredentialRepository {
	return &CredentialRepository{db: db, cipher: cipher}
}

func (r *CredentialRepository) Upsert(ctx context.Context, cred *model.Credential) error {
	now := time.Now().UTC()
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = now
	}
	cred.UpdatedAt = now
	payload, err := encodeCredential(r.cipher, cred)
	if err != nil {
		return err
	}
	q := `INSERT INTO social_credentials (user_id, platform, payload, created_at, updated_at)
		  VALUES ($1,$2,$3,$4,$5)
		  ON CONFLICT (user_id, platform) DO UPDATE SET
			payload=EXCLUDED.payload,
			updated_at=EXCLUDED.updated_at`
	_, err = r.db.ExecContext(ctx, q, cred.UserID, cred.Platform, payload, cred.CreatedAt, cred.UpdatedAt)
	return err
}

func (r *CredentialRepository) Get(ctx context.Context, userID, platform string) (*model.Credential, error) {
	row := r.db.QueryRowContext(ctx, `SELECT payload FROM social_credentials WHERE user_id=$1 AND platform=$2`, userID, platform)
	var payload string
	if err := row.Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, autherror.ErrCredentialNotFound
		}
		return nil, err
	}
	return decodeCredential(r.cipher, payload)
}

func (r *CredentialRepository) Delete(ctx context.Context, userID, platform string) error {
	// Idempotent: deleting a missing row is a no-op.
	_, err := r.db.ExecContext(ctx, `DELETE FROM social_credentials WHERE user_id=$1 AND platform=$2`, userID, platform)
	return err
}
