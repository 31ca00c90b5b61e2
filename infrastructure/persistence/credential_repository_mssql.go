package persistence

import (
	"context"
	"database/sql"
	"time"

	"social-gateway/domain/autherror"
	"social-gateway/domain/model"
	"social-gateway/infrastructure/crypto"
)

// CredentialRepositoryMSSQL is the Azure SQL / SQL Server variant used in
// production. Same contract as the PostgreSQL repository; MERGE gives the
// atomic upsert.
type CredentialRepositoryMSSQL struct {
	db     *sql.DB
	cipher *crypto.TokenCipher
}

func NewCredentialRepositoryMSSQL(db *sql.DB, cipher *crypto.TokenCipher) *CredentialRepositoryMSSQL {
	return &CredentialRepositoryMSSQL{db: db, cipher: cipher}
}

func (r *CredentialRepositoryMSSQL) Upsert(ctx context.Context, cred *model.Credential) error {
	now := time.Now().UTC()
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = now
	}
	cred.UpdatedAt = now
	payload, err := encodeCredential(r.cipher, cred)
	if err != nil {
		return err
	}
	q := `MERGE social_credentials AS target
		  USING (SELECT @p1 AS user_id, @p2 AS platform) AS source
		  ON target.user_id = source.user_id AND target.platform = source.platform
		  WHEN MATCHED THEN
			UPDATE SET payload = @p3, updated_at = @p5
		  WHEN NOT MATCHED THEN
			INSERT (user_id, platform, payload, created_at, updated_at)
			VALUES (@p1, @p2, @p3, @p4, @p5);`
	_, err = r.db.ExecContext(ctx, q, cred.UserID, cred.Platform, payload, cred.CreatedAt, cred.UpdatedAt)
	return err
}

func (r *CredentialRepositoryMSSQL) Get(ctx context.Context, userID, platform string) (*model.Credential, error) {
	row := r.db.QueryRowContext(ctx, `SELECT payload FROM social_credentials WHERE user_id=@p1 AND platform=@p2`, userID, platform)
	var payload string
	if err := row.Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, autherror.ErrCredentialNotFound
		}
		return nil, err
	}
	return decodeCredential(r.cipher, payload)
}

func (r *CredentialRepositoryMSSQL) Delete(ctx context.Context, userID, platform string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM social_credentials WHERE user_id=@p1 AND platform=@p2`, userID, platform)
	return err
}
