package persistence

import (
	"database/sql"
	"fmt"
)

// EnsureCredentialSchema creates the encrypted credential table if missing.
func EnsureCredentialSchema(db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS social_credentials (
        user_id TEXT NOT NULL,
        platform TEXT NOT NULL,
        payload TEXT NOT NULL,
        created_at TIMESTAMPTZ NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL,
        PRIMARY KEY (user_id, platform)
    )`
	if _, err := db.Exec(ddl); err != nil {
		return fmt.Errorf("create social_credentials table: %w", err)
	}
	return nil
}

// EnsureCredentialSchemaMSSQL is the SQL Server equivalent.
func EnsureCredentialSchemaMSSQL(db *sql.DB) error {
	ddl := `IF OBJECT_ID('social_credentials', 'U') IS NULL
    CREATE TABLE social_credentials (
        user_id NVARCHAR(128) NOT NULL,
        platform NVARCHAR(32) NOT NULL,
        payload NVARCHAR(MAX) NOT NULL,
        created_at DATETIME2 NOT NULL,
        updated_at DATETIME2 NOT NULL,
        CONSTRAINT pk_social_credentials PRIMARY KEY (user_id, platform)
    )`
	if _, err := db.Exec(ddl); err != nil {
		return fmt.Errorf("create social_credentials table: %w", err)
	}
	return nil
}
