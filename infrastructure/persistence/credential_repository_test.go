package persistence

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"social-gateway/domain/autherror"
	"social-gateway/domain/model"
	"social-gateway/infrastructure/crypto"
)

func testCipher(t *testing.T) *crypto.TokenCipher {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	cipher, err := crypto.NewTokenCipher(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)
	return cipher
}

func testCredential() *model.Credential {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expiry := issued.Add(60 * 24 * time.Hour)
	return &model.Credential{
		UserID:       "42",
		Platform:     model.PlatformThreads,
		AccessToken:  "THQVJ-long-lived-token",
		IssuedAt:     issued,
		ExpiresAt:    &expiry,
		Scopes:       []string{"threads_basic", "threads_content_publish"},
	}
}

func TestCredentialRepository_Upsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repository := NewCredentialRepository(db, testCipher(t))
	cred := testCredential()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO social_credentials`)).
		WithArgs(cred.UserID, cred.Platform, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repository.Upsert(context.Background(), cred))
	require.NoError(t, mock.ExpectationsWereMet())
	require.False(t, cred.CreatedAt.IsZero())
}

func TestCredentialRepository_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cipher := testCipher(t)
	repository := NewCredentialRepository(db, cipher)
	cred := testCredential()

	payload, err := encodeCredential(cipher, cred)
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT payload FROM social_credentials WHERE user_id=$1 AND platform=$2`)).
		WithArgs("42", model.PlatformThreads).
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow(payload))

	got, err := repository.Get(context.Background(), "42", model.PlatformThreads)
	require.NoError(t, err)
	require.Equal(t, cred.AccessToken, got.AccessToken)
	require.Equal(t, cred.UserID, got.UserID)
	require.True(t, cred.ExpiresAt.Equal(*got.ExpiresAt))
	require.Equal(t, cred.Scopes, got.Scopes)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentialRepository_GetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repository := NewCredentialRepository(db, testCipher(t))

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT payload FROM social_credentials`)).
		WithArgs("42", model.PlatformTwitter).
		WillReturnRows(sqlmock.NewRows([]string{"payload"}))

	_, err = repository.Get(context.Background(), "42", model.PlatformTwitter)
	require.ErrorIs(t, err, autherror.ErrCredentialNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentialRepository_GetRejectsTamperedPayload(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repository := NewCredentialRepository(db, testCipher(t))

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT payload FROM social_credentials`)).
		WithArgs("42", model.PlatformThreads).
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow("bm9uY2U=|dGFtcGVyZWQ="))

	_, err = repository.Get(context.Background(), "42", model.PlatformThreads)
	require.Error(t, err)
}

func TestCredentialRepository_DeleteIsIdempotent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repository := NewCredentialRepository(db, testCipher(t))

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM social_credentials WHERE user_id=$1 AND platform=$2`)).
		WithArgs("42", model.PlatformThreads).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repository.Delete(context.Background(), "42", model.PlatformThreads))
	require.NoError(t, mock.ExpectationsWereMet())
}
