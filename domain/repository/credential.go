package repository

import (
	"context"

	"social-gateway/domain/model"
)

// ICredential persists at most one credential per (user, platform) pair.
// Implementations must encrypt token fields at rest and make Upsert atomic
// per key so a double refresh stays last-write-wins.
type ICredential interface {
	// Get returns the stored credential, or autherror.ErrCredentialNotFound.
	Get(ctx context.Context, userID, platform string) (*model.Credential, error)
	// Upsert creates or replaces the credential for its (user, platform) key.
	Upsert(ctx context.Context, credential *model.Credential) error
	// Delete removes the credential. Deleting a missing credential is not an error.
	Delete(ctx context.Context, userID, platform string) error
}
