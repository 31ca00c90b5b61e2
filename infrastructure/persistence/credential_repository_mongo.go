package persistence

import (
	"context"
	"errors"
	"time"

	"social-gateway/domain/autherror"
	"social-gateway/domain/model"
	"social-gateway/infrastructure/crypto"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// CredentialRepositoryMongo is the document-store variant. ReplaceOne with
// upsert gives the same atomic per-key write semantics as the SQL backends.
type CredentialRepositoryMongo struct {
	col    *mongo.Collection
	cipher *crypto.TokenCipher
}

type credentialDoc struct {
	UserID    string    `bson:"user_id"`
	Platform  string    `bson:"platform"`
	Payload   string    `bson:"payload"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func NewCredentialRepositoryMongo(db *mongo.Database, cipher *crypto.TokenCipher) *CredentialRepositoryMongo {
	return &CredentialRepositoryMongo{col: db.Collection("social_credentials"), cipher: cipher}
}

func (r *CredentialRepositoryMongo) Upsert(ctx context.Context, cred *model.Credential) error {
	now := time.Now().UTC()
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = now
	}
	cred.UpdatedAt = now
	payload, err := encodeCredential(r.cipher, cred)
	if err != nil {
		return err
	}
	filter := bson.D{{Key: "user_id", Value: cred.UserID}, {Key: "platform", Value: cred.Platform}}
	doc := credentialDoc{
		UserID:    cred.UserID,
		Platform:  cred.Platform,
		Payload:   payload,
		CreatedAt: cred.CreatedAt,
		UpdatedAt: cred.UpdatedAt,
	}
	_, err = r.col.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	return err
}

func (r *CredentialRepositoryMongo) Get(ctx context.Context, userID, platform string) (*model.Credential, error) {
	filter := bson.D{{Key: "user_id", Value: userID}, {Key: "platform", Value: platform}}
	var doc credentialDoc
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, autherror.ErrCredentialNotFound
		}
		return nil, err
	}
	return decodeCredential(r.cipher, doc.Payload)
}

func (r *CredentialRepositoryMongo) Delete(ctx context.Context, userID, platform string) error {
	filter := bson.D{{Key: "user_id", Value: userID}, {Key: "platform", Value: platform}}
	_, err := r.col.DeleteOne(ctx, filter)
	return err
}
