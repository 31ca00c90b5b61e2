package usecase

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"social-gateway/domain/autherror"
	"social-gateway/domain/dto"
	"social-gateway/domain/model"
	"social-gateway/domain/repository"
	"social-gateway/infrastructure/logger"
	"social-gateway/infrastructure/pubsub"
	"social-gateway/infrastructure/servicebus"
)

// IAuthUsecase drives the authorize -> callback -> store -> validity ->
// refresh -> disconnect lifecycle for one platform.
type IAuthUsecase interface {
	Platform() string
	StartAuthorization(ctx context.Context, userID string) (*dto.AuthorizeResponse, error)
	HandleCallback(ctx context.Context, code, state, errParam string) (*model.Credential, error)
	Disconnect(ctx context.Context, userID string) error
	IsConnected(ctx context.Context, userID string) (bool, error)
	GetTokenValidity(ctx context.Context, userID string) (*model.TokenValidity, error)
	RefreshIfPossible(ctx context.Context, userID string) (*model.Credential, error)
}

// codeVerifierGenerator is implemented by connectors whose platform requires
// PKCE; the verifier rides along with the state token until the callback.
type codeVerifierGenerator interface {
	GenerateCodeVerifier() string
}

type authUsecase struct {
	connector repository.IPlatformConnector
	credRepo  repository.ICredential
	states    repository.IAuthState
	events    pubsub.IAuthEventPublisher
	audit     servicebus.IAuditSender
	stateTTL  time.Duration
}

func NewAuthUsecase(
	connector repository.IPlatformConnector,
	credRepo repository.ICredential,
	states repository.IAuthState,
	events pubsub.IAuthEventPublisher,
	audit servicebus.IAuditSender,
	stateTTL time.Duration,
) IAuthUsecase {
	return &authUsecase{
		connector: connector,
		credRepo:  credRepo,
		states:    states,
		events:    events,
		audit:     audit,
		stateTTL:  stateTTL,
	}
}

func (u *authUsecase) Platform() string { return u.connector.Platform() }

func randomState() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func (u *authUsecase) StartAuthorization(ctx context.Context, userID string) (*dto.AuthorizeResponse, error) {
	if userID == "" {
		return nil, errors.New("userID required")
	}
	now := time.Now().UTC()
	attempt := &model.AuthState{
		State:     randomState(),
		UserID:    userID,
		Platform:  u.connector.Platform(),
		CreatedAt: now,
		ExpiresAt: now.Add(u.stateTTL),
	}
	if gen, ok := u.connector.(codeVerifierGenerator); ok {
		attempt.CodeVerifier = gen.GenerateCodeVerifier()
	}
	authURL, err := u.connector.BuildAuthorizationURL(attempt)
	if err != nil {
		return nil, err
	}
	if err := u.states.Issue(ctx, attempt, u.stateTTL); err != nil {
		return nil, err
	}
	return &dto.AuthorizeResponse{AuthURL: authURL, State: attempt.State}, nil
}

// HandleCallback verifies the single-use state, exchanges the code and
// upserts the credential. The write happens only after a complete, successful
// exchange response; a repeated callback with the same state fails.
func (u *authUsecase) HandleCallback(ctx context.Context, code, state, errParam string) (*model.Credential, error) {
	if errParam != "" {
		return nil, fmt.Errorf("%w: %s", autherror.ErrAuthorizationDenied, errParam)
	}
	attempt, err := u.states.VerifyAndConsume(ctx, state)
	if err != nil {
		return nil, err
	}
	if attempt.Platform != u.connector.Platform() {
		return nil, autherror.ErrInvalidState
	}
	grant, err := u.connector.ExchangeCode(ctx, code, attempt)
	if err != nil {
		return nil, err
	}
	cred := credentialFromGrant(attempt.UserID, u.connector.Platform(), grant)
	if err := u.credRepo.Upsert(ctx, cred); err != nil {
		return nil, err
	}
	u.publishEvent(ctx, cred.UserID, model.EventConnected)
	return cred, nil
}

func (u *authUsecase) Disconnect(ctx context.Context, userID string) error {
	if err := u.credRepo.Delete(ctx, userID, u.connector.Platform()); err != nil {
		return err
	}
	u.publishEvent(ctx, userID, model.EventDisconnected)
	return nil
}

// IsConnected is a local existence check. Irrecoverably expired credentials
// (past expiry with no refresh path) are purged on sight.
func (u *authUsecase) IsConnected(ctx context.Context, userID string) (bool, error) {
	cred, err := u.credRepo.Get(ctx, userID, u.connector.Platform())
	if err != nil {
		if errors.Is(err, autherror.ErrCredentialNotFound) {
			return false, nil
		}
		return false, err
	}
	if cred.IsExpired(time.Now()) && !u.connector.CanRefreshToken(cred) {
		if err := u.credRepo.Delete(ctx, userID, u.connector.Platform()); err != nil {
			logger.GetLogger().WithField("error", err).Warn("failed purging expired credential")
		}
		return false, nil
	}
	return true, nil
}

func (u *authUsecase) GetTokenValidity(ctx context.Context, userID string) (*model.TokenValidity, error) {
	cred, err := u.credRepo.Get(ctx, userID, u.connector.Platform())
	if err != nil {
		if errors.Is(err, autherror.ErrCredentialNotFound) {
			return &model.TokenValidity{}, nil
		}
		return nil, err
	}
	validity := &model.TokenValidity{
		IsConnected: true,
		CanRefresh:  u.connector.CanRefreshToken(cred),
	}
	lifetime := u.connector.CalculateExpirationTime(cred)
	if lifetime == nil {
		validity.IsValid = true
		return validity, nil
	}
	expiry := cred.IssuedAt.Add(time.Duration(*lifetime) * time.Second)
	remaining := int64(time.Until(expiry) / time.Second)
	validity.ExpiresInSeconds = &remaining
	validity.IsValid = remaining > 0
	return validity, nil
}

func (u *authUsecase) RefreshIfPossible(ctx context.Context, userID string) (*model.Credential, error) {
	cred, err := u.credRepo.Get(ctx, userID, u.connector.Platform())
	if err != nil {
		return nil, err
	}
	if !u.connector.CanRefreshToken(cred) {
		return nil, autherror.ErrRefreshUnsupported
	}
	grant, err := u.connector.Refresh(ctx, cred)
	if err != nil {
		return nil, err
	}
	refreshed := credentialFromGrant(userID, u.connector.Platform(), grant)
	refreshed.CreatedAt = cred.CreatedAt
	if err := u.credRepo.Upsert(ctx, refreshed); err != nil {
		return nil, err
	}
	u.publishEvent(ctx, userID, model.EventRefreshed)
	return refreshed, nil
}

func credentialFromGrant(userID, platform string, grant *model.TokenGrant) *model.Credential {
	now := time.Now().UTC()
	cred := &model.Credential{
		UserID:       userID,
		Platform:     platform,
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		IssuedAt:     now,
		Scopes:       grant.Scopes,
	}
	if grant.ExpiresIn > 0 {
		expiry := now.Add(time.Duration(grant.ExpiresIn) * time.Second)
		cred.ExpiresAt = &expiry
	}
	return cred
}

// publishEvent fans the lifecycle change out to Pub/Sub and the audit queue.
// Both are best-effort; the auth operation already succeeded.
func (u *authUsecase) publishEvent(ctx context.Context, userID, action string) {
	platform := u.connector.Platform()
	if u.events != nil {
		if err := u.events.Publish(ctx, userID, platform, action); err != nil {
			logger.GetLogger().WithField("error", err).Warn("failed publishing connection event")
		}
	}
	if u.audit != nil {
		if err := u.audit.SendEvent(ctx, userID, platform, action); err != nil {
			logger.GetLogger().WithField("error", err).Warn("failed sending audit event")
		}
	}
}
