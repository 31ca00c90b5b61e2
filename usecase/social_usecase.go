package usecase

import (
	"context"
	"errors"
	"net/http"

	"social-gateway/domain/autherror"
	"social-gateway/domain/dto"
	"social-gateway/domain/model"
	"social-gateway/domain/repository"
	"social-gateway/infrastructure/configuration"
	"social-gateway/infrastructure/logger"
)

// ISocialUsecase executes platform operations against stored credentials and
// shapes every outcome, success or failure, into the uniform response envelope.
type ISocialUsecase interface {
	Platform() string
	Post(ctx context.Context, userID, content string) dto.Res
	GetAccount(ctx context.Context, userID string) dto.Res
	CreateSuccessResponse(data interface{}) dto.Res
	CreateErrorResponse(err error) dto.Res
}

type socialUsecase struct {
	connector repository.IPlatformConnector
	credRepo  repository.ICredential
	auth      IAuthUsecase
}

func NewSocialUsecase(connector repository.IPlatformConnector, credRepo repository.ICredential, auth IAuthUsecase) ISocialUsecase {
	return &socialUsecase{connector: connector, credRepo: credRepo, auth: auth}
}

func (u *socialUsecase) Platform() string { return u.connector.Platform() }

func (u *socialUsecase) Post(ctx context.Context, userID, content string) dto.Res {
	result, err := withRefreshRetry(ctx, u, userID, func(cred *model.Credential) (interface{}, error) {
		return u.connector.Publish(ctx, cred, content)
	})
	if err != nil {
		return u.CreateErrorResponse(err)
	}
	return u.CreateSuccessResponse(result)
}

func (u *socialUsecase) GetAccount(ctx context.Context, userID string) dto.Res {
	result, err := withRefreshRetry(ctx, u, userID, func(cred *model.Credential) (interface{}, error) {
		return u.connector.FetchAccount(ctx, cred)
	})
	if err != nil {
		return u.CreateErrorResponse(err)
	}
	return u.CreateSuccessResponse(result)
}

// withRefreshRetry runs op against the stored credential. When the platform
// signals an expired token and the credential is refreshable, it refreshes
// exactly once and retries exactly once; a failed refresh surfaces the refresh
// error, not the original expiry.
func withRefreshRetry(ctx context.Context, u *socialUsecase, userID string, op func(*model.Credential) (interface{}, error)) (interface{}, error) {
	cred, err := u.credRepo.Get(ctx, userID, u.connector.Platform())
	if err != nil {
		return nil, err
	}
	result, err := op(cred)
	if err == nil || !errors.Is(err, autherror.ErrTokenExpired) {
		return result, err
	}
	if !u.connector.CanRefreshToken(cred) {
		return nil, err
	}
	logger.GetLogger().
		WithField("platform", u.connector.Platform()).
		Info("token expired upstream, attempting refresh")
	refreshed, refreshErr := u.auth.RefreshIfPossible(ctx, userID)
	if refreshErr != nil {
		return nil, refreshErr
	}
	return op(refreshed)
}

func (u *socialUsecase) CreateSuccessResponse(data interface{}) dto.Res {
	return SuccessResponse(u.connector.Platform(), data)
}

// SuccessResponse builds the success envelope for a platform operation.
func SuccessResponse(platform string, data interface{}) dto.Res {
	return dto.Res{
		Status:   dto.StatusSuccess,
		Code:     http.StatusOK,
		Message:  "OK",
		Data:     data,
		Platform: platform,
	}
}

func (u *socialUsecase) CreateErrorResponse(err error) dto.Res {
	return ErrorResponse(u.connector.Platform(), err)
}

// ErrorResponse maps the error taxonomy onto the envelope. The code doubles
// as the HTTP status the handler writes.
func ErrorResponse(platform string, err error) dto.Res {
	res := dto.Res{
		Status:   dto.StatusError,
		Platform: platform,
	}
	var upstreamAuth *autherror.UpstreamAuthError
	var malformed *autherror.MalformedResponseError
	var upstream *autherror.UpstreamError
	switch {
	case errors.Is(err, autherror.ErrInvalidState):
		res.Code = http.StatusBadRequest
		res.Message = "invalid or already used state token"
	case errors.Is(err, autherror.ErrAuthorizationDenied):
		res.Code = http.StatusForbidden
		res.Message = "authorization was denied"
	case errors.Is(err, autherror.ErrTokenExpired):
		res.Code = http.StatusUnauthorized
		res.Message = "access token expired; reconnect the account"
	case errors.Is(err, autherror.ErrRefreshUnsupported):
		res.Code = http.StatusConflict
		res.Message = "stored credential cannot be refreshed"
	case errors.Is(err, autherror.ErrCredentialNotFound):
		res.Code = http.StatusNotFound
		res.Message = "no credential stored for this platform"
	case errors.As(err, &upstreamAuth):
		res.Code = http.StatusBadGateway
		res.Message = "platform rejected the authorization request"
		res.Details = upstreamAuth.Error()
	case errors.As(err, &malformed):
		res.Code = http.StatusBadGateway
		res.Message = "platform returned an unusable response"
		res.Details = malformed.Error()
	case errors.As(err, &upstream):
		res.Code = http.StatusBadGateway
		res.Message = "platform request failed"
		res.Details = upstream.Error()
	default:
		res.Code = http.StatusInternalServerError
		res.Message = "internal error"
		if configuration.C.App.Debug {
			res.Details = err.Error()
		}
	}
	logger.GetLogger().
		WithField("platform", platform).
		WithField("code", res.Code).
		WithField("error", err).
		Error(res.Message)
	return res
}
