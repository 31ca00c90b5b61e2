package usecase_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"social-gateway/domain/autherror"
	"social-gateway/domain/dto"
	"social-gateway/domain/model"
	"social-gateway/usecase"
)

func newSocialFixture(platform string) (*MockConnector, *MockCredentialRepository, usecase.ISocialUsecase) {
	connector := &MockConnector{platform: platform}
	creds := new(MockCredentialRepository)
	events := new(MockEventPublisher)
	events.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	authUsecase := usecase.NewAuthUsecase(connector, creds, new(MockStateRegistry), events, nil, 10*time.Minute)
	return connector, creds, usecase.NewSocialUsecase(connector, creds, authUsecase)
}

func TestPost_Success(t *testing.T) {
	connector, creds, socialUsecase := newSocialFixture(model.PlatformTwitter)

	cred := &model.Credential{UserID: "42", Platform: model.PlatformTwitter, AccessToken: "at"}
	creds.On("Get", mock.Anything, "42", model.PlatformTwitter).Return(cred, nil)
	connector.On("Publish", mock.Anything, cred, "hello").Return(&model.PostResult{PostID: "1445"}, nil)

	res := socialUsecase.Post(context.Background(), "42", "hello")
	require.Equal(t, dto.StatusSuccess, res.Status)
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, model.PlatformTwitter, res.Platform)
	connector.AssertNumberOfCalls(t, "Publish", 1)
}

func TestPost_RefreshesOnceAndRetriesOnce(t *testing.T) {
	connector, creds, socialUsecase := newSocialFixture(model.PlatformTwitter)

	stale := &model.Credential{UserID: "42", Platform: model.PlatformTwitter, AccessToken: "at-old", RefreshToken: "rt"}
	fresh := &model.Credential{UserID: "42", Platform: model.PlatformTwitter, AccessToken: "at-new", RefreshToken: "rt-2"}

	creds.On("Get", mock.Anything, "42", model.PlatformTwitter).Return(stale, nil)
	connector.On("Publish", mock.Anything, stale, "hello").Return(nil, autherror.ErrTokenExpired).Once()
	connector.On("CanRefreshToken", stale).Return(true)
	connector.On("Refresh", mock.Anything, stale).Return(&model.TokenGrant{
		AccessToken:  fresh.AccessToken,
		RefreshToken: fresh.RefreshToken,
		ExpiresIn:    7200,
	}, nil).Once()
	creds.On("Upsert", mock.Anything, mock.AnythingOfType("*model.Credential")).Return(nil)
	connector.On("Publish", mock.Anything, mock.AnythingOfType("*model.Credential"), "hello").
		Return(&model.PostResult{PostID: "1446"}, nil).Once()

	res := socialUsecase.Post(context.Background(), "42", "hello")
	require.Equal(t, dto.StatusSuccess, res.Status)
	connector.AssertNumberOfCalls(t, "Publish", 2)
	connector.AssertNumberOfCalls(t, "Refresh", 1)
}

func TestPost_FailedRefreshSurfacesRefreshError(t *testing.T) {
	connector, creds, socialUsecase := newSocialFixture(model.PlatformTwitter)

	stale := &model.Credential{UserID: "42", Platform: model.PlatformTwitter, AccessToken: "at-old", RefreshToken: "rt"}
	creds.On("Get", mock.Anything, "42", model.PlatformTwitter).Return(stale, nil)
	connector.On("Publish", mock.Anything, stale, "hello").Return(nil, autherror.ErrTokenExpired)
	connector.On("CanRefreshToken", stale).Return(true)
	connector.On("Refresh", mock.Anything, stale).Return(nil, &autherror.UpstreamAuthError{
		Platform:   model.PlatformTwitter,
		Operation:  "refresh",
		StatusCode: http.StatusBadRequest,
		Body:       `{"error":"invalid_request"}`,
	})

	res := socialUsecase.Post(context.Background(), "42", "hello")
	require.Equal(t, dto.StatusError, res.Status)
	require.Equal(t, http.StatusBadGateway, res.Code, "refresh failure is an upstream auth failure, not a plain expiry")
	connector.AssertNumberOfCalls(t, "Publish", 1)
}

func TestPost_ExpiredAndNotRefreshable(t *testing.T) {
	connector, creds, socialUsecase := newSocialFixture(model.PlatformThreads)

	cred := &model.Credential{UserID: "42", Platform: model.PlatformThreads, AccessToken: "at"}
	creds.On("Get", mock.Anything, "42", model.PlatformThreads).Return(cred, nil)
	connector.On("Publish", mock.Anything, cred, "hello").Return(nil, autherror.ErrTokenExpired)
	connector.On("CanRefreshToken", cred).Return(false)

	res := socialUsecase.Post(context.Background(), "42", "hello")
	require.Equal(t, dto.StatusError, res.Status)
	require.Equal(t, http.StatusUnauthorized, res.Code)
	connector.AssertNumberOfCalls(t, "Publish", 1)
	connector.AssertNotCalled(t, "Refresh", mock.Anything, mock.Anything)
}

func TestPost_NoCredential(t *testing.T) {
	_, creds, socialUsecase := newSocialFixture(model.PlatformThreads)

	creds.On("Get", mock.Anything, "42", model.PlatformThreads).Return(nil, autherror.ErrCredentialNotFound)

	res := socialUsecase.Post(context.Background(), "42", "hello")
	require.Equal(t, dto.StatusError, res.Status)
	require.Equal(t, http.StatusNotFound, res.Code)
}

func TestGetAccount_Success(t *testing.T) {
	connector, creds, socialUsecase := newSocialFixture(model.PlatformThreads)

	cred := &model.Credential{UserID: "42", Platform: model.PlatformThreads, AccessToken: "at"}
	creds.On("Get", mock.Anything, "42", model.PlatformThreads).Return(cred, nil)
	connector.On("FetchAccount", mock.Anything, cred).Return(&model.AccountInfo{ID: "177", Username: "jane"}, nil)

	res := socialUsecase.GetAccount(context.Background(), "42")
	require.Equal(t, dto.StatusSuccess, res.Status)
	acct, ok := res.Data.(*model.AccountInfo)
	require.True(t, ok)
	require.Equal(t, "jane", acct.Username)
}

func TestErrorResponse_Mapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"invalid state", autherror.ErrInvalidState, http.StatusBadRequest},
		{"denied", autherror.ErrAuthorizationDenied, http.StatusForbidden},
		{"expired", autherror.ErrTokenExpired, http.StatusUnauthorized},
		{"refresh unsupported", autherror.ErrRefreshUnsupported, http.StatusConflict},
		{"not found", autherror.ErrCredentialNotFound, http.StatusNotFound},
		{"upstream auth", &autherror.UpstreamAuthError{Platform: "threads", Operation: "exchange", StatusCode: 400}, http.StatusBadGateway},
		{"malformed", &autherror.MalformedResponseError{Platform: "threads", Field: "access_token"}, http.StatusBadGateway},
		{"upstream", &autherror.UpstreamError{Platform: "threads", Operation: "publish", Err: errors.New("boom")}, http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := usecase.ErrorResponse("threads", tc.err)
			require.Equal(t, dto.StatusError, res.Status)
			require.Equal(t, tc.code, res.Code)
			require.Equal(t, "threads", res.Platform)
		})
	}
}

func TestErrorResponse_WrappedSentinel(t *testing.T) {
	wrapped := errors.Join(errors.New("callback"), autherror.ErrAuthorizationDenied)
	res := usecase.ErrorResponse("twitter", wrapped)
	require.Equal(t, http.StatusForbidden, res.Code)
}
