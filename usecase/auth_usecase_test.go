package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"social-gateway/domain/autherror"
	"social-gateway/domain/model"
	"social-gateway/usecase"
)

// Mock implementations

type MockCredentialRepository struct {
	mock.Mock
}

func (m *MockCredentialRepository) Get(ctx context.Context, userID, platform string) (*model.Credential, error) {
	args := m.Called(ctx, userID, platform)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Credential), args.Error(1)
}

func (m *MockCredentialRepository) Upsert(ctx context.Context, cred *model.Credential) error {
	args := m.Called(ctx, cred)
	return args.Error(0)
}

func (m *MockCredentialRepository) Delete(ctx context.Context, userID, platform string) error {
	args := m.Called(ctx, userID, platform)
	return args.Error(0)
}

type MockStateRegistry struct {
	mock.Mock
}

func (m *MockStateRegistry) Issue(ctx context.Context, state *model.AuthState, ttl time.Duration) error {
	args := m.Called(ctx, state, ttl)
	return args.Error(0)
}

func (m *MockStateRegistry) VerifyAndConsume(ctx context.Context, state string) (*model.AuthState, error) {
	args := m.Called(ctx, state)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AuthState), args.Error(1)
}

type MockConnector struct {
	mock.Mock
	platform string
}

func (m *MockConnector) Platform() string { return m.platform }

func (m *MockConnector) BuildAuthorizationURL(state *model.AuthState) (string, error) {
	args := m.Called(state)
	return args.String(0), args.Error(1)
}

func (m *MockConnector) ExchangeCode(ctx context.Context, code string, state *model.AuthState) (*model.TokenGrant, error) {
	args := m.Called(ctx, code, state)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TokenGrant), args.Error(1)
}

func (m *MockConnector) CalculateExpirationTime(cred *model.Credential) *int64 {
	args := m.Called(cred)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*int64)
}

func (m *MockConnector) CanRefreshToken(cred *model.Credential) bool {
	args := m.Called(cred)
	return args.Bool(0)
}

func (m *MockConnector) Refresh(ctx context.Context, cred *model.Credential) (*model.TokenGrant, error) {
	args := m.Called(ctx, cred)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TokenGrant), args.Error(1)
}

func (m *MockConnector) FetchAccount(ctx context.Context, cred *model.Credential) (*model.AccountInfo, error) {
	args := m.Called(ctx, cred)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AccountInfo), args.Error(1)
}

func (m *MockConnector) Publish(ctx context.Context, cred *model.Credential, content string) (*model.PostResult, error) {
	args := m.Called(ctx, cred, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PostResult), args.Error(1)
}

// MockPKCEConnector additionally provides a PKCE verifier, like the Twitter client.
type MockPKCEConnector struct {
	MockConnector
}

func (m *MockPKCEConnector) GenerateCodeVerifier() string {
	return "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, userID, platform, action string) error {
	args := m.Called(ctx, userID, platform, action)
	return args.Error(0)
}

func newAuthUsecase(connector *MockConnector, creds *MockCredentialRepository, states *MockStateRegistry, events *MockEventPublisher) usecase.IAuthUsecase {
	return usecase.NewAuthUsecase(connector, creds, states, events, nil, 10*time.Minute)
}

func TestStartAuthorization(t *testing.T) {
	connector := &MockConnector{platform: model.PlatformThreads}
	creds := new(MockCredentialRepository)
	states := new(MockStateRegistry)
	events := new(MockEventPublisher)

	var issued *model.AuthState
	connector.On("BuildAuthorizationURL", mock.AnythingOfType("*model.AuthState")).
		Return("https://threads.net/oauth/authorize?state=x", nil)
	states.On("Issue", mock.Anything, mock.AnythingOfType("*model.AuthState"), 10*time.Minute).
		Run(func(args mock.Arguments) { issued = args.Get(1).(*model.AuthState) }).
		Return(nil)

	authUsecase := newAuthUsecase(connector, creds, states, events)
	res, err := authUsecase.StartAuthorization(context.Background(), "42")
	require.NoError(t, err)
	require.NotEmpty(t, res.State)
	require.NotEmpty(t, res.AuthURL)
	require.NotNil(t, issued)
	require.Equal(t, res.State, issued.State)
	require.Equal(t, "42", issued.UserID)
	require.Equal(t, model.PlatformThreads, issued.Platform)
	require.Empty(t, issued.CodeVerifier)
	states.AssertExpectations(t)
}

func TestStartAuthorization_TwoStatesDiffer(t *testing.T) {
	connector := &MockConnector{platform: model.PlatformThreads}
	states := new(MockStateRegistry)
	connector.On("BuildAuthorizationURL", mock.Anything).Return("https://threads.net/oauth/authorize", nil)
	states.On("Issue", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	authUsecase := newAuthUsecase(connector, new(MockCredentialRepository), states, new(MockEventPublisher))
	first, err := authUsecase.StartAuthorization(context.Background(), "42")
	require.NoError(t, err)
	second, err := authUsecase.StartAuthorization(context.Background(), "42")
	require.NoError(t, err)
	require.NotEqual(t, first.State, second.State)
}

func TestStartAuthorization_CarriesPKCEVerifier(t *testing.T) {
	connector := &MockPKCEConnector{MockConnector{platform: model.PlatformTwitter}}
	states := new(MockStateRegistry)

	var issued *model.AuthState
	connector.On("BuildAuthorizationURL", mock.Anything).Return("https://twitter.com/i/oauth2/authorize", nil)
	states.On("Issue", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { issued = args.Get(1).(*model.AuthState) }).
		Return(nil)

	authUsecase := usecase.NewAuthUsecase(connector, new(MockCredentialRepository), states, nil, nil, 10*time.Minute)
	_, err := authUsecase.StartAuthorization(context.Background(), "42")
	require.NoError(t, err)
	require.Equal(t, "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk", issued.CodeVerifier)
}

func TestHandleCallback_FullScenario(t *testing.T) {
	connector := &MockConnector{platform: model.PlatformThreads}
	creds := new(MockCredentialRepository)
	states := new(MockStateRegistry)
	events := new(MockEventPublisher)

	attempt := &model.AuthState{
		State:    "abcd1234",
		UserID:   "42",
		Platform: model.PlatformThreads,
	}
	states.On("VerifyAndConsume", mock.Anything, "abcd1234").Return(attempt, nil)
	connector.On("ExchangeCode", mock.Anything, "the-code", attempt).Return(&model.TokenGrant{
		AccessToken: "long-lived",
		TokenType:   "bearer",
		ExpiresIn:   5184000,
		Scopes:      []string{"threads_basic"},
	}, nil)
	var stored *model.Credential
	creds.On("Upsert", mock.Anything, mock.AnythingOfType("*model.Credential")).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*model.Credential) }).
		Return(nil)
	events.On("Publish", mock.Anything, "42", model.PlatformThreads, model.EventConnected).Return(nil)

	authUsecase := newAuthUsecase(connector, creds, states, events)
	cred, err := authUsecase.HandleCallback(context.Background(), "the-code", "abcd1234", "")
	require.NoError(t, err)
	require.Equal(t, "42", cred.UserID)
	require.Equal(t, "long-lived", cred.AccessToken)
	require.NotNil(t, stored)
	require.NotNil(t, stored.ExpiresAt)
	require.WithinDuration(t, time.Now().Add(5184000*time.Second), *stored.ExpiresAt, 5*time.Second)
	events.AssertExpectations(t)
}

func TestHandleCallback_Denied(t *testing.T) {
	connector := &MockConnector{platform: model.PlatformThreads}
	states := new(MockStateRegistry)

	authUsecase := newAuthUsecase(connector, new(MockCredentialRepository), states, new(MockEventPublisher))
	_, err := authUsecase.HandleCallback(context.Background(), "", "abcd1234", "access_denied")
	require.ErrorIs(t, err, autherror.ErrAuthorizationDenied)
	states.AssertNotCalled(t, "VerifyAndConsume", mock.Anything, mock.Anything)
}

func TestHandleCallback_StateReuseRejected(t *testing.T) {
	connector := &MockConnector{platform: model.PlatformThreads}
	creds := new(MockCredentialRepository)
	states := new(MockStateRegistry)

	states.On("VerifyAndConsume", mock.Anything, "used-up").Return(nil, autherror.ErrInvalidState)

	authUsecase := newAuthUsecase(connector, creds, states, new(MockEventPublisher))
	_, err := authUsecase.HandleCallback(context.Background(), "the-code", "used-up", "")
	require.ErrorIs(t, err, autherror.ErrInvalidState)
	connector.AssertNotCalled(t, "ExchangeCode", mock.Anything, mock.Anything, mock.Anything)
	creds.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestHandleCallback_ExchangeFailureWritesNothing(t *testing.T) {
	connector := &MockConnector{platform: model.PlatformThreads}
	creds := new(MockCredentialRepository)
	states := new(MockStateRegistry)

	attempt := &model.AuthState{State: "abcd1234", UserID: "42", Platform: model.PlatformThreads}
	states.On("VerifyAndConsume", mock.Anything, "abcd1234").Return(attempt, nil)
	upstream := &autherror.UpstreamAuthError{Platform: model.PlatformThreads, Operation: "exchange", StatusCode: 400}
	connector.On("ExchangeCode", mock.Anything, "bad-code", attempt).Return(nil, upstream)

	authUsecase := newAuthUsecase(connector, creds, states, new(MockEventPublisher))
	_, err := authUsecase.HandleCallback(context.Background(), "bad-code", "abcd1234", "")
	require.ErrorAs(t, err, new(*autherror.UpstreamAuthError))
	creds.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestGetTokenValidity_ExpiredAfterLifetime(t *testing.T) {
	connector := &MockConnector{platform: model.PlatformTwitter}
	creds := new(MockCredentialRepository)

	cred := &model.Credential{
		UserID:      "42",
		Platform:    model.PlatformTwitter,
		AccessToken: "at",
		IssuedAt:    time.Now().Add(-3601 * time.Second),
	}
	creds.On("Get", mock.Anything, "42", model.PlatformTwitter).Return(cred, nil)
	lifetime := int64(3600)
	connector.On("CalculateExpirationTime", cred).Return(&lifetime)
	connector.On("CanRefreshToken", cred).Return(false)

	authUsecase := newAuthUsecase(connector, creds, new(MockStateRegistry), new(MockEventPublisher))
	validity, err := authUsecase.GetTokenValidity(context.Background(), "42")
	require.NoError(t, err)
	require.True(t, validity.IsConnected)
	require.False(t, validity.IsValid, "a 3600s token issued 3601s ago is invalid")
	require.NotNil(t, validity.ExpiresInSeconds)
	require.LessOrEqual(t, *validity.ExpiresInSeconds, int64(0))
}

func TestGetTokenValidity_NonExpiring(t *testing.T) {
	connector := &MockConnector{platform: model.PlatformThreads}
	creds := new(MockCredentialRepository)

	cred := &model.Credential{UserID: "42", Platform: model.PlatformThreads, AccessToken: "at", IssuedAt: time.Now()}
	creds.On("Get", mock.Anything, "42", model.PlatformThreads).Return(cred, nil)
	connector.On("CalculateExpirationTime", cred).Return(nil)
	connector.On("CanRefreshToken", cred).Return(false)

	authUsecase := newAuthUsecase(connector, creds, new(MockStateRegistry), new(MockEventPublisher))
	validity, err := authUsecase.GetTokenValidity(context.Background(), "42")
	require.NoError(t, err)
	require.True(t, validity.IsValid)
	require.Nil(t, validity.ExpiresInSeconds)
}

func TestGetTokenValidity_NotConnected(t *testing.T) {
	connector := &MockConnector{platform: model.PlatformThreads}
	creds := new(MockCredentialRepository)
	creds.On("Get", mock.Anything, "42", model.PlatformThreads).Return(nil, autherror.ErrCredentialNotFound)

	authUsecase := newAuthUsecase(connector, creds, new(MockStateRegistry), new(MockEventPublisher))
	validity, err := authUsecase.GetTokenValidity(context.Background(), "42")
	require.NoError(t, err)
	require.False(t, validity.IsConnected)
	require.False(t, validity.IsValid)
}

func TestRefreshIfPossible_UnsupportedLeavesStoreUntouched(t *testing.T) {
	connector := &MockConnector{platform: model.PlatformTwitter}
	creds := new(MockCredentialRepository)

	cred := &model.Credential{UserID: "42", Platform: model.PlatformTwitter, AccessToken: "at"}
	creds.On("Get", mock.Anything, "42", model.PlatformTwitter).Return(cred, nil)
	connector.On("CanRefreshToken", cred).Return(false)

	authUsecase := newAuthUsecase(connector, creds, new(MockStateRegistry), new(MockEventPublisher))
	_, err := authUsecase.RefreshIfPossible(context.Background(), "42")
	require.ErrorIs(t, err, autherror.ErrRefreshUnsupported)
	creds.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestRefreshIfPossible(t *testing.T) {
	connector := &MockConnector{platform: model.PlatformTwitter}
	creds := new(MockCredentialRepository)
	events := new(MockEventPublisher)

	cred := &model.Credential{UserID: "42", Platform: model.PlatformTwitter, AccessToken: "at-old", RefreshToken: "rt-old"}
	creds.On("Get", mock.Anything, "42", model.PlatformTwitter).Return(cred, nil)
	connector.On("CanRefreshToken", cred).Return(true)
	connector.On("Refresh", mock.Anything, cred).Return(&model.TokenGrant{
		AccessToken:  "at-new",
		RefreshToken: "rt-new",
		ExpiresIn:    7200,
	}, nil)
	var stored *model.Credential
	creds.On("Upsert", mock.Anything, mock.AnythingOfType("*model.Credential")).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*model.Credential) }).
		Return(nil)
	events.On("Publish", mock.Anything, "42", model.PlatformTwitter, model.EventRefreshed).Return(nil)

	authUsecase := newAuthUsecase(connector, creds, new(MockStateRegistry), events)
	refreshed, err := authUsecase.RefreshIfPossible(context.Background(), "42")
	require.NoError(t, err)
	require.Equal(t, "at-new", refreshed.AccessToken)
	require.Equal(t, "rt-new", refreshed.RefreshToken)
	require.NotNil(t, stored)
	events.AssertExpectations(t)
}

func TestIsConnected_PurgesIrrecoverablyExpired(t *testing.T) {
	connector := &MockConnector{platform: model.PlatformTwitter}
	creds := new(MockCredentialRepository)

	past := time.Now().Add(-time.Hour)
	cred := &model.Credential{UserID: "42", Platform: model.PlatformTwitter, AccessToken: "at", ExpiresAt: &past}
	creds.On("Get", mock.Anything, "42", model.PlatformTwitter).Return(cred, nil)
	connector.On("CanRefreshToken", cred).Return(false)
	creds.On("Delete", mock.Anything, "42", model.PlatformTwitter).Return(nil)

	authUsecase := newAuthUsecase(connector, creds, new(MockStateRegistry), new(MockEventPublisher))
	connected, err := authUsecase.IsConnected(context.Background(), "42")
	require.NoError(t, err)
	require.False(t, connected)
	creds.AssertCalled(t, "Delete", mock.Anything, "42", model.PlatformTwitter)
}

func TestIsConnected(t *testing.T) {
	connector := &MockConnector{platform: model.PlatformThreads}
	creds := new(MockCredentialRepository)

	future := time.Now().Add(time.Hour)
	cred := &model.Credential{UserID: "42", Platform: model.PlatformThreads, AccessToken: "at", ExpiresAt: &future}
	creds.On("Get", mock.Anything, "42", model.PlatformThreads).Return(cred, nil)

	authUsecase := newAuthUsecase(connector, creds, new(MockStateRegistry), new(MockEventPublisher))
	connected, err := authUsecase.IsConnected(context.Background(), "42")
	require.NoError(t, err)
	require.True(t, connected)
}

func TestDisconnect_Idempotent(t *testing.T) {
	connector := &MockConnector{platform: model.PlatformThreads}
	creds := new(MockCredentialRepository)
	events := new(MockEventPublisher)

	creds.On("Delete", mock.Anything, "42", model.PlatformThreads).Return(nil)
	events.On("Publish", mock.Anything, "42", model.PlatformThreads, model.EventDisconnected).Return(nil)

	authUsecase := newAuthUsecase(connector, creds, new(MockStateRegistry), events)
	require.NoError(t, authUsecase.Disconnect(context.Background(), "42"))
	require.NoError(t, authUsecase.Disconnect(context.Background(), "42"))
	creds.AssertNumberOfCalls(t, "Delete", 2)
}
