package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"social-gateway/domain/autherror"
	"social-gateway/domain/model"
	"social-gateway/infrastructure/configuration"

	"golang.org/x/oauth2"
)

const (
	defaultAuthURL  = "https://twitter.com/i/oauth2/authorize"
	defaultTokenURL = "https://api.twitter.com/2/oauth2/token"
	defaultAPIBase  = "https://api.twitter.com"

	// Access tokens last two hours; the offline.access scope adds a rotating
	// refresh token.
	accessTokenLifetime = int64(7200)
)

// Client implements the platform connector for Twitter/X over OAuth 2.0 with
// PKCE (S256), built on golang.org/x/oauth2.
type Client struct {
	oauth2Config *oauth2.Config
	apiBase      string
	httpClient   *http.Client
}

func NewClient(conf configuration.OAuthClient) *Client {
	return &Client{
		oauth2Config: &oauth2.Config{
			ClientID:     conf.ClientID,
			ClientSecret: conf.ClientSecret,
			RedirectURL:  conf.RedirectURI,
			Scopes:       conf.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   defaultAuthURL,
				TokenURL:  defaultTokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		apiBase:    defaultAPIBase,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) Platform() string { return model.PlatformTwitter }

// GenerateCodeVerifier returns a fresh PKCE verifier for the attempt; the
// auth usecase stores it alongside the state token.
func (c *Client) GenerateCodeVerifier() string {
	return oauth2.GenerateVerifier()
}

func (c *Client) BuildAuthorizationURL(state *model.AuthState) (string, error) {
	if c.oauth2Config.ClientID == "" || c.oauth2Config.RedirectURL == "" {
		return "", fmt.Errorf("twitter oauth not configured")
	}
	if state.CodeVerifier == "" {
		return "", fmt.Errorf("twitter authorization requires a PKCE verifier")
	}
	return c.oauth2Config.AuthCodeURL(state.State, oauth2.S256ChallengeOption(state.CodeVerifier)), nil
}

func (c *Client) ExchangeCode(ctx context.Context, code string, state *model.AuthState) (*model.TokenGrant, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	tok, err := c.oauth2Config.Exchange(ctx, code, oauth2.VerifierOption(state.CodeVerifier))
	if err != nil {
		return nil, c.mapTokenError(err, "exchange")
	}
	if tok.AccessToken == "" {
		return nil, &autherror.MalformedResponseError{Platform: c.Platform(), Field: "access_token"}
	}
	return c.grantFromToken(tok), nil
}

func (c *Client) CalculateExpirationTime(cred *model.Credential) *int64 {
	if cred.ExpiresAt != nil {
		sec := int64(cred.ExpiresAt.Sub(cred.IssuedAt) / time.Second)
		return &sec
	}
	sec := accessTokenLifetime
	return &sec
}

func (c *Client) CanRefreshToken(cred *model.Credential) bool {
	return cred.HasRefreshToken()
}

func (c *Client) Refresh(ctx context.Context, cred *model.Credential) (*model.TokenGrant, error) {
	if !c.CanRefreshToken(cred) {
		return nil, autherror.ErrRefreshUnsupported
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	// An expired placeholder forces TokenSource to hit the refresh grant.
	seed := &oauth2.Token{RefreshToken: cred.RefreshToken, Expiry: time.Now().Add(-time.Minute)}
	tok, err := c.oauth2Config.TokenSource(ctx, seed).Token()
	if err != nil {
		return nil, c.mapTokenError(err, "refresh")
	}
	if tok.AccessToken == "" {
		return nil, &autherror.MalformedResponseError{Platform: c.Platform(), Field: "access_token"}
	}
	grant := c.grantFromToken(tok)
	if grant.RefreshToken == "" {
		// Twitter rotates refresh tokens but keep the old one if absent.
		grant.RefreshToken = cred.RefreshToken
	}
	return grant, nil
}

type userResponse struct {
	Data struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Username string `json:"username"`
	} `json:"data"`
}

func (c *Client) FetchAccount(ctx context.Context, cred *model.Credential) (*model.AccountInfo, error) {
	body, err := c.doAPI(ctx, cred, http.MethodGet, "/2/users/me", nil, "fetch_account")
	if err != nil {
		return nil, err
	}
	var user userResponse
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, &autherror.UpstreamError{Platform: c.Platform(), Operation: "fetch_account", Err: err}
	}
	if user.Data.ID == "" {
		return nil, &autherror.MalformedResponseError{Platform: c.Platform(), Field: "data.id"}
	}
	return &model.AccountInfo{
		ID:       user.Data.ID,
		Username: user.Data.Username,
		Name:     user.Data.Name,
	}, nil
}

func (c *Client) Publish(ctx context.Context, cred *model.Credential, content string) (*model.PostResult, error) {
	payload, err := json.Marshal(map[string]string{"text": content})
	if err != nil {
		return nil, err
	}
	body, err := c.doAPI(ctx, cred, http.MethodPost, "/2/tweets", payload, "publish")
	if err != nil {
		return nil, err
	}
	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &created); err != nil || created.Data.ID == "" {
		return nil, &autherror.MalformedResponseError{Platform: c.Platform(), Field: "data.id"}
	}
	return &model.PostResult{
		PostID:    created.Data.ID,
		Permalink: fmt.Sprintf("https://twitter.com/i/status/%s", created.Data.ID),
		PostedAt:  time.Now().UTC(),
	}, nil
}

func (c *Client) grantFromToken(tok *oauth2.Token) *model.TokenGrant {
	expiresIn := accessTokenLifetime
	if !tok.Expiry.IsZero() {
		expiresIn = int64(time.Until(tok.Expiry) / time.Second)
	}
	return &model.TokenGrant{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		ExpiresIn:    expiresIn,
		Scopes:       c.oauth2Config.Scopes,
	}
}

func (c *Client) mapTokenError(err error, op string) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return &autherror.UpstreamAuthError{
			Platform:   c.Platform(),
			Operation:  op,
			StatusCode: retrieveErr.Response.StatusCode,
			Body:       string(retrieveErr.Body),
		}
	}
	return &autherror.UpstreamError{Platform: c.Platform(), Operation: op, Err: err}
}

func (c *Client) doAPI(ctx context.Context, cred *model.Credential, method, path string, payload []byte, op string) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.apiBase+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &autherror.UpstreamError{Platform: c.Platform(), Operation: op, Err: err}
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, autherror.ErrTokenExpired
	default:
		return nil, &autherror.UpstreamError{
			Platform:  c.Platform(),
			Operation: op,
			Err:       fmt.Errorf("status %d: %s", resp.StatusCode, string(body)),
		}
	}
}
