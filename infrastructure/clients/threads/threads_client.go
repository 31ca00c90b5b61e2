package threads

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"social-gateway/domain/autherror"
	"social-gateway/domain/model"
	"social-gateway/infrastructure/configuration"

	"github.com/google/go-querystring/query"
)

const (
	defaultAuthBaseURL  = "https://threads.net"
	defaultGraphBaseURL = "https://graph.threads.net"

	// Long-lived tokens must be at least a day old before Meta accepts a
	// refresh, and cannot be refreshed once expired.
	refreshMinAge = 24 * time.Hour

	// Fallback lifetime when the exchange response omits expires_in.
	longLivedTokenLifetime = int64(60 * 24 * 3600)
)

// Client implements the platform connector for Threads. Tokens follow the
// Meta long-lived model: code -> short-lived token -> long-lived token, and
// the long-lived access token refreshes itself (no separate refresh token).
type Client struct {
	conf       configuration.OAuthClient
	authBase   string
	graphBase  string
	httpClient *http.Client
}

func NewClient(conf configuration.OAuthClient) *Client {
	return &Client{
		conf:       conf,
		authBase:   defaultAuthBaseURL,
		graphBase:  defaultGraphBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) Platform() string { return model.PlatformThreads }

type authorizeParams struct {
	ClientID     string `url:"client_id"`
	RedirectURI  string `url:"redirect_uri"`
	Scope        string `url:"scope"`
	ResponseType string `url:"response_type"`
	State        string `url:"state"`
}

func (c *Client) BuildAuthorizationURL(state *model.AuthState) (string, error) {
	if c.conf.ClientID == "" || c.conf.RedirectURI == "" {
		return "", fmt.Errorf("threads oauth not configured")
	}
	v, err := query.Values(authorizeParams{
		ClientID:     c.conf.ClientID,
		RedirectURI:  c.conf.RedirectURI,
		Scope:        strings.Join(c.conf.Scopes, ","),
		ResponseType: "code",
		State:        state.State,
	})
	if err != nil {
		return "", err
	}
	return c.authBase + "/oauth/authorize?" + v.Encode(), nil
}

type tokenResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresIn   int64       `json:"expires_in"`
	UserID      json.Number `json:"user_id"`
}

// ExchangeCode performs the two-step Meta exchange: the authorization code
// buys a short-lived token, which is immediately traded for a long-lived one.
func (c *Client) ExchangeCode(ctx context.Context, code string, state *model.AuthState) (*model.TokenGrant, error) {
	form := url.Values{}
	form.Set("client_id", c.conf.ClientID)
	form.Set("client_secret", c.conf.ClientSecret)
	form.Set("grant_type", "authorization_code")
	form.Set("redirect_uri", c.conf.RedirectURI)
	form.Set("code", code)

	shortTok, err := c.postToken(ctx, c.graphBase+"/oauth/access_token", form, "exchange")
	if err != nil {
		return nil, err
	}

	longParams := struct {
		GrantType    string `url:"grant_type"`
		ClientSecret string `url:"client_secret"`
		AccessToken  string `url:"access_token"`
	}{"th_exchange_token", c.conf.ClientSecret, shortTok.AccessToken}
	longTok, err := c.getToken(ctx, c.graphBase+"/access_token", longParams, "exchange")
	if err != nil {
		return nil, err
	}

	expiresIn := longTok.ExpiresIn
	if expiresIn == 0 {
		expiresIn = longLivedTokenLifetime
	}
	return &model.TokenGrant{
		AccessToken: longTok.AccessToken,
		TokenType:   longTok.TokenType,
		ExpiresIn:   expiresIn,
		Scopes:      c.conf.Scopes,
	}, nil
}

// CalculateExpirationTime returns the token lifetime in seconds from issue.
func (c *Client) CalculateExpirationTime(cred *model.Credential) *int64 {
	if cred.ExpiresAt != nil {
		sec := int64(cred.ExpiresAt.Sub(cred.IssuedAt) / time.Second)
		return &sec
	}
	sec := longLivedTokenLifetime
	return &sec
}

// CanRefreshToken: the long-lived access token is its own refresh credential,
// but only once it is a day old and before it expires.
func (c *Client) CanRefreshToken(cred *model.Credential) bool {
	if cred.AccessToken == "" {
		return false
	}
	now := time.Now()
	if now.Sub(cred.IssuedAt) < refreshMinAge {
		return false
	}
	return !cred.IsExpired(now)
}

func (c *Client) Refresh(ctx context.Context, cred *model.Credential) (*model.TokenGrant, error) {
	if !c.CanRefreshToken(cred) {
		return nil, autherror.ErrRefreshUnsupported
	}
	params := struct {
		GrantType   string `url:"grant_type"`
		AccessToken string `url:"access_token"`
	}{"th_refresh_token", cred.AccessToken}
	tok, err := c.getToken(ctx, c.graphBase+"/refresh_access_token", params, "refresh")
	if err != nil {
		return nil, err
	}
	expiresIn := tok.ExpiresIn
	if expiresIn == 0 {
		expiresIn = longLivedTokenLifetime
	}
	return &model.TokenGrant{
		AccessToken: tok.AccessToken,
		TokenType:   tok.TokenType,
		ExpiresIn:   expiresIn,
		Scopes:      cred.Scopes,
	}, nil
}

type accountResponse struct {
	ID                       string `json:"id"`
	Username                 string `json:"username"`
	Name                     string `json:"name"`
	ThreadsProfilePictureURL string `json:"threads_profile_picture_url"`
}

func (c *Client) FetchAccount(ctx context.Context, cred *model.Credential) (*model.AccountInfo, error) {
	u := fmt.Sprintf("%s/v1.0/me?fields=id,username,name,threads_profile_picture_url&access_token=%s",
		c.graphBase, url.QueryEscape(cred.AccessToken))
	body, err := c.doOperation(ctx, http.MethodGet, u, "fetch_account")
	if err != nil {
		return nil, err
	}
	var acct accountResponse
	if err := json.Unmarshal(body, &acct); err != nil {
		return nil, &autherror.UpstreamError{Platform: c.Platform(), Operation: "fetch_account", Err: err}
	}
	if acct.ID == "" {
		return nil, &autherror.MalformedResponseError{Platform: c.Platform(), Field: "id"}
	}
	return &model.AccountInfo{
		ID:        acct.ID,
		Username:  acct.Username,
		Name:      acct.Name,
		AvatarURL: acct.ThreadsProfilePictureURL,
	}, nil
}

// Publish creates a text media container and then publishes it.
func (c *Client) Publish(ctx context.Context, cred *model.Credential, content string) (*model.PostResult, error) {
	form := url.Values{}
	form.Set("media_type", "TEXT")
	form.Set("text", content)
	form.Set("access_token", cred.AccessToken)
	body, err := c.doOperation(ctx, http.MethodPost, c.graphBase+"/v1.0/me/threads?"+form.Encode(), "publish")
	if err != nil {
		return nil, err
	}
	var container struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &container); err != nil || container.ID == "" {
		return nil, &autherror.MalformedResponseError{Platform: c.Platform(), Field: "id"}
	}

	pub := url.Values{}
	pub.Set("creation_id", container.ID)
	pub.Set("access_token", cred.AccessToken)
	body, err = c.doOperation(ctx, http.MethodPost, c.graphBase+"/v1.0/me/threads_publish?"+pub.Encode(), "publish")
	if err != nil {
		return nil, err
	}
	var posted struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &posted); err != nil || posted.ID == "" {
		return nil, &autherror.MalformedResponseError{Platform: c.Platform(), Field: "id"}
	}
	return &model.PostResult{PostID: posted.ID, PostedAt: time.Now().UTC()}, nil
}

func (c *Client) postToken(ctx context.Context, endpoint string, form url.Values, op string) (*tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.sendTokenRequest(req, op)
}

func (c *Client) getToken(ctx context.Context, endpoint string, params interface{}, op string) (*tokenResponse, error) {
	v, err := query.Values(params)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+v.Encode(), nil)
	if err != nil {
		return nil, err
	}
	return c.sendTokenRequest(req, op)
}

func (c *Client) sendTokenRequest(req *http.Request, op string) (*tokenResponse, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &autherror.UpstreamError{Platform: c.Platform(), Operation: op, Err: err}
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &autherror.UpstreamAuthError{
			Platform:   c.Platform(),
			Operation:  op,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}
	tok := &tokenResponse{}
	if err := json.Unmarshal(body, tok); err != nil {
		return nil, &autherror.MalformedResponseError{Platform: c.Platform(), Field: "access_token"}
	}
	if tok.AccessToken == "" {
		return nil, &autherror.MalformedResponseError{Platform: c.Platform(), Field: "access_token"}
	}
	return tok, nil
}

// doOperation runs a platform operation call and maps token rejections to
// ErrTokenExpired so callers can trigger a refresh-and-retry.
func (c *Client) doOperation(ctx context.Context, method, u, op string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &autherror.UpstreamError{Platform: c.Platform(), Operation: op, Err: err}
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusUnauthorized || isOAuthError(body):
		return nil, autherror.ErrTokenExpired
	default:
		return nil, &autherror.UpstreamError{
			Platform:  c.Platform(),
			Operation: op,
			Err:       fmt.Errorf("status %d: %s", resp.StatusCode, string(body)),
		}
	}
}

// isOAuthError detects Meta's OAuthException payloads, which arrive with
// non-401 statuses when a token has been invalidated.
func isOAuthError(body []byte) bool {
	var e struct {
		Error struct {
			Type string `json:"type"`
			Code int    `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err != nil {
		return false
	}
	return e.Error.Type == "OAuthException" || e.Error.Code == 190
}
