package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/moviememo/internal/models"
	"github.com/desertthunder/moviememo/internal/shared"
)

const (
	DefaultIdentityURL = "https://identitytoolkit.googleapis.com"
	DefaultTokenURL    = "https://securetoken.googleapis.com"

	restoreTimeout = 15 * time.Second
)

// FirebaseOpts configures a [FirebaseProvider].
type FirebaseOpts struct {
	APIKey      string
	IdentityURL string
	TokenURL    string
	HTTPClient  *http.Client
	Persistence Persistence
	Authorizer  Authorizer // nil disables interactive sign-in
	Logger      *log.Logger
	Now         func() time.Time
}

// FirebaseProvider implements [Provider] against the Identity Toolkit REST API.
type FirebaseProvider struct {
	apiKey      string
	identityURL string
	tokenURL    string
	httpClient  *http.Client
	persistence Persistence
	authorizer  Authorizer
	logger      *log.Logger
	now         func() time.Time

	notifier *Notifier

	mu    sync.Mutex
	creds *Credentials

	restoreOnce sync.Once
	restoreErr  error
}

var _ Provider = (*FirebaseProvider)(nil)

func NewFirebaseProvider(opts FirebaseOpts) *FirebaseProvider {
	if opts.IdentityURL == "" {
		opts.IdentityURL = DefaultIdentityURL
	}
	if opts.TokenURL == "" {
		opts.TokenURL = DefaultTokenURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if opts.Persistence == nil {
		opts.Persistence = &MemoryPersistence{}
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(io.Discard)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &FirebaseProvider{
		apiKey:      opts.APIKey,
		identityURL: strings.TrimRight(opts.IdentityURL, "/"),
		tokenURL:    strings.TrimRight(opts.TokenURL, "/"),
		httpClient:  opts.HTTPClient,
		persistence: opts.Persistence,
		authorizer:  opts.Authorizer,
		logger:      opts.Logger,
		now:         opts.Now,
		notifier:    NewNotifier(),
	}
}

// OnSessionChange subscribes fn to session changes. The first call restores persisted credentials;
// a failure to read them is returned and no subscription is made.
func (p *FirebaseProvider) OnSessionChange(fn func(*models.Identity)) (Unsubscribe, error) {
	p.restoreOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), restoreTimeout)
		defer cancel()
		p.restoreErr = p.restore(ctx)
	})
	if p.restoreErr != nil {
		return nil, p.restoreErr
	}
	return p.notifier.Subscribe(fn), nil
}

// Current returns the signed-in identity, or nil.
func (p *FirebaseProvider) Current() *models.Identity {
	return p.notifier.Current()
}

func (p *FirebaseProvider) restore(ctx context.Context) error {
	creds, err := p.persistence.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load saved session: %w", err)
	}
	if creds == nil {
		return nil
	}

	if creds.Expired(p.now()) {
		refreshed, err := p.refresh(ctx, creds)
		var providerErr *Error
		switch {
		case errors.As(err, &providerErr):
			p.logger.Info("saved session is no longer valid", "code", providerErr.Code)
			if err := p.persistence.Clear(ctx); err != nil {
				p.logger.Warn("failed to clear saved session", "error", err)
			}
			return nil
		case err != nil:
			// Offline: keep the cached principal; the token is refreshed on next use.
			p.logger.Warn("could not refresh saved session", "error", err)
		default:
			creds = refreshed
		}
	}

	if !creds.Expired(p.now()) {
		if fresh, err := p.lookup(ctx, creds.IDToken); err == nil {
			creds.Identity = mergeIdentity(creds.Identity, *fresh)
		} else {
			p.logger.Debug("account lookup failed during restore", "error", err)
		}
	}

	p.setSession(ctx, creds)
	return nil
}

func (p *FirebaseProvider) SignInWithCredentials(ctx context.Context, email, password string) (*models.Identity, error) {
	var resp tokenResponse
	payload := map[string]any{"email": email, "password": password, "returnSecureToken": true}
	if err := p.post(ctx, "accounts:signInWithPassword", payload, &resp); err != nil {
		return nil, err
	}

	creds := resp.credentials(ProviderPassword, p.now())
	if fresh, err := p.lookup(ctx, creds.IDToken); err == nil {
		creds.Identity = mergeIdentity(creds.Identity, *fresh)
	}
	return p.setSession(ctx, creds), nil
}

func (p *FirebaseProvider) SignUpWithCredentials(ctx context.Context, email, password string) (*models.Identity, error) {
	var resp tokenResponse
	payload := map[string]any{"email": email, "password": password, "returnSecureToken": true}
	if err := p.post(ctx, "accounts:signUp", payload, &resp); err != nil {
		return nil, err
	}
	return p.setSession(ctx, resp.credentials(ProviderPassword, p.now())), nil
}

// SignInInteractive runs the configured [Authorizer] and exchanges its token with signInWithIdp.
func (p *FirebaseProvider) SignInInteractive(ctx context.Context) (*models.Identity, error) {
	if p.authorizer == nil {
		return nil, ErrInteractiveUnavailable
	}

	token, err := p.authorizer.Authorize(ctx)
	if err != nil {
		return nil, err
	}

	postBody := url.Values{"providerId": {ProviderGoogle}}
	if idToken, ok := token.Extra("id_token").(string); ok && idToken != "" {
		postBody.Set("id_token", idToken)
	}
	if token.AccessToken != "" {
		postBody.Set("access_token", token.AccessToken)
	}

	var resp tokenResponse
	payload := map[string]any{
		"postBody":            postBody.Encode(),
		"requestUri":          "http://localhost",
		"returnIdpCredential": true,
		"returnSecureToken":   true,
	}
	if err := p.post(ctx, "accounts:signInWithIdp", payload, &resp); err != nil {
		return nil, err
	}
	return p.setSession(ctx, resp.credentials(ProviderGoogle, p.now())), nil
}

// SignOut forgets the session locally. Tokens are not revoked.
func (p *FirebaseProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	p.creds = nil
	p.mu.Unlock()

	err := p.persistence.Clear(ctx)
	p.notifier.Publish(nil)
	if err != nil {
		return fmt.Errorf("failed to clear saved session: %w", err)
	}
	return nil
}

// SendVerificationEmail sends the verification email for the signed-in principal id.
func (p *FirebaseProvider) SendVerificationEmail(ctx context.Context, id *models.Identity) error {
	if id == nil {
		return ErrNoSession
	}
	token, err := p.idToken(ctx, id.UID)
	if err != nil {
		return err
	}
	payload := map[string]any{"requestType": "VERIFY_EMAIL", "idToken": token}
	return p.post(ctx, "accounts:sendOobCode", payload, nil)
}

func (p *FirebaseProvider) SendPasswordReset(ctx context.Context, email string) error {
	payload := map[string]any{"requestType": "PASSWORD_RESET", "email": email}
	return p.post(ctx, "accounts:sendOobCode", payload, nil)
}

// idToken returns a valid ID token for uid, refreshing it when expired.
func (p *FirebaseProvider) idToken(ctx context.Context, uid string) (string, error) {
	p.mu.Lock()
	creds := p.creds
	p.mu.Unlock()

	if creds == nil || creds.Identity.UID != uid {
		return "", ErrNoSession
	}
	if !creds.Expired(p.now()) {
		return creds.IDToken, nil
	}

	refreshed, err := p.refresh(ctx, creds)
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	if p.creds != nil && p.creds.Identity.UID == uid {
		p.creds = refreshed
	}
	p.mu.Unlock()
	if err := p.persistence.Save(ctx, refreshed); err != nil {
		p.logger.Warn("failed to save refreshed session", "error", err)
	}
	return refreshed.IDToken, nil
}

// setSession records creds, persists them and publishes the identity.
func (p *FirebaseProvider) setSession(ctx context.Context, creds *Credentials) *models.Identity {
	p.mu.Lock()
	p.creds = creds
	p.mu.Unlock()

	if err := p.persistence.Save(ctx, creds); err != nil {
		p.logger.Warn("failed to save session", "error", err)
	}

	id := creds.Identity
	p.notifier.Publish(&id)
	return &id
}

func (p *FirebaseProvider) refresh(ctx context.Context, creds *Credentials) (*Credentials, error) {
	form := url.Values{"grant_type": {"refresh_token"}, "refresh_token": {creds.RefreshToken}}
	endpoint := p.tokenURL + "/v1/token?key=" + url.QueryEscape(p.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp struct {
		IDToken      string `json:"id_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    string `json:"expires_in"`
		UserID       string `json:"user_id"`
	}
	if err := p.do(req, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrRefreshFailed, err)
	}

	refreshed := *creds
	refreshed.IDToken = resp.IDToken
	if resp.RefreshToken != "" {
		refreshed.RefreshToken = resp.RefreshToken
	}
	refreshed.ExpiresAt = expiry(p.now(), resp.ExpiresIn)
	return &refreshed, nil
}

func (p *FirebaseProvider) lookup(ctx context.Context, idToken string) (*models.Identity, error) {
	var resp struct {
		Users []accountInfo `json:"users"`
	}
	if err := p.post(ctx, "accounts:lookup", map[string]any{"idToken": idToken}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Users) == 0 {
		return nil, NewError("USER_NOT_FOUND")
	}
	id := resp.Users[0].identity()
	return &id, nil
}

func (p *FirebaseProvider) post(ctx context.Context, method string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	endpoint := p.identityURL + "/v1/" + method + "?key=" + url.QueryEscape(p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return p.do(req, out)
}

// do sends req and decodes a 2xx body into out. Error bodies become [*Error].
func (p *FirebaseProvider) do(req *http.Request, out any) error {
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	p.logger.Debug("identity request", "path", req.URL.Path, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// decodeError reads both the Identity Toolkit {"error":{"message":...}} shape and the Secure
// Token {"error":"invalid_grant","error_description":...} shape.
func decodeError(status int, data []byte) error {
	var body struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil && len(body.Error) > 0 {
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body.Error, &nested) == nil && nested.Message != "" {
			return &Error{Code: errorCode(nested.Message), Message: Humanize(nested.Message)}
		}
		var code string
		if json.Unmarshal(body.Error, &code) == nil && code != "" {
			return NewError(strings.ToUpper(code))
		}
	}
	return fmt.Errorf("%w: status %d", shared.ErrAPIRequest, status)
}

type tokenResponse struct {
	accountInfo
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

func (r tokenResponse) credentials(provider string, now time.Time) *Credentials {
	return &Credentials{
		Identity:     r.identity(),
		Provider:     provider,
		IDToken:      r.IDToken,
		RefreshToken: r.RefreshToken,
		ExpiresAt:    expiry(now, r.ExpiresIn),
	}
}

type accountInfo struct {
	LocalID       string `json:"localId"`
	Email         string `json:"email"`
	DisplayName   string `json:"displayName"`
	PhotoURL      string `json:"photoUrl"`
	EmailVerified bool   `json:"emailVerified"`
}

func (a accountInfo) identity() models.Identity {
	return models.Identity{
		UID:           a.LocalID,
		Email:         a.Email,
		DisplayName:   a.DisplayName,
		PhotoURL:      a.PhotoURL,
		EmailVerified: a.EmailVerified,
	}
}

// mergeIdentity overlays the non-empty fields of fresh onto base.
func mergeIdentity(base, fresh models.Identity) models.Identity {
	if fresh.UID != "" && fresh.UID != base.UID {
		return base
	}
	if fresh.Email != "" {
		base.Email = fresh.Email
	}
	if fresh.DisplayName != "" {
		base.DisplayName = fresh.DisplayName
	}
	if fresh.PhotoURL != "" {
		base.PhotoURL = fresh.PhotoURL
	}
	base.EmailVerified = fresh.EmailVerified
	return base
}

func expiry(now time.Time, expiresIn string) time.Time {
	secs, err := strconv.Atoi(expiresIn)
	if err != nil || secs <= 0 {
		secs = 3600
	}
	return now.Add(time.Duration(secs) * time.Second)
}
