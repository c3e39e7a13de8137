package gcal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// Scopes requested for calendar and follow-up task access.
var Scopes = []string{
	"https://www.googleapis.com/auth/calendar",
	"https://www.googleapis.com/auth/tasks",
}

// Credentials yields an OAuth token source. Two implementations exist:
// a cached user token file and a service account key.
type Credentials interface {
	TokenSource(ctx context.Context) (oauth2.TokenSource, error)
}

// TokenFile is a cached user OAuth token on disk, the format written by
// Google's authorized-user flows.
type TokenFile struct {
	Path string
}

type tokenFileJSON struct {
	// "token" is the authorized-user field name; "access_token" the
	// raw OAuth one. Accept either.
	Token        string    `json:"token"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ClientID     string    `json:"client_id"`
	ClientSecret string    `json:"client_secret"`
	TokenURI     string    `json:"token_uri"`
	Expiry       time.Time `json:"expiry"`
}

// TokenSource loads the token file. When a refresh token and client
// credentials are present the source refreshes itself; otherwise the
// access token is used as-is until it expires.
func (f TokenFile) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read token file %s: %w", f.Path, err)
	}
	var raw tokenFileJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse token file %s: %w", f.Path, err)
	}

	access := raw.AccessToken
	if access == "" {
		access = raw.Token
	}
	tok := &oauth2.Token{
		AccessToken:  access,
		RefreshToken: raw.RefreshToken,
		Expiry:       raw.Expiry,
		TokenType:    "Bearer",
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, fmt.Errorf("token file %s holds no usable token", f.Path)
	}

	if tok.RefreshToken != "" && raw.ClientID != "" {
		tokenURL := raw.TokenURI
		if tokenURL == "" {
			tokenURL = "https://oauth2.googleapis.com/token"
		}
		cfg := &oauth2.Config{
			ClientID:     raw.ClientID,
			ClientSecret: raw.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: tokenURL},
			Scopes:       Scopes,
		}
		return cfg.TokenSource(ctx, tok), nil
	}
	return oauth2.StaticTokenSource(tok), nil
}

// ServiceAccountKey is a Google service account key file. Tokens are
// minted by signing a JWT assertion with the account's private key and
// exchanging it at the token endpoint.
type ServiceAccountKey struct {
	Path string
}

type serviceAccountJSON struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
	TokenURI    string `json:"token_uri"`
}

// TokenSource builds a self-refreshing source for the service account.
func (k ServiceAccountKey) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	data, err := os.ReadFile(k.Path)
	if err != nil {
		return nil, fmt.Errorf("read service account key %s: %w", k.Path, err)
	}
	var key serviceAccountJSON
	if err := json.Unmarshal(data, &key); err != nil {
		return nil, fmt.Errorf("parse service account key %s: %w", k.Path, err)
	}
	if key.ClientEmail == "" || key.PrivateKey == "" {
		return nil, fmt.Errorf("service account key %s is missing client_email or private_key", k.Path)
	}
	if key.TokenURI == "" {
		key.TokenURI = "https://oauth2.googleapis.com/token"
	}

	src := &serviceAccountSource{ctx: ctx, key: key}
	return oauth2.ReuseTokenSource(nil, src), nil
}

type serviceAccountSource struct {
	ctx context.Context
	key serviceAccountJSON
}

// Token signs a fresh RS256 assertion and exchanges it for an access
// token.
func (s *serviceAccountSource) Token() (*oauth2.Token, error) {
	rsaKey, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(s.key.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("parse service account private key: %w", err)
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss":   s.key.ClientEmail,
		"scope": strings.Join(Scopes, " "),
		"aud":   s.key.TokenURI,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}
	assertion, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(rsaKey)
	if err != nil {
		return nil, fmt.Errorf("sign assertion: %w", err)
	}

	form := url.Values{
		"grant_type": {"urn:ietf:params:oauth:grant-type:jwt-bearer"},
		"assertion":  {assertion},
	}
	req, err := http.NewRequestWithContext(s.ctx, http.MethodPost, s.key.TokenURI, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("exchange assertion: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if body.AccessToken == "" {
		return nil, fmt.Errorf("token endpoint returned no access token")
	}

	return &oauth2.Token{
		AccessToken: body.AccessToken,
		TokenType:   body.TokenType,
		Expiry:      now.Add(time.Duration(body.ExpiresIn) * time.Second),
	}, nil
}
