package services

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mwhitfield/aegis/internal/models"
)

// ProviderVerifier turns a provider assertion (access token or identity
// token) into a verified identity. Implementations must not trust any
// client-supplied identity fields without provider confirmation.
type ProviderVerifier interface {
	Verify(ctx context.Context, assertion string) (*models.OAuthIdentity, error)
}

// NewProviderVerifiers builds the verifier set for the supported providers.
func NewProviderVerifiers() map[string]ProviderVerifier {
	client := &http.Client{Timeout: 5 * time.Second}
	return map[string]ProviderVerifier{
		models.ProviderGoogle:   &googleVerifier{client: client},
		models.ProviderFacebook: &facebookVerifier{client: client},
		models.ProviderGitHub:   &githubVerifier{client: client},
		models.ProviderApple:    newAppleVerifier(client),
	}
}

type googleVerifier struct {
	client *http.Client
}

func (v *googleVerifier) Verify(ctx context.Context, assertion string) (*models.OAuthIdentity, error) {
	var out struct {
		Sub   string `json:"sub"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	endpoint := "https://www.googleapis.com/oauth2/v3/tokeninfo?id_token=" + url.QueryEscape(assertion)
	if err := fetchJSON(ctx, v.client, endpoint, "", &out); err != nil {
		return nil, err
	}
	if out.Sub == "" {
		return nil, models.ErrTokenInvalid
	}

	return &models.OAuthIdentity{
		Provider:   models.ProviderGoogle,
		ExternalID: out.Sub,
		Email:      out.Email,
		Name:       out.Name,
	}, nil
}

type facebookVerifier struct {
	client *http.Client
}

func (v *facebookVerifier) Verify(ctx context.Context, assertion string) (*models.OAuthIdentity, error) {
	var out struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	endpoint := "https://graph.facebook.com/me?fields=id,name,email&access_token=" + url.QueryEscape(assertion)
	if err := fetchJSON(ctx, v.client, endpoint, "", &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, models.ErrTokenInvalid
	}

	return &models.OAuthIdentity{
		Provider:   models.ProviderFacebook,
		ExternalID: out.ID,
		Email:      out.Email,
		Name:       out.Name,
	}, nil
}

type githubVerifier struct {
	client *http.Client
}

func (v *githubVerifier) Verify(ctx context.Context, assertion string) (*models.OAuthIdentity, error) {
	var out struct {
		ID    int64  `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
		Login string `json:"login"`
	}
	if err := fetchJSON(ctx, v.client, "https://api.github.com/user", assertion, &out); err != nil {
		return nil, err
	}
	if out.ID == 0 {
		return nil, models.ErrTokenInvalid
	}

	name := out.Name
	if name == "" {
		name = out.Login
	}

	return &models.OAuthIdentity{
		Provider:   models.ProviderGitHub,
		ExternalID: fmt.Sprintf("%d", out.ID),
		Email:      out.Email,
		Name:       name,
	}, nil
}

// appleVerifier validates Apple identity tokens against Apple's published
// signing keys. Keys are cached and refetched when an unknown kid shows up.
type appleVerifier struct {
	client *http.Client

	mu   sync.Mutex
	keys map[string]*rsa.PublicKey
}

func newAppleVerifier(client *http.Client) *appleVerifier {
	return &appleVerifier{
		client: client,
		keys:   map[string]*rsa.PublicKey{},
	}
}

func (v *appleVerifier) Verify(ctx context.Context, assertion string) (*models.OAuthIdentity, error) {
	claims := &jwt.RegisteredClaims{}

	token, err := jwt.ParseWithClaims(assertion, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		kid, _ := token.Header["kid"].(string)
		return v.keyForKid(ctx, kid)
	}, jwt.WithIssuer("https://appleid.apple.com"))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, models.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", models.ErrTokenInvalid, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, models.ErrTokenInvalid
	}

	return &models.OAuthIdentity{
		Provider:   models.ProviderApple,
		ExternalID: claims.Subject,
		Email:      unverifiedEmailClaim(assertion),
	}, nil
}

// unverifiedEmailClaim reads the email private claim without checking the
// signature. Callers must have verified the token already; the email is
// best effort either way.
func unverifiedEmailClaim(assertion string) string {
	parsed, _, err := jwt.NewParser().ParseUnverified(assertion, jwt.MapClaims{})
	if err != nil {
		return ""
	}
	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return ""
	}
	email, _ := mc["email"].(string)
	return email
}

func (v *appleVerifier) keyForKid(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.Lock()
	key, ok := v.keys[kid]
	v.mu.Unlock()
	if ok {
		return key, nil
	}

	var jwks struct {
		Keys []struct {
			Kid string `json:"kid"`
			N   string `json:"n"`
			E   string `json:"e"`
		} `json:"keys"`
	}
	if err := fetchJSON(ctx, v.client, "https://appleid.apple.com/auth/keys", "", &jwks); err != nil {
		return nil, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	for _, k := range jwks.Keys {
		pub, err := jwkToRSA(k.N, k.E)
		if err != nil {
			continue
		}
		v.keys[k.Kid] = pub
	}

	key, ok = v.keys[kid]
	if !ok {
		return nil, fmt.Errorf("unknown signing key %q", kid)
	}
	return key, nil
}

func jwkToRSA(n, e string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(n)
	if err != nil {
		return nil, err
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(e)
	if err != nil {
		return nil, err
	}

	exponent := 0
	for _, b := range eBytes {
		exponent = exponent<<8 | int(b)
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: exponent,
	}, nil
}

func fetchJSON(ctx context.Context, client *http.Client, endpoint, bearer string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build provider request: %w", err)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return models.ErrServiceUnavailable
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusBadRequest:
		return models.ErrTokenInvalid
	default:
		return models.ErrServiceUnavailable
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return models.ErrTokenInvalid
	}

	return nil
}
