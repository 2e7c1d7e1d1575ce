package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

var (
	ErrNoToken      = errors.New("no bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

// Identity is the resolved caller, attached to the request context by the
// auth middleware.
type Identity struct {
	UserID string `json:"userId"`
	Email  string `json:"email,omitempty"`
}

type contextKey string

const identityKey contextKey = "identity"

// WithIdentity attaches the identity to the context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext returns the identity on the context, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// Verifier resolves a bearer token to an identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// DevDecoder is the development-only resolver: it decodes the token's claims
// segment without checking any signature. NewDevDecoder refuses to construct
// one outside development mode so decoded claims can never drive authorization
// in production.
type DevDecoder struct{}

// NewDevDecoder returns a decode-only verifier, or an error when environment
// is not "development".
func NewDevDecoder(environment string) (*DevDecoder, error) {
	if environment != "development" {
		return nil, fmt.Errorf("decode-only auth is restricted to development, got environment %q", environment)
	}
	return &DevDecoder{}, nil
}

type tokenClaims struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Expiry  int64  `json:"exp"`
}

// Verify decodes the middle segment of a three-part token as base64url JSON
// and reads the subject and email claims. Expired tokens are rejected.
func (d *DevDecoder) Verify(ctx context.Context, token string) (Identity, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return Identity{}, fmt.Errorf("%w: expected three segments", ErrInvalidToken)
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	var claims tokenClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return Identity{}, fmt.Errorf("%w: missing sub claim", ErrInvalidToken)
	}
	if claims.Expiry != 0 && time.Unix(claims.Expiry, 0).Before(time.Now()) {
		return Identity{}, fmt.Errorf("%w: token expired", ErrInvalidToken)
	}
	return Identity{UserID: claims.Subject, Email: claims.Email}, nil
}

// IssuerVerifier delegates token verification to the hosted identity provider.
type IssuerVerifier struct {
	issuerURL string
	client    *http.Client
}

// NewIssuerVerifier creates a verifier against the provider's verify endpoint.
func NewIssuerVerifier(issuerURL string) *IssuerVerifier {
	return &IssuerVerifier{
		issuerURL: strings.TrimRight(issuerURL, "/"),
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Verify posts the token to the issuer and trusts the subject it returns.
func (v *IssuerVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	body := strings.NewReader(fmt.Sprintf(`{"token":%q}`, token))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.issuerURL+"/v1/tokens/verify", body)
	if err != nil {
		return Identity{}, fmt.Errorf("build verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("call identity provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Identity{}, fmt.Errorf("%w: identity provider returned %d", ErrInvalidToken, resp.StatusCode)
	}

	var out struct {
		Subject string `json:"sub"`
		Email   string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Identity{}, fmt.Errorf("decode verify response: %w", err)
	}
	if out.Subject == "" {
		return Identity{}, fmt.Errorf("%w: provider response missing subject", ErrInvalidToken)
	}
	return Identity{UserID: out.Subject, Email: out.Email}, nil
}

// BearerToken extracts the token from an Authorization header.
func BearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrNoToken
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", fmt.Errorf("%w: expected Bearer scheme", ErrInvalidToken)
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}
