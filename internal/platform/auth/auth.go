// Package auth verifies bearer tokens on inbound requests. The service
// normally sits behind the platform gateway, so verification is optional:
// disabled mode passes everything through, dev mode injects a fixed
// identity, oidc mode verifies tokens against the configured issuer.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/wesman-labs/wesman-go/internal/platform/env"
)

type Mode string

const (
	ModeOIDC     Mode = "oidc"
	ModeDev      Mode = "dev"
	ModeDisabled Mode = "disabled"
)

var ErrUnauthenticated = errors.New("unauthenticated")

type Identity struct {
	Subject string
	Email   string
}

type Config struct {
	Mode Mode

	OIDCIssuerURL string
	OIDCClientID  string
	EmailClaim    string

	DevSubject string
	DevEmail   string
}

func ConfigFromEnv() (Config, error) {
	modeRaw := strings.ToLower(strings.TrimSpace(env.String("WESMAN_AUTH_MODE", string(ModeDisabled))))
	var mode Mode
	switch modeRaw {
	case string(ModeOIDC):
		mode = ModeOIDC
	case string(ModeDev):
		mode = ModeDev
	case string(ModeDisabled):
		mode = ModeDisabled
	default:
		return Config{}, fmt.Errorf("WESMAN_AUTH_MODE must be one of: oidc, dev, disabled (got %q)", modeRaw)
	}

	cfg := Config{
		Mode:          mode,
		OIDCIssuerURL: env.String("WESMAN_AUTH_OIDC_ISSUER_URL", ""),
		OIDCClientID:  env.String("WESMAN_AUTH_OIDC_CLIENT_ID", ""),
		EmailClaim:    env.String("WESMAN_AUTH_EMAIL_CLAIM", "email"),
		DevSubject:    env.String("WESMAN_AUTH_DEV_SUBJECT", "dev-user"),
		DevEmail:      env.String("WESMAN_AUTH_DEV_EMAIL", "dev@localhost"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Mode != ModeOIDC {
		return nil
	}
	if strings.TrimSpace(c.OIDCIssuerURL) == "" {
		return errors.New("WESMAN_AUTH_OIDC_ISSUER_URL is required in oidc mode")
	}
	if strings.TrimSpace(c.OIDCClientID) == "" {
		return errors.New("WESMAN_AUTH_OIDC_CLIENT_ID is required in oidc mode")
	}
	return nil
}

// Authenticator resolves the identity behind a request.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) (Identity, error)
}

type devAuthenticator struct {
	identity Identity
}

func NewDevAuthenticator(cfg Config) Authenticator {
	return devAuthenticator{identity: Identity{Subject: cfg.DevSubject, Email: cfg.DevEmail}}
}

func (d devAuthenticator) Authenticate(ctx context.Context, r *http.Request) (Identity, error) {
	return d.identity, nil
}

type ctxKeyIdentity struct{}

func ContextWithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity{}, identity)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(ctxKeyIdentity{}).(Identity)
	return identity, ok
}

func tokenFromHeader(r *http.Request) string {
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if authz == "" {
		return ""
	}
	parts := strings.SplitN(authz, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
