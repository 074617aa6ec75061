package rpc

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"nhbmarket/crypto"
)

var (
	errMissingBearer  = errors.New("missing bearer token")
	errMissingCaller  = errors.New("caller required")
	errCallerMismatch = errors.New("caller does not match token subject")
	errNoSecret       = errors.New("auth secret not configured")
)

// AuthOptions configures bearer token verification.
type AuthOptions struct {
	Enabled   bool
	Secret    []byte
	Issuer    string
	Audience  string
	ClockSkew time.Duration
}

// Authenticator resolves the identity behind a request. With auth enabled the
// identity is the bech32 address in the token's sub claim; otherwise the
// caller named in the parameters is trusted as is.
type Authenticator struct {
	cfg AuthOptions
}

// NewAuthenticator returns an authenticator for cfg.
func NewAuthenticator(cfg AuthOptions) *Authenticator {
	if cfg.ClockSkew <= 0 {
		cfg.ClockSkew = 2 * time.Minute
	}
	return &Authenticator{cfg: cfg}
}

// Caller returns the identity of r. claimed is the caller parameter supplied
// in the request, which must agree with the token when one is required.
func (a *Authenticator) Caller(r *http.Request, claimed string) ([20]byte, error) {
	claimed = strings.TrimSpace(claimed)
	if a == nil || !a.cfg.Enabled {
		if claimed == "" {
			return [20]byte{}, errMissingCaller
		}
		return crypto.ParseAddress(claimed)
	}
	tokenString := extractBearer(r.Header.Get("Authorization"))
	if tokenString == "" {
		return [20]byte{}, errMissingBearer
	}
	subject, err := a.subject(tokenString)
	if err != nil {
		return [20]byte{}, err
	}
	caller, err := crypto.ParseAddress(subject)
	if err != nil {
		return [20]byte{}, fmt.Errorf("token subject: %w", err)
	}
	if claimed != "" {
		asserted, err := crypto.ParseAddress(claimed)
		if err != nil {
			return [20]byte{}, err
		}
		if asserted != caller {
			return [20]byte{}, errCallerMismatch
		}
	}
	return caller, nil
}

func (a *Authenticator) subject(tokenString string) (string, error) {
	if len(a.cfg.Secret) == 0 {
		return "", errNoSecret
	}
	opts := []jwt.ParserOption{
		jwt.WithLeeway(a.cfg.ClockSkew),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodHS384.Alg(), jwt.SigningMethodHS512.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if a.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.cfg.Issuer))
	}
	if a.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(a.cfg.Audience))
	}
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.cfg.Secret, nil
	}, opts...)
	if err != nil {
		return "", err
	}
	subject, err := token.Claims.GetSubject()
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(subject) == "" {
		return "", errors.New("token subject missing")
	}
	return subject, nil
}

// IssueToken mints an HS256 token whose subject is caller.
func IssueToken(secret []byte, caller [20]byte, issuer, audience string, ttl time.Duration, now time.Time) (string, error) {
	if len(secret) == 0 {
		return "", errNoSecret
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	claims := jwt.RegisteredClaims{
		Subject:   crypto.FormatAddress(caller),
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	if audience != "" {
		claims.Audience = jwt.ClaimStrings{audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func extractBearer(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
