package rpc

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"nhbmarket/crypto"
	"nhbmarket/observability/logging"
)

var testSecret = []byte("market-test-secret")

func authOptions() AuthOptions {
	return AuthOptions{Enabled: true, Secret: testSecret, Issuer: "nhbmarket", Audience: "market-rpc"}
}

func bearer(t *testing.T, caller [20]byte) http.Header {
	t.Helper()
	token, err := IssueToken(testSecret, caller, "nhbmarket", "market-rpc", time.Hour, time.Now())
	require.NoError(t, err)
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	return h
}

func TestAuthenticatorResolvesSubject(t *testing.T) {
	auth := NewAuthenticator(authOptions())
	req := httptest.NewRequest(http.MethodPost, "/rpc", nil)
	req.Header = bearer(t, buyer)

	caller, err := auth.Caller(req, "")
	require.NoError(t, err)
	require.Equal(t, buyer, caller)

	caller, err = auth.Caller(req, crypto.FormatAddress(buyer))
	require.NoError(t, err)
	require.Equal(t, buyer, caller)

	_, err = auth.Caller(req, crypto.FormatAddress(seller))
	require.ErrorIs(t, err, errCallerMismatch)
}

func TestAuthenticatorRejectsBadTokens(t *testing.T) {
	auth := NewAuthenticator(authOptions())
	now := time.Now()

	cases := map[string]func() string{
		"missing": func() string { return "" },
		"wrong secret": func() string {
			token, err := IssueToken([]byte("other"), buyer, "nhbmarket", "market-rpc", time.Hour, now)
			require.NoError(t, err)
			return token
		},
		"expired": func() string {
			token, err := IssueToken(testSecret, buyer, "nhbmarket", "market-rpc", time.Minute, now.Add(-time.Hour))
			require.NoError(t, err)
			return token
		},
		"wrong audience": func() string {
			token, err := IssueToken(testSecret, buyer, "nhbmarket", "elsewhere", time.Hour, now)
			require.NoError(t, err)
			return token
		},
		"bad subject": func() string {
			claims := jwt.RegisteredClaims{
				Subject:   "not-an-address",
				Issuer:    "nhbmarket",
				Audience:  jwt.ClaimStrings{"market-rpc"},
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			}
			token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
			require.NoError(t, err)
			return token
		},
	}
	for name, mint := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/rpc", nil)
			if token := mint(); token != "" {
				req.Header.Set("Authorization", "Bearer "+token)
			}
			_, err := auth.Caller(req, "")
			require.Error(t, err)
		})
	}
}

func TestAuthDisabledTrustsCallerParam(t *testing.T) {
	auth := NewAuthenticator(AuthOptions{})
	req := httptest.NewRequest(http.MethodPost, "/rpc", nil)
	_, err := auth.Caller(req, "")
	require.ErrorIs(t, err, errMissingCaller)

	caller, err := auth.Caller(req, crypto.FormatAddress(seller))
	require.NoError(t, err)
	require.Equal(t, seller, caller)
}

func TestPurchaseWithBearerToken(t *testing.T) {
	s, _ := newTestServer(t, ServerConfig{Auth: authOptions()})
	res := callRPC(t, s, "catalog_createListing", map[string]interface{}{
		"title":    "Go in Action",
		"price":    "50",
		"quantity": 1,
	}, bearer(t, seller))
	var listing listingJSON
	res.decode(t, &listing)
	require.Equal(t, crypto.FormatAddress(seller), listing.Seller)

	spoofed := callRPC(t, s, "market_purchase", map[string]interface{}{"listingId": listing.ID}, nil)
	require.Equal(t, http.StatusUnauthorized, spoofed.status)

	var out purchaseResult
	callRPC(t, s, "market_purchase", map[string]interface{}{"listingId": listing.ID}, bearer(t, buyer)).decode(t, &out)
	require.Equal(t, crypto.FormatAddress(buyer), out.Sale.Buyer)
}

func TestRejectedCallerLogsMaskedToken(t *testing.T) {
	var buf bytes.Buffer
	node := newTestNode(t)
	s := NewServer(node, nil, nil, ServerConfig{Auth: authOptions()}, slog.New(slog.NewJSONHandler(&buf, nil)))

	header := http.Header{}
	header.Set("Authorization", "Bearer forged.token.value")
	res := callRPC(t, s, "market_purchase", map[string]interface{}{"listingId": 1}, header)
	require.Equal(t, http.StatusUnauthorized, res.status)

	require.Contains(t, buf.String(), "caller rejected")
	require.Contains(t, buf.String(), "Bearer "+logging.RedactedValue)
	require.NotContains(t, buf.String(), "forged.token.value")
}
