package server

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/raterudder/gridsim/pkg/log"
	"github.com/raterudder/gridsim/pkg/metrics"
	"github.com/raterudder/gridsim/pkg/simulation"
	"github.com/raterudder/gridsim/pkg/storage"
	"github.com/raterudder/gridsim/pkg/types"
	"github.com/stretchr/testify/require"
)

func init() {
	log.SetDefaultLogLevel(slog.LevelError)
}

const testKeyID = "test-key"

// newTestServer returns a server with an idle simulator for the default
// profile that tests advance by hand.
func newTestServer(t *testing.T, db storage.Database) *Server {
	t.Helper()
	srv := &Server{
		storage:    db,
		metrics:    metrics.New(),
		config:     &simulation.Config{Profile: types.ProfileDefault, Speed: 1},
		bypassAuth: true,
	}
	s := types.DefaultSettings()
	s.Seed = 7
	require.NoError(t, srv.startSimulation(s))
	return srv
}

// setupOIDCTest serves a minimal OIDC discovery document and key set signed
// by the returned key.
func setupOIDCTest(t *testing.T) (*httptest.Server, *rsa.PrivateKey) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
			"issuer":                                srv.URL,
			"jwks_uri":                              srv.URL + "/keys",
			"id_token_signing_alg_values_supported": []string{"RS256"},
		}))
	})
	mux.HandleFunc("/keys", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(jose.JSONWebKeySet{
			Keys: []jose.JSONWebKey{{
				Key:       &priv.PublicKey,
				KeyID:     testKeyID,
				Algorithm: string(jose.RS256),
				Use:       "sig",
			}},
		}))
	})
	return srv, priv
}

// generateTestToken signs an ID token for the test audience.
func generateTestToken(t *testing.T, issuer string, priv *rsa.PrivateKey, email, subject string) string {
	t.Helper()
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.RS256, Key: priv},
		(&jose.SignerOptions{}).WithType("JWT").WithHeader("kid", testKeyID),
	)
	require.NoError(t, err)

	now := time.Now()
	payload, err := json.Marshal(map[string]any{
		"iss":            issuer,
		"aud":            "test-audience",
		"sub":            subject,
		"email":          email,
		"email_verified": true,
		"iat":            now.Unix(),
		"exp":            now.Add(time.Hour).Unix(),
	})
	require.NoError(t, err)

	jws, err := signer.Sign(payload)
	require.NoError(t, err)
	token, err := jws.CompactSerialize()
	require.NoError(t, err)
	return token
}
