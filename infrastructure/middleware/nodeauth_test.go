package middleware

import (
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/next-hat/nanocl-sub000/infrastructure/logging"
)

func generateTestNodeKeyPair(t *testing.T) (*rsa.PrivateKey, *rsa.PublicKey) {
	t.Helper()
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate RSA key pair: %v", err)
	}
	return privateKey, &privateKey.PublicKey
}

func generateTestNodeToken(t *testing.T, privateKey *rsa.PrivateKey, nodeID string, expiry time.Duration) string {
	t.Helper()
	now := time.Now()
	claims := &NodeClaims{
		NodeID: nodeID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			Issuer:    "nanocld",
			Subject:   nodeID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(privateKey)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func newTestNodeAuthMiddleware(t *testing.T, publicKey *rsa.PublicKey, allowedNodes []string) *NodeAuthMiddleware {
	t.Helper()
	return NewNodeAuthMiddleware(NodeAuthConfig{
		PublicKey:    publicKey,
		Logger:       logging.New("test", "error", "text"),
		AllowedNodes: allowedNodes,
		SkipPaths:    []string{"/health"},
	})
}

func TestNodeAuthMiddleware_ValidToken(t *testing.T) {
	privateKey, publicKey := generateTestNodeKeyPair(t)
	mw := newTestNodeAuthMiddleware(t, publicKey, []string{"node-a"})

	token := generateTestNodeToken(t, privateKey, "node-a", 2*time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/state/apply", nil)
	req.Header.Set(NodeTokenHeader, token)

	rr := httptest.NewRecorder()
	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := GetNodeID(r.Context()); got != "node-a" {
			t.Errorf("GetNodeID() = %q, want node-a", got)
		}
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
}

func TestNodeAuthMiddleware_MissingToken(t *testing.T) {
	_, publicKey := generateTestNodeKeyPair(t)
	mw := newTestNodeAuthMiddleware(t, publicKey, nil)

	req := httptest.NewRequest(http.MethodGet, "/state/apply", nil)
	rr := httptest.NewRecorder()
	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
}

func TestNodeAuthMiddleware_ExpiredToken(t *testing.T) {
	privateKey, publicKey := generateTestNodeKeyPair(t)
	mw := newTestNodeAuthMiddleware(t, publicKey, nil)

	token := generateTestNodeToken(t, privateKey, "node-a", -time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/state/apply", nil)
	req.Header.Set(NodeTokenHeader, token)
	rr := httptest.NewRecorder()
	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
}

func TestNodeAuthMiddleware_NodeNotAllowed(t *testing.T) {
	privateKey, publicKey := generateTestNodeKeyPair(t)
	mw := newTestNodeAuthMiddleware(t, publicKey, []string{"node-b"})

	token := generateTestNodeToken(t, privateKey, "node-a", time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/state/apply", nil)
	req.Header.Set(NodeTokenHeader, token)
	rr := httptest.NewRecorder()
	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
}

func TestNodeAuthMiddleware_SkipsConfiguredPaths(t *testing.T) {
	_, publicKey := generateTestNodeKeyPair(t)
	mw := newTestNodeAuthMiddleware(t, publicKey, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	called := false
	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(rr, req)

	if !called {
		t.Fatal("expected handler to run for skipped path")
	}
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
}
