package nodeauth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()

	ctx = WithNodeID(ctx, "node-a")
	if got := GetNodeID(ctx); got != "node-a" {
		t.Errorf("GetNodeID() = %q, want %q", got, "node-a")
	}

	ctx = WithCallerID(ctx, "caller-1")
	if got := GetCallerID(ctx); got != "caller-1" {
		t.Errorf("GetCallerID() = %q, want %q", got, "caller-1")
	}

	emptyCtx := context.Background()
	if got := GetNodeID(emptyCtx); got != "" {
		t.Errorf("GetNodeID(empty) = %q, want empty", got)
	}
	if got := GetCallerID(emptyCtx); got != "" {
		t.Errorf("GetCallerID(empty) = %q, want empty", got)
	}
}

func generateTestRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate RSA key: %v", err)
	}
	return key
}

func TestNodeTokenGenerator(t *testing.T) {
	privateKey := generateTestRSAKey(t)

	t.Run("default expiry", func(t *testing.T) {
		gen := NewNodeTokenGenerator(privateKey, "node-a", 0)
		if gen.expiry != DefaultNodeTokenExpiry {
			t.Errorf("expiry = %v, want %v", gen.expiry, DefaultNodeTokenExpiry)
		}
	})

	t.Run("custom expiry", func(t *testing.T) {
		custom := 30 * time.Minute
		gen := NewNodeTokenGenerator(privateKey, "node-a", custom)
		if gen.expiry != custom {
			t.Errorf("expiry = %v, want %v", gen.expiry, custom)
		}
	})

	t.Run("generate token", func(t *testing.T) {
		gen := NewNodeTokenGenerator(privateKey, "node-a", time.Hour)
		token, err := gen.GenerateToken()
		if err != nil {
			t.Fatalf("GenerateToken() error = %v", err)
		}
		if token == "" {
			t.Error("GenerateToken() returned empty token")
		}
	})
}

func TestNodeTokenRoundTripper(t *testing.T) {
	privateKey := generateTestRSAKey(t)
	gen := NewNodeTokenGenerator(privateKey, "node-a", time.Hour)

	t.Run("nil generator returns base", func(t *testing.T) {
		rt := NewNodeTokenRoundTripper(http.DefaultTransport, nil)
		if rt != http.DefaultTransport {
			t.Error("expected base transport when generator is nil")
		}
	})

	t.Run("nil base uses default", func(t *testing.T) {
		rt := NewNodeTokenRoundTripper(nil, gen)
		if rt == nil {
			t.Error("expected non-nil round tripper")
		}
	})

	t.Run("injects token header", func(t *testing.T) {
		var capturedHeader string
		base := roundTripperFunc(func(r *http.Request) (*http.Response, error) {
			capturedHeader = r.Header.Get(NodeTokenHeader)
			return &http.Response{
				StatusCode: http.StatusOK,
				Status:     http.StatusText(http.StatusOK),
				Header:     make(http.Header),
				Body:       io.NopCloser(strings.NewReader("")),
				Request:    r,
			}, nil
		})
		rt := NewNodeTokenRoundTripper(base, gen)
		client := &http.Client{Transport: rt}

		req, _ := http.NewRequest(http.MethodGet, "http://example.com", nil)
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()

		if capturedHeader == "" {
			t.Error("NodeTokenHeader not set")
		}
	})

	t.Run("propagates caller ID", func(t *testing.T) {
		var capturedCallerID string
		base := roundTripperFunc(func(r *http.Request) (*http.Response, error) {
			capturedCallerID = r.Header.Get(CallerIDHeader)
			return &http.Response{
				StatusCode: http.StatusOK,
				Status:     http.StatusText(http.StatusOK),
				Header:     make(http.Header),
				Body:       io.NopCloser(strings.NewReader("")),
				Request:    r,
			}, nil
		})
		rt := NewNodeTokenRoundTripper(base, gen)
		client := &http.Client{Transport: rt}

		ctx := WithCallerID(context.Background(), "caller-9")
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, "http://example.com", nil)
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()

		if capturedCallerID != "caller-9" {
			t.Errorf("CallerIDHeader = %q, want %q", capturedCallerID, "caller-9")
		}
	})
}

func TestParseRSAPublicKeyFromPEM(t *testing.T) {
	privateKey := generateTestRSAKey(t)

	t.Run("PKIX format", func(t *testing.T) {
		pubBytes, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
		if err != nil {
			t.Fatalf("marshal public key: %v", err)
		}
		pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes})

		pub, err := ParseRSAPublicKeyFromPEM(pemBytes)
		if err != nil {
			t.Fatalf("ParseRSAPublicKeyFromPEM() error = %v", err)
		}
		if pub == nil {
			t.Error("ParseRSAPublicKeyFromPEM() returned nil")
		}
	})

	t.Run("PKCS1 format", func(t *testing.T) {
		pubBytes := x509.MarshalPKCS1PublicKey(&privateKey.PublicKey)
		pemBytes := pem.EncodeToMemory(&pem.Block{Type: "RSA PUBLIC KEY", Bytes: pubBytes})

		pub, err := ParseRSAPublicKeyFromPEM(pemBytes)
		if err != nil {
			t.Fatalf("ParseRSAPublicKeyFromPEM() error = %v", err)
		}
		if pub == nil {
			t.Error("ParseRSAPublicKeyFromPEM() returned nil")
		}
	})

	t.Run("invalid PEM", func(t *testing.T) {
		if _, err := ParseRSAPublicKeyFromPEM([]byte("not a pem")); err == nil {
			t.Error("expected error for invalid PEM")
		}
	})

	t.Run("wrong block type", func(t *testing.T) {
		pemBytes := pem.EncodeToMemory(&pem.Block{Type: "UNKNOWN TYPE", Bytes: []byte("data")})
		if _, err := ParseRSAPublicKeyFromPEM(pemBytes); err == nil {
			t.Error("expected error for unknown block type")
		}
	})
}

func TestParseRSAPrivateKeyFromPEM(t *testing.T) {
	privateKey := generateTestRSAKey(t)

	t.Run("PKCS1 format", func(t *testing.T) {
		privBytes := x509.MarshalPKCS1PrivateKey(privateKey)
		pemBytes := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: privBytes})

		priv, err := ParseRSAPrivateKeyFromPEM(pemBytes)
		if err != nil {
			t.Fatalf("ParseRSAPrivateKeyFromPEM() error = %v", err)
		}
		if priv == nil {
			t.Error("ParseRSAPrivateKeyFromPEM() returned nil")
		}
	})

	t.Run("PKCS8 format", func(t *testing.T) {
		privBytes, err := x509.MarshalPKCS8PrivateKey(privateKey)
		if err != nil {
			t.Fatalf("marshal private key: %v", err)
		}
		pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privBytes})

		priv, err := ParseRSAPrivateKeyFromPEM(pemBytes)
		if err != nil {
			t.Fatalf("ParseRSAPrivateKeyFromPEM() error = %v", err)
		}
		if priv == nil {
			t.Error("ParseRSAPrivateKeyFromPEM() returned nil")
		}
	})

	t.Run("invalid PEM", func(t *testing.T) {
		if _, err := ParseRSAPrivateKeyFromPEM([]byte("not a pem")); err == nil {
			t.Error("expected error for invalid PEM")
		}
	})
}
