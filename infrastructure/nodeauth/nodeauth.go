// Package nodeauth provides shared helpers for daemon-to-daemon authentication
// in a multi-node nanocl cluster: short-lived RS256 tokens a node presents to
// its peers, separate from the single shared-secret gate used for simple
// deployments.
package nodeauth

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/next-hat/nanocl-sub000/infrastructure/logging"
)

// =============================================================================
// Header / Claim Constants
// =============================================================================

const (
	// NodeTokenHeader carries the signed node-to-node JWT.
	NodeTokenHeader = "X-Nanocl-Node-Token"

	// NodeIDHeader identifies the node presenting the token.
	NodeIDHeader = "X-Nanocl-Node-Id"

	// CallerIDHeader identifies the CLI/client on whose behalf a request is
	// forwarded between nodes.
	CallerIDHeader = "X-Nanocl-Caller-Id"

	// DefaultNodeTokenExpiry is how long a minted node token stays valid.
	DefaultNodeTokenExpiry = 1 * time.Hour

	tokenIssuer = "nanocld"
)

// =============================================================================
// Context Helpers
// =============================================================================

type contextKey string

const (
	nodeIDKey   contextKey = "node_id"
	callerIDKey contextKey = "caller_id"
)

// WithNodeID returns a new context with the authenticated peer node ID set.
func WithNodeID(ctx context.Context, nodeID string) context.Context {
	return context.WithValue(ctx, nodeIDKey, nodeID)
}

// GetNodeID extracts the peer node ID from context.
func GetNodeID(ctx context.Context) string {
	if v, ok := ctx.Value(nodeIDKey).(string); ok {
		return v
	}
	return ""
}

// WithCallerID returns a new context with the originating caller ID set.
func WithCallerID(ctx context.Context, callerID string) context.Context {
	return context.WithValue(ctx, callerIDKey, callerID)
}

// GetCallerID extracts the originating caller ID from context.
func GetCallerID(ctx context.Context) string {
	if v, ok := ctx.Value(callerIDKey).(string); ok {
		return v
	}
	return ""
}

// =============================================================================
// Node Claims
// =============================================================================

// NodeClaims represents JWT claims for node-to-node authentication.
type NodeClaims struct {
	NodeID string `json:"node_id"`
	jwt.RegisteredClaims
}

// =============================================================================
// Node Token Generator
// =============================================================================

// NodeTokenGenerator signs node-to-node JWTs on behalf of the local node.
type NodeTokenGenerator struct {
	privateKey *rsa.PrivateKey
	nodeID     string
	expiry     time.Duration
}

// NewNodeTokenGenerator creates a generator that mints tokens identifying
// nodeID, signed with privateKey.
func NewNodeTokenGenerator(privateKey *rsa.PrivateKey, nodeID string, expiry time.Duration) *NodeTokenGenerator {
	if expiry == 0 {
		expiry = DefaultNodeTokenExpiry
	}
	return &NodeTokenGenerator{privateKey: privateKey, nodeID: nodeID, expiry: expiry}
}

// GenerateToken mints a new node token.
func (g *NodeTokenGenerator) GenerateToken() (string, error) {
	now := time.Now()
	claims := &NodeClaims{
		NodeID: g.nodeID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(g.expiry)),
			Issuer:    tokenIssuer,
			Subject:   g.nodeID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(g.privateKey)
}

// =============================================================================
// Outbound Request Auth Helpers
// =============================================================================

// NodeTokenRoundTripper injects a node token (and the originating caller ID,
// when present) into outgoing requests made to peer nodes.
type NodeTokenRoundTripper struct {
	base      http.RoundTripper
	generator *NodeTokenGenerator
}

// NewNodeTokenRoundTripper wraps base with node-token injection. With a nil
// generator it returns base unchanged, so callers can wire this
// unconditionally and only pay for it when a signing key is configured.
func NewNodeTokenRoundTripper(base http.RoundTripper, generator *NodeTokenGenerator) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	if generator == nil {
		return base
	}
	return &NodeTokenRoundTripper{base: base, generator: generator}
}

// RoundTrip implements http.RoundTripper.
func (t *NodeTokenRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())

	token, err := t.generator.GenerateToken()
	if err != nil {
		return nil, fmt.Errorf("mint node token: %w", err)
	}
	clone.Header.Set(NodeTokenHeader, token)

	if traceID := logging.GetTraceID(req.Context()); traceID != "" && clone.Header.Get("X-Trace-ID") == "" {
		clone.Header.Set("X-Trace-ID", traceID)
	}
	if callerID := GetCallerID(req.Context()); callerID != "" && clone.Header.Get(CallerIDHeader) == "" {
		clone.Header.Set(CallerIDHeader, callerID)
	}

	return t.base.RoundTrip(clone)
}

// =============================================================================
// Key Parsing Helpers
// =============================================================================

// ParseRSAPublicKeyFromPEM parses an RSA public key from PEM bytes.
// Supported PEM types: PUBLIC KEY (PKIX), RSA PUBLIC KEY (PKCS#1), CERTIFICATE.
func ParseRSAPublicKeyFromPEM(pemBytes []byte) (*rsa.PublicKey, error) {
	rest := pemBytes
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			return nil, fmt.Errorf("no PEM public key found")
		}

		switch block.Type {
		case "PUBLIC KEY":
			pubAny, err := x509.ParsePKIXPublicKey(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("parse PKIX public key: %w", err)
			}
			pub, ok := pubAny.(*rsa.PublicKey)
			if !ok {
				return nil, fmt.Errorf("public key is not RSA")
			}
			return pub, nil
		case "RSA PUBLIC KEY":
			pub, err := x509.ParsePKCS1PublicKey(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("parse PKCS#1 public key: %w", err)
			}
			return pub, nil
		case "CERTIFICATE":
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("parse certificate: %w", err)
			}
			pub, ok := cert.PublicKey.(*rsa.PublicKey)
			if !ok {
				return nil, fmt.Errorf("certificate public key is not RSA")
			}
			return pub, nil
		}

		if len(rest) == 0 {
			return nil, fmt.Errorf("no supported PEM public key found")
		}
	}
}

// ParseRSAPrivateKeyFromPEM parses an RSA private key from PEM bytes.
// Supported PEM types: RSA PRIVATE KEY (PKCS#1), PRIVATE KEY (PKCS#8).
func ParseRSAPrivateKeyFromPEM(pemBytes []byte) (*rsa.PrivateKey, error) {
	rest := pemBytes
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			return nil, fmt.Errorf("no PEM private key found")
		}

		switch block.Type {
		case "RSA PRIVATE KEY":
			priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("parse PKCS#1 private key: %w", err)
			}
			return priv, nil
		case "PRIVATE KEY":
			key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("parse PKCS#8 private key: %w", err)
			}
			priv, ok := key.(*rsa.PrivateKey)
			if !ok {
				return nil, fmt.Errorf("private key is not RSA")
			}
			return priv, nil
		}

		if len(rest) == 0 {
			return nil, fmt.Errorf("no supported PEM private key found")
		}
	}
}
