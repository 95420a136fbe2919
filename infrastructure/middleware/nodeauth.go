// Package middleware provides HTTP middleware for the nanocl daemon.
package middleware

import (
	"context"
	"crypto/rsa"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	internalhttputil "github.com/next-hat/nanocl-sub000/infrastructure/httputil"
	"github.com/next-hat/nanocl-sub000/infrastructure/logging"
	"github.com/next-hat/nanocl-sub000/infrastructure/nodeauth"
)

var (
	errNodeAuthNotConfigured   = errors.New("node authentication is not configured")
	errUnexpectedSigningMethod = errors.New("unexpected token signing method")
	errInvalidNodeToken        = errors.New("invalid node token")
	errInvalidNodeTokenIssuer  = errors.New("invalid node token issuer")
	errInvalidNodeTokenSubject = errors.New("node token subject/node mismatch")
)

// =============================================================================
// Node Authentication Constants
// =============================================================================

const (
	// NodeTokenHeader is the header name for node-to-node tokens.
	NodeTokenHeader = nodeauth.NodeTokenHeader

	// NodeIDHeader is the header name for node identification.
	NodeIDHeader = nodeauth.NodeIDHeader

	// CallerIDHeader is the header name for the originating caller.
	CallerIDHeader = nodeauth.CallerIDHeader

	// DefaultNodeTokenExpiry is the default expiration time for node tokens.
	DefaultNodeTokenExpiry = nodeauth.DefaultNodeTokenExpiry
)

// NodeClaims represents JWT claims for node-to-node authentication.
type NodeClaims = nodeauth.NodeClaims

// NodeTokenGenerator generates node-to-node JWT tokens.
type NodeTokenGenerator = nodeauth.NodeTokenGenerator

// NodeTokenRoundTripper injects X-Nanocl-Node-Token into outgoing requests.
type NodeTokenRoundTripper = nodeauth.NodeTokenRoundTripper

// NewNodeTokenGenerator creates a new node token generator.
func NewNodeTokenGenerator(privateKey *rsa.PrivateKey, nodeID string, expiry time.Duration) *NodeTokenGenerator {
	return nodeauth.NewNodeTokenGenerator(privateKey, nodeID, expiry)
}

// NewNodeTokenRoundTripper wraps a base transport with node-token injection.
func NewNodeTokenRoundTripper(base http.RoundTripper, generator *NodeTokenGenerator) http.RoundTripper {
	return nodeauth.NewNodeTokenRoundTripper(base, generator)
}

// =============================================================================
// Node Auth Middleware
// =============================================================================

// NodeAuthMiddleware verifies the node-to-node JWT a cluster peer presents
// before forwarding a request into the daemon's API surface.
type NodeAuthMiddleware struct {
	publicKey     *rsa.PublicKey
	logger        *logging.Logger
	allowedNodes  map[string]bool
	skipPaths     map[string]bool
	mu            sync.RWMutex
	validated     map[string]*cachedNodeToken
	stopCleanup   chan struct{}
	cleanupOnce   sync.Once
}

type cachedNodeToken struct {
	claims    *NodeClaims
	expiresAt time.Time
}

// NodeAuthConfig configures NodeAuthMiddleware.
type NodeAuthConfig struct {
	PublicKey    *rsa.PublicKey
	Logger       *logging.Logger
	AllowedNodes []string
	SkipPaths    []string
}

// NewNodeAuthMiddleware creates a node authentication middleware.
func NewNodeAuthMiddleware(cfg NodeAuthConfig) *NodeAuthMiddleware {
	allowed := make(map[string]bool)
	for _, id := range cfg.AllowedNodes {
		allowed[id] = true
	}

	skip := make(map[string]bool)
	for _, path := range cfg.SkipPaths {
		skip[path] = true
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.New("nodeauth", "info", "json")
	}

	m := &NodeAuthMiddleware{
		publicKey:    cfg.PublicKey,
		logger:       logger,
		allowedNodes: allowed,
		skipPaths:    skip,
		validated:    make(map[string]*cachedNodeToken),
		stopCleanup:  make(chan struct{}),
	}

	m.startBackgroundCleanup()

	return m
}

// Handler returns the middleware handler function.
func (m *NodeAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		token := r.Header.Get(NodeTokenHeader)
		if token == "" {
			m.reject(w, r, "missing node token")
			return
		}

		claims, err := m.validateToken(token)
		if err != nil {
			m.logger.WithContext(r.Context()).WithError(err).Warn("Node token validation failed")
			m.reject(w, r, "invalid node token")
			return
		}

		if !m.isNodeAllowed(claims.NodeID) {
			m.logger.WithContext(r.Context()).WithFields(map[string]interface{}{
				"node_id": claims.NodeID,
			}).Warn("Node not in allowed list")
			m.reject(w, r, "node not authorized")
			return
		}

		ctx := nodeauth.WithNodeID(r.Context(), claims.NodeID)
		if callerID := r.Header.Get(CallerIDHeader); callerID != "" {
			ctx = nodeauth.WithCallerID(ctx, callerID)
		}

		m.logger.WithContext(ctx).WithFields(map[string]interface{}{
			"node_id": claims.NodeID,
		}).Debug("Node authentication successful")

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *NodeAuthMiddleware) validateToken(tokenString string) (*NodeClaims, error) {
	if m.publicKey == nil {
		return nil, errNodeAuthNotConfigured
	}

	if cached := m.getCachedToken(tokenString); cached != nil {
		return cached, nil
	}

	token, err := jwt.ParseWithClaims(tokenString, &NodeClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, errUnexpectedSigningMethod
		}
		return m.publicKey, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errInvalidNodeToken
	}

	claims, ok := token.Claims.(*NodeClaims)
	if !ok || claims.NodeID == "" {
		return nil, errInvalidNodeToken
	}
	if claims.Issuer != "nanocld" {
		return nil, errInvalidNodeTokenIssuer
	}
	if claims.Subject != "" && claims.Subject != claims.NodeID {
		return nil, errInvalidNodeTokenSubject
	}

	m.cacheToken(tokenString, claims)
	return claims, nil
}

func (m *NodeAuthMiddleware) getCachedToken(tokenString string) *NodeClaims {
	m.mu.RLock()
	cached, ok := m.validated[tokenString]
	if !ok {
		m.mu.RUnlock()
		return nil
	}

	if time.Now().After(cached.expiresAt) {
		m.mu.RUnlock()
		m.mu.Lock()
		if current, ok := m.validated[tokenString]; ok && time.Now().After(current.expiresAt) {
			delete(m.validated, tokenString)
		}
		m.mu.Unlock()
		return nil
	}

	m.mu.RUnlock()
	return cached.claims
}

func (m *NodeAuthMiddleware) cacheToken(tokenString string, claims *NodeClaims) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cacheExpiry := time.Now().Add(5 * time.Minute)
	if claims.ExpiresAt != nil && claims.ExpiresAt.Time.Before(cacheExpiry) {
		cacheExpiry = claims.ExpiresAt.Time
	}

	m.validated[tokenString] = &cachedNodeToken{claims: claims, expiresAt: cacheExpiry}

	if len(m.validated) > 1000 {
		m.cleanupCache()
	}
}

func (m *NodeAuthMiddleware) cleanupCache() {
	now := time.Now()
	for key, cached := range m.validated {
		if now.After(cached.expiresAt) {
			delete(m.validated, key)
		}
	}
}

func (m *NodeAuthMiddleware) startBackgroundCleanup() {
	m.cleanupOnce.Do(func() {
		go func() {
			ticker := time.NewTicker(2 * time.Minute)
			defer ticker.Stop()

			for {
				select {
				case <-ticker.C:
					m.mu.Lock()
					m.cleanupCache()
					m.mu.Unlock()
				case <-m.stopCleanup:
					return
				}
			}
		}()
	})
}

// StopCleanup stops the background cleanup goroutine.
func (m *NodeAuthMiddleware) StopCleanup() {
	select {
	case <-m.stopCleanup:
	default:
		close(m.stopCleanup)
	}
}

// InvalidateCache clears all cached tokens, e.g. after key rotation.
func (m *NodeAuthMiddleware) InvalidateCache() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.validated = make(map[string]*cachedNodeToken)
}

func (m *NodeAuthMiddleware) isNodeAllowed(nodeID string) bool {
	if len(m.allowedNodes) == 0 {
		return true
	}
	return m.allowedNodes[nodeID]
}

func (m *NodeAuthMiddleware) reject(w http.ResponseWriter, r *http.Request, message string) {
	internalhttputil.WriteErrorResponse(w, r, http.StatusUnauthorized, "NODE_AUTH_FAILED", message, nil)
}

// =============================================================================
// Helper Functions
// =============================================================================

// GetNodeID extracts the authenticated peer node ID from context.
func GetNodeID(ctx context.Context) string {
	return nodeauth.GetNodeID(ctx)
}

// GetCallerID extracts the originating caller ID from context.
func GetCallerID(ctx context.Context) string {
	return nodeauth.GetCallerID(ctx)
}

// GetUserRole extracts the caller role from context when present.
func GetUserRole(ctx context.Context) string {
	return logging.GetRole(ctx)
}

// ParseRSAPublicKeyFromPEM parses an RSA public key from PEM bytes.
func ParseRSAPublicKeyFromPEM(pemBytes []byte) (*rsa.PublicKey, error) {
	return nodeauth.ParseRSAPublicKeyFromPEM(pemBytes)
}

// ParseRSAPrivateKeyFromPEM parses an RSA private key from PEM bytes.
func ParseRSAPrivateKeyFromPEM(pemBytes []byte) (*rsa.PrivateKey, error) {
	return nodeauth.ParseRSAPrivateKeyFromPEM(pemBytes)
}

// RequireNodeAuth is a simple middleware that requires node authentication.
func RequireNodeAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nodeID := GetNodeID(r.Context())
		if nodeID == "" {
			internalhttputil.WriteErrorResponse(w, r, http.StatusUnauthorized, "NODE_AUTH_REQUIRED", "node authentication required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
