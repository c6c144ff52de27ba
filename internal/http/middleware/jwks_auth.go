package middleware

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/draly94/SW/internal/tenancy"
)

const (
	jwksTTL = time.Hour
	// jwksMinRefetch bounds how often unknown key ids can trigger a fetch.
	jwksMinRefetch = time.Minute
)

// keySet caches the RSA keys published at a JWKS URL.
type keySet struct {
	url    string
	client *http.Client
	now    func() time.Time

	// fetchMu serialises refreshes and guards fetched.
	fetchMu sync.Mutex
	fetched time.Time

	mu      sync.RWMutex
	keys    map[string]*rsa.PublicKey
	expires time.Time
}

func newKeySet(url string) *keySet {
	return &keySet{url: url, client: &http.Client{Timeout: 10 * time.Second}, now: time.Now}
}

func (s *keySet) lookup(kid string, allowStale bool) (*rsa.PublicKey, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !allowStale && !s.now().Before(s.expires) {
		return nil, false
	}
	key, ok := s.keys[kid]
	return key, ok
}

// key returns the key for kid. A stale set or an unknown kid triggers a
// refetch, at most once per jwksMinRefetch.
func (s *keySet) key(kid string) (*rsa.PublicKey, error) {
	if key, ok := s.lookup(kid, false); ok {
		return key, nil
	}

	s.fetchMu.Lock()
	defer s.fetchMu.Unlock()
	if key, ok := s.lookup(kid, false); ok {
		return key, nil
	}
	if !s.fetched.IsZero() && s.now().Sub(s.fetched) < jwksMinRefetch {
		if key, ok := s.lookup(kid, true); ok {
			return key, nil
		}
		return nil, fmt.Errorf("key %s not found in JWKS", kid)
	}

	s.fetched = s.now()
	keys, err := fetchJWKS(s.client, s.url)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.keys = keys
	s.expires = s.now().Add(jwksTTL)
	s.mu.Unlock()

	key, ok := keys[kid]
	if !ok {
		return nil, fmt.Errorf("key %s not found in JWKS", kid)
	}
	return key, nil
}

// IdentityJWKS verifies RS256 identity tokens against the keys published at
// jwksURL. An empty issuer skips the issuer check.
func IdentityJWKS(jwksURL, issuer string) func(http.Handler) http.Handler {
	if jwksURL == "" {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{"error":"jwks auth not configured"}`, http.StatusUnauthorized)
			})
		}
	}
	keys := newKeySet(jwksURL)
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"RS256"}), jwt.WithExpirationRequired()}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r)
			if !ok {
				http.Error(w, `{"error":"missing authorization header"}`, http.StatusUnauthorized)
				return
			}
			claims := &IdentityClaims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
				kid, ok := t.Header["kid"].(string)
				if !ok {
					return nil, fmt.Errorf("missing key id")
				}
				return keys.key(kid)
			}, opts...)
			if err != nil || !token.Valid {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}
			if strings.TrimSpace(claims.Subject) == "" {
				http.Error(w, `{"error":"token missing subject"}`, http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), identityClaimsKey, claims)
			ctx = tenancy.WithIdentity(ctx, tenancy.Identity{UserID: claims.Subject, Email: claims.Email})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Identity routes RS256 tokens carrying a key id to IdentityJWKS when a JWKS
// URL is configured, and everything else to the HMAC verifier.
func Identity(secret, jwksURL, issuer string) func(http.Handler) http.Handler {
	hmacMW := IdentityJWT(secret, issuer)
	if jwksURL == "" {
		return hmacMW
	}
	jwksMW := IdentityJWKS(jwksURL, issuer)

	return func(next http.Handler) http.Handler {
		viaHMAC := hmacMW(next)
		viaJWKS := jwksMW(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r)
			if ok && isRSAWithKid(tokenString) {
				viaJWKS.ServeHTTP(w, r)
				return
			}
			viaHMAC.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	return token, token != ""
}

func isRSAWithKid(tokenString string) bool {
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 {
		return false
	}
	headerBytes, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return false
	}
	var header struct {
		Alg string `json:"alg"`
		Kid string `json:"kid"`
	}
	if json.Unmarshal(headerBytes, &header) != nil {
		return false
	}
	return header.Alg == "RS256" && header.Kid != ""
}

type jwksResponse struct {
	Keys []jwkKey `json:"keys"`
}

type jwkKey struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func fetchJWKS(client *http.Client, url string) (map[string]*rsa.PublicKey, error) {
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("JWKS request failed with status %d", resp.StatusCode)
	}

	var jwks jwksResponse
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return nil, fmt.Errorf("failed to decode JWKS: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey)
	for _, key := range jwks.Keys {
		if key.Kty != "RSA" {
			continue
		}
		pubKey, err := parseRSAPublicKey(key.N, key.E)
		if err != nil {
			continue
		}
		keys[key.Kid] = pubKey
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("no valid RSA keys found in JWKS")
	}
	return keys, nil
}

// parseRSAPublicKey parses base64url-encoded modulus and exponent.
func parseRSAPublicKey(nStr, eStr string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(nStr)
	if err != nil {
		return nil, fmt.Errorf("failed to decode modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(eStr)
	if err != nil {
		return nil, fmt.Errorf("failed to decode exponent: %w", err)
	}

	n := new(big.Int).SetBytes(nBytes)
	e := 0
	for _, b := range eBytes {
		e = e<<8 + int(b)
	}
	return &rsa.PublicKey{N: n, E: e}, nil
}
