package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/draly94/SW/internal/tenancy"
)

type contextKey string

const identityClaimsKey contextKey = "identityClaims"

// IdentityClaims are the claims the hosted identity service puts in its
// access tokens. The subject is the user id.
type IdentityClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

// IdentityJWT verifies HMAC-signed identity tokens and stores the caller in
// the request context. An empty issuer skips the issuer check.
func IdentityJWT(secret, issuer string) func(http.Handler) http.Handler {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				http.Error(w, `{"error":"auth disabled"}`, http.StatusUnauthorized)
				return
			}
			auth := r.Header.Get("Authorization")
			if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
				http.Error(w, `{"error":"missing authorization header"}`, http.StatusUnauthorized)
				return
			}
			tokenString := strings.TrimPrefix(auth, "Bearer ")
			claims := &IdentityClaims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
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

// IdentityClaimsFromContext returns the verified token claims if present.
func IdentityClaimsFromContext(ctx context.Context) (*IdentityClaims, bool) {
	claims, ok := ctx.Value(identityClaimsKey).(*IdentityClaims)
	return claims, ok && claims != nil
}
