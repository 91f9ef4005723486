package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Admin capabilities carried in the token's "perms" claim.
const (
	PermInventoryRead     = "inventory:read"
	PermInventoryWrite    = "inventory:write"
	PermReservationManage = "reservations:manage"
	PermRefundsRead       = "refunds:read"
)

// Authz checks HS256 bearer tokens issued elsewhere. It never issues tokens.
type Authz struct {
	secret []byte
	issuer string
}

func NewAuthz(secret, issuer string) *Authz {
	return &Authz{secret: []byte(secret), issuer: issuer}
}

// Require rejects requests whose token lacks any of the required permissions.
func (a *Authz) Require(next http.Handler, required ...string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			unauthorized(w, "invalid_request", "missing bearer token")
			return
		}

		opts := []jwt.ParserOption{
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithLeeway(30 * time.Second),
		}
		if a.issuer != "" {
			opts = append(opts, jwt.WithIssuer(a.issuer))
		}
		token, err := jwt.Parse(strings.TrimPrefix(auth, "Bearer "), func(*jwt.Token) (any, error) {
			return a.secret, nil
		}, opts...)
		if err != nil || !token.Valid {
			unauthorized(w, "invalid_token", "invalid jwt")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			unauthorized(w, "invalid_token", "claims parsing error")
			return
		}
		if !hasAll(extractPerms(claims), required) {
			writeError(w, http.StatusForbidden, codeForbidden, "missing required permissions")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func extractPerms(claims jwt.MapClaims) map[string]struct{} {
	out := map[string]struct{}{}
	if arr, ok := claims["perms"].([]any); ok {
		for _, v := range arr {
			if s, ok := v.(string); ok && s != "" {
				out[s] = struct{}{}
			}
		}
	}
	return out
}

func hasAll(have map[string]struct{}, req []string) bool {
	for _, r := range req {
		if _, ok := have[r]; !ok {
			return false
		}
	}
	return true
}

func unauthorized(w http.ResponseWriter, code, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="`+code+`", error_description="`+desc+`"`)
	writeError(w, http.StatusUnauthorized, codeUnauthorized, desc)
}
