package handler

import (
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/coursemart/internal/domain/auth"
)

// APIKeyHeader carries the administrative API key.
const APIKeyHeader = "api_key"

// SecurityHandler authenticates requests by the HMAC-SHA256 hash of their
// API key.
type SecurityHandler struct {
	apikeys auth.Repository
	pepper  []byte
}

// NewSecurityHandler creates a SecurityHandler with the given API key
// repository and HMAC pepper.
func NewSecurityHandler(apikeys auth.Repository, pepper []byte) *SecurityHandler {
	return &SecurityHandler{
		apikeys: apikeys,
		pepper:  pepper,
	}
}

var errUnauthorized = errors.New("unauthorized")

// authenticate resolves the key to its stored record. The hash comparison is
// constant-time so a repository returning a wrong row cannot leak timing.
func (s *SecurityHandler) authenticate(r *http.Request) (*auth.APIKeyInfo, error) {
	key := r.Header.Get(APIKeyHeader)
	if key == "" {
		return nil, errUnauthorized
	}
	hash := auth.HashKey(key, s.pepper)

	info, err := s.apikeys.FindByHash(r.Context(), hash)
	if err != nil {
		if errors.Is(err, auth.ErrKeyNotFound) {
			return nil, errUnauthorized
		}
		return nil, errors.Wrap(err, "find api key")
	}

	want, err := hex.DecodeString(info.KeyHash)
	if err != nil {
		return nil, errUnauthorized
	}
	got, _ := hex.DecodeString(hash)
	if subtle.ConstantTimeCompare(got, want) != 1 {
		return nil, errUnauthorized
	}
	return info, nil
}

// Require rejects requests without a valid API key (401) or whose key lacks
// scope (403).
func (s *SecurityHandler) Require(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info, err := s.authenticate(r)
			switch {
			case errors.Is(err, errUnauthorized):
				writeError(w, http.StatusUnauthorized, "invalid or missing api key")
				return
			case err != nil:
				writeInternal(w, r, err)
				return
			}
			if !info.HasScope(scope) {
				writeError(w, http.StatusForbidden, "api key lacks scope "+scope)
				return
			}

			lg := zctx.From(r.Context()).With(zap.String("api_key_id", info.ID))
			next.ServeHTTP(w, r.WithContext(zctx.Base(r.Context(), lg)))
		})
	}
}
