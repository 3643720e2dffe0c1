package adminserver

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

type argon2Params struct {
	memory      uint32
	iterations  uint32
	parallelism uint8
	saltLen     uint32
	keyLen      uint32
}

var defaultArgon2Params = argon2Params{
	memory:      64 * 1024,
	iterations:  3,
	parallelism: 2,
	saltLen:     16,
	keyLen:      32,
}

// HashToken produces an encoded Argon2id hash of token, for operators to
// generate an ADMIN_TOKEN_HASH value for the deployment's environment.
func HashToken(token string) (string, error) {
	p := defaultArgon2Params
	salt := make([]byte, p.saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("op=adminserver.hash_token: %w", err)
	}
	hash := argon2.IDKey([]byte(token), salt, p.iterations, p.memory, p.parallelism, p.keyLen)
	return fmt.Sprintf("argon2id$%d$%d$%d$%s$%s",
		p.iterations, p.memory, p.parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// verifyToken checks token against an encoded hash produced by HashToken.
func verifyToken(token, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[0] != "argon2id" {
		return false
	}
	iterations, err1 := strconv.ParseUint(parts[1], 10, 32)
	memory, err2 := strconv.ParseUint(parts[2], 10, 32)
	parallelism, err3 := strconv.ParseUint(parts[3], 10, 8)
	if err1 != nil || err2 != nil || err3 != nil {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}
	actual := argon2.IDKey([]byte(token), salt, uint32(iterations), uint32(memory), uint8(parallelism), uint32(len(expected)))
	return subtle.ConstantTimeCompare(actual, expected) == 1
}

// requireBearerToken wraps next with a middleware that rejects any request
// whose "Authorization: Bearer <token>" does not verify against tokenHash.
// An empty tokenHash disables the guard entirely (the deployment's
// /debug/* surface is then only as protected as its network perimeter).
func requireBearerToken(tokenHash string, next http.Handler) http.Handler {
	if tokenHash == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authz := strings.TrimSpace(r.Header.Get("Authorization"))
		const prefix = "bearer "
		if len(authz) <= len(prefix) || !strings.EqualFold(authz[:len(prefix)], prefix) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		token := strings.TrimSpace(authz[len(prefix):])
		if !verifyToken(token, tokenHash) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
