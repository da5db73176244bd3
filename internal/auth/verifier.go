// Package auth turns bearer credentials into authenticated principals.
//
// Token issuance (login, refresh) lives in the main application; this service
// only verifies. The verifier is shared by the websocket handshake and the
// HTTP lock endpoints so both surfaces reject credentials identically.
package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iliyamo/order-collab/internal/model"
)

// ErrAuthFailed covers every verification failure: missing credential,
// malformed token, wrong signing method, bad signature, expired claims.
// Callers map it to the AUTH_FAILED wire code; the message carries detail
// for humans, not for branching.
var ErrAuthFailed = errors.New("authentication failed")

// Verifier validates HS256 bearer tokens signed with a shared secret and
// extracts the subject and role claims.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses and validates a raw token string and returns the principal
// encoded in it. Every failure path wraps ErrAuthFailed so callers need a
// single errors.Is check.
func (v *Verifier) Verify(raw string) (model.Principal, error) {
	if raw == "" {
		return model.Principal{}, fmt.Errorf("%w: missing credential", ErrAuthFailed)
	}
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		// Only HMAC is acceptable; reject tokens signed any other way.
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !tok.Valid {
		return model.Principal{}, fmt.Errorf("%w: invalid token", ErrAuthFailed)
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return model.Principal{}, fmt.Errorf("%w: invalid claims", ErrAuthFailed)
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return model.Principal{}, fmt.Errorf("%w: missing subject", ErrAuthFailed)
	}
	role, _ := claims["role"].(string)
	return model.Principal{UserID: sub, Role: role}, nil
}

// VerifyBearer accepts an Authorization header value ("Bearer <token>") or a
// bare token and verifies it. The websocket handshake allows either form: a
// handshake auth field carries the bare token, a header carries the prefixed
// one.
func (v *Verifier) VerifyBearer(value string) (model.Principal, error) {
	value = strings.TrimSpace(value)
	if strings.HasPrefix(value, "Bearer ") {
		value = strings.TrimPrefix(value, "Bearer ")
	}
	return v.Verify(value)
}
