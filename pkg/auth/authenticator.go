package auth

import (
	"fmt"

	pterrors "parceltrack/pkg/errors"
	"parceltrack/pkg/logger"
	"parceltrack/pkg/protocol"
)

// Authenticator resolves an access token to an authenticated identity
type Authenticator interface {
	Resolve(token string) (protocol.Identity, error)
}

// UserDirectory supplies the role for a known user id
type UserDirectory interface {
	UserRole(userID int64) (protocol.Role, error)
}

// TokenAuthenticator verifies signed tokens and resolves the bearer's
// role from the user directory
type TokenAuthenticator struct {
	tokens *TokenService
	users  UserDirectory
	log    *logger.Logger
}

// NewTokenAuthenticator creates an authenticator backed by the token
// service and user directory
func NewTokenAuthenticator(tokens *TokenService, users UserDirectory) *TokenAuthenticator {
	return &TokenAuthenticator{
		tokens: tokens,
		users:  users,
		log:    logger.Component("auth"),
	}
}

// Resolve verifies the token and looks up the user's role. Any failure
// yields ErrAuthFailed; no connection state is created for a rejected
// handshake.
func (a *TokenAuthenticator) Resolve(token string) (protocol.Identity, error) {
	userID, err := a.tokens.Verify(token)
	if err != nil {
		a.log.Debug("token verification failed", "error", err)
		return protocol.Identity{}, fmt.Errorf("%w: %v", pterrors.ErrAuthFailed, err)
	}

	role, err := a.users.UserRole(userID)
	if err != nil {
		a.log.Debug("user lookup failed", "user_id", userID, "error", err)
		return protocol.Identity{}, fmt.Errorf("%w: unknown user", pterrors.ErrAuthFailed)
	}

	return protocol.Identity{UserID: userID, Role: role}, nil
}
