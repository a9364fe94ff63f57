package auth

import (
	"context"
	"errors"
	"strings"

	"heartbridge-api/apperror"
	"heartbridge-api/models"
	"heartbridge-api/store"
)

// Identity is the authenticated caller bound to a request.
type Identity struct {
	UserID string          `json:"user_id"`
	Role   models.UserRole `json:"role"`
}

// System is the identity used for cascade operations such as account deletion.
var System = Identity{UserID: "system", Role: models.RoleSystem}

// Gate validates bearer credentials and answers role capability checks.
type Gate struct {
	tokens   *TokenIssuer
	accounts store.AccountStore
}

func NewGate(tokens *TokenIssuer, accounts store.AccountStore) *Gate {
	return &Gate{tokens: tokens, accounts: accounts}
}

// Authenticate resolves a bearer credential to an active account. The role is read
// from the stored account so role or state changes take effect immediately.
func (g *Gate) Authenticate(ctx context.Context, credential string) (Identity, error) {
	credential = strings.TrimSpace(strings.TrimPrefix(credential, "Bearer "))
	if credential == "" {
		return Identity{}, apperror.Unauthenticated("Authorization header required (Bearer <token>)")
	}
	claims, err := g.tokens.Parse(credential)
	if err != nil {
		return Identity{}, apperror.Unauthenticated("Invalid or expired token")
	}
	user, err := g.accounts.GetUser(ctx, claims.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return Identity{}, apperror.Unauthenticated("The user belonging to this token no longer exists")
	}
	if err != nil {
		return Identity{}, apperror.Internal("failed to load account", err)
	}
	if !user.Active() {
		return Identity{}, apperror.Unauthenticated("Your account is " + string(user.State))
	}
	return Identity{UserID: user.ID, Role: user.Role}, nil
}

// Authorize reports whether the identity holds one of the required roles.
func (g *Gate) Authorize(id Identity, required ...models.UserRole) bool {
	if id.UserID == "" {
		return false
	}
	for _, r := range required {
		if id.Role == r {
			return true
		}
	}
	return false
}
