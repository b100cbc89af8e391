package users

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// DefaultContextKey is the fiber Locals key the gate stores the
// authenticated account under.
const DefaultContextKey = "user"

const bearerScheme = "Bearer"

// SessionVerifier resolves a bearer token to the account it belongs to
type SessionVerifier interface {
	AccountFromToken(ctx context.Context, token string) (*User, error)
}

// AuthGate builds route middleware that authenticates requests and
// enforces role requirements. Handlers downstream read the account via
// UserFromFiber or FromContext.
type AuthGate struct {
	verifier   SessionVerifier
	logger     Logger
	contextKey string
}

// AuthGateOption customizes the gate
type AuthGateOption func(*AuthGate)

// WithGateLogger overrides the default logger
func WithGateLogger(l Logger) AuthGateOption {
	return func(g *AuthGate) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithGateContextKey changes the Locals key for the account
func WithGateContextKey(key string) AuthGateOption {
	return func(g *AuthGate) {
		if key != "" {
			g.contextKey = key
		}
	}
}

// NewAuthGate returns a gate backed by the given session verifier
func NewAuthGate(verifier SessionVerifier, opts ...AuthGateOption) *AuthGate {
	g := &AuthGate{
		verifier:   verifier,
		logger:     defLogger{},
		contextKey: DefaultContextKey,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	return g
}

// RequireAuthenticated rejects requests without a valid bearer token.
// On success the account is attached to the request before Next.
func (g *AuthGate) RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := g.authenticate(c)
		if err != nil {
			return err
		}

		g.attach(c, user)
		return c.Next()
	}
}

// RequireAdmin rejects unauthenticated requests with Unauthenticated and
// authenticated non-admins with Forbidden. The two cases stay distinct
// so a client can tell "log in" apart from "not allowed".
func (g *AuthGate) RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := g.authenticate(c)
		if err != nil {
			return err
		}

		if !user.Role.IsAtLeast(RoleAdmin) {
			g.logger.Debug("admin route denied", "user_id", user.ID, "role", user.Role)
			return ErrForbidden
		}

		g.attach(c, user)
		return c.Next()
	}
}

func (g *AuthGate) authenticate(c *fiber.Ctx) (*User, error) {
	token := TokenFromHeader(c.Get(fiber.HeaderAuthorization))
	if token == "" {
		return nil, ErrUnauthenticated
	}

	user, err := g.verifier.AccountFromToken(c.UserContext(), token)
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (g *AuthGate) attach(c *fiber.Ctx, user *User) {
	c.Locals(g.contextKey, user)
	c.SetUserContext(WithContext(c.UserContext(), user))
}

// TokenFromHeader extracts the bearer token from an Authorization header
// value. A bare token without a scheme is accepted too.
func TokenFromHeader(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}

	if len(header) > len(bearerScheme) && strings.EqualFold(header[:len(bearerScheme)], bearerScheme) {
		return strings.TrimSpace(header[len(bearerScheme):])
	}

	if strings.ContainsRune(header, ' ') {
		return ""
	}

	return header
}

// UserFromFiber reads the account a gate middleware attached to the
// request, using the default context key.
func UserFromFiber(c *fiber.Ctx) (*User, bool) {
	user, ok := c.Locals(DefaultContextKey).(*User)
	return user, ok
}
