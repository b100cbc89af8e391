package users

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
)

// CreateAdminInput is the payload for admin account creation
type CreateAdminInput struct {
	FullName string
	Email    string
	Password string
	// CallerToken authenticates the requesting admin. It is ignored for
	// the very first admin: bootstrap needs no credentials.
	CallerToken string
}

// CreateAdmin creates an admin account. When no admin exists yet the
// call is open, so a fresh deployment can bootstrap itself. Once any
// admin exists the caller must present a valid token belonging to an
// admin account. Admin accounts never carry a user type.
func (a *Accounts) CreateAdmin(ctx context.Context, input CreateAdminInput) (*AuthResult, error) {
	if err := ValidateSignupCredentials(input.FullName, input.Email, input.Password); err != nil {
		return nil, err
	}

	bootstrap, err := a.authorizeAdminCreation(ctx, input.CallerToken)
	if err != nil {
		return nil, err
	}

	user := &User{
		FullName: input.FullName,
		Email:    NormalizeEmail(input.Email),
		Role:     RoleAdmin,
		UserType: nil,
	}

	if !bootstrap {
		return a.register(ctx, user, input.Password, ActivityEventAccountCreated)
	}

	return a.registerBootstrapAdmin(ctx, user, input.Password)
}

// authorizeAdminCreation decides whether the caller may create an admin.
// It reports bootstrap=true when no admin exists. Every failure mode in
// the authenticated branch collapses to ErrAdminCreationForbidden so the
// endpoint does not leak whether a token was missing, expired, or merely
// underprivileged.
func (a *Accounts) authorizeAdminCreation(ctx context.Context, callerToken string) (bool, error) {
	count, err := a.store.CountByRole(ctx, RoleAdmin)
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to count admin accounts")
	}

	if count == 0 {
		return true, nil
	}

	if callerToken == "" {
		return false, ErrAdminCreationForbidden
	}

	claims, err := a.tokens.Validate(callerToken)
	if err != nil {
		a.logger.Debug("admin creation token rejected", "error", err)
		return false, ErrAdminCreationForbidden
	}

	id, err := uuid.Parse(claims.UserID())
	if err != nil {
		return false, ErrAdminCreationForbidden
	}

	caller, err := a.store.FindByID(ctx, id)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return false, ErrAdminCreationForbidden
		}
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load admin creation caller")
	}

	if caller.Role != RoleAdmin {
		return false, ErrAdminCreationForbidden
	}

	return false, nil
}

// registerBootstrapAdmin inserts the first admin through the dedicated
// storage path. The storage layer admits at most one bootstrap row, so
// when two deployments race here exactly one wins and the other receives
// ErrAdminCreationForbidden, the same answer it would get had it arrived
// a moment later.
func (a *Accounts) registerBootstrapAdmin(ctx context.Context, user *User, password string) (*AuthResult, error) {
	if _, err := a.store.GetByEmail(ctx, user.Email); err == nil {
		return nil, ErrEmailInUse
	} else if !goerrors.IsNotFound(err) {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email availability")
	}

	hash, err := a.hasher.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = hash

	if a.deterministicIDs && user.ID == uuid.Nil {
		if id, err := hashid.NewUUID(user.Email); err == nil {
			user.ID = id
		}
	}

	created, err := a.store.RegisterBootstrapAdmin(ctx, user)
	if err != nil {
		return nil, err
	}

	token, err := a.tokens.Generate(created.identity())
	if err != nil {
		a.logger.Error("bootstrap token generation failed", "error", err)
		return nil, err
	}

	a.emitEvent(ctx, ActivityEvent{
		EventType: ActivityEventAdminBootstrap,
		Actor:     ActorRef{ID: created.ID.String(), Type: "user"},
		UserID:    created.ID.String(),
	})

	return &AuthResult{Token: token, Account: created.Summary()}, nil
}
