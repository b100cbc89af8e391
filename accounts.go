package users

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
)

// DefaultPageSize bounds account listings when the caller gives no limit
const DefaultPageSize = 10

// MaxPageSize caps the per page listing size
const MaxPageSize = 100

// UserStore is the narrow storage surface the accounts service needs.
// The bun backed Users repository satisfies it; tests provide a
// stateful in-memory double.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	CountByRole(ctx context.Context, role UserRole) (int, error)
	Register(ctx context.Context, user *User) (*User, error)
	RegisterBootstrapAdmin(ctx context.Context, user *User) (*User, error)
	TrackSuccessfulLogin(ctx context.Context, user *User) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	UpdateProfile(ctx context.Context, id uuid.UUID, fullName, email string) (*User, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status UserStatus) (*User, error)
	ListPage(ctx context.Context, page, limit int) ([]*User, int, error)
}

// Accounts implements the inbound operations of the auth core: account
// creation, credential verification, token issuance, session
// verification, and the profile self-service operations built on them.
type Accounts struct {
	store            UserStore
	tokens           TokenService
	hasher           *PasswordHasher
	logger           Logger
	activitySink     ActivitySink
	deterministicIDs bool
}

// AccountsOption customizes the accounts service
type AccountsOption func(*Accounts)

// WithAccountsLogger overrides the default logger
func WithAccountsLogger(l Logger) AccountsOption {
	return func(a *Accounts) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithAccountsHasher overrides the password hasher, e.g. to tune cost
func WithAccountsHasher(h *PasswordHasher) AccountsOption {
	return func(a *Accounts) {
		if h != nil {
			a.hasher = h
		}
	}
}

// WithAccountsActivitySink configures an ActivitySink for audit events
func WithAccountsActivitySink(sink ActivitySink) AccountsOption {
	return func(a *Accounts) {
		a.activitySink = normalizeActivitySink(sink)
	}
}

// WithDeterministicIDs derives account identifiers from the email via
// hashid instead of random uuids.
func WithDeterministicIDs() AccountsOption {
	return func(a *Accounts) {
		a.deterministicIDs = true
	}
}

// NewAccounts returns a new accounts service
func NewAccounts(store UserStore, tokens TokenService, opts ...AccountsOption) *Accounts {
	a := &Accounts{
		store:        store,
		tokens:       tokens,
		hasher:       defaultHasher,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	return a
}

// AuthResult carries a freshly minted token and the account it belongs to
type AuthResult struct {
	Token   string         `json:"token"`
	Account AccountSummary `json:"user"`
}

// AccountPage is one page of an account listing
type AccountPage struct {
	Accounts   []AccountSummary `json:"users"`
	Page       int              `json:"page"`
	TotalPages int              `json:"total_pages"`
	Total      int              `json:"total"`
}

// SignupInput is the payload for self-service account creation
type SignupInput struct {
	FullName string
	Email    string
	Password string
	Role     UserRole
	UserType *UserType
	// CallerToken is only consulted when Role is admin; the combined
	// signup path routes through the same bootstrap guard as CreateAdmin.
	CallerToken string
}

// Signup creates a regular account and logs it in. Requests naming the
// admin role are delegated to CreateAdmin so the bootstrap rule cannot
// be bypassed through this path.
func (a *Accounts) Signup(ctx context.Context, input SignupInput) (*AuthResult, error) {
	if input.Role == RoleAdmin {
		return a.CreateAdmin(ctx, CreateAdminInput{
			FullName:    input.FullName,
			Email:       input.Email,
			Password:    input.Password,
			CallerToken: input.CallerToken,
		})
	}

	if err := ValidateSignupCredentials(input.FullName, input.Email, input.Password); err != nil {
		return nil, err
	}

	if input.Role != "" && !input.Role.IsValid() {
		return nil, NewValidationError("invalid role")
	}

	if input.UserType != nil && !input.UserType.IsValid() {
		return nil, NewValidationError("invalid user type")
	}

	user := &User{
		FullName: input.FullName,
		Email:    NormalizeEmail(input.Email),
		Role:     RoleUser,
		UserType: input.UserType,
	}

	return a.register(ctx, user, input.Password, ActivityEventAccountCreated)
}

func (a *Accounts) register(ctx context.Context, user *User, password string, event ActivityEventType) (*AuthResult, error) {
	// Advisory pre-check; the unique index is the authoritative guard
	// and a racing duplicate surfaces as the same error from Register.
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

	created, err := a.store.Register(ctx, user)
	if err != nil {
		return nil, err
	}

	token, err := a.tokens.Generate(created.identity())
	if err != nil {
		a.logger.Error("signup token generation failed", "error", err)
		return nil, err
	}

	a.emitEvent(ctx, ActivityEvent{
		EventType: event,
		Actor:     ActorRef{ID: created.ID.String(), Type: "user"},
		UserID:    created.ID.String(),
		Metadata:  map[string]any{"role": created.Role},
	})

	return &AuthResult{Token: token, Account: created.Summary()}, nil
}

// Login verifies credentials and mints a token. Unknown emails and
// wrong passwords are indistinguishable; inactive accounts are rejected
// after credential verification.
func (a *Accounts) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	if email == "" || password == "" {
		return nil, NewValidationError("email and password are required")
	}

	user, err := a.store.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if goerrors.IsNotFound(err) {
			a.emitLoginFailure(ctx, email, ErrInvalidCredentials)
			return nil, ErrInvalidCredentials
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account during login")
	}

	if err := a.hasher.ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		a.emitLoginFailure(ctx, email, ErrInvalidCredentials)
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive() {
		a.emitLoginFailure(ctx, email, ErrAccountInactive)
		return nil, ErrAccountInactive
	}

	if err := a.store.TrackSuccessfulLogin(ctx, user); err != nil {
		a.logger.Error("failed to track successful login", "error", err)
	}

	token, err := a.tokens.Generate(user.identity())
	if err != nil {
		return nil, err
	}

	a.emitEvent(ctx, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		Actor:     ActorRef{ID: user.ID.String(), Type: "user"},
		UserID:    user.ID.String(),
	})

	return &AuthResult{Token: token, Account: user.Summary()}, nil
}

// AccountFromToken verifies a bearer token and loads the referenced
// account. Every failure mode collapses to ErrUnauthenticated; the
// detail is logged server side only. Account status is deliberately not
// consulted: tokens are stateless, so deactivation does not revoke
// tokens issued before it.
func (a *Accounts) AccountFromToken(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}

	claims, err := a.tokens.Validate(token)
	if err != nil {
		a.logger.Debug("token validation failed", "error", err)
		return nil, ErrUnauthenticated
	}

	id, err := uuid.Parse(claims.UserID())
	if err != nil {
		a.logger.Debug("token carries a non uuid subject", "subject", claims.UserID())
		return nil, ErrUnauthenticated
	}

	user, err := a.store.FindByID(ctx, id)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrUnauthenticated
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account for session")
	}

	return user, nil
}

// VerifySession resolves a token to the account summary it references
func (a *Accounts) VerifySession(ctx context.Context, token string) (*AccountSummary, error) {
	user, err := a.AccountFromToken(ctx, token)
	if err != nil {
		return nil, err
	}

	summary := user.Summary()
	return &summary, nil
}

// ChangePassword rotates an account's credential after verifying the
// current one and the strength policy on the new one.
func (a *Accounts) ChangePassword(ctx context.Context, id uuid.UUID, currentPassword, newPassword string) error {
	if currentPassword == "" || newPassword == "" {
		return NewValidationError("both current and new password are required")
	}

	user, err := a.store.FindByID(ctx, id)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return ErrAccountNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account for password change")
	}

	if err := a.hasher.ComparePasswordAndHash(currentPassword, user.PasswordHash); err != nil {
		return ErrWrongPassword
	}

	if !IsStrongPassword(newPassword) {
		return NewValidationError("password must be at least 8 characters and include letters and numbers")
	}

	hash, err := a.hasher.HashPassword(newPassword)
	if err != nil {
		return err
	}

	if err := a.store.UpdatePassword(ctx, id, hash); err != nil {
		return err
	}

	a.emitEvent(ctx, ActivityEvent{
		EventType: ActivityEventPasswordChanged,
		Actor:     ActorRef{ID: id.String(), Type: "user"},
		UserID:    id.String(),
	})

	return nil
}

// UpdateProfile edits the self-service fields. Role, type and status
// are never touched here. Email changes revalidate shape and
// uniqueness, excluding the account itself.
func (a *Accounts) UpdateProfile(ctx context.Context, id uuid.UUID, fullName, email string) (*AccountSummary, error) {
	if fullName == "" || email == "" {
		return nil, NewValidationError("full name and email are required")
	}

	if !IsValidEmail(email) {
		return nil, NewValidationError("invalid email format")
	}

	normalized := NormalizeEmail(email)

	if existing, err := a.store.GetByEmail(ctx, normalized); err == nil {
		if existing.ID != id {
			return nil, ErrEmailInUse
		}
	} else if !goerrors.IsNotFound(err) {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email availability")
	}

	updated, err := a.store.UpdateProfile(ctx, id, fullName, normalized)
	if err != nil {
		return nil, err
	}

	a.emitEvent(ctx, ActivityEvent{
		EventType: ActivityEventProfileUpdated,
		Actor:     ActorRef{ID: id.String(), Type: "user"},
		UserID:    id.String(),
	})

	summary := updated.Summary()
	return &summary, nil
}

// GetProfile loads an account summary by id
func (a *Accounts) GetProfile(ctx context.Context, id uuid.UUID) (*AccountSummary, error) {
	user, err := a.store.FindByID(ctx, id)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account")
	}

	summary := user.Summary()
	return &summary, nil
}

// UpdateStatus flips an account between active and inactive. Outstanding
// tokens keep working until expiry; only new logins are blocked.
func (a *Accounts) UpdateStatus(ctx context.Context, actor ActorRef, id uuid.UUID, status UserStatus) (*AccountSummary, error) {
	if !status.IsValid() {
		return nil, NewValidationError("invalid status")
	}

	current, err := a.store.FindByID(ctx, id)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account for status change")
	}

	from := current.Status

	updated, err := a.store.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}

	a.emitEvent(ctx, ActivityEvent{
		EventType:  ActivityEventStatusChanged,
		Actor:      actor,
		UserID:     id.String(),
		FromStatus: from,
		ToStatus:   status,
	})

	summary := updated.Summary()
	return &summary, nil
}

// ListAccounts returns one page of accounts, newest first
func (a *Accounts) ListAccounts(ctx context.Context, page, limit int) (*AccountPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	records, total, err := a.store.ListPage(ctx, page, limit)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list accounts")
	}

	summaries := make([]AccountSummary, 0, len(records))
	for _, r := range records {
		summaries = append(summaries, r.Summary())
	}

	totalPages := (total + limit - 1) / limit
	if totalPages < 1 {
		totalPages = 1
	}

	return &AccountPage{
		Accounts:   summaries,
		Page:       page,
		TotalPages: totalPages,
		Total:      total,
	}, nil
}

func (a *Accounts) emitLoginFailure(ctx context.Context, identifier string, cause error) {
	a.emitEvent(ctx, ActivityEvent{
		EventType: ActivityEventLoginFailure,
		Actor:     ActorRef{Type: "unknown"},
		Metadata: map[string]any{
			"identifier": NormalizeEmail(identifier),
			"error":      cause.Error(),
		},
	})
}

func (a *Accounts) emitEvent(ctx context.Context, event ActivityEvent) {
	sink := normalizeActivitySink(a.activitySink)

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	if err := sink.Record(ctx, event); err != nil {
		a.logger.Warn("activity sink record error: %v", err)
	}
}
