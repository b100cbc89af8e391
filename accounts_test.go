package users_test

import (
	"context"
	"testing"

	users "github.com/goliatone/go-users"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignupAndLoginRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newFakeUserStore()
	sink := &recordingSink{}
	accounts := newTestAccounts(store, users.WithAccountsActivitySink(sink))

	signup, err := accounts.Signup(ctx, users.SignupInput{
		FullName: "Dev One",
		Email:    "Dev@Example.com",
		Password: "Password1",
	})
	require.NoError(t, err)
	require.NotEmpty(t, signup.Token)

	assert.Equal(t, "dev@example.com", signup.Account.Email)
	assert.Equal(t, users.RoleUser, signup.Account.Role)
	assert.Equal(t, users.UserStatusActive, signup.Account.Status)
	assert.NotEqual(t, uuid.Nil, signup.Account.ID)

	// The signup token is immediately usable as a session
	session, err := accounts.VerifySession(ctx, signup.Token)
	require.NoError(t, err)
	assert.Equal(t, signup.Account.ID, session.ID)

	// Login with different casing on the email
	login, err := accounts.Login(ctx, "DEV@example.COM", "Password1")
	require.NoError(t, err)
	assert.Equal(t, signup.Account.ID, login.Account.ID)
	assert.NotNil(t, login.Account.LastLoginAt)

	assert.Len(t, sink.byType(users.ActivityEventAccountCreated), 1)
	assert.Len(t, sink.byType(users.ActivityEventLoginSuccess), 1)
}

func TestSignupRejectsWeakInput(t *testing.T) {
	ctx := context.Background()
	accounts := newTestAccounts(newFakeUserStore())

	tests := []struct {
		name  string
		input users.SignupInput
	}{
		{
			name:  "Weak password",
			input: users.SignupInput{FullName: "Dev", Email: "dev@example.com", Password: "weak"},
		},
		{
			name:  "Digits only password",
			input: users.SignupInput{FullName: "Dev", Email: "dev@example.com", Password: "12345678"},
		},
		{
			name:  "Bad email",
			input: users.SignupInput{FullName: "Dev", Email: "dev@example", Password: "Password1"},
		},
		{
			name:  "Missing name",
			input: users.SignupInput{Email: "dev@example.com", Password: "Password1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := accounts.Signup(ctx, tt.input)
			assert.Error(t, err)
			assert.Nil(t, result)
		})
	}
}

func TestSignupDuplicateEmailCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	accounts := newTestAccounts(newFakeUserStore())

	_, err := accounts.Signup(ctx, users.SignupInput{
		FullName: "First",
		Email:    "dev@example.com",
		Password: "Password1",
	})
	require.NoError(t, err)

	_, err = accounts.Signup(ctx, users.SignupInput{
		FullName: "Second",
		Email:    "DEV@EXAMPLE.COM",
		Password: "Password2",
	})
	assert.ErrorIs(t, err, users.ErrEmailInUse)
}

func TestSignupRejectsInvalidUserType(t *testing.T) {
	ctx := context.Background()
	accounts := newTestAccounts(newFakeUserStore())

	bad := users.UserType("astronaut")
	_, err := accounts.Signup(ctx, users.SignupInput{
		FullName: "Dev",
		Email:    "dev@example.com",
		Password: "Password1",
		UserType: &bad,
	})
	assert.Error(t, err)
}

func TestLoginFailuresAreUniform(t *testing.T) {
	ctx := context.Background()
	store := newFakeUserStore()
	sink := &recordingSink{}
	accounts := newTestAccounts(store, users.WithAccountsActivitySink(sink))

	_, err := accounts.Signup(ctx, users.SignupInput{
		FullName: "Dev One",
		Email:    "dev@example.com",
		Password: "Password1",
	})
	require.NoError(t, err)

	_, unknownErr := accounts.Login(ctx, "nobody@example.com", "Password1")
	_, wrongErr := accounts.Login(ctx, "dev@example.com", "WrongPassword1")

	// Unknown account and wrong password must be indistinguishable
	assert.ErrorIs(t, unknownErr, users.ErrInvalidCredentials)
	assert.ErrorIs(t, wrongErr, users.ErrInvalidCredentials)
	assert.Equal(t, unknownErr.Error(), wrongErr.Error())

	assert.Len(t, sink.byType(users.ActivityEventLoginFailure), 2)
}

func TestLoginBlockedWhenInactive(t *testing.T) {
	ctx := context.Background()
	store := newFakeUserStore()
	accounts := newTestAccounts(store)

	signup, err := accounts.Signup(ctx, users.SignupInput{
		FullName: "Dev One",
		Email:    "dev@example.com",
		Password: "Password1",
	})
	require.NoError(t, err)

	_, err = store.UpdateStatus(ctx, signup.Account.ID, users.UserStatusInactive)
	require.NoError(t, err)

	_, err = accounts.Login(ctx, "dev@example.com", "Password1")
	assert.ErrorIs(t, err, users.ErrAccountInactive)
}

func TestVerifySessionFailures(t *testing.T) {
	ctx := context.Background()
	store := newFakeUserStore()
	accounts := newTestAccounts(store)

	signup, err := accounts.Signup(ctx, users.SignupInput{
		FullName: "Dev One",
		Email:    "dev@example.com",
		Password: "Password1",
	})
	require.NoError(t, err)

	t.Run("Empty token", func(t *testing.T) {
		_, err := accounts.VerifySession(ctx, "")
		assert.ErrorIs(t, err, users.ErrUnauthenticated)
	})

	t.Run("Garbage token", func(t *testing.T) {
		_, err := accounts.VerifySession(ctx, "not-a-token")
		assert.ErrorIs(t, err, users.ErrUnauthenticated)
	})

	t.Run("Token for a deleted account", func(t *testing.T) {
		store.delete(signup.Account.ID)
		_, err := accounts.VerifySession(ctx, signup.Token)
		assert.ErrorIs(t, err, users.ErrUnauthenticated)
	})
}

// Deactivation does not revoke outstanding tokens: they are stateless
// and stay verifiable until expiry. Only new logins are blocked.
func TestInactiveAccountTokenStillVerifies(t *testing.T) {
	ctx := context.Background()
	store := newFakeUserStore()
	accounts := newTestAccounts(store)

	signup, err := accounts.Signup(ctx, users.SignupInput{
		FullName: "Dev One",
		Email:    "dev@example.com",
		Password: "Password1",
	})
	require.NoError(t, err)

	_, err = store.UpdateStatus(ctx, signup.Account.ID, users.UserStatusInactive)
	require.NoError(t, err)

	session, err := accounts.VerifySession(ctx, signup.Token)
	require.NoError(t, err)
	assert.Equal(t, users.UserStatusInactive, session.Status)
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	store := newFakeUserStore()
	sink := &recordingSink{}
	accounts := newTestAccounts(store, users.WithAccountsActivitySink(sink))

	signup, err := accounts.Signup(ctx, users.SignupInput{
		FullName: "Dev One",
		Email:    "dev@example.com",
		Password: "Password1",
	})
	require.NoError(t, err)

	id := signup.Account.ID

	t.Run("Wrong current password", func(t *testing.T) {
		err := accounts.ChangePassword(ctx, id, "NotThePassword1", "NewPassword1")
		assert.ErrorIs(t, err, users.ErrWrongPassword)
	})

	t.Run("Weak new password", func(t *testing.T) {
		err := accounts.ChangePassword(ctx, id, "Password1", "short")
		assert.Error(t, err)
	})

	t.Run("Unknown account", func(t *testing.T) {
		err := accounts.ChangePassword(ctx, uuid.New(), "Password1", "NewPassword1")
		assert.ErrorIs(t, err, users.ErrAccountNotFound)
	})

	t.Run("Successful rotation", func(t *testing.T) {
		err := accounts.ChangePassword(ctx, id, "Password1", "NewPassword1")
		require.NoError(t, err)

		_, err = accounts.Login(ctx, "dev@example.com", "Password1")
		assert.ErrorIs(t, err, users.ErrInvalidCredentials)

		_, err = accounts.Login(ctx, "dev@example.com", "NewPassword1")
		assert.NoError(t, err)

		assert.Len(t, sink.byType(users.ActivityEventPasswordChanged), 1)
	})
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	store := newFakeUserStore()
	accounts := newTestAccounts(store)

	first, err := accounts.Signup(ctx, users.SignupInput{
		FullName: "Dev One",
		Email:    "dev@example.com",
		Password: "Password1",
	})
	require.NoError(t, err)

	second, err := accounts.Signup(ctx, users.SignupInput{
		FullName: "Dev Two",
		Email:    "other@example.com",
		Password: "Password1",
	})
	require.NoError(t, err)

	t.Run("Rename and keep email", func(t *testing.T) {
		summary, err := accounts.UpdateProfile(ctx, first.Account.ID, "Renamed Dev", "dev@example.com")
		require.NoError(t, err)
		assert.Equal(t, "Renamed Dev", summary.FullName)
		assert.Equal(t, "dev@example.com", summary.Email)
	})

	t.Run("Email collision with another account", func(t *testing.T) {
		_, err := accounts.UpdateProfile(ctx, first.Account.ID, "Dev One", "Other@Example.com")
		assert.ErrorIs(t, err, users.ErrEmailInUse)
	})

	t.Run("Bad email shape", func(t *testing.T) {
		_, err := accounts.UpdateProfile(ctx, second.Account.ID, "Dev Two", "nope")
		assert.Error(t, err)
	})
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()
	store := newFakeUserStore()
	sink := &recordingSink{}
	accounts := newTestAccounts(store, users.WithAccountsActivitySink(sink))

	signup, err := accounts.Signup(ctx, users.SignupInput{
		FullName: "Dev One",
		Email:    "dev@example.com",
		Password: "Password1",
	})
	require.NoError(t, err)

	actor := users.ActorRef{ID: uuid.New().String(), Type: "user"}

	summary, err := accounts.UpdateStatus(ctx, actor, signup.Account.ID, users.UserStatusInactive)
	require.NoError(t, err)
	assert.Equal(t, users.UserStatusInactive, summary.Status)

	events := sink.byType(users.ActivityEventStatusChanged)
	require.Len(t, events, 1)
	assert.Equal(t, users.UserStatusActive, events[0].FromStatus)
	assert.Equal(t, users.UserStatusInactive, events[0].ToStatus)

	_, err = accounts.UpdateStatus(ctx, actor, signup.Account.ID, users.UserStatus("banned"))
	assert.Error(t, err)

	_, err = accounts.UpdateStatus(ctx, actor, uuid.New(), users.UserStatusActive)
	assert.ErrorIs(t, err, users.ErrAccountNotFound)
}

func TestListAccounts(t *testing.T) {
	ctx := context.Background()
	store := newFakeUserStore()
	accounts := newTestAccounts(store)

	emails := []string{"a@example.com", "b@example.com", "c@example.com", "d@example.com", "e@example.com"}
	for _, email := range emails {
		_, err := accounts.Signup(ctx, users.SignupInput{
			FullName: "Dev",
			Email:    email,
			Password: "Password1",
		})
		require.NoError(t, err)
	}

	page, err := accounts.ListAccounts(ctx, 1, 2)
	require.NoError(t, err)
	assert.Len(t, page.Accounts, 2)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 1, page.Page)

	last, err := accounts.ListAccounts(ctx, 3, 2)
	require.NoError(t, err)
	assert.Len(t, last.Accounts, 1)

	// Out of range pages and bad inputs normalize instead of failing
	empty, err := accounts.ListAccounts(ctx, 9, 2)
	require.NoError(t, err)
	assert.Empty(t, empty.Accounts)

	defaulted, err := accounts.ListAccounts(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, defaulted.Page)
	assert.Len(t, defaulted.Accounts, 5)
}

func TestGetProfile(t *testing.T) {
	ctx := context.Background()
	store := newFakeUserStore()
	accounts := newTestAccounts(store)

	signup, err := accounts.Signup(ctx, users.SignupInput{
		FullName: "Dev One",
		Email:    "dev@example.com",
		Password: "Password1",
	})
	require.NoError(t, err)

	summary, err := accounts.GetProfile(ctx, signup.Account.ID)
	require.NoError(t, err)
	assert.Equal(t, signup.Account.ID, summary.ID)

	_, err = accounts.GetProfile(ctx, uuid.New())
	assert.ErrorIs(t, err, users.ErrAccountNotFound)
}
