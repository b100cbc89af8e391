package users

import (
	"context"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var trackSuccessfulLoginSQL = `UPDATE "users" AS "usr"
SET
	"last_login_at" = ?
WHERE
	"usr"."deleted_at" IS NULL
AND (
	"usr"."id" = ?
) RETURNING *;`

var updatePasswordSQL = `UPDATE "users" AS "usr"
SET
	"password_hash" = ?
WHERE
	"usr"."deleted_at" IS NULL
AND (
	"usr"."id" = ?
) RETURNING *;`

// Users is the storage surface for account records
type Users interface {
	repository.Repository[*User]

	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error)
	CountByRole(ctx context.Context, role UserRole) (int, error)
	CountByRoleTx(ctx context.Context, tx bun.IDB, role UserRole) (int, error)

	Register(ctx context.Context, user *User) (*User, error)
	RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)
	RegisterBootstrapAdmin(ctx context.Context, user *User) (*User, error)
	RegisterBootstrapAdminTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)

	TrackSuccessfulLogin(ctx context.Context, user *User) error
	TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, user *User) error

	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	UpdatePasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error
	UpdateProfile(ctx context.Context, id uuid.UUID, fullName, email string) (*User, error)
	UpdateProfileTx(ctx context.Context, tx bun.IDB, id uuid.UUID, fullName, email string) (*User, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status UserStatus) (*User, error)
	UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status UserStatus) (*User, error)

	ListPage(ctx context.Context, page, limit int) ([]*User, int, error)
	ListPageTx(ctx context.Context, tx bun.IDB, page, limit int) ([]*User, int, error)
}

type usersRepo struct {
	repository.Repository[*User]
	db *bun.DB
}

var (
	_ Users                        = (*usersRepo)(nil)
	_ UserStore                    = (*usersRepo)(nil)
	_ repository.Repository[*User] = (*usersRepo)(nil)
)

// NewUsersRepository builds the bun backed Users repository
func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &usersRepo{
		Repository: repo,
		db:         db,
	}
}

func (a *usersRepo) GetByEmail(ctx context.Context, email string) (*User, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *usersRepo) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", NormalizeEmail(email)).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	return record, nil
}

func (a *usersRepo) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return a.FindByIDTx(ctx, a.db, id)
}

func (a *usersRepo) FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	return record, nil
}

func (a *usersRepo) CountByRole(ctx context.Context, role UserRole) (int, error) {
	return a.CountByRoleTx(ctx, a.db, role)
}

func (a *usersRepo) CountByRoleTx(ctx context.Context, tx bun.IDB, role UserRole) (int, error) {
	return tx.NewSelect().
		Model((*User)(nil)).
		Where("?TableAlias.user_role = ?", role).
		Count(ctx)
}

func (a *usersRepo) Register(ctx context.Context, user *User) (*User, error) {
	return a.RegisterTx(ctx, a.db, user)
}

func (a *usersRepo) RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	prepareUserDefaults(user)

	record, err := a.Repository.CreateTx(ctx, tx, user)
	if err != nil {
		if IsDuplicateConstraintError(err, "email") {
			return nil, ErrEmailInUse
		}
		return nil, err
	}

	return record, nil
}

func (a *usersRepo) RegisterBootstrapAdmin(ctx context.Context, user *User) (*User, error) {
	return a.RegisterBootstrapAdminTx(ctx, a.db, user)
}

// RegisterBootstrapAdminTx inserts the first admin. The partial unique
// index on is_bootstrap_admin admits at most one such row, so the loser
// of a concurrent bootstrap sees a duplicate key failure here.
func (a *usersRepo) RegisterBootstrapAdminTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	user.Role = RoleAdmin
	user.UserType = nil
	user.IsBootstrapAdmin = true
	prepareUserDefaults(user)

	record, err := a.Repository.CreateTx(ctx, tx, user)
	if err != nil {
		if IsDuplicateConstraintError(err, "email") {
			return nil, ErrEmailInUse
		}
		if IsDuplicateConstraintError(err, "is_bootstrap_admin") {
			return nil, ErrAdminCreationForbidden
		}
		return nil, err
	}

	return record, nil
}

func (a *usersRepo) TrackSuccessfulLogin(ctx context.Context, user *User) error {
	return a.TrackSuccessfulLoginTx(ctx, a.db, user)
}

func (a *usersRepo) TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, user *User) error {
	now := time.Now()
	_, err := tx.NewRaw(trackSuccessfulLoginSQL, now, user.ID).Exec(ctx)
	if err != nil {
		return err
	}

	user.LastLoginAt = &now
	return nil
}

func (a *usersRepo) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return a.UpdatePasswordTx(ctx, a.db, id, passwordHash)
}

func (a *usersRepo) UpdatePasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	res, err := a.Repository.RawTx(ctx, tx, updatePasswordSQL, passwordHash, id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return ErrAccountNotFound
	}

	return nil
}

func (a *usersRepo) UpdateProfile(ctx context.Context, id uuid.UUID, fullName, email string) (*User, error) {
	return a.UpdateProfileTx(ctx, a.db, id, fullName, email)
}

func (a *usersRepo) UpdateProfileTx(ctx context.Context, tx bun.IDB, id uuid.UUID, fullName, email string) (*User, error) {
	record := &User{
		ID:       id,
		FullName: fullName,
		Email:    NormalizeEmail(email),
	}

	updated, err := a.Repository.UpdateTx(ctx, tx, record, repository.UpdateByID(id.String()))
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrAccountNotFound
		}
		if IsDuplicateConstraintError(err, "email") {
			return nil, ErrEmailInUse
		}
		return nil, err
	}

	return updated, nil
}

func (a *usersRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status UserStatus) (*User, error) {
	return a.UpdateStatusTx(ctx, a.db, id, status)
}

func (a *usersRepo) UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status UserStatus) (*User, error) {
	record := &User{
		ID:     id,
		Status: status,
	}

	updated, err := a.Repository.UpdateTx(ctx, tx, record, repository.UpdateByID(id.String()))
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	return updated, nil
}

func (a *usersRepo) ListPage(ctx context.Context, page, limit int) ([]*User, int, error) {
	return a.ListPageTx(ctx, a.db, page, limit)
}

func (a *usersRepo) ListPageTx(ctx context.Context, tx bun.IDB, page, limit int) ([]*User, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}

	records := []*User{}
	total, err := tx.NewSelect().
		Model(&records).
		Order("created_at DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		ScanAndCount(ctx)

	if err != nil {
		return nil, 0, err
	}

	return records, total, nil
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	if record.Role == "" {
		record.Role = RoleUser
	}

	record.Email = NormalizeEmail(record.Email)
	record.EnsureStatus()

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}
