package users

import (
	"fmt"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/google/uuid"
)

// ControllerRoutes holds the route prefixes the controller mounts under
type ControllerRoutes struct {
	Signup      string
	UserSignup  string
	AdminSignup string
	Login       string
	Me          string
	Users       string
}

// Controller exposes the accounts service as a JSON API
type Controller struct {
	Debug    bool
	Logger   Logger
	Accounts *Accounts
	Gate     *AuthGate
	Routes   *ControllerRoutes
}

type ControllerOption func(*Controller) *Controller

// WithControllerLogger overrides the default logger
func WithControllerLogger(l Logger) ControllerOption {
	return func(c *Controller) *Controller {
		if l != nil {
			c.Logger = l
		}
		return c
	}
}

// WithControllerDebug enables payload dumps on stdout
func WithControllerDebug(debug bool) ControllerOption {
	return func(c *Controller) *Controller {
		c.Debug = debug
		return c
	}
}

// WithControllerAccounts sets the accounts service, required
func WithControllerAccounts(accounts *Accounts) ControllerOption {
	return func(c *Controller) *Controller {
		c.Accounts = accounts
		return c
	}
}

// WithControllerGate sets the auth gate, required
func WithControllerGate(gate *AuthGate) ControllerOption {
	return func(c *Controller) *Controller {
		c.Gate = gate
		return c
	}
}

func NewController(opts ...ControllerOption) *Controller {
	c := &Controller{
		Logger: defLogger{},
		Routes: &ControllerRoutes{
			Signup:      "/api/auth/signup",
			UserSignup:  "/api/auth/user/signup",
			AdminSignup: "/api/auth/admin/signup",
			Login:       "/api/auth/login",
			Me:          "/api/auth/me",
			Users:       "/api/users",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Accounts == nil {
		panic("Missing Accounts service in users controller...")
	}

	if c.Gate == nil {
		panic("Missing AuthGate in users controller...")
	}

	return c
}

// RegisterRoutes mounts the API on the given fiber router
func RegisterRoutes(app fiber.Router, opts ...ControllerOption) *Controller {
	c := NewController(opts...)

	app.Post(c.Routes.Signup, c.Signup)
	app.Post(c.Routes.UserSignup, c.UserSignup)
	app.Post(c.Routes.AdminSignup, c.CreateAdmin)
	app.Post(c.Routes.Login, c.Login)
	app.Get(c.Routes.Me, c.Gate.RequireAuthenticated(), c.Me)

	// Static /me routes must be mounted before the :id ones
	app.Get(c.Routes.Users+"/me", c.Gate.RequireAuthenticated(), c.Me)
	app.Put(c.Routes.Users+"/me", c.Gate.RequireAuthenticated(), c.UpdateProfile)
	app.Patch(c.Routes.Users+"/me/password", c.Gate.RequireAuthenticated(), c.ChangePassword)

	app.Get(c.Routes.Users, c.Gate.RequireAdmin(), c.List)
	app.Get(c.Routes.Users+"/:id", c.Gate.RequireAdmin(), c.GetAccount)
	app.Patch(c.Routes.Users+"/:id/status", c.Gate.RequireAdmin(), c.UpdateStatus)

	return c
}

// SignupPayload is the account creation body
type SignupPayload struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	UserType string `json:"user_type"`
}

// Validate will run validation rules
func (r SignupPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FullName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.By(validEmailRule)),
		validation.Field(&r.Password, validation.Required, validation.By(strongPasswordRule)),
	)
}

func (a *Controller) Signup(ctx *fiber.Ctx) error {
	payload := new(SignupPayload)

	if err := ctx.BodyParser(payload); err != nil {
		a.Logger.Error("signup parse payload", "error", err)
		return a.renderError(ctx, NewValidationError("invalid request body"))
	}

	if err := payload.Validate(); err != nil {
		return a.renderError(ctx, NewValidationError(err.Error()))
	}

	if a.Debug {
		fmt.Println("======= USERS SIGNUP ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("===========================")
	}

	input := SignupInput{
		FullName:    payload.FullName,
		Email:       payload.Email,
		Password:    payload.Password,
		CallerToken: TokenFromHeader(ctx.Get(fiber.HeaderAuthorization)),
	}

	if payload.Role != "" {
		role, ok := ParseRole(payload.Role)
		if !ok {
			return a.renderError(ctx, NewValidationError("invalid role"))
		}
		input.Role = role
	}

	if payload.UserType != "" {
		ut, ok := ParseUserType(payload.UserType)
		if !ok {
			return a.renderError(ctx, NewValidationError("invalid user type"))
		}
		input.UserType = &ut
	}

	result, err := a.Accounts.Signup(ctx.UserContext(), input)
	if err != nil {
		return a.renderError(ctx, err)
	}

	return ctx.Status(http.StatusCreated).JSON(result)
}

// UserSignupPayload is the body for the employee signup route, where a
// user type is mandatory.
type UserSignupPayload struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	UserType string `json:"user_type"`
}

// Validate will run validation rules
func (r UserSignupPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FullName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.By(validEmailRule)),
		validation.Field(&r.Password, validation.Required, validation.By(strongPasswordRule)),
		validation.Field(&r.UserType, validation.Required),
	)
}

// UserSignup creates a regular account; unlike the combined signup the
// role is never taken from the payload.
func (a *Controller) UserSignup(ctx *fiber.Ctx) error {
	payload := new(UserSignupPayload)

	if err := ctx.BodyParser(payload); err != nil {
		a.Logger.Error("user signup parse payload", "error", err)
		return a.renderError(ctx, NewValidationError("invalid request body"))
	}

	if err := payload.Validate(); err != nil {
		return a.renderError(ctx, NewValidationError(err.Error()))
	}

	ut, ok := ParseUserType(payload.UserType)
	if !ok {
		return a.renderError(ctx, NewValidationError("invalid user type"))
	}

	result, err := a.Accounts.Signup(ctx.UserContext(), SignupInput{
		FullName: payload.FullName,
		Email:    payload.Email,
		Password: payload.Password,
		Role:     RoleUser,
		UserType: &ut,
	})
	if err != nil {
		return a.renderError(ctx, err)
	}

	return ctx.Status(http.StatusCreated).JSON(result)
}

// LoginPayload is the credential body
type LoginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate will run validation rules
func (r LoginPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *Controller) Login(ctx *fiber.Ctx) error {
	payload := new(LoginPayload)

	if err := ctx.BodyParser(payload); err != nil {
		a.Logger.Error("login parse payload", "error", err)
		return a.renderError(ctx, NewValidationError("invalid request body"))
	}

	if err := payload.Validate(); err != nil {
		return a.renderError(ctx, NewValidationError(err.Error()))
	}

	result, err := a.Accounts.Login(ctx.UserContext(), payload.Email, payload.Password)
	if err != nil {
		return a.renderError(ctx, err)
	}

	return ctx.JSON(result)
}

// CreateAdminPayload is the admin creation body
type CreateAdminPayload struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate will run validation rules
func (r CreateAdminPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FullName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.By(validEmailRule)),
		validation.Field(&r.Password, validation.Required, validation.By(strongPasswordRule)),
	)
}

func (a *Controller) CreateAdmin(ctx *fiber.Ctx) error {
	payload := new(CreateAdminPayload)

	if err := ctx.BodyParser(payload); err != nil {
		a.Logger.Error("create admin parse payload", "error", err)
		return a.renderError(ctx, NewValidationError("invalid request body"))
	}

	if err := payload.Validate(); err != nil {
		return a.renderError(ctx, NewValidationError(err.Error()))
	}

	result, err := a.Accounts.CreateAdmin(ctx.UserContext(), CreateAdminInput{
		FullName:    payload.FullName,
		Email:       payload.Email,
		Password:    payload.Password,
		CallerToken: TokenFromHeader(ctx.Get(fiber.HeaderAuthorization)),
	})
	if err != nil {
		return a.renderError(ctx, err)
	}

	return ctx.Status(http.StatusCreated).JSON(result)
}

func (a *Controller) Me(ctx *fiber.Ctx) error {
	user, ok := UserFromFiber(ctx)
	if !ok {
		return a.renderError(ctx, ErrUnauthenticated)
	}

	return ctx.JSON(fiber.Map{"user": user.Summary()})
}

// UpdateProfilePayload is the self-service profile body
type UpdateProfilePayload struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

// Validate will run validation rules
func (r UpdateProfilePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FullName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.By(validEmailRule)),
	)
}

func (a *Controller) UpdateProfile(ctx *fiber.Ctx) error {
	user, ok := UserFromFiber(ctx)
	if !ok {
		return a.renderError(ctx, ErrUnauthenticated)
	}

	payload := new(UpdateProfilePayload)
	if err := ctx.BodyParser(payload); err != nil {
		return a.renderError(ctx, NewValidationError("invalid request body"))
	}

	if err := payload.Validate(); err != nil {
		return a.renderError(ctx, NewValidationError(err.Error()))
	}

	summary, err := a.Accounts.UpdateProfile(ctx.UserContext(), user.ID, payload.FullName, payload.Email)
	if err != nil {
		return a.renderError(ctx, err)
	}

	return ctx.JSON(fiber.Map{"user": summary})
}

// ChangePasswordPayload rotates the caller's credential
type ChangePasswordPayload struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// Validate will run validation rules
func (r ChangePasswordPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.CurrentPassword, validation.Required),
		validation.Field(&r.NewPassword, validation.Required, validation.By(strongPasswordRule)),
	)
}

func (a *Controller) ChangePassword(ctx *fiber.Ctx) error {
	user, ok := UserFromFiber(ctx)
	if !ok {
		return a.renderError(ctx, ErrUnauthenticated)
	}

	payload := new(ChangePasswordPayload)
	if err := ctx.BodyParser(payload); err != nil {
		return a.renderError(ctx, NewValidationError("invalid request body"))
	}

	if err := payload.Validate(); err != nil {
		return a.renderError(ctx, NewValidationError(err.Error()))
	}

	if err := a.Accounts.ChangePassword(ctx.UserContext(), user.ID, payload.CurrentPassword, payload.NewPassword); err != nil {
		return a.renderError(ctx, err)
	}

	return ctx.JSON(fiber.Map{"message": "password updated"})
}

func (a *Controller) List(ctx *fiber.Ctx) error {
	page := ctx.QueryInt("page", 1)
	limit := ctx.QueryInt("limit", DefaultPageSize)

	result, err := a.Accounts.ListAccounts(ctx.UserContext(), page, limit)
	if err != nil {
		return a.renderError(ctx, err)
	}

	return ctx.JSON(result)
}

func (a *Controller) GetAccount(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return a.renderError(ctx, NewValidationError("invalid account id"))
	}

	summary, err := a.Accounts.GetProfile(ctx.UserContext(), id)
	if err != nil {
		return a.renderError(ctx, err)
	}

	return ctx.JSON(fiber.Map{"user": summary})
}

// UpdateStatusPayload flips an account between active and inactive
type UpdateStatusPayload struct {
	Status string `json:"status"`
}

// Validate will run validation rules
func (r UpdateStatusPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Status, validation.Required, validation.In(
			string(UserStatusActive),
			string(UserStatusInactive),
		)),
	)
}

func (a *Controller) UpdateStatus(ctx *fiber.Ctx) error {
	actor, ok := UserFromFiber(ctx)
	if !ok {
		return a.renderError(ctx, ErrUnauthenticated)
	}

	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return a.renderError(ctx, NewValidationError("invalid account id"))
	}

	payload := new(UpdateStatusPayload)
	if err := ctx.BodyParser(payload); err != nil {
		return a.renderError(ctx, NewValidationError("invalid request body"))
	}

	if err := payload.Validate(); err != nil {
		return a.renderError(ctx, NewValidationError(err.Error()))
	}

	status, ok := ParseStatus(payload.Status)
	if !ok {
		return a.renderError(ctx, NewValidationError("invalid status"))
	}

	summary, err := a.Accounts.UpdateStatus(
		ctx.UserContext(),
		ActorRef{ID: actor.ID.String(), Type: "user"},
		id,
		status,
	)
	if err != nil {
		return a.renderError(ctx, err)
	}

	return ctx.JSON(fiber.Map{"user": summary})
}

func (a *Controller) renderError(ctx *fiber.Ctx, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}

	status := StatusFromError(richErr)

	if status >= http.StatusInternalServerError {
		a.Logger.Error("request failed",
			"error", richErr.Message,
			"category", richErr.Category,
			"path", ctx.Path(),
		)
		if a.Debug {
			fmt.Println(print.MaybePrettyJSON(richErr.Metadata))
		}
		return ctx.Status(status).JSON(fiber.Map{
			"error": "An unexpected server error occurred",
		})
	}

	return ctx.Status(status).JSON(fiber.Map{
		"error": richErr.Message,
	})
}

// NewErrorHandler returns a fiber error handler that understands rich
// errors. Wire it into fiber.Config so gate middleware rejections render
// the same JSON shape as controller errors.
func NewErrorHandler(logger Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = defLogger{}
	}

	return func(ctx *fiber.Ctx, err error) error {
		var fiberErr *fiber.Error
		if goerrors.As(err, &fiberErr) {
			return ctx.Status(fiberErr.Code).JSON(fiber.Map{
				"error": fiberErr.Message,
			})
		}

		var richErr *goerrors.Error
		if !goerrors.As(err, &richErr) {
			richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
				WithCode(goerrors.CodeInternal)
		}

		status := StatusFromError(richErr)
		if status >= http.StatusInternalServerError {
			logger.Error("unhandled error",
				"error", richErr.Message,
				"category", richErr.Category,
				"path", ctx.Path(),
			)
			return ctx.Status(status).JSON(fiber.Map{
				"error": "An unexpected server error occurred",
			})
		}

		return ctx.Status(status).JSON(fiber.Map{
			"error": richErr.Message,
		})
	}
}

// StatusFromError maps a rich error category to an HTTP status
func StatusFromError(err *goerrors.Error) int {
	if err == nil {
		return http.StatusOK
	}

	switch err.Category {
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return http.StatusBadRequest
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func validEmailRule(value any) error {
	s, _ := value.(string)
	if !IsValidEmail(s) {
		return fmt.Errorf("must be a valid email address")
	}
	return nil
}

func strongPasswordRule(value any) error {
	s, _ := value.(string)
	if !IsStrongPassword(s) {
		return fmt.Errorf("must be at least %d characters and include letters and numbers", MinPasswordLength)
	}
	return nil
}
