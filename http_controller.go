package accounts

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// RegisterAccountRoutes mounts the JSON account endpoints on the router.
func RegisterAccountRoutes[T any](app router.Router[T], opts ...AccountsControllerOption) {
	controller := NewAccountsController(opts...)

	app.Post(controller.Routes.Register, controller.RegisterPost).
		SetName("accounts.register.post")

	app.Get(controller.Routes.VerifyEmail+"/:uid/:token", controller.VerifyEmailGet).
		SetName("accounts.verify-email.get")

	app.Post(controller.Routes.Login, controller.LoginPost).
		SetName("accounts.sign-in.post")

	app.Post(controller.Routes.PasswordReset, controller.PasswordResetPost).
		SetName("accounts.pwd-reset.post")

	app.Post(controller.Routes.PasswordReset+"/:uid/:token", controller.PasswordResetExecute).
		SetName("accounts.pwd-reset-do.post")
}

type AccountsControllerRoutes struct {
	Register      string
	VerifyEmail   string
	Login         string
	PasswordReset string
}

type AccountsController struct {
	Logger  Logger
	Service *Service
	Routes  *AccountsControllerRoutes
}

type AccountsControllerOption func(*AccountsController) *AccountsController

// WithControllerService sets the account service backing the endpoints.
func WithControllerService(service *Service) AccountsControllerOption {
	return func(c *AccountsController) *AccountsController {
		c.Service = service
		return c
	}
}

// WithControllerLogger overrides the controller logger.
func WithControllerLogger(logger Logger) AccountsControllerOption {
	return func(c *AccountsController) *AccountsController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func NewAccountsController(opts ...AccountsControllerOption) *AccountsController {
	c := &AccountsController{
		Logger: defLogger{},
		Routes: &AccountsControllerRoutes{
			Register:      "/auth/register",
			VerifyEmail:   "/auth/verify-email",
			Login:         "/auth/login",
			PasswordReset: "/auth/password-reset",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Service == nil {
		panic("Missing Service in accounts controller...")
	}

	return c
}

// RegisterPayload is the signup request body
type RegisterPayload struct {
	Email           string `form:"email" json:"email"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will validate the payload
func (r RegisterPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 72)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AccountsController) RegisterPost(ctx router.Context) error {
	payload := new(RegisterPayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("register parse payload: %v", err)
		return ctx.JSON(fiber.StatusBadRequest, map[string]any{
			"error": "failed to parse request body",
		})
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Debug("register validate payload: %v", err)
		return ctx.JSON(fiber.StatusBadRequest, validationResponse(err))
	}

	pending, err := a.Service.Register(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		// A committed account with a failed email is reported as a
		// degraded success, not an error page.
		if IsMailDeliveryError(err) && pending != nil {
			return ctx.JSON(fiber.StatusCreated, map[string]any{
				"email":     pending.Account.Email,
				"status":    string(StatusPendingVerification),
				"text_code": TextCodeMailDelivery,
				"message":   "account created, verification email could not be delivered",
			})
		}
		return a.errorResponse(ctx, err)
	}

	return ctx.JSON(fiber.StatusCreated, map[string]any{
		"email":   pending.Account.Email,
		"status":  string(StatusPendingVerification),
		"message": "check your inbox for a verification link",
	})
}

func (a *AccountsController) VerifyEmailGet(ctx router.Context) error {
	uid := ctx.Param("uid")
	token := ctx.Param("token")

	outcome, err := a.Service.VerifyEmail(ctx.Context(), uid, token)
	if err != nil {
		return a.errorResponse(ctx, err)
	}

	message := "email verified, you can now log in"
	if outcome == OutcomeAlreadyVerified {
		message = "email was already verified"
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"outcome": string(outcome),
		"message": message,
	})
}

// LoginPayload is the login request body
type LoginPayload struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will validate the payload
func (r LoginPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *AccountsController) LoginPost(ctx router.Context) error {
	payload := new(LoginPayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("login parse payload: %v", err)
		return ctx.JSON(fiber.StatusBadRequest, map[string]any{
			"error": "failed to parse request body",
		})
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(fiber.StatusBadRequest, validationResponse(err))
	}

	token, err := a.Service.Login(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		return a.errorResponse(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"token": token,
	})
}

// PasswordResetRequestPayload asks for a reset link by email
type PasswordResetRequestPayload struct {
	Email string `form:"email" json:"email"`
}

// Validate will validate the payload
func (r PasswordResetRequestPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

func (a *AccountsController) PasswordResetPost(ctx router.Context) error {
	payload := new(PasswordResetRequestPayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("password reset parse payload: %v", err)
		return ctx.JSON(fiber.StatusBadRequest, map[string]any{
			"error": "failed to parse request body",
		})
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(fiber.StatusBadRequest, validationResponse(err))
	}

	// Identical response whether or not the email has an account.
	if err := a.Service.RequestPasswordReset(ctx.Context(), payload.Email); err != nil {
		return a.errorResponse(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"message": "if that email has an account, a reset link is on its way",
	})
}

// PasswordResetExecutePayload carries the new password
type PasswordResetExecutePayload struct {
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will validate the payload
func (r PasswordResetExecutePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Password, validation.Required, validation.Length(8, 72)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AccountsController) PasswordResetExecute(ctx router.Context) error {
	uid := ctx.Param("uid")
	token := ctx.Param("token")

	payload := new(PasswordResetExecutePayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("password reset parse payload: %v", err)
		return ctx.JSON(fiber.StatusBadRequest, map[string]any{
			"error": "failed to parse request body",
		})
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(fiber.StatusBadRequest, validationResponse(err))
	}

	if err := a.Service.ConfirmPasswordReset(ctx.Context(), uid, token, payload.Password); err != nil {
		return a.errorResponse(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"message": "password updated, you can now log in",
	})
}

func (a *AccountsController) errorResponse(ctx router.Context, err error) error {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		status := richErr.Code
		if status == 0 {
			status = fiber.StatusInternalServerError
		}
		return ctx.JSON(status, map[string]any{
			"error":     richErr.Message,
			"text_code": richErr.TextCode,
		})
	}

	a.Logger.Error("unhandled controller error: %v", err)
	return ctx.JSON(fiber.StatusInternalServerError, map[string]any{
		"error": "internal error",
	})
}

// validationResponse builds the 400 body for a failed payload validation,
// tagging confirm-password mismatches with their stable text code.
func validationResponse(err error) map[string]any {
	body := map[string]any{
		"error":      "validation failed",
		"validation": formatValidationErrors(err),
	}

	if verrs, ok := err.(validation.Errors); ok {
		if _, mismatch := verrs["confirm_password"]; mismatch {
			body["text_code"] = TextCodePasswordMismatch
		}
	}

	return body
}

func formatValidationErrors(err error) map[string]string {
	result := map[string]string{}

	if verrs, ok := err.(validation.Errors); ok {
		for field, ferr := range verrs {
			result[field] = ferr.Error()
		}
		return result
	}

	result["error"] = err.Error()
	return result
}
