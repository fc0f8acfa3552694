package auth

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-repository-bun"
)

// genericResetMessage is returned by the forgot-password endpoint no matter
// whether the email matched an account or the delivery succeeded.
const genericResetMessage = "If the email is registered, you will receive a verification code to reset your password"

type AuthControllerRoutes struct {
	Register       string
	Login          string
	ForgotPassword string
	VerifyCode     string
	ResetPassword  string
	Profile        string
	UserPassword   string
}

// AuthController serves the JSON identity API.
type AuthController struct {
	Logger Logger
	Repo   RepositoryManager
	Auther Authenticator
	Tokens TokenService
	Routes *AuthControllerRoutes

	register *RegisterUserHandler
	initiate *InitializePasswordResetHandler
	verify   *VerifyResetCodeHandler
	finalize *FinalizePasswordResetHandler
	changePw *ChangePasswordHandler
}

type AuthControllerOption func(*AuthController) *AuthController

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func NewAuthController(repo RepositoryManager, auther Authenticator, tokens TokenService, mailer Mailer, opts ...AuthControllerOption) *AuthController {
	machine := NewRecoveryMachine()

	c := &AuthController{
		Logger: defLogger{},
		Repo:   repo,
		Auther: auther,
		Tokens: tokens,
		Routes: &AuthControllerRoutes{
			Register:       "/api/auth/register",
			Login:          "/api/auth/login",
			ForgotPassword: "/api/auth/forgot-password",
			VerifyCode:     "/api/auth/verify-code",
			ResetPassword:  "/api/auth/reset-password",
			Profile:        "/api/auth/profile",
			UserPassword:   "/api/users/:id/password",
		},
		register: NewRegisterUserHandler(repo),
		initiate: NewInitializePasswordResetHandler(repo, machine, mailer),
		verify:   NewVerifyResetCodeHandler(repo, machine),
		finalize: NewFinalizePasswordResetHandler(repo, machine),
		changePw: NewChangePasswordHandler(repo),
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in auth controller...")
	}

	if c.Auther == nil {
		panic("Missing Authenticator in auth controller...")
	}

	c.initiate.WithLogger(c.Logger)

	return c
}

// RegisterAuthRoutes mounts the identity API. Protected routes are wrapped
// with the bearer authenticator; role guards compose behind it per route.
func RegisterAuthRoutes(app *fiber.App, c *AuthController) {
	app.Post(c.Routes.Register, c.RegisterPost)
	app.Post(c.Routes.Login, c.LoginPost)
	app.Post(c.Routes.ForgotPassword, c.ForgotPasswordPost)
	app.Post(c.Routes.VerifyCode, c.VerifyCodePost)
	app.Post(c.Routes.ResetPassword, c.ResetPasswordPost)

	protected := RequireAuth(c.Tokens, "")
	app.Get(c.Routes.Profile, protected, c.ProfileGet)
	app.Put(c.Routes.UserPassword, protected, c.ChangePasswordPut)
}

// RegisterRequest is the registration payload
type RegisterRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Validate will run validation rules
func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(3, 100)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 100)),
		validation.Field(&r.FirstName, validation.Length(0, 100)),
		validation.Field(&r.LastName, validation.Length(0, 100)),
	)
}

func (a *AuthController) RegisterPost(c *fiber.Ctx) error {
	payload := new(RegisterRequest)

	if err := c.BodyParser(payload); err != nil {
		return badPayload(err, "failed to parse registration payload")
	}

	if err := payload.Validate(); err != nil {
		return badPayload(err, "invalid registration payload")
	}

	user, err := a.register.Execute(c.Context(), RegisterUserMessage{
		Username:  payload.Username,
		Email:     payload.Email,
		Password:  payload.Password,
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
	})
	if err != nil {
		return err
	}

	token, err := a.Tokens.Generate(user.Identity())
	if err != nil {
		return wrapInternal(err, "failed to issue session token")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "User registered successfully",
		"user":    user,
		"token":   token,
	})
}

// LoginRequest payload. The original client sends email and/or username;
// identifier is the canonical field.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Email      string `json:"email"`
	Username   string `json:"username"`
	Password   string `json:"password"`
}

func (r LoginRequest) resolveIdentifier() string {
	if r.Identifier != "" {
		return r.Identifier
	}
	if r.Email != "" {
		return r.Email
	}
	return r.Username
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *AuthController) LoginPost(c *fiber.Ctx) error {
	payload := new(LoginRequest)

	if err := c.BodyParser(payload); err != nil {
		return badPayload(err, "failed to parse login payload")
	}

	if err := payload.Validate(); err != nil {
		return badPayload(err, "invalid login payload")
	}

	identifier := payload.resolveIdentifier()
	if identifier == "" {
		return ErrInvalidCredentials
	}

	token, user, err := a.Auther.Login(c.Context(), identifier, payload.Password)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Login successful",
		"user":    user,
		"token":   token,
	})
}

// ForgotPasswordRequest payload
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// Validate will run validation rules
func (r ForgotPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

func (a *AuthController) ForgotPasswordPost(c *fiber.Ctx) error {
	payload := new(ForgotPasswordRequest)

	if err := c.BodyParser(payload); err != nil {
		return badPayload(err, "failed to parse reset request")
	}

	if err := payload.Validate(); err != nil {
		return badPayload(err, "a valid email is required")
	}

	if err := a.initiate.Execute(c.Context(), InitializePasswordResetMessage{Email: payload.Email}); err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": genericResetMessage,
	})
}

// VerifyCodeRequest payload
type VerifyCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// Validate will run validation rules
func (r VerifyCodeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Code, validation.Required, validation.Length(6, 6), is.Digit),
	)
}

func (a *AuthController) VerifyCodePost(c *fiber.Ctx) error {
	payload := new(VerifyCodeRequest)

	if err := c.BodyParser(payload); err != nil {
		return badPayload(err, "failed to parse verification payload")
	}

	if err := payload.Validate(); err != nil {
		return ErrRecoveryCodeInvalid
	}

	secret, err := a.verify.Execute(c.Context(), VerifyResetCodeMessage{
		Email: payload.Email,
		Code:  payload.Code,
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Code verified successfully",
		"token":   secret,
	})
}

// ResetPasswordRequest payload
type ResetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// Validate will run validation rules
func (r ResetPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 100)),
	)
}

func (a *AuthController) ResetPasswordPost(c *fiber.Ctx) error {
	payload := new(ResetPasswordRequest)

	if err := c.BodyParser(payload); err != nil {
		return badPayload(err, "failed to parse reset payload")
	}

	if err := payload.Validate(); err != nil {
		return badPayload(err, "token and new password are required")
	}

	if err := a.finalize.Execute(c.Context(), FinalizePasswordResetMessage{
		Token:    payload.Token,
		Password: payload.Password,
	}); err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Password reset successfully",
	})
}

func (a *AuthController) ProfileGet(c *fiber.Ctx) error {
	claims, ok := ClaimsFromFiber(c, "")
	if !ok {
		return ErrNotAuthenticated
	}

	user, err := a.Repo.Users().GetByID(c.Context(), claims.UserID())
	if err != nil {
		if repository.IsRecordNotFound(err) || goerrors.IsNotFound(err) {
			return ErrIdentityNotFound
		}
		return wrapInternal(err, "failed to retrieve profile")
	}

	return c.JSON(user)
}

// ChangePasswordRequest payload
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// Validate will run validation rules
func (r ChangePasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.CurrentPassword, validation.Required),
		validation.Field(&r.NewPassword, validation.Required, validation.Length(6, 100)),
	)
}

func (a *AuthController) ChangePasswordPut(c *fiber.Ctx) error {
	claims, ok := ClaimsFromFiber(c, "")
	if !ok {
		return ErrNotAuthenticated
	}

	payload := new(ChangePasswordRequest)

	if err := c.BodyParser(payload); err != nil {
		return badPayload(err, "failed to parse password change payload")
	}

	if err := payload.Validate(); err != nil {
		return badPayload(err, "current and new password are required")
	}

	if err := a.changePw.Execute(c.Context(), ChangePasswordMessage{
		ActorID:         claims.UserID(),
		UserID:          c.Params("id"),
		CurrentPassword: payload.CurrentPassword,
		NewPassword:     payload.NewPassword,
	}); err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Password updated successfully",
	})
}

func badPayload(err error, msg string) error {
	return goerrors.Wrap(err, goerrors.CategoryBadInput, msg).
		WithCode(goerrors.CodeBadRequest)
}

// NewErrorHandler maps rich errors onto stable statuses and the response
// envelope the rest of the backend uses. Anything without a category is an
// internal failure and surfaces without storage or transport detail.
func NewErrorHandler(logger Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = defLogger{}
	}

	return func(c *fiber.Ctx, err error) error {
		var richErr *goerrors.Error
		if !goerrors.As(err, &richErr) {
			richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
				WithCode(goerrors.CodeInternal)
		}

		logger.Info(
			"request error",
			"error", richErr.Message,
			"category", richErr.Category,
			"details", print.MaybePrettyJSON(richErr.Metadata),
		)

		status := richErr.Code
		if status < fiber.StatusBadRequest {
			status = fiber.StatusInternalServerError
		}

		body := fiber.Map{
			"success": false,
			"message": richErr.Message,
		}
		if richErr.TextCode != "" {
			body["code"] = richErr.TextCode
		}

		return c.Status(status).JSON(body)
	}
}
