package auth

import (
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"

	"github.com/fanray/fanray"
)

// ClaimsContextKey is the fiber locals key under which RequireAuth stores
// the validated *AccessClaims.
const ClaimsContextKey = "auth_claims"

// TokenController serves the token endpoints: POST /login,
// POST /refresh-token, GET|POST /logout.
type TokenController struct {
	Debug     bool
	Logger    fanray.Logger
	Service   *TokenService
	Users     Users
	Validator *ContextValidator
	Config    Config
}

// NewTokenController wires a controller; panics on missing collaborators the
// same way the rest of this module treats wiring bugs.
func NewTokenController(service *TokenService, users Users, validator *ContextValidator, cfg Config, logger fanray.Logger) *TokenController {
	if service == nil {
		panic("missing TokenService in token controller")
	}
	if users == nil {
		panic("missing Users in token controller")
	}
	if validator == nil {
		panic("missing ContextValidator in token controller")
	}
	if logger == nil {
		logger = fanray.DefaultLogger()
	}
	return &TokenController{
		Logger:    logger,
		Service:   service,
		Users:     users,
		Validator: validator,
		Config:    cfg,
	}
}

// RegisterTokenRoutes mounts the controller's routes on app.
func RegisterTokenRoutes(app fiber.Router, controller *TokenController) {
	app.Post("/login", controller.Login)
	app.Post("/refresh-token", controller.RefreshToken)
	app.Get("/logout", controller.Logout)
	app.Post("/logout", controller.Logout)
}

// LoginRequest payload
type LoginRequest struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

// TokenPairResponse is the JSON body returned by login and refresh.
type TokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func (a *TokenController) Login(c *fiber.Ctx) error {
	payload := new(LoginRequest)

	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("login: failed to parse payload: %v", err)
		return badRequest(c, "user login failed")
	}

	if err := payload.Validate(); err != nil {
		return badRequest(c, err.Error())
	}

	if a.Debug {
		fmt.Println("======= TOKEN LOGIN ======")
		fmt.Println(print.MaybePrettyJSON(fiber.Map{"username": payload.Username}))
		fmt.Println("==========================")
	}

	user, err := a.Users.FindByUsername(c.Context(), payload.Username)
	if err != nil {
		return a.internalError(c, err)
	}

	if user == nil {
		return unauthorized(c)
	}

	if err := ComparePasswordAndHash(payload.Password, user.PasswordHash); err != nil {
		a.Logger.Info("login rejected for %q: %s", payload.Username, textCodeBadCredentials)
		return unauthorized(c)
	}

	accessToken, refreshToken, err := a.Service.CreateTokens(c.Context(), user)
	if err != nil {
		return a.internalError(c, err)
	}

	return c.JSON(TokenPairResponse{AccessToken: accessToken, RefreshToken: refreshToken})
}

// RefreshTokenRequest payload
type RefreshTokenRequest struct {
	RefreshToken string `form:"refreshToken" json:"refreshToken"`
}

// Validate will run validation rules
func (r RefreshTokenRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

func (a *TokenController) RefreshToken(c *fiber.Ctx) error {
	payload := new(RefreshTokenRequest)

	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("refresh: failed to parse payload: %v", err)
		return badRequest(c, "refreshToken is not set")
	}

	if err := payload.Validate(); err != nil {
		return badRequest(c, "refreshToken is not set")
	}

	record, err := a.Service.FindRefreshToken(c.Context(), payload.RefreshToken)
	if err != nil {
		return a.internalError(c, err)
	}

	if record == nil {
		return unauthorized(c)
	}

	user, err := a.Users.FindByID(c.Context(), record.UserID)
	if err != nil {
		return a.internalError(c, err)
	}

	if user == nil {
		return unauthorized(c)
	}

	accessToken, refreshToken, err := a.Service.CreateTokens(c.Context(), user)
	if err != nil {
		return a.internalError(c, err)
	}

	return c.JSON(TokenPairResponse{AccessToken: accessToken, RefreshToken: refreshToken})
}

// Logout revokes the caller's token pair when a bearer token is presented,
// then sweeps expired records. It succeeds even without a usable token so
// clients can always clear their session.
func (a *TokenController) Logout(c *fiber.Ctx) error {
	if raw := bearerToken(c); raw != "" {
		if claims, err := ParseAccessToken(raw, a.Config); err == nil {
			if userID, err := claims.UserID(); err == nil {
				if err := a.Service.DeleteTokensForUser(c.Context(), userID); err != nil {
					return a.internalError(c, err)
				}
			}
		}
	}

	if err := a.Service.DeleteExpiredTokens(c.Context()); err != nil {
		return a.internalError(c, err)
	}

	return c.JSON(true)
}

// RequireAuth returns the middleware guarding authenticated routes: it
// verifies the bearer token structurally, then runs the stateful
// ContextValidator, and stores the claims in ctx locals. Every rejection
// surfaces as a bare unauthorized; the distinct reason stays in the log.
func (a *TokenController) RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := bearerToken(c)
		if raw == "" {
			return unauthorized(c)
		}

		claims, err := ParseAccessToken(raw, a.Config)
		if err != nil {
			a.Logger.Info("token rejected: %v", err)
			return unauthorized(c)
		}

		if err := a.Validator.Validate(c.Context(), raw, claims); err != nil {
			if !IsAuthError(err) {
				return a.internalError(c, err)
			}
			var rich *goerrors.Error
			if goerrors.As(err, &rich) {
				a.Logger.Info("token rejected: %s %s", rich.TextCode, rich.Message)
			}
			return unauthorized(c)
		}

		c.Locals(ClaimsContextKey, claims)
		return c.Next()
	}
}

// ClaimsFromContext returns the claims stored by RequireAuth.
func ClaimsFromContext(c *fiber.Ctx) (*AccessClaims, bool) {
	claims, ok := c.Locals(ClaimsContextKey).(*AccessClaims)
	return claims, ok
}

func bearerToken(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return ""
	}

	const scheme = "bearer "
	if len(header) <= len(scheme) || !strings.EqualFold(header[:len(scheme)], scheme) {
		return ""
	}

	return strings.TrimSpace(header[len(scheme):])
}

func (a *TokenController) internalError(c *fiber.Ctx, err error) error {
	a.Logger.Error("token controller error: %v", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "internal server error",
	})
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": "unauthorized",
	})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": message,
	})
}
