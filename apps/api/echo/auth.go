package echoapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/maraakiz/portal/core"
)

const contextSessionKey = "session"

// sessionMiddleware reads the caller's Session from the bearer token, if any.
// The token is only decoded: the upstream checks its signature on every call.
func sessionMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		header := ctx.Request().Header.Get(echo.HeaderAuthorization)
		if header == "" {
			ctx.Set(contextSessionKey, core.Anonymous)
			return next(ctx)
		}
		if !strings.HasPrefix(header, "Bearer ") {
			return errMalformedToken
		}
		sess, err := core.NewSession(header)
		if err != nil {
			return errMalformedToken
		}
		ctx.Set(contextSessionKey, sess)
		return next(ctx)
	}
}

// requireSession refuses anonymous callers and expired tokens.
func requireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		sess := getContextSession(ctx)
		if sess.IsAnonymous() {
			return errUnauthorized
		}
		if sess.Expired(time.Now()) {
			return errSessionExpired
		}
		return next(ctx)
	}
}

func getContextSession(ctx echo.Context) core.Session {
	if sess, ok := ctx.Get(contextSessionKey).(core.Session); ok {
		return sess
	}
	return core.Anonymous
}

type authApi struct {
	auth     Authenticator
	validate *validator.Validate
}

func registerAuthAPI(g *echo.Group, auth Authenticator, validate *validator.Validate) {
	api := authApi{auth: auth, validate: validate}

	ag := g.Group("/auth")
	ag.POST("/login", api.login)
	ag.GET("/session", api.session, requireSession)
}

// Handlers

func (api *authApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sess, err := api.auth.Login(ctx.Request().Context(), data.Email, data.Password)
	if err != nil {
		return errors.Wrap(err, "logging in")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: sess.Token, Session: sess})
}

func (api *authApi) session(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, getContextSession(ctx))
}

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token   string       `json:"token"`
		Session core.Session `json:"session"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}
