package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/maraakiz/portal/core"
	"github.com/maraakiz/portal/core/listing"
	"github.com/maraakiz/portal/core/payment"
	"github.com/maraakiz/portal/services/apiclient"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errMalformedToken       = echo.NewHTTPError(http.StatusUnauthorized, "missing or malformed token")
	errSessionExpired       = echo.NewHTTPError(http.StatusUnauthorized, "session expired")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")
	errInvalidPaymentLink   = echo.NewHTTPError(http.StatusNotFound, "invalid payment link")
	errAlreadyPaid          = echo.NewHTTPError(http.StatusConflict, "payment already confirmed")
	errInvalidUpstreamData  = echo.NewHTTPError(http.StatusBadGateway, "invalid upstream record")
)

// knownErrors maps the sentinel errors of the services to their HTTP answer.
// It is a list, not a map: some causes (validator.ValidationErrors) cannot be hashed.
var knownErrors = []struct {
	err  error
	http *echo.HTTPError
}{
	{core.ErrSessionExpired, errSessionExpired},
	{apiclient.ErrLoginFailed, errAuthenticationFailed},
	{listing.ErrNotFound, errHttpNotFound},
	{payment.ErrInvalidToken, errInvalidPaymentLink},
	{payment.ErrAlreadyPaid, errAlreadyPaid},
	{payment.ErrUnknownMethod, echo.NewHTTPError(http.StatusBadRequest, payment.ErrUnknownMethod.Error())},
}

// knownHTTPError matches the cause itself, so a sentinel carried inside a *core.ValidationError
// still answers with its field errors.
func knownHTTPError(cause error) (*echo.HTTPError, bool) {
	for _, known := range knownErrors {
		if cause == known.err {
			return known.http, true
		}
	}
	return nil, false
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		cause := errors.Cause(err)
		if known, ok := knownHTTPError(cause); ok {
			cause = known
		}

		switch origErr := cause.(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if fldErrs := origErr.FieldMap(); fldErrs != nil {
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		case *apiclient.HTTPError:
			code = origErr.Status
			message = origErr.Error()
			if code >= http.StatusInternalServerError {
				logger.Warn("upstream error", err, getContextSession(ctx))
			}
		default: // any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg
			logger.Error(msg, errors.Wrap(err, msg), getContextSession(ctx))

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		} else if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
