package echoapi

import (
	"fmt"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/askante/core"
)

const invalidDataMsg = "Invalid data"

var (
	errHttpForbidden = echo.NewHTTPError(http.StatusForbidden, core.ErrForbidden.Error())
	errInvalidID     = echo.NewHTTPError(http.StatusBadRequest, "Invalid id")
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Err    bool              `json:"err"`
	Msg    string            `json:"msg"`
	Errors map[string]string `json:"errors,omitempty"`
}

// resolveError maps an error to its status code and response body.
// A nil translator skips the translation of validator errors.
func resolveError(err error, translator ut.Translator) (int, errorResponse) {
	resp := errorResponse{Err: true}

	switch origErr := errors.Cause(err).(type) {
	case *echo.HTTPError:
		if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
			origErr = herr
		}
		resp.Msg = fmt.Sprint(origErr.Message)
		return origErr.Code, resp
	case validator.ValidationErrors:
		resp.Msg = invalidDataMsg
		if translator != nil {
			resp.Errors = make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				resp.Errors[vErr.Field()] = vErr.Translate(translator)
			}
		}
		return http.StatusBadRequest, resp
	case *core.ValidationError:
		if len(origErr.Fields) == 0 {
			resp.Msg = origErr.Error()
			return http.StatusBadRequest, resp
		}
		resp.Msg = invalidDataMsg
		resp.Errors = make(map[string]string, len(origErr.Fields))
		for _, fErr := range origErr.Fields {
			resp.Errors[fErr.Field] = fErr.Error
		}
		return http.StatusBadRequest, resp
	case *core.NotFoundError:
		resp.Msg = origErr.Error()
		return http.StatusNotFound, resp
	case *core.UpstreamError:
		resp.Msg = origErr.Message
		if origErr.Status < http.StatusBadRequest {
			return http.StatusBadGateway, resp
		}
		return origErr.Status, resp
	}
	if errors.Cause(err) == core.ErrForbidden {
		resp.Msg = core.ErrForbidden.Error()
		return http.StatusForbidden, resp
	}
	resp.Msg = http.StatusText(http.StatusInternalServerError)
	return http.StatusInternalServerError, resp
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		code, resp := resolveError(err, translator)

		// any other error is a server error
		if code == http.StatusInternalServerError {
			if _, ok := errors.Cause(err).(*echo.HTTPError); !ok {
				logger.Error(resp.Msg, errors.Wrap(err, resp.Msg), contextUser(ctx))

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
				if ctx.Echo().Debug {
					resp.Msg = err.Error()
				}
			}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, resp)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
