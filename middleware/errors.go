package middleware

import (
	"errors"
	"log/slog"

	"heartbridge-api/apperror"

	"github.com/gin-gonic/gin"
)

// ErrorBody renders err as the API's error payload and picks its status code.
// Details are merged into the top level but never replace error, code or fields.
func ErrorBody(err error) (int, gin.H) {
	var ae *apperror.Error
	if !errors.As(err, &ae) {
		ae = apperror.Internal("Internal server error", err)
	}
	body := gin.H{"error": ae.Message, "code": ae.Code}
	if ae.Kind == apperror.KindInternal {
		body["error"] = "Internal server error"
	}
	if len(ae.Fields) > 0 {
		body["fields"] = ae.Fields
	}
	for k, v := range ae.Details {
		if _, reserved := body[k]; reserved {
			continue
		}
		body[k] = v
	}
	return apperror.HTTPStatus(ae.Kind), body
}

// AbortWithError writes the error payload and stops the handler chain.
// Internal errors are attached to the context so the request logger reports them.
func AbortWithError(c *gin.Context, err error) {
	status, body := ErrorBody(err)
	if apperror.KindOf(err) == apperror.KindInternal {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, body)
}

func logErrors(log *slog.Logger, c *gin.Context) {
	for _, e := range c.Errors {
		log.ErrorContext(c.Request.Context(), "request failed",
			slog.String("path", c.Request.URL.Path), slog.Any("err", e.Err))
	}
}
