// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopkeep Contributors

package httpapi

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"

	"github.com/shopkeep/shopkeep/internal/auth"
	"github.com/shopkeep/shopkeep/pkg/errutil"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// Fallback codes for errors that carry none.
const (
	codeInternal    = "INTERNAL_ERROR"
	codeInvalidBody = "REQUEST_INVALID_BODY"
)

// errorKinds maps error kinds to a status and the message shown to clients.
// Order matters: the first match wins.
var errorKinds = []struct {
	kind    error
	status  int
	message string
}{
	{auth.ErrConflict, http.StatusConflict, "username or email already exists"},
	{auth.ErrInvalidCredentials, http.StatusUnauthorized, auth.ErrInvalidCredentials.Error()},
	{auth.ErrUnauthenticated, http.StatusUnauthorized, auth.ErrUnauthenticated.Error()},
	{auth.ErrInvalidToken, http.StatusForbidden, auth.ErrInvalidToken.Error()},
	{auth.ErrForbidden, http.StatusForbidden, auth.ErrForbidden.Error()},
	{auth.ErrCodeNotFound, http.StatusBadRequest, auth.ErrCodeNotFound.Error()},
	{auth.ErrCodeExpired, http.StatusBadRequest, auth.ErrCodeExpired.Error()},
	{auth.ErrCodeInvalid, http.StatusBadRequest, auth.ErrCodeInvalid.Error()},
	{auth.ErrNotFound, http.StatusNotFound, "user not found"},
	{auth.ErrDelivery, http.StatusInternalServerError, auth.ErrDelivery.Error()},
}

// statusFor returns the response status and body for err.
func statusFor(err error) (int, ErrorResponse) {
	code := errorCode(err)

	var verr *auth.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest, ErrorResponse{Error: verr.Error(), Code: code}
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.kind) {
			return k.status, ErrorResponse{Error: k.message, Code: code}
		}
	}
	return http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: codeInternal}
}

func errorCode(err error) string {
	if oopsErr, ok := oops.AsOops(err); ok {
		if code := oopsErr.Code(); code != nil {
			if s := fmt.Sprint(code); s != "" {
				return s
			}
		}
	}
	return ""
}

// abortWithError writes the mapped error response. Server-side failures are
// logged with their full detail, which is never returned to the client.
func abortWithError(c *gin.Context, logger *slog.Logger, err error) {
	status, body := statusFor(err)
	if status >= http.StatusInternalServerError {
		errutil.LogErrorContext(c.Request.Context(), logger, "request failed", err)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}

func abortInvalidBody(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: codeInvalidBody})
}
