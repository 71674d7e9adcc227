// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopkeep Contributors

package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"

	"github.com/shopkeep/shopkeep/internal/auth"
)

// Acknowledgements returned by the reset flow.
const (
	MsgResetRequested = "OTP sent to your email."
	MsgCodeVerified   = "OTP verified. You can now reset your password."
	MsgPasswordReset  = "Password has been successfully reset."
)

// MessageResponse is the body of an acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

// LoginResponse is the public user plus its access token.
type LoginResponse struct {
	auth.PublicUser
	AccessToken string `json:"accessToken"`
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	IsAdmin  bool   `json:"isAdmin"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type verifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type resetPasswordRequest struct {
	Email       string `json:"email"`
	NewPassword string `json:"newPassword"`
	OTP         string `json:"otp"`
}

func (a *API) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortInvalidBody(c, err)
		return
	}
	user, err := a.auth.Register(c.Request.Context(), auth.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		IsAdmin:  req.IsAdmin,
	})
	if err != nil {
		abortWithError(c, a.logger, err)
		return
	}
	c.JSON(http.StatusCreated, user.Public())
}

func (a *API) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortInvalidBody(c, err)
		return
	}
	user, token, err := a.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		abortWithError(c, a.logger, err)
		return
	}
	c.JSON(http.StatusOK, LoginResponse{PublicUser: user.Public(), AccessToken: token})
}

func (a *API) forgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortInvalidBody(c, err)
		return
	}
	if err := a.reset.RequestReset(c.Request.Context(), req.Email); err != nil {
		abortWithError(c, a.logger, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: MsgResetRequested})
}

func (a *API) verifyOTP(c *gin.Context) {
	var req verifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortInvalidBody(c, err)
		return
	}
	if err := a.reset.VerifyCode(c.Request.Context(), req.Email, req.OTP); err != nil {
		abortWithError(c, a.logger, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: MsgCodeVerified})
}

func (a *API) resetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortInvalidBody(c, err)
		return
	}
	if err := a.reset.ResetPassword(c.Request.Context(), req.Email, req.NewPassword, req.OTP); err != nil {
		abortWithError(c, a.logger, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: MsgPasswordReset})
}

func (a *API) me(c *gin.Context) {
	identity, _ := IdentityFromContext(c)
	user, err := a.users.GetByID(c.Request.Context(), identity.UserID)
	if err != nil {
		abortWithError(c, a.logger, err)
		return
	}
	c.JSON(http.StatusOK, user.Public())
}

func (a *API) getUser(c *gin.Context) {
	id, err := parseUserID(c.Param("id"))
	if err != nil {
		abortWithError(c, a.logger, err)
		return
	}
	user, err := a.users.GetByID(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, a.logger, err)
		return
	}
	c.JSON(http.StatusOK, user.Public())
}

func (a *API) listUsers(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		abortWithError(c, a.logger, err)
		return
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		abortWithError(c, a.logger, err)
		return
	}

	users, err := a.users.List(c.Request.Context(), limit, offset)
	if err != nil {
		abortWithError(c, a.logger, err)
		return
	}
	out := make([]auth.PublicUser, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	c.JSON(http.StatusOK, out)
}

// queryInt parses a non-negative query parameter. Absent means zero.
func queryInt(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, oops.Code("REQUEST_INVALID_QUERY").
			With("param", name).
			Wrap(&auth.ValidationError{Field: name, Reason: "must be a non-negative integer"})
	}
	return n, nil
}
