package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	userapp "github.com/modu-mall/account-api/internal/application"
	"github.com/modu-mall/account-api/internal/interface/middleware"
	"github.com/modu-mall/account-api/pkg/helpers"
	"github.com/modu-mall/account-api/pkg/response"
	"github.com/modu-mall/account-api/pkg/validation"
)

// UserHandler serves registration and the two login flows.
type UserHandler struct {
	Svc     *userapp.Service
	Logger  *logrus.Logger
	Cookies *helpers.Manager
}

func NewUserHandler(svc *userapp.Service, logger *logrus.Logger, cookieDomain string, cookieSecure bool) *UserHandler {
	return &UserHandler{Svc: svc, Logger: logger, Cookies: helpers.NewCookie(cookieDomain, cookieSecure)}
}

// statusFor maps the service failure taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, userapp.ErrDuplicateEmail), errors.Is(err, userapp.ErrPasswordNotSet):
		return http.StatusConflict
	case errors.Is(err, userapp.ErrUnknownEmail), errors.Is(err, userapp.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, userapp.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	FullName string `json:"full_name" binding:"required"`
	Password string `json:"password" binding:"required,pwd"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type federatedLoginRequest struct {
	Email         string `json:"email" binding:"required,email"`
	FullName      string `json:"full_name" binding:"required"`
	LoginTypeCode string `json:"login_type_code" binding:"required"`
}

// Register POST /api/register
func (h *UserHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	u, err := h.Svc.Register(c.Request.Context(), userapp.RegisterInput{
		Email:    req.Email,
		FullName: req.FullName,
		Password: req.Password,
	})
	if err != nil {
		response.Error[any](c, statusFor(err), err.Error(), nil)
		return
	}
	response.Success(c, http.StatusCreated, u, "account created", nil)
}

// Login POST /api/login
func (h *UserHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	res, err := h.Svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		response.Error[any](c, statusFor(err), err.Error(), nil)
		return
	}
	h.Cookies.SetToken(c, res.Token, res.ExpiresAt)
	response.Success(c, http.StatusOK, res, "login successful", nil)
}

// LoginFederated POST /api/login/federated
// The HTTP layer in front of the provider callback posts the verified
// profile here; an unseen email registers on the fly.
func (h *UserHandler) LoginFederated(c *gin.Context) {
	var req federatedLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	res, err := h.Svc.LoginFederated(c.Request.Context(), userapp.FederatedInput{
		Email:         req.Email,
		FullName:      req.FullName,
		LoginTypeCode: req.LoginTypeCode,
	})
	if err != nil {
		response.Error[any](c, statusFor(err), err.Error(), nil)
		return
	}
	h.Cookies.SetToken(c, res.Token, res.ExpiresAt)
	response.Success(c, http.StatusOK, res, "login successful", nil)
}

// Logout POST /api/logout
func (h *UserHandler) Logout(c *gin.Context) {
	h.Cookies.Clear(c)
	response.Success[any](c, http.StatusOK, map[string]any{"logged_out": true}, "logged out", nil)
}

// GetProfile GET /api/profile
func (h *UserHandler) GetProfile(c *gin.Context) {
	uid := c.GetString(middleware.CtxUserIDKey)
	u, err := h.Svc.GetByID(c.Request.Context(), uid)
	if err != nil {
		response.Error[any](c, statusFor(err), err.Error(), nil)
		return
	}
	response.Success(c, http.StatusOK, u, "profile", nil)
}

// UploadAvatar POST /api/profile/avatar (multipart field "avatar")
func (h *UserHandler) UploadAvatar(c *gin.Context) {
	uid := c.GetString(middleware.CtxUserIDKey)
	file, header, err := c.Request.FormFile("avatar")
	if err != nil {
		response.Error[any](c, http.StatusBadRequest, "missing avatar file", nil)
		return
	}
	defer func() { _ = file.Close() }()

	u, err := h.Svc.UploadAvatar(c.Request.Context(), uid, file, header.Filename, header.Header.Get("Content-Type"))
	if err != nil {
		response.Error[any](c, statusFor(err), err.Error(), nil)
		return
	}
	response.Success(c, http.StatusOK, u, "avatar updated", nil)
}
