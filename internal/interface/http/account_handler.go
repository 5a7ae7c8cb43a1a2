package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	userapp "github.com/modu-mall/account-api/internal/application"
	"github.com/modu-mall/account-api/internal/interface/middleware"
	"github.com/modu-mall/account-api/pkg/response"
	"github.com/modu-mall/account-api/pkg/validation"
)

// AccountHandler serves the /api/users resource the account-settings form
// talks to: record reads, partial updates and deletion.
type AccountHandler struct {
	Svc    *userapp.Service
	Logger *logrus.Logger
}

func NewAccountHandler(svc *userapp.Service, logger *logrus.Logger) *AccountHandler {
	return &AccountHandler{Svc: svc, Logger: logger}
}

// updateRequest carries a partial update; absent fields stay untouched.
type updateRequest struct {
	FullName    *string `json:"full_name" binding:"omitempty,min=1"`
	Password    *string `json:"password" binding:"omitempty,pwd"`
	PostalCode  *string `json:"postal_code" binding:"omitempty,postal"`
	Address1    *string `json:"address1"`
	Address2    *string `json:"address2"`
	PhoneNumber *string `json:"phone_number" binding:"omitempty,max=20"`
}

type deleteRequest struct {
	Password string `json:"password" binding:"required"`
}

// canTouch reports whether the caller may read or modify the record.
func canTouch(c *gin.Context, id string) bool {
	return c.GetString(middleware.CtxUserIDKey) == id || c.GetBool(middleware.CtxIsAdminKey)
}

// GetByID GET /api/users/:id
func (h *AccountHandler) GetByID(c *gin.Context) {
	id := c.Param("id")
	if !canTouch(c, id) {
		response.Error[any](c, http.StatusForbidden, "cannot access another account", nil)
		return
	}
	u, err := h.Svc.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Error[any](c, statusFor(err), err.Error(), nil)
		return
	}
	response.Success(c, http.StatusOK, u, "user", nil)
}

// List GET /api/users (admin)
func (h *AccountHandler) List(c *gin.Context) {
	users, err := h.Svc.ListAll(c.Request.Context())
	if err != nil {
		response.Error[any](c, statusFor(err), err.Error(), nil)
		return
	}
	response.Success(c, http.StatusOK, users, "users", map[string]any{"count": len(users)})
}

// Search GET /api/users/search?q=&size=
func (h *AccountHandler) Search(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		response.Error[any](c, http.StatusBadRequest, "missing query", nil)
		return
	}
	size, _ := strconv.Atoi(c.DefaultQuery("size", "10"))
	hits, err := h.Svc.SearchUsers(c.Request.Context(), q, size)
	if err != nil {
		response.Error[any](c, http.StatusInternalServerError, "search failed", nil)
		return
	}
	response.Success(c, http.StatusOK, hits, "search results", map[string]any{"count": len(hits)})
}

// Update PATCH /api/users/:id
// Merge semantics: only supplied fields change. The settings form PATCHes
// one field group at a time and reloads on success.
func (h *AccountHandler) Update(c *gin.Context) {
	id := c.Param("id")
	if !canTouch(c, id) {
		response.Error[any](c, http.StatusForbidden, "cannot modify another account", nil)
		return
	}

	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	u, err := h.Svc.Update(c.Request.Context(), id, userapp.UpdateInput{
		FullName:    req.FullName,
		Password:    req.Password,
		PostalCode:  req.PostalCode,
		Address1:    req.Address1,
		Address2:    req.Address2,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		response.Error[any](c, statusFor(err), err.Error(), nil)
		return
	}
	response.Success(c, http.StatusOK, u, "user updated", nil)
}

// DeleteSelf DELETE /api/users/:id
// Requires the current password; the service rejects accounts that have
// none so the 409 can point the user at setting a password first.
func (h *AccountHandler) DeleteSelf(c *gin.Context) {
	id := c.Param("id")
	if c.GetString(middleware.CtxUserIDKey) != id {
		response.Error[any](c, http.StatusForbidden, "cannot delete another account", nil)
		return
	}

	var req deleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	if err := h.Svc.DeleteSelf(c.Request.Context(), id, req.Password); err != nil {
		response.Error[any](c, statusFor(err), err.Error(), nil)
		return
	}
	response.Success[any](c, http.StatusOK, map[string]any{"deleted": true}, "account deleted", nil)
}

// DeleteAdmin DELETE /api/admin/users/:id (admin)
func (h *AccountHandler) DeleteAdmin(c *gin.Context) {
	id := c.Param("id")
	if err := h.Svc.DeleteAdmin(c.Request.Context(), id); err != nil {
		response.Error[any](c, statusFor(err), err.Error(), nil)
		return
	}
	if h.Logger != nil {
		h.Logger.WithFields(logrus.Fields{
			"admin_id":  c.GetString(middleware.CtxUserIDKey),
			"target_id": id,
		}).Info("account deleted by admin")
	}
	response.Success[any](c, http.StatusOK, map[string]any{"deleted": true}, "account deleted", nil)
}
