package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/modu-mall/account-api/internal/container"
	handlers "github.com/modu-mall/account-api/internal/interface/http"
	"github.com/modu-mall/account-api/internal/interface/middleware"
	"github.com/modu-mall/account-api/pkg/helpers"
)

// AccountModule wires the /api/users resource consumed by the
// account-settings form, plus the admin surface.
type AccountModule struct {
	Handler *handlers.AccountHandler
	JWT     *helpers.JWTManager
}

func NewAccountModule(h *handlers.AccountHandler, jwt *helpers.JWTManager) *AccountModule {
	return &AccountModule{Handler: h, JWT: jwt}
}

func (m *AccountModule) Register(rg *gin.RouterGroup) {
	auth := rg.Group("/")
	auth.Use(middleware.Auth(container.GetRedis(), m.JWT))
	auth.Use(
		middleware.RateLimit(container.GetRedis(), 300, time.Minute, middleware.KeyByIP(), nil),
		middleware.RateLimit(container.GetRedis(), 120, time.Minute, middleware.KeyByUserID(), nil),
	)
	{
		// Search is registered before :id so Gin does not treat "search"
		// as a user id.
		auth.GET("/users/search", m.Handler.Search)
		auth.GET("/users/:id", m.Handler.GetByID)
		auth.PATCH("/users/:id", m.Handler.Update)
		auth.DELETE("/users/:id", m.Handler.DeleteSelf)
	}

	admin := rg.Group("/")
	admin.Use(middleware.Auth(container.GetRedis(), m.JWT), middleware.RequireAdmin())
	{
		admin.GET("/users", m.Handler.List)
		admin.DELETE("/admin/users/:id", m.Handler.DeleteAdmin)
	}
}
