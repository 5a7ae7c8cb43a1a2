package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/modu-mall/account-api/internal/container"
	handlers "github.com/modu-mall/account-api/internal/interface/http"
	"github.com/modu-mall/account-api/internal/interface/middleware"
	"github.com/modu-mall/account-api/pkg/helpers"
)

// UserModule wires registration and login routes.
// Public: POST /api/register, POST /api/login, POST /api/login/federated
// Protected: POST /api/logout, GET /api/profile, POST /api/profile/avatar
type UserModule struct {
	Handler *handlers.UserHandler
	JWT     *helpers.JWTManager
}

func NewUserModule(h *handlers.UserHandler, jwt *helpers.JWTManager) *UserModule {
	return &UserModule{Handler: h, JWT: jwt}
}

func (m *UserModule) Register(rg *gin.RouterGroup) {
	// Public with per-IP rate limiting; registration gets the tightest cap.
	registerLimiter := middleware.RateLimit(container.GetRedis(), 5, time.Minute, middleware.KeyByIPAndPath(), nil)
	loginLimiter := middleware.RateLimit(container.GetRedis(), 10, time.Minute, middleware.KeyByIP(), nil)

	rg.POST("/register", registerLimiter, m.Handler.Register)
	rg.POST("/login", loginLimiter, m.Handler.Login)
	rg.POST("/login/federated", loginLimiter, m.Handler.LoginFederated)

	// Protected
	auth := rg.Group("/")
	auth.Use(middleware.Auth(container.GetRedis(), m.JWT))
	auth.Use(middleware.RateLimit(container.GetRedis(), 120, time.Minute, middleware.KeyByUserID(), nil))
	{
		auth.POST("/logout", m.Handler.Logout)
		auth.GET("/profile", m.Handler.GetProfile)
		auth.POST("/profile/avatar", m.Handler.UploadAvatar)
	}
}
