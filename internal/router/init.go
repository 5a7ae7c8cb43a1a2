package router

import (
	userapp "github.com/modu-mall/account-api/internal/application"
	"github.com/modu-mall/account-api/internal/container"
	pginfra "github.com/modu-mall/account-api/internal/infrastructure/postgres"
	handlers "github.com/modu-mall/account-api/internal/interface/http"
	"github.com/modu-mall/account-api/internal/router/modules"
)

func buildService() *userapp.Service {
	cfg := container.GetConfig()
	repo := pginfra.NewUserRepository(container.GetPGPool())
	return userapp.NewService(
		repo,
		container.GetJWT(),
		container.GetRedis(),
		container.GetLogger(),
		container.GetES(),
		cfg.ESUsersIndex,
		container.GetRabbitPub(),
		cfg.MailSendEnabled,
		container.GetGCS(),
		cfg.GCSBucket,
	)
}

// InitModules initializes all application modules and registers them with
// the router registry. Called once during startup.
func InitModules(r *Registry) {
	cfg := container.GetConfig()
	svc := buildService()

	userHandler := handlers.NewUserHandler(svc, container.GetLogger(), cfg.CookieDomain, cfg.CookieSecure)
	accountHandler := handlers.NewAccountHandler(svc, container.GetLogger())

	r.Add(modules.NewUserModule(userHandler, container.GetJWT()))
	r.Add(modules.NewAccountModule(accountHandler, container.GetJWT()))
	if cfg.DebugMetricsEnabled {
		r.Add(modules.NewDebugModule())
	}
}
