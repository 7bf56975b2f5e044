package router

import (
	"time"

	"cashregister/internal/config"
	"cashregister/internal/handler"
	"cashregister/internal/infra"
	"cashregister/internal/middleware"
	"cashregister/internal/model"
	"cashregister/internal/repository"
	"cashregister/internal/service"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB (behind guard).
// rdb may be nil when Redis is not configured.
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, guard *infra.Guard) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.NewRateLimiter(1000, time.Minute).Middleware())

	// ── Repositories ─────────────────────────────────────────────────────────
	userRepo := repository.NewUserRepository(db, guard)
	registerRepo := repository.NewRegisterRepository(db, guard)
	outboxRepo := repository.NewOutboxRepository(db, guard)

	// ── Services ─────────────────────────────────────────────────────────────
	actors := service.NewActorVerifier(userRepo)
	registerSvc := service.NewRegisterService(registerRepo, actors)
	paymentSvc := service.NewPaymentRecorder(registerRepo, actors)
	dashboardSvc := service.NewDashboardService(registerRepo)

	// ── Handlers ─────────────────────────────────────────────────────────────
	registerH := handler.NewRegisterHandler(registerSvc, paymentSvc, dashboardSvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	r.GET("/health", handler.Health(handler.HealthDeps{
		DB:      db,
		Redis:   rdb,
		Breaker: guard.Breaker(),
		Outbox:  outboxRepo,
		Queue:   cfg.EventsQueue,
	}))

	// Roles are checked against the stored user, not the token claim.
	anyOperator := middleware.RequireRole(userRepo, model.RoleCashier, model.RoleSupervisor, model.RoleAdmin)
	supervisors := middleware.RequireRole(userRepo, model.RoleSupervisor, model.RoleAdmin)

	reg := r.Group("/v1/register", middleware.JWTAuth(cfg.JWTSecret))
	{
		reg.POST("/open", anyOperator, registerH.Open)
		reg.POST("/close/:id", anyOperator, registerH.Close)
		reg.GET("/current", anyOperator, registerH.Current)
		reg.GET("/sessions/:id", anyOperator, registerH.GetSession)
		reg.GET("/sessions", supervisors, registerH.History)
		reg.POST("/entries", anyOperator, registerH.RecordEntry)
		reg.POST("/entries/:id/cancel", supervisors, registerH.CancelEntry)
		reg.GET("/dashboard", supervisors, registerH.Dashboard)
	}

	// Swagger UI outside production only
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
