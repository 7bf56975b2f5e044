package handler

import (
	"context"
	"net/http"
	"time"

	"cashregister/internal/infra"
	"cashregister/internal/repository"
	"cashregister/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// HealthDeps are the dependencies probed by /health. Redis and Outbox are
// optional.
type HealthDeps struct {
	DB      *gorm.DB
	Redis   *redis.Client
	Breaker *infra.CircuitBreaker
	Outbox  repository.OutboxRepository
	Queue   string
}

// Health reports DB and Redis connectivity, the DB circuit breaker state and
// the event backlog (outbox rows not yet published, DLQ length).
// A nil Redis client reports "disabled" and does not fail.
func Health(deps HealthDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		body := gin.H{}

		dbStatus := "connected"
		sqlDB, err := deps.DB.DB()
		if err != nil || sqlDB.PingContext(ctx) != nil {
			dbStatus = "error"
		}
		body["db"] = dbStatus

		redisStatus := "disabled"
		if deps.Redis != nil {
			redisStatus = "connected"
			if deps.Redis.Ping(ctx).Err() != nil {
				redisStatus = "error"
			} else if n, err := worker.DLQLength(ctx, deps.Redis, deps.Queue); err == nil {
				body["dlq_length"] = n
			}
		}
		body["redis"] = redisStatus

		breakerState := "closed"
		if deps.Breaker != nil {
			breakerState = deps.Breaker.State().String()
		}
		body["db_breaker"] = breakerState

		if deps.Outbox != nil && dbStatus == "connected" {
			if n, err := deps.Outbox.CountPending(ctx); err == nil {
				body["outbox_pending"] = n
			}
		}

		status := http.StatusOK
		if dbStatus != "connected" || redisStatus == "error" || breakerState == "open" {
			status = http.StatusServiceUnavailable
		}
		body["ok"] = status == http.StatusOK

		c.JSON(status, body)
	}
}
