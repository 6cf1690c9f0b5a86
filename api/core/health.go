package core

import (
	"context"
	"net/http"
	"time"

	"github.com/anoixa/pattern-vault/cache"
	"github.com/anoixa/pattern-vault/config"
	"github.com/anoixa/pattern-vault/database"
	"github.com/anoixa/pattern-vault/storage"
	"github.com/gin-gonic/gin"
)

const healthCheckTimeout = 3 * time.Second

// healthHandler 任一依赖异常时返回 503
func healthHandler(deps *ServerDependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()

		checks := gin.H{
			"database": checkDatabaseHealth(ctx, deps.Database),
			"cache":    checkCacheHealth(ctx, deps.Cache),
			"storage":  checkStorageHealth(ctx, deps.Storage),
		}

		status := "ok"
		httpStatus := http.StatusOK
		for _, result := range checks {
			if result != "ok" {
				status = "degraded"
				httpStatus = http.StatusServiceUnavailable
				break
			}
		}

		c.JSON(httpStatus, gin.H{
			"status":  status,
			"uptime":  time.Since(startTime).Round(time.Second).String(),
			"version": config.Version,
			"checks":  checks,
		})
	}
}

func checkDatabaseHealth(ctx context.Context, provider database.Provider) string {
	if provider == nil {
		return "not initialized"
	}

	sqlDB, err := provider.SQLDB()
	if err != nil {
		return "error: " + err.Error()
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return "unavailable: " + err.Error()
	}
	return "ok"
}

func checkCacheHealth(ctx context.Context, provider cache.Provider) string {
	if provider == nil {
		return "not initialized"
	}
	if _, err := provider.Exists(ctx, "health:ping"); err != nil {
		return "error: " + err.Error()
	}
	return "ok"
}

func checkStorageHealth(ctx context.Context, provider storage.Provider) string {
	if provider == nil {
		return "not initialized"
	}
	if err := provider.Health(ctx); err != nil {
		return "error: " + err.Error()
	}
	return "ok"
}
