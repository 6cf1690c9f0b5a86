package core

import (
	"net/http"
	"time"

	"github.com/anoixa/pattern-vault/api/middleware"
	"github.com/anoixa/pattern-vault/cache"
	"github.com/anoixa/pattern-vault/config"
	"github.com/anoixa/pattern-vault/database"
	"github.com/anoixa/pattern-vault/internal/albums"
	"github.com/anoixa/pattern-vault/internal/auth"
	"github.com/anoixa/pattern-vault/internal/groups"
	"github.com/anoixa/pattern-vault/internal/pages"
	"github.com/anoixa/pattern-vault/internal/worker"
	"github.com/anoixa/pattern-vault/storage"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

var startTime = time.Now()

// ServerDependencies 服务器依赖项，由 app.Container 构建
type ServerDependencies struct {
	Config   *config.Config
	Database database.Provider
	Cache    cache.Provider
	Storage  storage.Provider
	Workers  *worker.Pool

	JWT           *auth.JWTService
	LoginService  *auth.LoginService
	GroupsService *groups.Service
	PagesService  *pages.Service
	AlbumsService *albums.Service
}

// 启动gin
func setupRouter(deps *ServerDependencies) *gin.Engine {
	cfg := deps.Config
	router := gin.New()

	// 仅在开发版本时启用 gin 日志
	if config.IsDevelopment() {
		router.Use(gin.Logger())
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router.Use(gin.Recovery())
	router.Use(cors.New(corsConfig(cfg)))

	_ = router.SetTrustedProxies(nil)

	router.MaxMultipartMemory = cfg.UploadMaxBytes()

	concurrencyLimiter := middleware.NewConcurrencyLimiter(cfg.ServerMaxConcurrency)
	router.Use(concurrencyLimiter.Middleware())

	// 请求体上限：一次批量上传的全部文件外加表单开销
	maxFiles := int64(cfg.UploadMaxFiles)
	if maxFiles <= 0 {
		maxFiles = 1
	}
	router.Use(middleware.MaxBytesReader(cfg.UploadMaxBytes()*maxFiles + 1<<20))

	router.Use(middleware.RequestID())
	router.Use(middleware.Metrics())

	RegisterRoutes(router, deps)
	return router
}

func corsConfig(cfg *config.Config) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Length", "Content-Type", "Authorization", middleware.TokenHeader, middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}

	origins := cfg.ServerCorsOrigins
	if len(origins) == 0 {
		origins = []string{cfg.BaseURL()}
	}
	for _, o := range origins {
		if o == "*" {
			c.AllowAllOrigins = true
			return c
		}
	}
	c.AllowOrigins = origins
	c.AllowCredentials = true
	return c
}

// StartServer 创建 http.Server
func StartServer(deps *ServerDependencies) *http.Server {
	cfg := deps.Config
	router := setupRouter(deps)

	return &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  cfg.ServerIdleTimeout,
	}
}
