package core

import (
	"net/http"

	"github.com/anoixa/pattern-vault/api/common"
	handlerAlbums "github.com/anoixa/pattern-vault/api/handler/albums"
	handlerAuth "github.com/anoixa/pattern-vault/api/handler/auth"
	handlerGroups "github.com/anoixa/pattern-vault/api/handler/groups"
	handlerPages "github.com/anoixa/pattern-vault/api/handler/pages"
	"github.com/anoixa/pattern-vault/api/middleware"
	"github.com/anoixa/pattern-vault/config"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes 注册所有路由
func RegisterRoutes(router *gin.Engine, deps *ServerDependencies) {
	registerBasicRoutes(router, deps)
	registerAPIRoutes(router, deps)
}

// registerBasicRoutes 注册基础路由
func registerBasicRoutes(router *gin.Engine, deps *ServerDependencies) {
	router.GET("/health", healthHandler(deps))

	router.GET("/version", func(context *gin.Context) {
		common.RespondSuccess(context, gin.H{
			"version": config.Version,
			"commit":  config.CommitHash,
		})
	})

	router.GET("/metrics", func(context *gin.Context) {
		metrics := middleware.GetMetrics()
		if deps.Workers != nil {
			metrics["workers"] = deps.Workers.GetStats()
		}
		context.JSON(http.StatusOK, metrics)
	})
}

// registerAPIRoutes 注册 API 路由
func registerAPIRoutes(router *gin.Engine, deps *ServerDependencies) {
	authHandler := handlerAuth.NewHandler(deps.LoginService)
	groupHandler := handlerGroups.NewHandler(deps.GroupsService)
	pageHandler := handlerPages.NewHandler(deps.PagesService)
	albumHandler := handlerAlbums.NewHandler(deps.AlbumsService, deps.Config.BaseURL())

	apiGroup := router.Group("/api")
	apiGroup.Use(func(context *gin.Context) { // 所有API禁止缓存
		context.Header("Cache-Control", "no-store")
		context.Next()
	})

	authGroup := apiGroup.Group("/auth")
	{
		authGroup.POST("/register", authHandler.RegisterHandler) // POST /api/auth/register
		authGroup.POST("/login", authHandler.LoginHandler)       // POST /api/auth/login
		authGroup.GET("/me", middleware.TokenAuth(deps.JWT), authHandler.MeHandler)
	}

	protected := apiGroup.Group("")
	protected.Use(middleware.TokenAuth(deps.JWT))

	groupsGroup := protected.Group("/groups")
	{
		groupsGroup.GET("", groupHandler.ListGroupsHandler)
		groupsGroup.POST("/create", groupHandler.CreateGroupHandler)
		groupsGroup.POST("/join", groupHandler.JoinGroupHandler)
		groupsGroup.GET("/:id", groupHandler.GetGroupHandler)
		groupsGroup.POST("/:id/leave", groupHandler.LeaveGroupHandler)
		groupsGroup.DELETE("/:id", groupHandler.DeleteGroupHandler)
	}

	pagesGroup := protected.Group("/pages")
	{
		pagesGroup.GET("/personal", pageHandler.ListPersonalHandler)
		pagesGroup.POST("/personal", pageHandler.CreatePersonalHandler)
		pagesGroup.GET("/group/:groupId", pageHandler.ListGroupHandler)
		pagesGroup.POST("/group/:groupId", pageHandler.CreateGroupHandler)
		pagesGroup.GET("/:id", pageHandler.GetPageHandler)
		pagesGroup.PUT("/:id", pageHandler.UpdatePageHandler)
		pagesGroup.DELETE("/:id", pageHandler.DeletePageHandler)
	}

	albumsGroup := protected.Group("/albums")
	{
		albumsGroup.GET("/personal", albumHandler.ListPersonalHandler)
		albumsGroup.POST("/personal", albumHandler.CreatePersonalHandler)
		albumsGroup.GET("/group/:groupId", albumHandler.ListGroupHandler)
		albumsGroup.POST("/group/:groupId", albumHandler.CreateGroupHandler)
		albumsGroup.GET("/:id", albumHandler.GetAlbumHandler)
		albumsGroup.DELETE("/:id", albumHandler.DeleteAlbumHandler)

		// 相册照片
		albumsGroup.POST("/:id/photos", albumHandler.UploadPhotosHandler)
		albumsGroup.GET("/:id/photos/:filename", albumHandler.GetPhotoHandler)
		albumsGroup.DELETE("/:id/photos/:filename", albumHandler.DeletePhotoHandler)
	}
}
