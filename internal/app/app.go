package app

import (
	"fmt"

	"github.com/anoixa/pattern-vault/api/core"
	"github.com/anoixa/pattern-vault/cache"
	"github.com/anoixa/pattern-vault/config"
	"github.com/anoixa/pattern-vault/database"
	"github.com/anoixa/pattern-vault/database/repo/accounts"
	albumsRepo "github.com/anoixa/pattern-vault/database/repo/albums"
	groupsRepo "github.com/anoixa/pattern-vault/database/repo/groups"
	pagesRepo "github.com/anoixa/pattern-vault/database/repo/pages"
	"github.com/anoixa/pattern-vault/internal/access"
	"github.com/anoixa/pattern-vault/internal/albums"
	"github.com/anoixa/pattern-vault/internal/auth"
	"github.com/anoixa/pattern-vault/internal/groups"
	"github.com/anoixa/pattern-vault/internal/pages"
	"github.com/anoixa/pattern-vault/internal/worker"
	"github.com/anoixa/pattern-vault/storage"
	"github.com/anoixa/pattern-vault/utils"
)

// Container 依赖注入容器 - 管理所有服务的生命周期
type Container struct {
	config          *config.Config
	databaseFactory *database.Factory
	storage         storage.Provider
	cache           cache.Provider
	workers         *worker.Pool

	AccountsRepo *accounts.Repository
	GroupsRepo   *groupsRepo.Repository
	PagesRepo    *pagesRepo.Repository
	AlbumsRepo   *albumsRepo.Repository

	JWTService    *auth.JWTService
	LoginService  *auth.LoginService
	Guard         *access.Guard
	GroupsService *groups.Service
	PagesService  *pages.Service
	AlbumsService *albums.Service
}

// NewContainer 创建新的依赖注入容器
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config: cfg,
	}
}

// Init 初始化数据库和全部服务
func (c *Container) Init() error {
	if err := c.InitDatabase(); err != nil {
		return err
	}
	if err := c.InitServices(); err != nil {
		return err
	}
	return nil
}

// InitDatabase 连接数据库、迁移并创建仓库，命令行工具只需要这一步
func (c *Container) InitDatabase() error {
	utils.LogIfDev("Initializing DI container...")

	if err := c.initDatabaseFactory(); err != nil {
		return fmt.Errorf("failed to initialize database factory: %w", err)
	}
	if err := c.databaseFactory.AutoMigrate(); err != nil {
		return err
	}

	c.initRepositories()
	return nil
}

// InitServices 创建存储、缓存、协程池和业务服务
func (c *Container) InitServices() error {
	if c.databaseFactory == nil {
		return fmt.Errorf("database must be initialized before services")
	}

	provider, err := storage.NewProvider(c.config)
	if err != nil {
		return err
	}
	c.storage = provider

	cacheProvider, err := cache.NewProvider(c.config)
	if err != nil {
		return err
	}
	c.cache = cacheProvider

	c.workers = worker.InitGlobalPool(c.config.GetWorkerCount(), 0)
	remover := worker.NewFileRemover(c.workers, c.storage)

	jwtService, err := auth.NewJWTServiceFromConfig(c.config)
	if err != nil {
		return fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	c.JWTService = jwtService
	c.LoginService = auth.NewLoginService(c.AccountsRepo, jwtService)

	c.Guard = access.NewGuard(c.GroupsRepo)
	c.GroupsService = groups.NewService(c.GroupsRepo, remover)
	c.PagesService = pages.NewService(c.PagesRepo, c.Guard)
	c.AlbumsService = albums.NewService(
		c.AlbumsRepo,
		c.Guard,
		c.storage,
		remover,
		cache.NewHelper(c.cache, c.config.CacheAlbumTTL),
		albums.Options{
			MaxFiles:    c.config.UploadMaxFiles,
			MaxFileSize: c.config.UploadMaxBytes(),
		},
	)

	utils.LogIfDev("DI container initialized successfully")
	return nil
}

// initRepositories 初始化所有仓库
func (c *Container) initRepositories() {
	db := c.databaseFactory.GetProvider().DB()
	c.AccountsRepo = accounts.NewRepository(db)
	c.GroupsRepo = groupsRepo.NewRepository(db)
	c.PagesRepo = pagesRepo.NewRepository(db)
	c.AlbumsRepo = albumsRepo.NewRepository(db)
	utils.LogIfDev("Repositories initialized")
}

// initDatabaseFactory 初始化数据库工厂
func (c *Container) initDatabaseFactory() error {
	factory, err := database.NewFactory(c.config)
	if err != nil {
		return err
	}
	if err := factory.Ping(); err != nil {
		_ = factory.Close()
		return fmt.Errorf("database is not reachable: %w", err)
	}
	c.databaseFactory = factory
	utils.LogIfDev("Database factory initialized")
	return nil
}

// GetDatabaseFactory 获取数据库工厂
func (c *Container) GetDatabaseFactory() *database.Factory {
	return c.databaseFactory
}

// GetConfig 获取配置
func (c *Container) GetConfig() *config.Config {
	return c.config
}

// ServerDependencies 组装 HTTP 服务器依赖
func (c *Container) ServerDependencies() *core.ServerDependencies {
	return &core.ServerDependencies{
		Config:        c.config,
		Database:      c.databaseFactory.GetProvider(),
		Cache:         c.cache,
		Storage:       c.storage,
		Workers:       c.workers,
		JWT:           c.JWTService,
		LoginService:  c.LoginService,
		GroupsService: c.GroupsService,
		PagesService:  c.PagesService,
		AlbumsService: c.AlbumsService,
	}
}

// Close 关闭所有服务，协程池先执行完剩余的清理任务
func (c *Container) Close() error {
	utils.LogIfDev("Closing DI container...")

	if c.workers != nil {
		worker.StopGlobalPool()
	}

	if c.cache != nil {
		if err := c.cache.Close(); err != nil {
			utils.LogIfDevf("Error closing cache provider: %v", err)
		}
	}

	if c.databaseFactory != nil {
		if err := c.databaseFactory.Close(); err != nil {
			utils.LogIfDevf("Error closing database factory: %v", err)
		}
	}

	utils.LogIfDev("DI container closed")
	return nil
}
