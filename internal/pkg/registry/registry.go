package registry

import (
	"context"
	"fmt"
	"sort"
	"course_market/internal/pkg/config"
	"course_market/pkg/cache"
	"course_market/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/go-redsync/redsync/v4"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Runner 需要在后台常驻运行的组件（如发件箱投递）
type Runner interface {
	Run(ctx context.Context) error
}

// ModuleContext 模块初始化所需的上下文
type ModuleContext struct {
	Config  *config.Config
	DB      *gorm.DB
	Sqlx    *sqlx.DB
	Redis   *redis.Client
	Redsync *redsync.Redsync
	Cache   cache.CacheService
	Logger  *zap.Logger
	Metrics *metrics.Collector
	Router  gin.IRouter

	runners []namedRunner
}

type namedRunner struct {
	name   string
	runner Runner
}

// AddRunner 注册后台任务，由 main 在模块初始化完成后统一启动
func (c *ModuleContext) AddRunner(name string, r Runner) {
	c.runners = append(c.runners, namedRunner{name: name, runner: r})
}

// StartRunners 启动所有后台任务，ctx 取消时退出
func (c *ModuleContext) StartRunners(ctx context.Context) {
	for _, nr := range c.runners {
		nr := nr
		go func() {
			if err := nr.runner.Run(ctx); err != nil && ctx.Err() == nil {
				c.Logger.Error("runner exited", zap.String("runner", nr.name), zap.Error(err))
			}
		}()
	}
}

// Module 模块接口
type Module interface {
	// Name 返回模块名称
	Name() string

	// Init 初始化模块（依赖注入、路由注册等）
	Init(ctx *ModuleContext) error

	// Priority 返回初始化优先级（数字越小越先初始化）
	Priority() int
}

// moduleRegistry 全局模块注册表
var moduleRegistry = make(map[string]Module)

// Register 注册模块
func Register(module Module) {
	moduleRegistry[module.Name()] = module
}

// GetModules 获取所有已注册的模块
func GetModules() map[string]Module {
	return moduleRegistry
}

// ordered 按优先级排序，优先级相同按名称
func ordered(modules map[string]Module) []Module {
	list := make([]Module, 0, len(modules))
	for _, m := range modules {
		list = append(list, m)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Priority() != list[j].Priority() {
			return list[i].Priority() < list[j].Priority()
		}
		return list[i].Name() < list[j].Name()
	})
	return list
}

// InitModules 按优先级初始化所有模块
func InitModules(ctx *ModuleContext) error {
	for _, module := range ordered(moduleRegistry) {
		if err := module.Init(ctx); err != nil {
			return fmt.Errorf("init module %s: %w", module.Name(), err)
		}
		if ctx.Logger != nil {
			ctx.Logger.Info("module initialized", zap.String("module", module.Name()))
		}
	}
	return nil
}
