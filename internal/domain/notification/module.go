package notification

import (
	"time"
	"course_market/internal/domain/notification/model"
	"course_market/internal/domain/notification/repository"
	"course_market/internal/domain/notification/service"
	"course_market/internal/pkg/push"
	"course_market/internal/pkg/registry"
	"course_market/internal/pkg/uploader"
	"course_market/internal/pkg/worker"
)

const relayLockName = "lock:outbox:relay"

// NotificationModule 发件箱投递模块，无对外路由
type NotificationModule struct{}

func init() {
	registry.Register(&NotificationModule{})
}

func (m *NotificationModule) Name() string {
	return "notification"
}

func (m *NotificationModule) Priority() int {
	return 5
}

func (m *NotificationModule) Init(ctx *registry.ModuleContext) error {
	cfg := ctx.Config.Outbox

	var locker service.Locker
	if ctx.Redsync != nil {
		// 锁有效期覆盖一次轮询的最长处理时间
		locker = service.NewRedsyncLocker(ctx.Redsync, relayLockName, cfg.PollInterval+time.Minute)
	} else {
		locker = service.NewLocalLocker()
	}

	// 重试由发件箱的 attempts/available_at 负责，pool 不再重试
	pool := worker.NewPool(cfg.Workers, cfg.BatchSize, 0, ctx.Logger)

	relay := service.NewRelay(NewOutbox(ctx), locker, pool, cfg, ctx.Metrics, ctx.Logger)
	relay.Handle(model.EventPaymentSucceeded, service.NewPaymentSucceededHandler(push.New(ctx.Config.Push, ctx.Logger)))
	relay.Handle(model.EventPaymentReceipt, service.NewReceiptHandler(uploader.New(ctx.Config.OSS, ctx.Logger), time.Now))

	ctx.AddRunner("outbox-relay", relay)
	return nil
}

// NewOutbox 供支付模块在确认事务中写入事件
func NewOutbox(ctx *registry.ModuleContext) repository.OutboxRepository {
	return repository.NewOutboxRepository(ctx.DB)
}
