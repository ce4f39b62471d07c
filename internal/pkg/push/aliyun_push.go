package push

import (
	"context"
	"encoding/json"
	"fmt"
	"course_market/internal/pkg/config"

	"github.com/aliyun/alibaba-cloud-sdk-go/sdk/requests"
	"github.com/aliyun/alibaba-cloud-sdk-go/services/push"
	"go.uber.org/zap"
)

// PushService 消息推送
type PushService interface {
	PushToAccount(ctx context.Context, accountID, title, body string, extParameters map[string]string) error
}

// AliyunPushService 阿里云移动推送
type AliyunPushService struct {
	client *push.Client
	appKey int64
}

func NewAliyunPushService(cfg config.PushConfig) (*AliyunPushService, error) {
	if cfg.AccessKeyID == "" || cfg.AppKey == 0 {
		return nil, fmt.Errorf("push config is missing")
	}

	client, err := push.NewClientWithAccessKey(cfg.RegionID, cfg.AccessKeyID, cfg.AccessKeySecret)
	if err != nil {
		return nil, err
	}

	return &AliyunPushService{client: client, appKey: cfg.AppKey}, nil
}

// PushToAccount 按账号推送，账号即用户 ID
func (s *AliyunPushService) PushToAccount(ctx context.Context, accountID, title, body string, extParameters map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	request := push.CreatePushRequest()
	request.AppKey = requests.NewInteger(int(s.appKey))
	request.Target = "ACCOUNT"
	request.TargetValue = accountID
	request.Title = title
	request.Body = body
	request.DeviceType = "ALL"
	request.PushType = "NOTICE"

	if len(extParameters) > 0 {
		extJSON, err := json.Marshal(extParameters)
		if err != nil {
			return err
		}
		request.AndroidExtParameters = string(extJSON)
		request.IOSExtParameters = string(extJSON)
	}

	resp, err := s.client.Push(request)
	if err != nil {
		return fmt.Errorf("aliyun push: %w", err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("aliyun push: http %d", resp.GetHttpStatus())
	}
	return nil
}

// LogPushService 未配置推送时的降级实现，只记录日志
type LogPushService struct {
	logger *zap.Logger
}

func NewLogPushService(logger *zap.Logger) *LogPushService {
	return &LogPushService{logger: logger}
}

func (s *LogPushService) PushToAccount(ctx context.Context, accountID, title, body string, extParameters map[string]string) error {
	s.logger.Info("push skipped (not configured)",
		zap.String("account", accountID),
		zap.String("title", title),
		zap.Any("ext", extParameters),
	)
	return nil
}

// New 按配置选择实现
func New(cfg config.PushConfig, logger *zap.Logger) PushService {
	svc, err := NewAliyunPushService(cfg)
	if err != nil {
		logger.Warn("aliyun push disabled", zap.Error(err))
		return NewLogPushService(logger)
	}
	return svc
}
