package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"AccessOps/internal/modules/notify/domain/email"
	"AccessOps/internal/modules/notify/domain/notification"
	"AccessOps/internal/modules/notify/domain/repository"
	"AccessOps/pkg/redis"
	"AccessOps/pkg/util"
	"AccessOps/pkg/zlog"

	"go.uber.org/zap"
)

const settingsCacheTTL = 5 * time.Minute

// NotificationService 创建通知、按用户偏好入队邮件并触发实时推送
type NotificationService interface {
	Notify(ctx context.Context, userIds []string, title, content, category string) error
	GetUserNotifications(ctx context.Context, userId string, limit int) ([]notification.Notification, error)
	MarkRead(ctx context.Context, notificationId, userId string) error
}

type notificationServiceImpl struct {
	notifRepo    repository.NotificationRepository
	settingsRepo repository.DeliverySettingRepository
	queueRepo    repository.EmailQueueRepository
	publisher    NotificationPublisher
}

func NewNotificationService(
	notifRepo repository.NotificationRepository,
	settingsRepo repository.DeliverySettingRepository,
	queueRepo repository.EmailQueueRepository,
	publisher NotificationPublisher,
) NotificationService {
	return &notificationServiceImpl{
		notifRepo:    notifRepo,
		settingsRepo: settingsRepo,
		queueRepo:    queueRepo,
		publisher:    publisher,
	}
}

func (s *notificationServiceImpl) Notify(ctx context.Context, userIds []string, title, content, category string) error {
	title = strings.TrimSpace(title)
	if title == "" || len(userIds) == 0 {
		return nil
	}

	now := time.Now()
	notifs := make([]notification.Notification, 0, len(userIds))
	for _, uid := range userIds {
		uid = strings.TrimSpace(uid)
		if uid == "" {
			continue
		}
		notifs = append(notifs, notification.Notification{
			NotificationId: util.GenerateUUID(),
			UserId:         uid,
			Title:          title,
			Content:        content,
			Category:       category,
			Status:         notification.StatusPending,
			CreatedAt:      now,
		})
	}
	if len(notifs) == 0 {
		return nil
	}
	if err := s.notifRepo.CreateBatch(ctx, notifs); err != nil {
		return fmt.Errorf("persist notifications: %w", err)
	}

	for i := range notifs {
		s.enqueueImmediateEmail(ctx, &notifs[i], now)
	}

	// 实时推送尽力而为，失败只记日志（客户端轮询兜底）
	for i := range notifs {
		if err := s.publisher.Publish(ctx, &notifs[i], []string{notifs[i].UserId}); err != nil {
			zlog.Warn("notify: realtime publish failed",
				zap.String("notificationId", notifs[i].NotificationId), zap.Error(err))
		}
	}
	return nil
}

// enqueueImmediateEmail 即时频率的用户立刻入队单封邮件；
// 摘要频率的用户等待摘要清扫合并
func (s *notificationServiceImpl) enqueueImmediateEmail(ctx context.Context, notif *notification.Notification, now time.Time) {
	setting, err := s.settingForUser(ctx, notif.UserId)
	if err != nil {
		zlog.Warn("notify: load delivery settings failed",
			zap.String("userId", notif.UserId), zap.Error(err))
		return
	}
	if !setting.WantsEmail() || setting.Frequency != notification.FrequencyImmediate {
		return
	}

	priority := email.PriorityNormal
	if notif.Category == "alert" {
		priority = email.PriorityHigh
	}
	task := email.EmailTask{
		NotificationId:    notif.NotificationId,
		UserId:            notif.UserId,
		Recipient:         setting.Email,
		Subject:           notif.Title,
		Body:              notif.Content,
		Status:            email.StatusPending,
		Priority:          priority,
		ScheduledSendTime: now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.queueRepo.Enqueue(ctx, &task); err != nil {
		zlog.Warn("notify: enqueue email failed",
			zap.String("notificationId", notif.NotificationId), zap.Error(err))
	}
}

// settingForUser 经 Redis 读穿缓存取用户偏好；缓存不可用时直接读库
func (s *notificationServiceImpl) settingForUser(ctx context.Context, userId string) (*notification.DeliverySetting, error) {
	cacheKey := "accessops:notify:settings:" + userId
	if redis.IsConnected() {
		if raw, err := redis.Get(ctx, cacheKey); err == nil && raw != "" {
			var setting notification.DeliverySetting
			if err := json.Unmarshal([]byte(raw), &setting); err == nil {
				return &setting, nil
			}
		}
	}

	setting, err := s.settingsRepo.GetByUser(ctx, userId)
	if err != nil {
		return nil, err
	}
	if setting == nil {
		// 未配置偏好的用户默认只收站内通知
		setting = &notification.DeliverySetting{UserId: userId, EmailEnabled: 0}
	}

	if redis.IsConnected() {
		if raw, err := json.Marshal(setting); err == nil {
			_ = redis.Set(ctx, cacheKey, string(raw), settingsCacheTTL)
		}
	}
	return setting, nil
}

func (s *notificationServiceImpl) GetUserNotifications(ctx context.Context, userId string, limit int) ([]notification.Notification, error) {
	return s.notifRepo.GetByUser(ctx, userId, limit)
}

func (s *notificationServiceImpl) MarkRead(ctx context.Context, notificationId, userId string) error {
	return s.notifRepo.MarkRead(ctx, notificationId, userId)
}
