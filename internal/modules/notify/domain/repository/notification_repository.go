package repository

import (
	"context"
	"time"

	"AccessOps/internal/modules/notify/domain/notification"
)

// NotificationRepository 系统通知仓储接口
type NotificationRepository interface {
	CreateNotification(ctx context.Context, notif *notification.Notification) error
	CreateBatch(ctx context.Context, notifs []notification.Notification) error

	GetByUser(ctx context.Context, userId string, limit int) ([]notification.Notification, error)

	// GetUnsentSince 摘要聚合用：取某用户自 since 以来创建的通知
	GetUnsentSince(ctx context.Context, userId string, since time.Time, limit int) ([]notification.Notification, error)

	UpdateStatus(ctx context.Context, notificationId string, status int8) error
	MarkRead(ctx context.Context, notificationId string, userId string) error
}

// DeliverySettingRepository 用户通知投递偏好
type DeliverySettingRepository interface {
	GetByUser(ctx context.Context, userId string) (*notification.DeliverySetting, error)
	Upsert(ctx context.Context, setting *notification.DeliverySetting) error

	// GetDigestUsers 取所有摘要频率（hourly/daily）的用户偏好
	GetDigestUsers(ctx context.Context) ([]notification.DeliverySetting, error)

	// TouchLastDigestAt 记录一次摘要生成时间
	TouchLastDigestAt(ctx context.Context, userId string, at time.Time) error
}
