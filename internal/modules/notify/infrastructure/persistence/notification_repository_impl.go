package persistence

import (
	"context"
	"errors"
	"time"

	"AccessOps/internal/modules/notify/domain/notification"
	"AccessOps/internal/modules/notify/domain/repository"

	"gorm.io/gorm"
)

type notificationRepositoryImpl struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) repository.NotificationRepository {
	return &notificationRepositoryImpl{db: db}
}

func (r *notificationRepositoryImpl) CreateNotification(ctx context.Context, notif *notification.Notification) error {
	if notif == nil {
		return nil
	}
	return r.db.WithContext(ctx).Create(notif).Error
}

func (r *notificationRepositoryImpl) CreateBatch(ctx context.Context, notifs []notification.Notification) error {
	if len(notifs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&notifs).Error
}

func (r *notificationRepositoryImpl) GetByUser(ctx context.Context, userId string, limit int) ([]notification.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	var notifs []notification.Notification
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userId).
		Order("created_at DESC").
		Limit(limit).
		Find(&notifs).Error
	return notifs, err
}

func (r *notificationRepositoryImpl) GetUnsentSince(ctx context.Context, userId string, since time.Time, limit int) ([]notification.Notification, error) {
	if limit <= 0 {
		limit = 200
	}
	var notifs []notification.Notification
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND created_at > ? AND status <> ?", userId, since, notification.StatusRead).
		Order("created_at ASC").
		Limit(limit).
		Find(&notifs).Error
	return notifs, err
}

func (r *notificationRepositoryImpl) UpdateStatus(ctx context.Context, notificationId string, status int8) error {
	updates := map[string]any{"status": status}
	if status == notification.StatusPushed {
		updates["pushed_at"] = time.Now()
	}
	return r.db.WithContext(ctx).
		Model(&notification.Notification{}).
		Where("notification_id = ?", notificationId).
		Updates(updates).Error
}

func (r *notificationRepositoryImpl) MarkRead(ctx context.Context, notificationId string, userId string) error {
	return r.db.WithContext(ctx).
		Model(&notification.Notification{}).
		Where("notification_id = ? AND user_id = ?", notificationId, userId).
		Updates(map[string]any{"status": notification.StatusRead, "read_at": time.Now()}).Error
}

type deliverySettingRepositoryImpl struct {
	db *gorm.DB
}

func NewDeliverySettingRepository(db *gorm.DB) repository.DeliverySettingRepository {
	return &deliverySettingRepositoryImpl{db: db}
}

func (r *deliverySettingRepositoryImpl) GetByUser(ctx context.Context, userId string) (*notification.DeliverySetting, error) {
	var setting notification.DeliverySetting
	err := r.db.WithContext(ctx).Where("user_id = ?", userId).Take(&setting).Error
	if err == nil {
		return &setting, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return nil, err
}

func (r *deliverySettingRepositoryImpl) Upsert(ctx context.Context, setting *notification.DeliverySetting) error {
	if setting == nil {
		return nil
	}
	setting.UpdatedAt = time.Now()
	existing, err := r.GetByUser(ctx, setting.UserId)
	if err != nil {
		return err
	}
	if existing == nil {
		return r.db.WithContext(ctx).Create(setting).Error
	}
	setting.Id = existing.Id
	return r.db.WithContext(ctx).Save(setting).Error
}

func (r *deliverySettingRepositoryImpl) GetDigestUsers(ctx context.Context) ([]notification.DeliverySetting, error) {
	var settings []notification.DeliverySetting
	err := r.db.WithContext(ctx).
		Where("email_enabled = 1 AND frequency IN ?", []string{notification.FrequencyHourly, notification.FrequencyDaily}).
		Find(&settings).Error
	return settings, err
}

func (r *deliverySettingRepositoryImpl) TouchLastDigestAt(ctx context.Context, userId string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&notification.DeliverySetting{}).
		Where("user_id = ?", userId).
		Updates(map[string]any{"last_digest_at": at, "updated_at": time.Now()}).Error
}
