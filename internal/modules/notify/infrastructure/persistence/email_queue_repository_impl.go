package persistence

import (
	"context"
	"strings"
	"time"

	"AccessOps/internal/modules/notify/domain/email"
	"AccessOps/internal/modules/notify/domain/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type emailQueueRepositoryImpl struct {
	db *gorm.DB
}

func NewEmailQueueRepository(db *gorm.DB) repository.EmailQueueRepository {
	return &emailQueueRepositoryImpl{db: db}
}

func (r *emailQueueRepositoryImpl) Enqueue(ctx context.Context, task *email.EmailTask) error {
	if task == nil {
		return nil
	}
	return r.db.WithContext(ctx).Create(task).Error
}

func (r *emailQueueRepositoryImpl) EnqueueBatch(ctx context.Context, tasks []email.EmailTask) error {
	if len(tasks) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&tasks).Error
}

// ClaimPending 在一个事务里完成候选行锁定和归属标记。
// SKIP LOCKED 让并发实例直接跳过彼此锁住的行，而不是等待或重复选中
func (r *emailQueueRepositoryImpl) ClaimPending(ctx context.Context, instanceId string, batchSize int) ([]email.EmailTask, error) {
	if batchSize <= 0 {
		batchSize = 50
	}
	now := time.Now()
	staleBefore := now.Add(-email.ClaimStaleAfter)

	var out []email.EmailTask
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tasks []email.EmailTask
		q := tx.Model(&email.EmailTask{}).
			Where("(status = ? AND scheduled_send_time <= ?) OR (status = ? AND claimed_at < ?)",
				email.StatusPending, now, email.StatusProcessing, staleBefore).
			Order("priority DESC").
			Order("scheduled_send_time ASC").
			Limit(batchSize).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		if err := q.Find(&tasks).Error; err != nil {
			return err
		}
		if len(tasks) == 0 {
			out = []email.EmailTask{}
			return nil
		}

		ids := make([]int64, 0, len(tasks))
		for i := range tasks {
			ids = append(ids, tasks[i].Id)
		}
		if err := tx.Model(&email.EmailTask{}).
			Where("id IN ?", ids).
			Updates(map[string]any{
				"status":     email.StatusProcessing,
				"claimed_by": instanceId,
				"claimed_at": now,
				"updated_at": now,
			}).Error; err != nil {
			return err
		}

		for i := range tasks {
			tasks[i].Status = email.StatusProcessing
			tasks[i].ClaimedBy = instanceId
			claimed := now
			tasks[i].ClaimedAt = &claimed
		}
		out = tasks
		return nil
	})
	return out, err
}

func (r *emailQueueRepositoryImpl) MarkSent(ctx context.Context, id int64, sentAt time.Time) error {
	return r.db.WithContext(ctx).Model(&email.EmailTask{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     email.StatusSent,
			"sent_at":    sentAt,
			"last_error": "",
			"updated_at": time.Now(),
		}).Error
}

func (r *emailQueueRepositoryImpl) RescheduleForRetry(ctx context.Context, id int64, retryCount int, nextAt time.Time, lastError string) error {
	return r.db.WithContext(ctx).Model(&email.EmailTask{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":              email.StatusPending,
			"retry_count":         retryCount,
			"scheduled_send_time": nextAt,
			"claimed_by":          "",
			"claimed_at":          nil,
			"last_error":          truncateError(lastError),
			"updated_at":          time.Now(),
		}).Error
}

func (r *emailQueueRepositoryImpl) MarkFailed(ctx context.Context, id int64, lastError string) error {
	return r.db.WithContext(ctx).Model(&email.EmailTask{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     email.StatusFailed,
			"last_error": truncateError(lastError),
			"updated_at": time.Now(),
		}).Error
}

func (r *emailQueueRepositoryImpl) ResetFailedForRetry(ctx context.Context, maxRetries int, olderThan time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&email.EmailTask{}).
		Where("status = ? AND retry_count < ? AND updated_at < ?", email.StatusFailed, maxRetries, olderThan).
		Updates(map[string]any{
			"status":              email.StatusPending,
			"scheduled_send_time": time.Now(),
			"claimed_by":          "",
			"claimed_at":          nil,
			"updated_at":          time.Now(),
		})
	return res.RowsAffected, res.Error
}

func (r *emailQueueRepositoryImpl) CountByStatus(ctx context.Context, status int8) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&email.EmailTask{}).
		Where("status = ?", status).
		Count(&n).Error
	return n, err
}

func truncateError(msg string) string {
	msg = strings.TrimSpace(msg)
	if len(msg) > 255 {
		msg = msg[:255]
	}
	return msg
}
