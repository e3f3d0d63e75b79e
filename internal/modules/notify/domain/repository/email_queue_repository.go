package repository

import (
	"context"
	"time"

	"AccessOps/internal/modules/notify/domain/email"
)

// EmailQueueRepository 出站邮件队列仓储。
// ClaimPending 是唯一需要跨实例互斥的操作，必须实现为单个
// 原子的条件读改写，两个并发调用方拿到的集合交集为空
type EmailQueueRepository interface {
	Enqueue(ctx context.Context, task *email.EmailTask) error
	EnqueueBatch(ctx context.Context, tasks []email.EmailTask) error

	// ClaimPending 原子认领一批可处理任务：Pending 且到期的，
	// 或 Processing 但认领已过期（实例崩溃遗留）的，按优先级降序、
	// 计划发送时间升序取 batchSize 条，置为 Processing 并标记归属
	ClaimPending(ctx context.Context, instanceId string, batchSize int) ([]email.EmailTask, error)

	MarkSent(ctx context.Context, id int64, sentAt time.Time) error

	// RescheduleForRetry 发送失败后退避重排：状态回到 Pending、
	// 清除认领、累加重试次数并推后计划发送时间
	RescheduleForRetry(ctx context.Context, id int64, retryCount int, nextAt time.Time, lastError string) error

	// MarkFailed 终态失败（重试耗尽或渲染类错误）
	MarkFailed(ctx context.Context, id int64, lastError string) error

	// ResetFailedForRetry 恢复性清扫：把超过 olderThan 时长、
	// 重试次数仍小于 maxRetries 的 Failed 任务重置回 Pending
	ResetFailedForRetry(ctx context.Context, maxRetries int, olderThan time.Time) (int64, error)

	CountByStatus(ctx context.Context, status int8) (int64, error)
}
