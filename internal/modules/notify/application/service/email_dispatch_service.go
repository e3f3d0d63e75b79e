package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"AccessOps/internal/modules/notify/domain/email"
	"AccessOps/internal/modules/notify/domain/notification"
	"AccessOps/internal/modules/notify/domain/repository"
	"AccessOps/internal/modules/notify/infrastructure/mail"
	"AccessOps/internal/modules/notify/infrastructure/render"
	"AccessOps/pkg/zlog"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// EmailDispatchService 把已认领的邮件任务变成已发送（或确定失败）
type EmailDispatchService interface {
	// ProcessQueue 认领并处理一批任务，返回成功发出的数量
	ProcessQueue(ctx context.Context, batchSize int) (int, error)

	// RetryFailedEmails 恢复性清扫：把 hoursOld 小时前失败、
	// 重试次数未耗尽的任务重置回 Pending
	RetryFailedEmails(ctx context.Context, maxRetries int, hoursOld int) (int64, error)

	// ProcessScheduledDigests 为摘要频率的用户聚合未读通知，
	// 每人至多入队一封合并邮件；与即时队列只共享存储，互不干扰
	ProcessScheduledDigests(ctx context.Context) (int, error)
}

type emailDispatchServiceImpl struct {
	queueRepo    repository.EmailQueueRepository
	notifRepo    repository.NotificationRepository
	settingsRepo repository.DeliverySettingRepository
	sender       mail.Sender
	instanceId   string
	maxRetries   int
	concurrency  int64
}

func NewEmailDispatchService(
	queueRepo repository.EmailQueueRepository,
	notifRepo repository.NotificationRepository,
	settingsRepo repository.DeliverySettingRepository,
	sender mail.Sender,
	instanceId string,
	maxRetries int,
	sendConcurrency int,
) EmailDispatchService {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if sendConcurrency <= 0 {
		sendConcurrency = 4
	}
	return &emailDispatchServiceImpl{
		queueRepo:    queueRepo,
		notifRepo:    notifRepo,
		settingsRepo: settingsRepo,
		sender:       sender,
		instanceId:   instanceId,
		maxRetries:   maxRetries,
		concurrency:  int64(sendConcurrency),
	}
}

func (s *emailDispatchServiceImpl) ProcessQueue(ctx context.Context, batchSize int) (int, error) {
	tasks, err := s.queueRepo.ClaimPending(ctx, s.instanceId, batchSize)
	if err != nil {
		return 0, fmt.Errorf("claim pending emails: %w", err)
	}
	if len(tasks) == 0 {
		return 0, nil
	}

	sem := semaphore.NewWeighted(s.concurrency)
	results := make(chan bool, len(tasks))
	for i := range tasks {
		if err := sem.Acquire(ctx, 1); err != nil {
			// 收到取消信号：已在途的任务跑完，剩余任务留待下次认领
			results <- false
			continue
		}
		task := tasks[i]
		go func() {
			defer sem.Release(1)
			results <- s.dispatchOne(ctx, &task)
		}()
	}

	sent := 0
	for range tasks {
		if <-results {
			sent++
		}
	}
	return sent, nil
}

func (s *emailDispatchServiceImpl) dispatchOne(ctx context.Context, task *email.EmailTask) bool {
	body, err := s.renderBody(task)
	if err != nil {
		// 渲染类错误重试也会复现，直接置终态
		zlog.Error("email: render failed, marking terminal",
			zap.Int64("taskId", task.Id), zap.Error(err))
		_ = s.queueRepo.MarkFailed(ctx, task.Id, err.Error())
		return false
	}

	sendErr := s.sender.Send(ctx, mail.OutboundMail{
		To:      task.Recipient,
		Subject: task.Subject,
		Body:    body,
		HTML:    true,
	})
	if sendErr == nil {
		if err := s.queueRepo.MarkSent(ctx, task.Id, time.Now()); err != nil {
			zlog.Warn("email: mark sent failed", zap.Int64("taskId", task.Id), zap.Error(err))
		}
		return true
	}

	retry := task.RetryCount + 1
	if retry > s.maxRetries {
		zlog.Error("email: retries exhausted",
			zap.Int64("taskId", task.Id), zap.Int("retryCount", retry), zap.Error(sendErr))
		_ = s.queueRepo.MarkFailed(ctx, task.Id, sendErr.Error())
		return false
	}

	nextAt := nextRetryAt(time.Now(), retry)
	zlog.Warn("email: send failed, rescheduling",
		zap.Int64("taskId", task.Id), zap.Int("retryCount", retry),
		zap.Time("nextAt", nextAt), zap.Error(sendErr))
	if err := s.queueRepo.RescheduleForRetry(ctx, task.Id, retry, nextAt, sendErr.Error()); err != nil {
		zlog.Warn("email: reschedule failed", zap.Int64("taskId", task.Id), zap.Error(err))
	}
	return false
}

func (s *emailDispatchServiceImpl) renderBody(task *email.EmailTask) (string, error) {
	// 摘要任务在聚合时已渲染完整正文
	if task.IsDigest == 1 {
		if task.Body == "" {
			return "", &render.RenderError{Err: errors.New("digest task has empty body")}
		}
		return task.Body, nil
	}
	return render.Notification(task.Subject, task.Body)
}

func (s *emailDispatchServiceImpl) RetryFailedEmails(ctx context.Context, maxRetries int, hoursOld int) (int64, error) {
	if maxRetries <= 0 {
		maxRetries = s.maxRetries
	}
	if hoursOld <= 0 {
		hoursOld = 1
	}
	olderThan := time.Now().Add(-time.Duration(hoursOld) * time.Hour)
	n, err := s.queueRepo.ResetFailedForRetry(ctx, maxRetries, olderThan)
	if err != nil {
		return 0, fmt.Errorf("reset failed emails: %w", err)
	}
	if n > 0 {
		zlog.Info("email: failed tasks reset for retry", zap.Int64("count", n))
	}
	return n, nil
}

func (s *emailDispatchServiceImpl) ProcessScheduledDigests(ctx context.Context) (int, error) {
	settings, err := s.settingsRepo.GetDigestUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("load digest users: %w", err)
	}

	enqueued := 0
	now := time.Now()
	for i := range settings {
		setting := &settings[i]
		if !s.digestDue(setting, now) {
			continue
		}

		since := time.Time{}
		if setting.LastDigestAt != nil {
			since = *setting.LastDigestAt
		}
		notifs, err := s.notifRepo.GetUnsentSince(ctx, setting.UserId, since, 200)
		if err != nil {
			zlog.Warn("digest: load notifications failed",
				zap.String("userId", setting.UserId), zap.Error(err))
			continue
		}
		if len(notifs) == 0 {
			continue
		}

		items := make([]render.Item, 0, len(notifs))
		for _, n := range notifs {
			items = append(items, render.Item{Title: n.Title, Content: n.Content})
		}
		body, err := render.Digest(items)
		if err != nil {
			zlog.Error("digest: render failed", zap.String("userId", setting.UserId), zap.Error(err))
			continue
		}

		task := email.EmailTask{
			UserId:            setting.UserId,
			Recipient:         setting.Email,
			Subject:           fmt.Sprintf("Notification digest (%d new)", len(notifs)),
			Body:              body,
			IsDigest:          1,
			Status:            email.StatusPending,
			Priority:          email.PriorityNormal,
			ScheduledSendTime: now,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := s.queueRepo.Enqueue(ctx, &task); err != nil {
			zlog.Warn("digest: enqueue failed", zap.String("userId", setting.UserId), zap.Error(err))
			continue
		}
		if err := s.settingsRepo.TouchLastDigestAt(ctx, setting.UserId, now); err != nil {
			zlog.Warn("digest: touch last digest time failed",
				zap.String("userId", setting.UserId), zap.Error(err))
		}
		enqueued++
	}
	return enqueued, nil
}

func (s *emailDispatchServiceImpl) digestDue(setting *notification.DeliverySetting, now time.Time) bool {
	if !setting.WantsEmail() {
		return false
	}
	interval := setting.DigestInterval()
	if interval <= 0 {
		return false
	}
	if setting.LastDigestAt == nil {
		return true
	}
	return now.Sub(*setting.LastDigestAt) >= interval
}

// nextRetryAt 指数退避，2 分钟起步，1 小时封顶
func nextRetryAt(now time.Time, retryCount int) time.Time {
	d := 2 * time.Minute
	for i := 1; i < retryCount && d < time.Hour; i++ {
		d *= 2
	}
	if d > time.Hour {
		d = time.Hour
	}
	return now.Add(d)
}
