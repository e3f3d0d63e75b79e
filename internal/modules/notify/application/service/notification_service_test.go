package service

import (
	"context"
	"errors"
	"testing"

	"AccessOps/internal/modules/notify/domain/email"
	"AccessOps/internal/modules/notify/domain/notification"
)

type capturingPublisher struct {
	published []string
	failWith  error
}

func (p *capturingPublisher) Publish(ctx context.Context, notif *notification.Notification, targets []string) error {
	p.published = append(p.published, targets...)
	return p.failWith
}

func (p *capturingPublisher) PublishToApplication(ctx context.Context, notif *notification.Notification, app string) error {
	return nil
}

func (p *capturingPublisher) PublishToRole(ctx context.Context, notif *notification.Notification, role string) error {
	return nil
}

func (p *capturingPublisher) GetStatus(ctx context.Context) PublisherStatus {
	return PublisherStatus{Mode: ModePolling}
}

func TestNotifyPersistsAndEnqueuesForImmediateUsers(t *testing.T) {
	notifRepo := &fakeNotifRepo{}
	settings := &fakeSettingsRepo{settings: []notification.DeliverySetting{
		{UserId: "immediate", Email: "i@example.com", EmailEnabled: 1, Frequency: notification.FrequencyImmediate},
		{UserId: "hourly", Email: "h@example.com", EmailEnabled: 1, Frequency: notification.FrequencyHourly},
		{UserId: "noEmail", Email: "", EmailEnabled: 0, Frequency: notification.FrequencyImmediate},
	}}
	queue := newMemQueueRepo()
	pub := &capturingPublisher{}
	svc := NewNotificationService(notifRepo, settings, queue, pub)

	err := svc.Notify(context.Background(),
		[]string{"immediate", "hourly", "noEmail"}, "Request completed", "TOOLS000042 finished", "lifecycle")
	if err != nil {
		t.Fatalf("notify failed: %v", err)
	}

	if len(notifRepo.created) != 3 {
		t.Fatalf("expected 3 notifications persisted, got %d", len(notifRepo.created))
	}
	for _, n := range notifRepo.created {
		if n.NotificationId == "" {
			t.Fatalf("every notification needs a generated id")
		}
		if n.Status != notification.StatusPending {
			t.Fatalf("new notifications start pending, got %d", n.Status)
		}
	}

	// 只有 immediate 频率且开了邮件的用户立刻入队
	pending, _ := queue.CountByStatus(context.Background(), email.StatusPending)
	if pending != 1 {
		t.Fatalf("expected 1 immediate email task, got %d", pending)
	}
	queue.mu.Lock()
	for _, task := range queue.tasks {
		if task.UserId != "immediate" || task.Recipient != "i@example.com" {
			t.Fatalf("unexpected email task %+v", task)
		}
	}
	queue.mu.Unlock()

	if len(pub.published) != 3 {
		t.Fatalf("every recipient gets a realtime push attempt, got %v", pub.published)
	}
}

func TestNotifyAlertCategoryIsHighPriority(t *testing.T) {
	settings := &fakeSettingsRepo{settings: []notification.DeliverySetting{
		{UserId: "u1", Email: "u1@example.com", EmailEnabled: 1, Frequency: notification.FrequencyImmediate},
	}}
	queue := newMemQueueRepo()
	svc := NewNotificationService(&fakeNotifRepo{}, settings, queue, &capturingPublisher{})

	if err := svc.Notify(context.Background(), []string{"u1"}, "Request failed", "TOOLS000050", "alert"); err != nil {
		t.Fatalf("notify failed: %v", err)
	}
	queue.mu.Lock()
	defer queue.mu.Unlock()
	for _, task := range queue.tasks {
		if task.Priority != email.PriorityHigh {
			t.Fatalf("alert emails must be high priority, got %d", task.Priority)
		}
	}
}

func TestNotifyPublishFailureIsNotFatal(t *testing.T) {
	settings := &fakeSettingsRepo{}
	queue := newMemQueueRepo()
	pub := &capturingPublisher{failWith: errors.New("broker down")}
	svc := NewNotificationService(&fakeNotifRepo{}, settings, queue, pub)

	if err := svc.Notify(context.Background(), []string{"u1"}, "Title", "content", "lifecycle"); err != nil {
		t.Fatalf("realtime failure must not fail the notify call: %v", err)
	}
}

func TestNotifyIgnoresBlankInput(t *testing.T) {
	notifRepo := &fakeNotifRepo{}
	svc := NewNotificationService(notifRepo, &fakeSettingsRepo{}, newMemQueueRepo(), &capturingPublisher{})

	if err := svc.Notify(context.Background(), []string{"u1"}, "   ", "content", ""); err != nil {
		t.Fatalf("blank title must be a no-op: %v", err)
	}
	if err := svc.Notify(context.Background(), nil, "Title", "content", ""); err != nil {
		t.Fatalf("empty recipients must be a no-op: %v", err)
	}
	if err := svc.Notify(context.Background(), []string{" ", ""}, "Title", "content", ""); err != nil {
		t.Fatalf("blank recipients must be a no-op: %v", err)
	}
	if len(notifRepo.created) != 0 {
		t.Fatalf("nothing should be persisted, got %d", len(notifRepo.created))
	}
}

func TestUnconfiguredUserGetsNoEmail(t *testing.T) {
	// settingsRepo 返回 nil：默认只收站内通知
	queue := newMemQueueRepo()
	svc := NewNotificationService(&fakeNotifRepo{}, &fakeSettingsRepo{}, queue, &capturingPublisher{})

	if err := svc.Notify(context.Background(), []string{"stranger"}, "Title", "content", ""); err != nil {
		t.Fatalf("notify failed: %v", err)
	}
	pending, _ := queue.CountByStatus(context.Background(), email.StatusPending)
	if pending != 0 {
		t.Fatalf("unconfigured user must not get an email task, got %d", pending)
	}
}
