package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"AccessOps/internal/config"
	"AccessOps/internal/modules/notify/domain/notification"
	"AccessOps/internal/modules/notify/infrastructure/mq"
)

type fakeMQPublisher struct {
	mu       sync.Mutex
	messages []mq.Message
	failWith error
}

func (f *fakeMQPublisher) Publish(ctx context.Context, msg mq.Message) (mq.PublishResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return mq.PublishResult{}, f.failWith
	}
	f.messages = append(f.messages, msg)
	return mq.PublishResult{Partition: 0, Offset: int64(len(f.messages))}, nil
}

func (f *fakeMQPublisher) Close() error { return nil }

func sampleNotification() *notification.Notification {
	return &notification.Notification{
		NotificationId: "9b1deb4d-3b7d-4bad-9bdd-2b0d7b3dcb6d",
		Title:          "Request completed",
		Content:        "TOOLS000042 finished",
		Category:       "lifecycle",
	}
}

func TestNoBrokersFallsBackToPolling(t *testing.T) {
	pub := NewNotificationPublisher(config.KafkaConfig{}, nil)

	status := pub.GetStatus(context.Background())
	if status.Mode != ModePolling {
		t.Fatalf("expected polling mode without brokers, got %q", status.Mode)
	}
	if status.IsConnected {
		t.Fatalf("polling mode must report not connected")
	}
	if status.LastError == "" {
		t.Fatalf("fallback reason must be surfaced")
	}
}

func TestUnreachableBrokerFallsBackToPolling(t *testing.T) {
	pub := NewNotificationPublisher(config.KafkaConfig{
		Brokers:           []string{"127.0.0.1:1"},
		ClientID:          "test",
		NotificationTopic: "test.notifications",
	}, nil)

	status := pub.GetStatus(context.Background())
	if status.Mode != ModePolling {
		t.Fatalf("unreachable broker at startup must mean polling mode, got %q", status.Mode)
	}
}

func TestPollingPublishesAreNoops(t *testing.T) {
	pub := &pollingPublisher{reason: "kafka brokers not configured"}
	notif := sampleNotification()

	if err := pub.Publish(context.Background(), notif, []string{"u1", "u2"}); err != nil {
		t.Fatalf("polling publish must be a silent no-op: %v", err)
	}
	if err := pub.PublishToApplication(context.Background(), notif, "accessops"); err != nil {
		t.Fatalf("polling app publish must be a silent no-op: %v", err)
	}
	if err := pub.PublishToRole(context.Background(), notif, "admins"); err != nil {
		t.Fatalf("polling role publish must be a silent no-op: %v", err)
	}
}

func TestRealtimePublishEmitsPerTarget(t *testing.T) {
	fake := &fakeMQPublisher{}
	pub := &realtimePublisher{pub: fake, topic: "test.notifications", brokers: []string{"b1:9092"}}

	err := pub.Publish(context.Background(), sampleNotification(), []string{"u1", "u2", "u3"})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if len(fake.messages) != 3 {
		t.Fatalf("expected one message per target, got %d", len(fake.messages))
	}
	for i, want := range []string{"u1", "u2", "u3"} {
		msg := fake.messages[i]
		if string(msg.Key) != want {
			t.Fatalf("message %d keyed %q, want %q", i, msg.Key, want)
		}
		if msg.Headers["audience"] != "user:"+want {
			t.Fatalf("message %d audience %q", i, msg.Headers["audience"])
		}
	}
}

func TestRealtimePublishRecordsBrokerErrors(t *testing.T) {
	fake := &fakeMQPublisher{failWith: errors.New("broker down")}
	pub := &realtimePublisher{pub: fake, topic: "test.notifications"}

	err := pub.Publish(context.Background(), sampleNotification(), []string{"u1"})
	if err == nil {
		t.Fatalf("broker failure must surface to the caller")
	}

	pub.mu.Lock()
	lastEr := pub.lastEr
	lastOK := pub.lastOK
	pub.mu.Unlock()
	if lastEr == "" {
		t.Fatalf("failed publish must record the last error")
	}
	if lastOK != nil {
		t.Fatalf("no success has happened yet")
	}
}

func TestRealtimePublishTracksLastSuccess(t *testing.T) {
	fake := &fakeMQPublisher{}
	pub := &realtimePublisher{pub: fake, topic: "test.notifications"}

	if err := pub.PublishToRole(context.Background(), sampleNotification(), "admins"); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	pub.mu.Lock()
	defer pub.mu.Unlock()
	if pub.lastOK == nil {
		t.Fatalf("successful publish must record last success time")
	}
	if pub.lastEr != "" {
		t.Fatalf("success must clear the last error, got %q", pub.lastEr)
	}
}

func TestRealtimeGetStatusNeverPanicsWithUnreachableBroker(t *testing.T) {
	pub := &realtimePublisher{
		pub:     &fakeMQPublisher{},
		topic:   "test.notifications",
		brokers: []string{"127.0.0.1:1"},
	}

	status := pub.GetStatus(context.Background())
	if status.Mode != ModeRealTime {
		t.Fatalf("mode must stay realtime, got %q", status.Mode)
	}
	if status.IsConnected {
		t.Fatalf("probe against a closed port must report not connected")
	}
	if status.LastError == "" {
		t.Fatalf("probe failure must land in lastError")
	}
	if status.Diagnostics["brokers"] != "127.0.0.1:1" {
		t.Fatalf("diagnostics must name the brokers, got %v", status.Diagnostics)
	}
}

func TestRealtimePublishNilAndEmptyTargets(t *testing.T) {
	fake := &fakeMQPublisher{}
	pub := &realtimePublisher{pub: fake, topic: "test.notifications"}

	if err := pub.Publish(context.Background(), nil, []string{"u1"}); err != nil {
		t.Fatalf("nil notification must be a no-op: %v", err)
	}
	if err := pub.Publish(context.Background(), sampleNotification(), nil); err != nil {
		t.Fatalf("empty target list must be a no-op: %v", err)
	}
	if len(fake.messages) != 0 {
		t.Fatalf("no messages expected, got %d", len(fake.messages))
	}
}
