package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"AccessOps/internal/config"
	"AccessOps/internal/modules/notify/domain/notification"
	"AccessOps/internal/modules/notify/infrastructure/mq"
	"AccessOps/internal/modules/notify/infrastructure/mq/kafka"
	"AccessOps/pkg/redis"
	"AccessOps/pkg/ws"
	"AccessOps/pkg/zlog"

	"go.uber.org/zap"
)

const (
	ModeRealTime = "realtime"
	ModePolling  = "polling"

	heartbeatKey = "accessops:publisher:last_success"
)

// PublisherStatus 发布器健康快照，每次查询时即时评估，不落库
type PublisherStatus struct {
	Mode                    string            `json:"mode"`
	IsConnected             bool              `json:"isConnected"`
	LastError               string            `json:"lastError,omitempty"`
	LastSuccessfulOperation *time.Time        `json:"lastSuccessfulOperation,omitempty"`
	Diagnostics             map[string]string `json:"diagnostics"`
}

// NotificationPublisher 尽力而为的实时通知扇出。
// Polling 模式下所有发布都是空操作，客户端轮询存储即可，
// 正确性不依赖这条路径
type NotificationPublisher interface {
	Publish(ctx context.Context, notif *notification.Notification, targets []string) error
	PublishToApplication(ctx context.Context, notif *notification.Notification, app string) error
	PublishToRole(ctx context.Context, notif *notification.Notification, role string) error
	GetStatus(ctx context.Context) PublisherStatus
}

type publishEnvelope struct {
	NotificationId string `json:"notificationId"`
	UserId         string `json:"userId,omitempty"`
	Title          string `json:"title"`
	Content        string `json:"content"`
	Category       string `json:"category"`
	Audience       string `json:"audience"`
}

// NewNotificationPublisher 启动时探测 Kafka；失败则在本进程生命周期内
// 固定降级为 Polling 模式（重启才会重新尝试实时模式）
func NewNotificationPublisher(cfg config.KafkaConfig, hub *ws.Hub) NotificationPublisher {
	if len(cfg.Brokers) == 0 {
		zlog.Info("publisher: no kafka brokers configured, running in polling mode")
		return &pollingPublisher{reason: "kafka brokers not configured"}
	}

	pub, err := kafka.NewSaramaPublisher(kafka.PublisherConfig{
		Brokers:  cfg.Brokers,
		ClientID: cfg.ClientID,
	})
	if err != nil {
		zlog.Warn("publisher: kafka unreachable at startup, falling back to polling mode",
			zap.Error(err))
		return &pollingPublisher{reason: err.Error()}
	}

	zlog.Info("publisher: realtime mode active",
		zap.Strings("brokers", cfg.Brokers), zap.String("topic", cfg.NotificationTopic))
	return &realtimePublisher{
		pub:     pub,
		topic:   cfg.NotificationTopic,
		brokers: cfg.Brokers,
		hub:     hub,
	}
}

type realtimePublisher struct {
	pub     mq.Publisher
	topic   string
	brokers []string
	hub     *ws.Hub

	mu     sync.Mutex
	lastOK *time.Time
	lastEr string
}

func (p *realtimePublisher) Publish(ctx context.Context, notif *notification.Notification, targets []string) error {
	if notif == nil || len(targets) == 0 {
		return nil
	}
	var firstErr error
	for _, target := range targets {
		env := publishEnvelope{
			NotificationId: notif.NotificationId,
			UserId:         target,
			Title:          notif.Title,
			Content:        notif.Content,
			Category:       notif.Category,
			Audience:       "user:" + target,
		}
		if err := p.emit(ctx, target, env); err != nil && firstErr == nil {
			firstErr = err
		}
		if p.hub != nil {
			_ = p.hub.SendJSON(target, env)
		}
	}
	return firstErr
}

func (p *realtimePublisher) PublishToApplication(ctx context.Context, notif *notification.Notification, app string) error {
	return p.broadcast(ctx, notif, "application:"+app)
}

func (p *realtimePublisher) PublishToRole(ctx context.Context, notif *notification.Notification, role string) error {
	return p.broadcast(ctx, notif, "role:"+role)
}

func (p *realtimePublisher) broadcast(ctx context.Context, notif *notification.Notification, audience string) error {
	if notif == nil || strings.TrimSpace(audience) == "" {
		return nil
	}
	env := publishEnvelope{
		NotificationId: notif.NotificationId,
		Title:          notif.Title,
		Content:        notif.Content,
		Category:       notif.Category,
		Audience:       audience,
	}
	err := p.emit(ctx, audience, env)
	if p.hub != nil {
		if b, mErr := json.Marshal(env); mErr == nil {
			p.hub.Broadcast(b)
		}
	}
	return err
}

func (p *realtimePublisher) emit(ctx context.Context, key string, env publishEnvelope) error {
	value, err := json.Marshal(env)
	if err != nil {
		return err
	}
	_, err = p.pub.Publish(ctx, mq.Message{
		Topic: p.topic,
		Key:   []byte(key),
		Value: value,
		Headers: map[string]string{
			"audience": env.Audience,
			"category": env.Category,
		},
	})
	p.record(err)
	return err
}

func (p *realtimePublisher) record(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.lastEr = err.Error()
		return
	}
	now := time.Now()
	p.lastOK = &now
	p.lastEr = ""

	// 心跳只是诊断信息，Redis 不可用时静默跳过
	if redis.IsConnected() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = redis.Set(ctx, heartbeatKey, now.Format(time.RFC3339), 24*time.Hour)
	}
}

// GetStatus 永不抛错，探测失败写入 LastError
func (p *realtimePublisher) GetStatus(ctx context.Context) PublisherStatus {
	p.mu.Lock()
	lastOK := p.lastOK
	lastEr := p.lastEr
	p.mu.Unlock()

	status := PublisherStatus{
		Mode:                    ModeRealTime,
		LastSuccessfulOperation: lastOK,
		LastError:               lastEr,
		Diagnostics: map[string]string{
			"topic":   p.topic,
			"brokers": strings.Join(p.brokers, ","),
		},
	}
	if p.hub != nil {
		status.Diagnostics["wsOnline"] = strconv.Itoa(p.hub.Online())
	}

	if err := kafka.Probe(p.brokers, 3*time.Second); err != nil {
		status.IsConnected = false
		status.LastError = err.Error()
	} else {
		status.IsConnected = true
	}

	if redis.IsConnected() {
		if hb, err := redis.Get(ctx, heartbeatKey); err == nil {
			status.Diagnostics["lastHeartbeat"] = hb
		}
	}
	return status
}

type pollingPublisher struct {
	reason string
}

func (p *pollingPublisher) Publish(ctx context.Context, notif *notification.Notification, targets []string) error {
	return nil
}

func (p *pollingPublisher) PublishToApplication(ctx context.Context, notif *notification.Notification, app string) error {
	return nil
}

func (p *pollingPublisher) PublishToRole(ctx context.Context, notif *notification.Notification, role string) error {
	return nil
}

func (p *pollingPublisher) GetStatus(ctx context.Context) PublisherStatus {
	return PublisherStatus{
		Mode:        ModePolling,
		IsConnected: false,
		LastError:   p.reason,
		Diagnostics: map[string]string{
			"fallback": fmt.Sprintf("clients poll the notification store directly; realtime disabled: %s", p.reason),
		},
	}
}
