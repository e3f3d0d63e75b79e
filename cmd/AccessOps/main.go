package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	https_server "AccessOps/api/http"
	"AccessOps/internal/config"
	"AccessOps/internal/initial"
	lifecycleService "AccessOps/internal/modules/lifecycle/application/service"
	lifecyclePersistence "AccessOps/internal/modules/lifecycle/infrastructure/persistence"
	"AccessOps/internal/modules/lifecycle/infrastructure/toolsapi"
	lifecycleHandler "AccessOps/internal/modules/lifecycle/interface/http"
	notifyService "AccessOps/internal/modules/notify/application/service"
	"AccessOps/internal/modules/notify/infrastructure/mail"
	notifyPersistence "AccessOps/internal/modules/notify/infrastructure/persistence"
	notifyHandler "AccessOps/internal/modules/notify/interface/http"
	"AccessOps/internal/scheduler"
	"AccessOps/pkg/redis"
	"AccessOps/pkg/util"
	"AccessOps/pkg/ws"
	"AccessOps/pkg/zlog"
)

func main() {
	// 1. 加载配置和基础设施
	conf := config.GetConfig()
	zlog.Init(conf.LogConfig.LogPath)
	initial.InitGorm()
	initial.InitRedis()

	instanceId := util.InstanceID()

	// 2. 仓储与外部适配器
	requestRepo := lifecyclePersistence.NewAccountRequestRepository(initial.GormDB)
	notifRepo := notifyPersistence.NewNotificationRepository(initial.GormDB)
	settingsRepo := notifyPersistence.NewDeliverySettingRepository(initial.GormDB)
	queueRepo := notifyPersistence.NewEmailQueueRepository(initial.GormDB)

	toolsClient := toolsapi.NewClient(toolsapi.ClientOptions{
		BaseURL: conf.ToolsApiConfig.BaseURL,
		ApiKey:  conf.ToolsApiConfig.ApiKey,
		HTTPClient: &http.Client{
			Timeout: time.Duration(max(conf.ToolsApiConfig.TimeoutSeconds, 15)) * time.Second,
		},
	})

	sender, err := mail.NewSMTPSender(conf.SmtpConfig)
	if err != nil {
		zlog.Fatal("smtp sender init failed: " + err.Error())
	}

	// 3. 服务
	wsHub := ws.NewHub()
	publisher := notifyService.NewNotificationPublisher(conf.KafkaConfig, wsHub)
	notifSvc := notifyService.NewNotificationService(notifRepo, settingsRepo, queueRepo, publisher)
	dispatchSvc := notifyService.NewEmailDispatchService(
		queueRepo, notifRepo, settingsRepo, sender, instanceId,
		conf.SchedulerConfig.MaxEmailRetries, conf.SchedulerConfig.SendConcurrency)
	reconcileSvc := lifecycleService.NewReconcileService(requestRepo, toolsClient, notifSvc)
	submitSvc := lifecycleService.NewSubmitService(requestRepo, toolsClient, notifSvc)

	// 4. HTTP 服务
	https_server.Init(
		lifecycleHandler.NewRequestHandler(submitSvc, requestRepo),
		notifyHandler.NewNotificationHandler(notifSvc, publisher, wsHub),
	)
	go func() {
		addr := fmt.Sprintf("%s:%d", conf.MainConfig.Host, conf.MainConfig.Port)
		zlog.Info("http server listening on " + addr)
		if err := https_server.GE.Run(addr); err != nil {
			zlog.Fatal("http server failed: " + err.Error())
		}
	}()

	// 5. 后台调度
	ctx, cancel := context.WithCancel(context.Background())
	mgr := scheduler.NewManager(scheduler.Config{
		ReconcileInterval:  time.Duration(conf.SchedulerConfig.ReconcileIntervalSeconds) * time.Second,
		SourceCheckEvery:   conf.SchedulerConfig.SourceCheckEvery,
		EmailInterval:      time.Duration(conf.SchedulerConfig.EmailIntervalSeconds) * time.Second,
		EmailBatchSize:     conf.SchedulerConfig.EmailBatchSize,
		MaxEmailRetries:    conf.SchedulerConfig.MaxEmailRetries,
		RetrySweepCron:     conf.SchedulerConfig.RetrySweepCron,
		RetrySweepHoursOld: conf.SchedulerConfig.RetrySweepHoursOld,
		DigestCron:         conf.SchedulerConfig.DigestCron,
	}, reconcileSvc, dispatchSvc, instanceId)
	if err := mgr.Start(ctx); err != nil {
		zlog.Fatal("scheduler start failed: " + err.Error())
	}

	// 6. 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("shutting down...")
	cancel()
	mgr.Wait()
	_ = redis.Close()
	zlog.Info("shutdown complete")
}
