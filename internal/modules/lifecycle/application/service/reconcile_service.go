package service

import (
	"context"
	"fmt"

	"AccessOps/internal/modules/lifecycle/domain/repository"
	"AccessOps/internal/modules/lifecycle/domain/request"
	"AccessOps/internal/modules/lifecycle/infrastructure/toolsapi"
	"AccessOps/pkg/zlog"

	"go.uber.org/zap"
)

// Notifier 由 notify 模块实现，调和器只在真正发生终态迁移时调用
type Notifier interface {
	Notify(ctx context.Context, userIds []string, title, content, category string) error
}

// ReconcileService 把本地请求状态与外部自动化平台对齐
type ReconcileService interface {
	// ReconcileBatch 处理一批未到终态的请求。
	// checkExternal 为 false 时本次为空转（调用方独立控制外部查询频率），
	// 返回本次真正发生终态迁移的请求数
	ReconcileBatch(ctx context.Context, checkExternal bool) (int, error)
}

type reconcileServiceImpl struct {
	repo     repository.AccountRequestRepository
	source   toolsapi.StatusSource
	notifier Notifier
}

func NewReconcileService(repo repository.AccountRequestRepository, source toolsapi.StatusSource, notifier Notifier) ReconcileService {
	return &reconcileServiceImpl{
		repo:     repo,
		source:   source,
		notifier: notifier,
	}
}

func (s *reconcileServiceImpl) ReconcileBatch(ctx context.Context, checkExternal bool) (int, error) {
	if !checkExternal {
		return 0, nil
	}

	recs, err := s.repo.GetActiveRequests(ctx)
	if err != nil {
		return 0, fmt.Errorf("load active requests: %w", err)
	}

	transitioned := 0
	for i := range recs {
		// 单条失败只记日志，不中断同批其余记录
		if s.reconcileOne(ctx, &recs[i]) {
			transitioned++
		}
	}
	return transitioned, nil
}

func (s *reconcileServiceImpl) reconcileOne(ctx context.Context, rec *request.AccountRequest) bool {
	status, err := s.source.GetStatusByRequestNumber(ctx, rec.RequestNumber)
	if err != nil {
		zlog.Warn("reconcile: status query failed",
			zap.String("requestNumber", rec.RequestNumber), zap.Error(err))
		return false
	}
	if status == nil {
		// 上游还看不到该请求，下个周期再查
		return false
	}
	if !request.IsTerminal(status.StatusCode) {
		return false
	}

	moved, err := s.repo.UpdateStatusIfActive(ctx, rec.Id, status.StatusCode, status.StatusComments)
	if err != nil {
		zlog.Warn("reconcile: status write failed",
			zap.String("requestNumber", rec.RequestNumber), zap.Error(err))
		return false
	}
	if !moved {
		// 本地已是终态（本实例或其他实例先写入），副作用不再触发
		return false
	}

	zlog.Info("reconcile: request reached terminal status",
		zap.String("requestNumber", rec.RequestNumber),
		zap.Int8("status", status.StatusCode))

	if request.IsSuccess(status.StatusCode) && rec.Operation == request.OperationReinstate {
		s.handleReinstateCompletion(ctx, rec, status.StatusComments)
	}
	s.notifyRequester(ctx, rec, status.StatusCode)
	return true
}

// handleReinstateCompletion 恢复请求成功后，把它所引用的前序 Dispose
// 请求标记为已被取代（不再允许再次恢复）。备注里找不到可识别的
// 引用时按无操作处理，不视为错误
func (s *reconcileServiceImpl) handleReinstateCompletion(ctx context.Context, rec *request.AccountRequest, statusComments string) {
	ref := request.ParsePreviousRef(statusComments)
	if ref.Kind == request.RefNone {
		ref = request.ParsePreviousRef(rec.Comments)
	}

	var (
		rows int64
		err  error
	)
	switch ref.Kind {
	case request.RefInternal:
		rows, err = s.repo.MarkDisposeSuperseded(ctx, ref.InternalId)
	case request.RefLegacyBatch:
		rows, err = s.repo.MarkDisposeSupersededByBatch(ctx, ref.BatchId)
	default:
		zlog.Warn("reconcile: reinstate completed without an identifiable previous request",
			zap.String("requestNumber", rec.RequestNumber))
		return
	}
	if err != nil {
		zlog.Warn("reconcile: supersede write failed",
			zap.String("requestNumber", rec.RequestNumber), zap.Error(err))
		return
	}
	if rows == 0 {
		zlog.Warn("reconcile: previous dispose request not found for supersede",
			zap.String("requestNumber", rec.RequestNumber))
	}
}

func (s *reconcileServiceImpl) notifyRequester(ctx context.Context, rec *request.AccountRequest, status int8) {
	if s.notifier == nil || rec.RequestedBy == "" {
		return
	}

	title := fmt.Sprintf("Request %s completed", rec.RequestNumber)
	content := fmt.Sprintf("Account request %s for %s finished with status %d.",
		rec.RequestNumber, rec.SamAccount, status)
	if !request.IsSuccess(status) {
		title = fmt.Sprintf("Request %s failed", rec.RequestNumber)
	}
	if err := s.notifier.Notify(ctx, []string{rec.RequestedBy}, title, content, "lifecycle"); err != nil {
		zlog.Warn("reconcile: notify requester failed",
			zap.String("requestNumber", rec.RequestNumber), zap.Error(err))
	}
}
