package repository

import (
	"context"

	"AccessOps/internal/modules/lifecycle/domain/request"
)

// AccountRequestRepository 账号生命周期请求仓储接口
type AccountRequestRepository interface {
	Create(ctx context.Context, req *request.AccountRequest) error

	GetByRequestNumber(ctx context.Context, requestNumber string) (*request.AccountRequest, error)

	// GetActiveRequests 获取所有未到终态（Submitted/Processing）的请求
	GetActiveRequests(ctx context.Context) ([]request.AccountRequest, error)

	// UpdateStatusIfActive 仅当本地记录仍未到终态时写入新状态，
	// 返回是否真正发生了状态迁移（下游副作用以此为幂等闸门）
	UpdateStatusIfActive(ctx context.Context, id int64, status int8, comments string) (bool, error)

	// MarkDisposeSuperseded 按内部 GUID 将对应的 Dispose 请求标记为已被取代
	MarkDisposeSuperseded(ctx context.Context, requestId string) (int64, error)

	// MarkDisposeSupersededByBatch 按遗留批次号将 Dispose 请求标记为已被取代
	MarkDisposeSupersededByBatch(ctx context.Context, batchId string) (int64, error)

	List(ctx context.Context, limit, offset int) ([]request.AccountRequest, error)
}
