package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"AccessOps/internal/modules/lifecycle/domain/repository"
	"AccessOps/internal/modules/lifecycle/domain/request"

	"gorm.io/gorm"
)

type accountRequestRepositoryImpl struct {
	db *gorm.DB
}

func NewAccountRequestRepository(db *gorm.DB) repository.AccountRequestRepository {
	return &accountRequestRepositoryImpl{db: db}
}

func (r *accountRequestRepositoryImpl) Create(ctx context.Context, req *request.AccountRequest) error {
	if req == nil {
		return nil
	}
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *accountRequestRepositoryImpl) GetByRequestNumber(ctx context.Context, requestNumber string) (*request.AccountRequest, error) {
	var rec request.AccountRequest
	err := r.db.WithContext(ctx).Where("request_number = ?", requestNumber).Take(&rec).Error
	if err == nil {
		return &rec, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return nil, err
}

func (r *accountRequestRepositoryImpl) GetActiveRequests(ctx context.Context) ([]request.AccountRequest, error) {
	var recs []request.AccountRequest
	err := r.db.WithContext(ctx).
		Where("status IN ?", []int8{request.StatusSubmitted, request.StatusProcessing}).
		Order("id ASC").
		Find(&recs).Error
	return recs, err
}

// UpdateStatusIfActive 的 WHERE 条件限定本地状态仍为非终态，
// 并发或重复的终态回写会命中 0 行，RowsAffected 即幂等判定
func (r *accountRequestRepositoryImpl) UpdateStatusIfActive(ctx context.Context, id int64, status int8, comments string) (bool, error) {
	now := time.Now()
	updates := map[string]any{
		"status":     status,
		"updated_at": now,
	}
	if comments = strings.TrimSpace(comments); comments != "" {
		updates["comments"] = comments
	}
	if request.IsTerminal(status) {
		updates["completed_at"] = now
	}
	res := r.db.WithContext(ctx).Model(&request.AccountRequest{}).
		Where("id = ? AND status IN ?", id, []int8{request.StatusSubmitted, request.StatusProcessing}).
		Updates(updates)
	return res.RowsAffected > 0, res.Error
}

func (r *accountRequestRepositoryImpl) MarkDisposeSuperseded(ctx context.Context, requestId string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&request.AccountRequest{}).
		Where("request_id = ? AND operation = ? AND superseded = 0", requestId, request.OperationDispose).
		Updates(map[string]any{"superseded": 1, "updated_at": time.Now()})
	return res.RowsAffected, res.Error
}

func (r *accountRequestRepositoryImpl) MarkDisposeSupersededByBatch(ctx context.Context, batchId string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&request.AccountRequest{}).
		Where("batch_id = ? AND operation = ? AND superseded = 0", batchId, request.OperationDispose).
		Updates(map[string]any{"superseded": 1, "updated_at": time.Now()})
	return res.RowsAffected, res.Error
}

func (r *accountRequestRepositoryImpl) List(ctx context.Context, limit, offset int) ([]request.AccountRequest, error) {
	if limit <= 0 {
		limit = 50
	}
	var recs []request.AccountRequest
	err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&recs).Error
	return recs, err
}
