package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"AccessOps/internal/modules/lifecycle/domain/repository"
	"AccessOps/internal/modules/lifecycle/domain/request"
	"AccessOps/internal/modules/lifecycle/infrastructure/toolsapi"
	"AccessOps/pkg/util"
	"AccessOps/pkg/xerr"
	"AccessOps/pkg/zlog"

	"go.uber.org/zap"
)

var operationNames = map[int8]string{
	request.OperationDisable:   "Disable",
	request.OperationDispose:   "Dispose",
	request.OperationReinstate: "Reinstate",
}

type SubmitParams struct {
	SamAccount  string
	Operation   int8
	RequestedBy string
	// Reinstate 时指向被取代的前序 Dispose 请求
	SourceId string
	Comments string
}

// SubmitService 向外部自动化平台提交生命周期请求并落库
type SubmitService interface {
	Submit(ctx context.Context, params SubmitParams) (*request.AccountRequest, error)
}

type submitServiceImpl struct {
	repo      repository.AccountRequestRepository
	submitter toolsapi.Submitter
	notifier  Notifier
}

func NewSubmitService(repo repository.AccountRequestRepository, submitter toolsapi.Submitter, notifier Notifier) SubmitService {
	return &submitServiceImpl{
		repo:      repo,
		submitter: submitter,
		notifier:  notifier,
	}
}

func (s *submitServiceImpl) Submit(ctx context.Context, params SubmitParams) (*request.AccountRequest, error) {
	sam := strings.TrimSpace(params.SamAccount)
	opName, ok := operationNames[params.Operation]
	if sam == "" || !ok {
		return nil, xerr.ErrParam
	}

	comments := strings.TrimSpace(params.Comments)
	if params.Operation == request.OperationReinstate && params.SourceId != "" {
		// 兼容历史格式：前序请求引用内嵌在备注文本里
		comments = strings.TrimSpace(fmt.Sprintf("%s Previous request: %s", comments, params.SourceId))
	}

	result, err := s.submitter.SubmitRequest(ctx, toolsapi.SubmitPayload{
		SamAccount: sam,
		Operation:  opName,
		Comments:   comments,
	})
	if err != nil {
		zlog.Error("submit: tools api rejected request",
			zap.String("samAccount", sam), zap.String("operation", opName), zap.Error(err))
		return nil, xerr.ErrServerError
	}

	now := time.Now()
	rec := &request.AccountRequest{
		RequestId:     util.GenerateUUID(),
		RequestNumber: result.RequestNumber,
		SamAccount:    sam,
		RequestedBy:   strings.TrimSpace(params.RequestedBy),
		Operation:     params.Operation,
		Status:        request.StatusSubmitted,
		SourceId:      strings.TrimSpace(params.SourceId),
		Comments:      comments,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		zlog.Error("submit: persist request failed",
			zap.String("requestNumber", result.RequestNumber), zap.Error(err))
		return nil, xerr.ErrServerError
	}

	if s.notifier != nil && rec.RequestedBy != "" {
		_ = s.notifier.Notify(ctx, []string{rec.RequestedBy},
			fmt.Sprintf("Request %s submitted", rec.RequestNumber),
			fmt.Sprintf("%s request for %s was submitted for processing.", opName, sam),
			"lifecycle")
	}
	return rec, nil
}
