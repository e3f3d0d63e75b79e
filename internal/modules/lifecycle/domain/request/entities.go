package request

import "time"

const (
	// 操作类型
	OperationDisable   = int8(1) // 禁用账号
	OperationDispose   = int8(2) // 注销账号
	OperationReinstate = int8(3) // 恢复账号

	// 请求状态，Submitted/Processing 之外的状态均为终态
	StatusSubmitted           = int8(1)
	StatusProcessing          = int8(2)
	StatusCompleted           = int8(3)
	StatusCompletedWithErrors = int8(4)
	StatusFailed              = int8(5)
	StatusCancelled           = int8(6)
)

// IsTerminal 判断状态是否为终态
func IsTerminal(status int8) bool {
	return status != StatusSubmitted && status != StatusProcessing
}

// IsSuccess 判断终态是否为成功完成
func IsSuccess(status int8) bool {
	return status == StatusCompleted || status == StatusCompletedWithErrors
}

// AccountRequest 账号生命周期请求实体
//
// RequestNumber 是外部自动化平台分配的编号（TOOLSXXXXXX），
// RequestId 是内部生成的 GUID，Comments 中的前序请求引用通过它关联
type AccountRequest struct {
	Id            int64      `gorm:"column:id;primaryKey;autoIncrement"`
	RequestId     string     `gorm:"column:request_id;type:char(36);uniqueIndex;not null"`
	RequestNumber string     `gorm:"column:request_number;type:varchar(20);uniqueIndex;not null"`
	SamAccount    string     `gorm:"column:sam_account;type:varchar(64);index;not null"`
	RequestedBy   string     `gorm:"column:requested_by;type:varchar(64);index"`
	Operation     int8       `gorm:"column:operation;type:tinyint;not null"`
	Status        int8       `gorm:"column:status;type:tinyint;not null;default:1"`
	SourceId      string     `gorm:"column:source_id;type:char(36);index"`
	BatchId       string     `gorm:"column:batch_id;type:varchar(64);index"`
	Comments      string     `gorm:"column:comments;type:text"`
	Superseded    int8       `gorm:"column:superseded;type:tinyint;not null;default:0"`
	CompletedAt   *time.Time `gorm:"column:completed_at;type:datetime"`
	CreatedAt     time.Time  `gorm:"column:created_at;type:datetime;not null"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;type:datetime;not null"`
}

func (AccountRequest) TableName() string {
	return "account_request"
}
