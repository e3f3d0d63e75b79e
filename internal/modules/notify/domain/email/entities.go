package email

import "time"

const (
	// 邮件任务状态
	StatusPending    = int8(0)
	StatusProcessing = int8(1)
	StatusSent       = int8(2)
	StatusFailed     = int8(3)

	// 优先级，数值越大越先被认领
	PriorityNormal = int8(0)
	PriorityHigh   = int8(10)

	// Processing 超过该时长未更新的认领视为实例崩溃遗留，可被重新认领
	ClaimStaleAfter = 5 * time.Minute
)

// EmailTask 出站邮件任务。ClaimedBy/ClaimedAt 记录当前持有认领的
// 实例，跨实例互斥由存储层的原子认领保证
type EmailTask struct {
	Id                int64      `gorm:"column:id;primaryKey;autoIncrement"`
	NotificationId    string     `gorm:"column:notification_id;type:char(36);index"`
	UserId            string     `gorm:"column:user_id;type:varchar(64);index;not null"`
	Recipient         string     `gorm:"column:recipient;type:varchar(200);not null"`
	Subject           string     `gorm:"column:subject;type:varchar(300)"`
	Body              string     `gorm:"column:body;type:mediumtext"`
	IsDigest          int8       `gorm:"column:is_digest;type:tinyint;not null;default:0"`
	Status            int8       `gorm:"column:status;type:tinyint;not null;default:0;index:idx_status_scheduled"`
	Priority          int8       `gorm:"column:priority;type:tinyint;not null;default:0"`
	RetryCount        int        `gorm:"column:retry_count;type:int;not null;default:0"`
	ScheduledSendTime time.Time  `gorm:"column:scheduled_send_time;type:datetime;not null;index:idx_status_scheduled"`
	ClaimedBy         string     `gorm:"column:claimed_by;type:varchar(128);index:idx_claimed"`
	ClaimedAt         *time.Time `gorm:"column:claimed_at;type:datetime;index:idx_claimed"`
	SentAt            *time.Time `gorm:"column:sent_at;type:datetime"`
	LastError         string     `gorm:"column:last_error;type:varchar(255)"`
	CreatedAt         time.Time  `gorm:"column:created_at;type:datetime;not null"`
	UpdatedAt         time.Time  `gorm:"column:updated_at;type:datetime;not null"`
}

func (EmailTask) TableName() string {
	return "email_task"
}
