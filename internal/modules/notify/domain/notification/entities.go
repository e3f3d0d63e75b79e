package notification

import "time"

const (
	// 通知状态
	StatusPending = int8(0) // 待推送
	StatusPushed  = int8(1) // 已推送
	StatusRead    = int8(2) // 已读

	// 邮件投递频率
	FrequencyImmediate = "immediate"
	FrequencyHourly    = "hourly"
	FrequencyDaily     = "daily"
)

// Notification 系统通知实体
type Notification struct {
	Id             int64      `gorm:"column:id;primaryKey;autoIncrement"`
	NotificationId string     `gorm:"column:notification_id;type:char(36);uniqueIndex;not null"`
	UserId         string     `gorm:"column:user_id;type:varchar(64);index;not null"`
	Title          string     `gorm:"column:title;type:varchar(200)"`
	Content        string     `gorm:"column:content;type:mediumtext"`
	Category       string     `gorm:"column:category;type:varchar(50);index"`
	Status         int8       `gorm:"column:status;type:tinyint;not null;default:0"`
	PushedAt       *time.Time `gorm:"column:pushed_at;type:datetime"`
	ReadAt         *time.Time `gorm:"column:read_at;type:datetime"`
	CreatedAt      time.Time  `gorm:"column:created_at;type:datetime;not null;index"`
}

func (Notification) TableName() string {
	return "sys_notification"
}

// DeliverySetting 用户的通知投递偏好
type DeliverySetting struct {
	Id           int64      `gorm:"column:id;primaryKey;autoIncrement"`
	UserId       string     `gorm:"column:user_id;type:varchar(64);uniqueIndex;not null"`
	Email        string     `gorm:"column:email;type:varchar(200)"`
	EmailEnabled int8       `gorm:"column:email_enabled;type:tinyint;not null;default:1"`
	Frequency    string     `gorm:"column:frequency;type:varchar(20);not null;default:'immediate'"`
	LastDigestAt *time.Time `gorm:"column:last_digest_at;type:datetime"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;type:datetime;not null"`
}

func (DeliverySetting) TableName() string {
	return "sys_notification_setting"
}

// WantsEmail 是否启用了邮件投递
func (s *DeliverySetting) WantsEmail() bool {
	return s != nil && s.EmailEnabled == 1 && s.Email != ""
}

// DigestInterval 返回摘要频率对应的间隔，immediate 返回 0
func (s *DeliverySetting) DigestInterval() time.Duration {
	if s == nil {
		return 0
	}
	switch s.Frequency {
	case FrequencyHourly:
		return time.Hour
	case FrequencyDaily:
		return 24 * time.Hour
	}
	return 0
}
