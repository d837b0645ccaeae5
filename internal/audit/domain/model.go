package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type ActorType string

const (
	ActorTypeAdmin  ActorType = "admin"
	ActorTypeSystem ActorType = "system"
)

const (
	ActionLogin         = "auth.login"
	ActionLoginFailed   = "auth.login_failed"
	ActionLogout        = "auth.logout"
	ActionUploadCreate  = "upload.create"
	ActionManagerUpsert = "manager.upsert"
	ActionManagerDelete = "manager.delete"
	ActionManagerImport = "manager.import"
	ActionSyncRun       = "sync.run"

	ActionAuthorizationDenied = "authorization.denied"
)

type AuditLog struct {
	ID         snowflake.ID      `json:"id" gorm:"column:id;primaryKey"`
	ActorType  string            `json:"actor_type" gorm:"column:actor_type;type:varchar(32);not null"`
	ActorID    *string           `json:"actor_id,omitempty" gorm:"column:actor_id;type:varchar(320)"`
	Action     string            `json:"action" gorm:"column:action;type:varchar(64);not null;index:ix_audit_logs_action"`
	TargetType string            `json:"target_type" gorm:"column:target_type;type:varchar(64);not null"`
	TargetID   *string           `json:"target_id,omitempty" gorm:"column:target_id;type:varchar(512)"`
	Metadata   datatypes.JSONMap `json:"metadata,omitempty" gorm:"column:metadata"`
	IPAddress  *string           `json:"ip_address,omitempty" gorm:"column:ip_address;type:varchar(64)"`
	UserAgent  *string           `json:"user_agent,omitempty" gorm:"column:user_agent;type:varchar(512)"`
	CreatedAt  time.Time         `json:"created_at" gorm:"column:created_at;not null;index:ix_audit_logs_created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }

type AuditCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type ListFilter struct {
	Action     string
	TargetType string
	TargetID   string
	ActorType  string
	StartAt    *time.Time
	EndAt      *time.Time
	Cursor     *AuditCursor
	Limit      int
}
