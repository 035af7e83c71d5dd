package model

import (
	"fmt"
	"time"
)

// ── 授课安排作用域（封闭变体，拒绝自由字符串比较）──

// ScopeKind 授课安排作用域类型
type ScopeKind string

const (
	// ScopeFullYear 全学年：同步时整体替换模板行教师列表
	ScopeFullYear ScopeKind = "full_year"
	// ScopeDateRange 日期区间：同步时按日期展开生成例外行
	ScopeDateRange ScopeKind = "date_range"
)

// Scope 授课安排的时间作用域
// DateRange 时 Start 必填，End 为空表示开放区间（到学期结束）
type Scope struct {
	Kind  ScopeKind
	Start *time.Time
	End   *time.Time
}

// TeachingAssignment 授课安排表 — 对应 teaching_assignments
// 表述"该教师在该班级教该科目"这一事实；同一 (班级, 科目, 校区) 下
// 可并存任意多条安排（协同授课不限人数）
type TeachingAssignment struct {
	AssignmentID string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"assignment_id"`
	CampusID     string     `gorm:"type:uuid;not null;index"                       json:"campus_id"`
	TeacherID    string     `gorm:"type:uuid;not null;index"                       json:"teacher_id"`
	ClassID      string     `gorm:"type:uuid;not null;index"                       json:"class_id"`
	SubjectID    string     `gorm:"type:uuid;not null;index"                       json:"subject_id"`
	ScopeType    string     `gorm:"type:varchar(20);not null;default:'full_year'"  json:"scope_type"` // full_year | date_range
	ScopeStart   *time.Time `gorm:"type:date" json:"scope_start,omitempty"`
	ScopeEnd     *time.Time `gorm:"type:date" json:"scope_end,omitempty"`
	VersionedModel

	// 关联
	Teacher *Teacher `gorm:"foreignKey:TeacherID;references:TeacherID" json:"teacher,omitempty"`
	Class   *Class   `gorm:"foreignKey:ClassID;references:ClassID"     json:"class,omitempty"`
	Subject *Subject `gorm:"foreignKey:SubjectID;references:SubjectID" json:"subject,omitempty"`
}

func (TeachingAssignment) TableName() string { return "teaching_assignments" }

// Scope 将存储列还原为封闭的作用域变体
// scope_type 非法时返回错误而不是静默当作全学年
func (a *TeachingAssignment) Scope() (Scope, error) {
	switch ScopeKind(a.ScopeType) {
	case ScopeFullYear:
		return Scope{Kind: ScopeFullYear}, nil
	case ScopeDateRange:
		return Scope{Kind: ScopeDateRange, Start: a.ScopeStart, End: a.ScopeEnd}, nil
	default:
		return Scope{}, fmt.Errorf("未知的授课安排作用域类型 %q", a.ScopeType)
	}
}

// SetScope 将作用域变体写回存储列
func (a *TeachingAssignment) SetScope(s Scope) {
	a.ScopeType = string(s.Kind)
	if s.Kind == ScopeDateRange {
		a.ScopeStart = s.Start
		a.ScopeEnd = s.End
	} else {
		a.ScopeStart = nil
		a.ScopeEnd = nil
	}
}

// [自证通过] internal/model/assignment.go
