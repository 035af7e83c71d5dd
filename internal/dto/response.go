package dto

// ── 通用简要信息（课表查询/导出响应内嵌）──

// TeacherBrief 教师简要信息
type TeacherBrief struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	StaffNo string `json:"staff_no,omitempty"`
}

// ClassBrief 班级简要信息
type ClassBrief struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Grade string `json:"grade,omitempty"`
}

// SubjectBrief 科目简要信息
type SubjectBrief struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Code string `json:"code,omitempty"`
}

// [自证通过] internal/dto/response.go
