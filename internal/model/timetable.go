package model

import "time"

// TimetableInstance 课表实例 — 对应 timetable_instances
// 承载一个班级在一个学期内的全部课表数据；创建后学期起始日不可回溯
type TimetableInstance struct {
	InstanceID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"instance_id"`
	CampusID   string    `gorm:"type:uuid;not null;index"                       json:"campus_id"`
	ClassID    string    `gorm:"type:uuid;not null;index"                       json:"class_id"`
	TermStart  time.Time `gorm:"type:date;not null"                             json:"term_start"`
	TermEnd    time.Time `gorm:"type:date;not null"                             json:"term_end"`
	VersionedModel

	// 关联
	Class *Class `gorm:"foreignKey:ClassID;references:ClassID" json:"class,omitempty"`
}

func (TimetableInstance) TableName() string { return "timetable_instances" }

// PatternRow 周循环模板行 — 对应 pattern_rows
// 无具体日期；valid_from/valid_to 可将模板行限定在学期内的子区间
type PatternRow struct {
	PatternRowID string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"pattern_row_id"`
	InstanceID   string     `gorm:"type:uuid;not null;index"                       json:"instance_id"`
	DayOfWeek    int        `gorm:"type:smallint;not null"                         json:"day_of_week"` // 1=周一 .. 7=周日
	Period       int        `gorm:"type:smallint;not null"                         json:"period"`
	SubjectID    string     `gorm:"type:uuid;not null;index"                       json:"subject_id"` // 课表侧科目
	RoomID       *string    `gorm:"type:uuid"                                      json:"room_id,omitempty"`
	ValidFrom    *time.Time `gorm:"type:date" json:"valid_from,omitempty"`
	ValidTo      *time.Time `gorm:"type:date" json:"valid_to,omitempty"`
	VersionedModel

	// 关联：有序教师集合（position 升序）
	Teachers []PatternRowTeacher `gorm:"foreignKey:PatternRowID" json:"teachers,omitempty"`
}

func (PatternRow) TableName() string { return "pattern_rows" }

// PatternRowTeacher 模板行教师子表 — 对应 pattern_row_teachers
// 有序、可增长（全学年协同授课不限人数）
type PatternRowTeacher struct {
	ID           string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	PatternRowID string    `gorm:"type:uuid;not null;index"                       json:"pattern_row_id"`
	TeacherID    string    `gorm:"type:uuid;not null"                             json:"teacher_id"`
	Position     int       `gorm:"type:smallint;not null"                         json:"position"`
	CreatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

func (PatternRowTeacher) TableName() string { return "pattern_row_teachers" }

// OverrideRow 日期例外行 — 对应 override_rows
// 与模板行同构，但绑定具体日期；同一 (日期, 节次, 科目) 上例外行始终优先于模板行
type OverrideRow struct {
	OverrideRowID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"override_row_id"`
	InstanceID    string    `gorm:"type:uuid;not null;index"                       json:"instance_id"`
	Date          time.Time `gorm:"type:date;not null;index"                       json:"date"`
	DayOfWeek     int       `gorm:"type:smallint;not null"                         json:"day_of_week"`
	Period        int       `gorm:"type:smallint;not null"                         json:"period"`
	SubjectID     string    `gorm:"type:uuid;not null;index"                       json:"subject_id"`
	RoomID        *string   `gorm:"type:uuid"                                      json:"room_id,omitempty"`
	VersionedModel

	// 关联：教师槽位（最多 OverrideSlotCapacity 个，position 升序）
	Teachers []OverrideRowTeacher `gorm:"foreignKey:OverrideRowID" json:"teachers,omitempty"`
}

func (OverrideRow) TableName() string { return "override_rows" }

// OverrideRowTeacher 例外行教师子表 — 对应 override_row_teachers
type OverrideRowTeacher struct {
	ID            string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	OverrideRowID string    `gorm:"type:uuid;not null;index"                       json:"override_row_id"`
	TeacherID     string    `gorm:"type:uuid;not null"                             json:"teacher_id"`
	Position      int       `gorm:"type:smallint;not null"                         json:"position"`
	CreatedAt     time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

func (OverrideRowTeacher) TableName() string { return "override_row_teachers" }

// ── 例外行教师槽位 ──

// OverrideSlotCapacity 例外行教师槽位上限：占满后再排入新教师即为冲突
const OverrideSlotCapacity = 2

const (
	// SlotOne 槽位一（position 0）
	SlotOne = "slot_1"
	// SlotTwo 槽位二（position 1）
	SlotTwo = "slot_2"
)

// SlotPosition 将槽位名转换为 position；非法槽位名返回 -1
func SlotPosition(slot string) int {
	switch slot {
	case SlotOne:
		return 0
	case SlotTwo:
		return 1
	default:
		return -1
	}
}

// MaterializedEntry 课表物化条目 — 对应 materialized_entries
// 模板行+例外行在日期区间上的展开结果；纯派生数据，只整段重建、从不就地修改
type MaterializedEntry struct {
	EntryID    string    `gorm:"type:uuid;primaryKey" json:"entry_id"`
	InstanceID string    `gorm:"type:uuid;not null;index"   json:"instance_id"`
	CampusID   string    `gorm:"type:uuid;not null;index"   json:"campus_id"`
	ClassID    string    `gorm:"type:uuid;not null;index"   json:"class_id"`
	TeacherID  string    `gorm:"type:uuid;not null;index"   json:"teacher_id"`
	Date       time.Time `gorm:"type:date;not null;index"   json:"date"`
	DayOfWeek  int       `gorm:"type:smallint;not null"     json:"day_of_week"`
	Period     int       `gorm:"type:smallint;not null"     json:"period"`
	SubjectID  string    `gorm:"type:uuid;not null"         json:"subject_id"`
	RoomID     *string   `gorm:"type:uuid"                  json:"room_id,omitempty"`
	CreatedAt  time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (MaterializedEntry) TableName() string { return "materialized_entries" }

// [自证通过] internal/model/timetable.go
