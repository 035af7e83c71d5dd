package service

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"classbridge/backend/internal/model"
	"classbridge/backend/internal/repository"
	pkgerrors "classbridge/backend/pkg/errors"
)

// ── Mock TeacherRepository ──

type mockTeacherRepo struct {
	teachers map[string]*model.Teacher
}

func newMockTeacherRepo() *mockTeacherRepo {
	return &mockTeacherRepo{teachers: make(map[string]*model.Teacher)}
}

func (m *mockTeacherRepo) GetByID(_ context.Context, id string) (*model.Teacher, error) {
	if t, ok := m.teachers[id]; ok {
		return t, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockTeacherRepo) ListByIDs(_ context.Context, ids []string) ([]model.Teacher, error) {
	var result []model.Teacher
	for _, id := range ids {
		if t, ok := m.teachers[id]; ok {
			result = append(result, *t)
		}
	}
	return result, nil
}

// ── Mock ClassRepository ──

type mockClassRepo struct {
	classes map[string]*model.Class
}

func newMockClassRepo() *mockClassRepo {
	return &mockClassRepo{classes: make(map[string]*model.Class)}
}

func (m *mockClassRepo) GetByID(_ context.Context, id string) (*model.Class, error) {
	if c, ok := m.classes[id]; ok {
		return c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

// ── Mock SubjectRepository ──

type mockSubjectRepo struct {
	subjects map[string]*model.Subject
}

func newMockSubjectRepo() *mockSubjectRepo {
	return &mockSubjectRepo{subjects: make(map[string]*model.Subject)}
}

func (m *mockSubjectRepo) GetByID(_ context.Context, id string) (*model.Subject, error) {
	if s, ok := m.subjects[id]; ok {
		return s, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSubjectRepo) ListByIDs(_ context.Context, ids []string) ([]model.Subject, error) {
	var result []model.Subject
	for _, id := range ids {
		if s, ok := m.subjects[id]; ok {
			result = append(result, *s)
		}
	}
	return result, nil
}

// ── Mock SubjectLinkRepository ──

type mockSubjectLinkRepo struct {
	links []*model.SubjectLink
}

func newMockSubjectLinkRepo() *mockSubjectLinkRepo {
	return &mockSubjectLinkRepo{}
}

func (m *mockSubjectLinkRepo) Resolve(_ context.Context, subjectID, campusID string) (*model.SubjectLink, error) {
	for _, l := range m.links {
		if l.SubjectID == subjectID && l.CampusID == campusID {
			return l, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSubjectLinkRepo) ListByCampus(_ context.Context, campusID string) ([]model.SubjectLink, error) {
	var result []model.SubjectLink
	for _, l := range m.links {
		if l.CampusID == campusID {
			result = append(result, *l)
		}
	}
	return result, nil
}

// ── Mock AssignmentRepository ──

// 用切片保留创建顺序（ListByClassSubject 按 created_at ASC）
type mockAssignmentRepo struct {
	assignments []*model.TeachingAssignment
	nextID      int
	baseTime    time.Time

	// 最近一次 Delete 收到的操作人（软删除 deleted_by 落库值）
	lastDeletedBy *string
}

func newMockAssignmentRepo() *mockAssignmentRepo {
	return &mockAssignmentRepo{baseTime: time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)}
}

func (m *mockAssignmentRepo) GetByID(_ context.Context, id string) (*model.TeachingAssignment, error) {
	for _, a := range m.assignments {
		if a.AssignmentID == id {
			return a, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAssignmentRepo) ListByClassSubject(_ context.Context, classID, subjectID, campusID string) ([]model.TeachingAssignment, error) {
	var result []model.TeachingAssignment
	for _, a := range m.assignments {
		if a.ClassID == classID && a.SubjectID == subjectID && a.CampusID == campusID {
			result = append(result, *a)
		}
	}
	return result, nil
}

func (m *mockAssignmentRepo) ListByCampus(_ context.Context, campusID string) ([]model.TeachingAssignment, error) {
	var result []model.TeachingAssignment
	for _, a := range m.assignments {
		if a.CampusID == campusID {
			result = append(result, *a)
		}
	}
	return result, nil
}

func (m *mockAssignmentRepo) Create(_ context.Context, a *model.TeachingAssignment) error {
	if a.AssignmentID == "" {
		m.nextID++
		a.AssignmentID = fmt.Sprintf("asg-%d", m.nextID)
	}
	if a.Version == 0 {
		a.Version = 1
	}
	a.CreatedAt = m.baseTime.Add(time.Duration(len(m.assignments)) * time.Second)
	m.assignments = append(m.assignments, a)
	return nil
}

func (m *mockAssignmentRepo) Update(_ context.Context, a *model.TeachingAssignment) error {
	for i, existing := range m.assignments {
		if existing.AssignmentID == a.AssignmentID {
			if existing.Version != a.Version {
				return pkgerrors.ErrOptimisticLock
			}
			a.Version++
			a.CreatedAt = existing.CreatedAt
			m.assignments[i] = a
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (m *mockAssignmentRepo) Delete(_ context.Context, id string, deletedBy *string) error {
	for i, a := range m.assignments {
		if a.AssignmentID == id {
			m.lastDeletedBy = deletedBy
			m.assignments = append(m.assignments[:i], m.assignments[i+1:]...)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

// ── Mock InstanceRepository ──

type mockInstanceRepo struct {
	instances map[string]*model.TimetableInstance
}

func newMockInstanceRepo() *mockInstanceRepo {
	return &mockInstanceRepo{instances: make(map[string]*model.TimetableInstance)}
}

func (m *mockInstanceRepo) GetByID(_ context.Context, id string) (*model.TimetableInstance, error) {
	if inst, ok := m.instances[id]; ok {
		return inst, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockInstanceRepo) GetByClass(_ context.Context, classID string) (*model.TimetableInstance, error) {
	var latest *model.TimetableInstance
	for _, inst := range m.instances {
		if inst.ClassID != classID {
			continue
		}
		if latest == nil || inst.TermStart.After(latest.TermStart) {
			latest = inst
		}
	}
	if latest == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return latest, nil
}

func (m *mockInstanceRepo) Create(_ context.Context, inst *model.TimetableInstance) error {
	if inst.InstanceID == "" {
		inst.InstanceID = "inst-" + inst.ClassID
	}
	if inst.Version == 0 {
		inst.Version = 1
	}
	m.instances[inst.InstanceID] = inst
	return nil
}

func (m *mockInstanceRepo) UpdateRange(_ context.Context, inst *model.TimetableInstance) error {
	existing, ok := m.instances[inst.InstanceID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if existing.Version != inst.Version {
		return pkgerrors.ErrOptimisticLock
	}
	inst.Version++
	m.instances[inst.InstanceID] = inst
	return nil
}

// ── Mock PatternRowRepository ──

type mockPatternRowRepo struct {
	rows []*model.PatternRow
}

func newMockPatternRowRepo() *mockPatternRowRepo {
	return &mockPatternRowRepo{}
}

func (m *mockPatternRowRepo) GetByID(_ context.Context, id string) (*model.PatternRow, error) {
	for _, r := range m.rows {
		if r.PatternRowID == id {
			return r, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockPatternRowRepo) ListByInstanceSubject(_ context.Context, instanceID, subjectID string) ([]model.PatternRow, error) {
	var result []model.PatternRow
	for _, r := range m.rows {
		if r.InstanceID == instanceID && r.SubjectID == subjectID {
			result = append(result, *r)
		}
	}
	return result, nil
}

func (m *mockPatternRowRepo) ListByInstance(_ context.Context, instanceID string) ([]model.PatternRow, error) {
	var result []model.PatternRow
	for _, r := range m.rows {
		if r.InstanceID == instanceID {
			result = append(result, *r)
		}
	}
	return result, nil
}

func (m *mockPatternRowRepo) Create(_ context.Context, row *model.PatternRow) error {
	if row.PatternRowID == "" {
		row.PatternRowID = fmt.Sprintf("pr-%d", len(m.rows)+1)
	}
	m.rows = append(m.rows, row)
	return nil
}

func (m *mockPatternRowRepo) ReplaceTeachers(_ context.Context, patternRowID string, teacherIDs []string) error {
	for _, r := range m.rows {
		if r.PatternRowID != patternRowID {
			continue
		}
		r.Teachers = nil
		for i, tid := range teacherIDs {
			r.Teachers = append(r.Teachers, model.PatternRowTeacher{
				PatternRowID: patternRowID,
				TeacherID:    tid,
				Position:     i,
			})
		}
		return nil
	}
	return gorm.ErrRecordNotFound
}

func (m *mockPatternRowRepo) AppendTeacher(_ context.Context, patternRowID, teacherID string) error {
	for _, r := range m.rows {
		if r.PatternRowID != patternRowID {
			continue
		}
		r.Teachers = append(r.Teachers, model.PatternRowTeacher{
			PatternRowID: patternRowID,
			TeacherID:    teacherID,
			Position:     len(r.Teachers),
		})
		return nil
	}
	return gorm.ErrRecordNotFound
}

// ── Mock OverrideRowRepository ──

type mockOverrideRowRepo struct {
	rows   []*model.OverrideRow
	nextID int

	// 第 failCreateAt 次 Create 调用返回 createErr（从 1 起算，零值不注入）
	failCreateAt int
	createCalls  int
	createErr    error
}

func newMockOverrideRowRepo() *mockOverrideRowRepo {
	return &mockOverrideRowRepo{}
}

func (m *mockOverrideRowRepo) GetByID(_ context.Context, id string) (*model.OverrideRow, error) {
	for _, r := range m.rows {
		if r.OverrideRowID == id {
			return r, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockOverrideRowRepo) GetBySlot(_ context.Context, instanceID string, date time.Time, period, dayOfWeek int) (*model.OverrideRow, error) {
	for _, r := range m.rows {
		if r.InstanceID == instanceID && sameDate(r.Date, date) && r.Period == period && r.DayOfWeek == dayOfWeek {
			return r, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockOverrideRowRepo) ListByInstance(_ context.Context, instanceID string) ([]model.OverrideRow, error) {
	var result []model.OverrideRow
	for _, r := range m.rows {
		if r.InstanceID == instanceID {
			result = append(result, *r)
		}
	}
	return result, nil
}

func (m *mockOverrideRowRepo) Create(_ context.Context, row *model.OverrideRow) error {
	m.createCalls++
	if m.failCreateAt > 0 && m.createCalls == m.failCreateAt {
		return m.createErr
	}
	if row.OverrideRowID == "" {
		m.nextID++
		row.OverrideRowID = fmt.Sprintf("ov-%d", m.nextID)
	}
	for i := range row.Teachers {
		row.Teachers[i].OverrideRowID = row.OverrideRowID
	}
	m.rows = append(m.rows, row)
	return nil
}

func (m *mockOverrideRowRepo) AppendTeacher(_ context.Context, overrideRowID, teacherID string, position int) error {
	for _, r := range m.rows {
		if r.OverrideRowID != overrideRowID {
			continue
		}
		r.Teachers = append(r.Teachers, model.OverrideRowTeacher{
			OverrideRowID: overrideRowID,
			TeacherID:     teacherID,
			Position:      position,
		})
		return nil
	}
	return gorm.ErrRecordNotFound
}

func (m *mockOverrideRowRepo) ReplaceTeacherSlot(_ context.Context, overrideRowID string, position int, teacherID string) error {
	for _, r := range m.rows {
		if r.OverrideRowID != overrideRowID {
			continue
		}
		for i := range r.Teachers {
			if r.Teachers[i].Position == position {
				r.Teachers[i].TeacherID = teacherID
				return nil
			}
		}
		return gorm.ErrRecordNotFound
	}
	return gorm.ErrRecordNotFound
}

func sameDate(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

// ── Mock MaterializedEntryRepository ──

type mockMaterializedRepo struct {
	entries []model.MaterializedEntry
}

func newMockMaterializedRepo() *mockMaterializedRepo {
	return &mockMaterializedRepo{}
}

func (m *mockMaterializedRepo) DeleteRange(_ context.Context, instanceID string, start, end time.Time) (int64, error) {
	var kept []model.MaterializedEntry
	var deleted int64
	for _, e := range m.entries {
		if e.InstanceID == instanceID && !e.Date.Before(start) && !e.Date.After(end) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	m.entries = kept
	return deleted, nil
}

func (m *mockMaterializedRepo) DeleteByInstance(_ context.Context, instanceID string) (int64, error) {
	var kept []model.MaterializedEntry
	var deleted int64
	for _, e := range m.entries {
		if e.InstanceID == instanceID {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	m.entries = kept
	return deleted, nil
}

func (m *mockMaterializedRepo) BatchInsert(_ context.Context, entries []model.MaterializedEntry, _ int) error {
	m.entries = append(m.entries, entries...)
	return nil
}

func (m *mockMaterializedRepo) ListByInstance(_ context.Context, instanceID string) ([]model.MaterializedEntry, error) {
	var result []model.MaterializedEntry
	for _, e := range m.entries {
		if e.InstanceID == instanceID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *mockMaterializedRepo) ListByClassRange(_ context.Context, classID string, from, to time.Time) ([]model.MaterializedEntry, error) {
	var result []model.MaterializedEntry
	for _, e := range m.entries {
		if e.ClassID == classID && !e.Date.Before(from) && !e.Date.After(to) {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *mockMaterializedRepo) ListByTeacherRange(_ context.Context, teacherID string, from, to time.Time) ([]model.MaterializedEntry, error) {
	var result []model.MaterializedEntry
	for _, e := range m.entries {
		if e.TeacherID == teacherID && !e.Date.Before(from) && !e.Date.After(to) {
			result = append(result, e)
		}
	}
	return result, nil
}

// ── Mock TxManager ──

// mockTxManager 用快照/恢复模拟事务回滚：fn 返回错误时整体还原写入
type mockTxManager struct {
	repos *testRepos
	// beforeCommit 非空时在 fn 成功后调用，可注入提交阶段故障
	beforeCommit func() error
}

func (m *mockTxManager) Transaction(_ context.Context, fn func(txRepo *repository.Repository) error) error {
	snap := m.repos.snapshot()
	if err := fn(m.repos.toRepository()); err != nil {
		m.repos.restore(snap)
		return err
	}
	if m.beforeCommit != nil {
		if err := m.beforeCommit(); err != nil {
			m.repos.restore(snap)
			return err
		}
	}
	return nil
}

// ── 测试仓库聚合 ──

type testRepos struct {
	teacher     *mockTeacherRepo
	class       *mockClassRepo
	subject     *mockSubjectRepo
	subjectLink *mockSubjectLinkRepo
	assignment  *mockAssignmentRepo
	instance    *mockInstanceRepo
	patternRow  *mockPatternRowRepo
	overrideRow *mockOverrideRowRepo
	entries     *mockMaterializedRepo
	tx          *mockTxManager
}

func newTestRepos() *testRepos {
	r := &testRepos{
		teacher:     newMockTeacherRepo(),
		class:       newMockClassRepo(),
		subject:     newMockSubjectRepo(),
		subjectLink: newMockSubjectLinkRepo(),
		assignment:  newMockAssignmentRepo(),
		instance:    newMockInstanceRepo(),
		patternRow:  newMockPatternRowRepo(),
		overrideRow: newMockOverrideRowRepo(),
		entries:     newMockMaterializedRepo(),
	}
	r.tx = &mockTxManager{repos: r}
	return r
}

func (r *testRepos) toRepository() *repository.Repository {
	return &repository.Repository{
		Teacher:      r.teacher,
		Class:        r.class,
		Subject:      r.subject,
		SubjectLink:  r.subjectLink,
		Assignment:   r.assignment,
		Instance:     r.instance,
		PatternRow:   r.patternRow,
		OverrideRow:  r.overrideRow,
		Materialized: r.entries,
		Tx:           r.tx,
	}
}

// reposSnapshot 可回滚状态：仅含写路径会触碰的仓库
type reposSnapshot struct {
	assignments []*model.TeachingAssignment
	patternRows []*model.PatternRow
	overrides   []*model.OverrideRow
	entries     []model.MaterializedEntry
}

func (r *testRepos) snapshot() *reposSnapshot {
	snap := &reposSnapshot{
		entries: append([]model.MaterializedEntry{}, r.entries.entries...),
	}
	for _, a := range r.assignment.assignments {
		cp := *a
		snap.assignments = append(snap.assignments, &cp)
	}
	for _, row := range r.patternRow.rows {
		cp := *row
		cp.Teachers = append([]model.PatternRowTeacher{}, row.Teachers...)
		snap.patternRows = append(snap.patternRows, &cp)
	}
	for _, row := range r.overrideRow.rows {
		cp := *row
		cp.Teachers = append([]model.OverrideRowTeacher{}, row.Teachers...)
		snap.overrides = append(snap.overrides, &cp)
	}
	return snap
}

func (r *testRepos) restore(snap *reposSnapshot) {
	r.assignment.assignments = snap.assignments
	r.patternRow.rows = snap.patternRows
	r.overrideRow.rows = snap.overrides
	r.entries.entries = snap.entries
}
