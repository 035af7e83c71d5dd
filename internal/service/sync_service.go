package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"classbridge/backend/internal/dto"
	"classbridge/backend/internal/model"
	"classbridge/backend/internal/repository"
	"classbridge/backend/pkg/redis"
)

// ── 同步模块业务错误 ──

var (
	ErrAssignmentNotFound = errors.New("授课安排不存在")
)

// SyncService 授课安排同步接口
// 同一 (班级, 科目) 键下的调用被内部互斥锁串行化：全学年路径的
// "整体替换教师集合"依赖对该键下全部安排的一致读取
type SyncService interface {
	// Sync 同步单条授课安排到课表（模板行 / 例外行），落库阶段在
	// 单事务内完成；成功后重算受影响区间的物化条目并使缓存失效
	// resolutions: 课表侧科目ID → 槽位名，指定冲突时替换哪个占位教师
	Sync(ctx context.Context, assignmentID string, resolutions map[string]string) (*dto.SyncResult, error)
	// SyncInTx 在既有事务绑定的 Repository 上执行同步
	// 批量编排器专用：调用方负责持有 (班级, 科目) 键锁与事务边界
	SyncInTx(ctx context.Context, txRepo *repository.Repository, assignmentID string, resolutions map[string]string) (*dto.SyncResult, error)
	// ClearPairTeachers 某 (班级, 科目) 对下已无任何安排时清空模板行教师集合
	// （批量编排器在删除最后一条安排后调用）
	ClearPairTeachers(ctx context.Context, txRepo *repository.Repository, classID, subjectID, campusID string) (int, error)
}

type syncService struct {
	repo   *repository.Repository
	cache  *redis.Client
	locks  *keyedMutex
	mat    MaterializeService
	logger *zap.Logger
}

// NewSyncService 创建 SyncService 实例
func NewSyncService(repo *repository.Repository, cache *redis.Client, locks *keyedMutex, mat MaterializeService, logger *zap.Logger) SyncService {
	return &syncService{repo: repo, cache: cache, locks: locks, mat: mat, logger: logger}
}

func pairKey(classID, subjectID string) string {
	return classID + ":" + subjectID
}

// ════════════════════════════════════════════════════════════
// Sync — 单条安排同步入口
// ════════════════════════════════════════════════════════════

func (s *syncService) Sync(ctx context.Context, assignmentID string, resolutions map[string]string) (*dto.SyncResult, error) {
	a, err := s.repo.Assignment.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssignmentNotFound
		}
		s.logger.Error("查询授课安排失败", zap.String("assignment_id", assignmentID), zap.Error(err))
		return nil, err
	}

	unlock := s.locks.Lock(pairKey(a.ClassID, a.SubjectID))
	defer unlock()

	// 落库阶段跨多行写入，单事务包裹：任一失败整体回滚，不留半套日期区间
	var result *dto.SyncResult
	err = s.repo.Tx.Transaction(ctx, func(txRepo *repository.Repository) error {
		r, err := s.syncOn(ctx, txRepo, a, resolutions)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 成功提交后先重算物化条目，再通知缓存失效；二者在事务之外，
	// 失败不影响同步结果
	if result.Status == dto.SyncStatusSuccess {
		if result.RowsCreated+result.RowsUpdated > 0 {
			s.rematerialize(ctx, a)
		}
		s.cache.InvalidateClass(ctx, a.ClassID)
		s.cache.InvalidateTeachers(ctx, []string{a.TeacherID})
	}

	return result, nil
}

// rematerialize 按安排作用域重算物化条目：全学年覆盖整个学期，
// 日期区间裁剪到区间与学期的交集。条目是纯派生数据，失败只记日志，
// 可经物化接口重建
func (s *syncService) rematerialize(ctx context.Context, a *model.TeachingAssignment) {
	inst, err := s.repo.Instance.GetByClass(ctx, a.ClassID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn("同步后查询课表实例失败", zap.String("class_id", a.ClassID), zap.Error(err))
		}
		return
	}

	start, end := dayOf(inst.TermStart), dayOf(inst.TermEnd)
	if scope, serr := a.Scope(); serr == nil && scope.Kind == model.ScopeDateRange {
		if scope.Start != nil && dayOf(*scope.Start).After(start) {
			start = dayOf(*scope.Start)
		}
		if scope.End != nil && dayOf(*scope.End).Before(end) {
			end = dayOf(*scope.End)
		}
	}
	if end.Before(start) {
		return
	}

	if _, err := s.mat.MaterializeInstance(ctx, inst, start, end, dto.DeleteModeNarrow, nil); err != nil {
		s.logger.Warn("同步后重算物化条目失败",
			zap.String("instance_id", inst.InstanceID), zap.Error(err))
	}
}

func (s *syncService) SyncInTx(ctx context.Context, txRepo *repository.Repository, assignmentID string, resolutions map[string]string) (*dto.SyncResult, error) {
	a, err := txRepo.Assignment.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssignmentNotFound
		}
		return nil, err
	}
	return s.syncOn(ctx, txRepo, a, resolutions)
}

// ════════════════════════════════════════════════════════════
// syncOn — 校验 → 路由（全学年 / 日期区间）
// ════════════════════════════════════════════════════════════

func (s *syncService) syncOn(ctx context.Context, r *repository.Repository, a *model.TeachingAssignment, resolutions map[string]string) (*dto.SyncResult, error) {
	// ── 校验（任何变更之前）──

	scope, scopeErr := a.Scope()

	var validationErrs []string
	if scopeErr != nil {
		validationErrs = append(validationErrs, scopeErr.Error())
	}
	if scope.Kind == model.ScopeDateRange {
		if scope.Start == nil {
			validationErrs = append(validationErrs, "日期区间安排缺少必填的起始日期")
		} else if scope.End != nil && scope.End.Before(*scope.Start) {
			validationErrs = append(validationErrs, "日期区间安排的结束日期早于起始日期")
		}
	}

	if err := s.validateRef(ctx, r, a, &validationErrs); err != nil {
		return nil, err
	}

	link, err := r.SubjectLink.Resolve(ctx, a.SubjectID, a.CampusID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			validationErrs = append(validationErrs, "科目未建立课表侧映射")
			link = nil
		} else {
			return nil, err
		}
	}

	inst, err := r.Instance.GetByClass(ctx, a.ClassID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			validationErrs = append(validationErrs, "班级不存在课表实例")
			inst = nil
		} else {
			return nil, err
		}
	}

	if len(validationErrs) > 0 {
		return &dto.SyncResult{Status: dto.SyncStatusValidationError, Errors: validationErrs}, nil
	}

	// ── 定位匹配模板行并路由 ──

	rows, err := r.PatternRow.ListByInstanceSubject(ctx, inst.InstanceID, link.TimetableSubjectID)
	if err != nil {
		s.logger.Error("查询模板行失败", zap.String("instance_id", inst.InstanceID), zap.Error(err))
		return nil, err
	}
	if len(rows) == 0 {
		// 该科目尚未排入周模板，无可同步目标；视为成功的空操作
		return &dto.SyncResult{Status: dto.SyncStatusSuccess}, nil
	}

	switch scope.Kind {
	case model.ScopeFullYear:
		return s.syncFullYear(ctx, r, a, rows)
	default:
		return s.syncDateRange(ctx, r, a, inst, rows, scope, resolutions)
	}
}

// validateRef 校验教师/班级/科目存在且与安排同校区
func (s *syncService) validateRef(ctx context.Context, r *repository.Repository, a *model.TeachingAssignment, errs *[]string) error {
	teacher, err := r.Teacher.GetByID(ctx, a.TeacherID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		*errs = append(*errs, "教师不存在")
	case err != nil:
		return err
	case teacher.CampusID != a.CampusID:
		*errs = append(*errs, "教师不属于安排所在校区")
	}

	class, err := r.Class.GetByID(ctx, a.ClassID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		*errs = append(*errs, "班级不存在")
	case err != nil:
		return err
	case class.CampusID != a.CampusID:
		*errs = append(*errs, "班级不属于安排所在校区")
	}

	subject, err := r.Subject.GetByID(ctx, a.SubjectID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		*errs = append(*errs, "科目不存在")
	case err != nil:
		return err
	case subject.CampusID != a.CampusID:
		*errs = append(*errs, "科目不属于安排所在校区")
	}

	return nil
}

// ════════════════════════════════════════════════════════════
// 全学年路径 — 整体替换模板行教师集合
// ════════════════════════════════════════════════════════════

// syncFullYear 用 (班级, 科目, 校区) 下当前全部安排的教师集合整体替换
// 每个匹配模板行的教师列表（clear-then-append，顺序稳定）。
// 协同授课不限人数，此路径无需冲突检测。
func (s *syncService) syncFullYear(ctx context.Context, r *repository.Repository, a *model.TeachingAssignment, rows []model.PatternRow) (*dto.SyncResult, error) {
	assignments, err := r.Assignment.ListByClassSubject(ctx, a.ClassID, a.SubjectID, a.CampusID)
	if err != nil {
		s.logger.Error("查询安排集合失败", zap.String("class_id", a.ClassID), zap.Error(err))
		return nil, err
	}

	// 全集（不只本次同步的一条），按创建顺序去重
	teacherIDs := make([]string, 0, len(assignments))
	for _, asg := range assignments {
		teacherIDs = appendUnique(teacherIDs, asg.TeacherID)
	}

	result := &dto.SyncResult{Status: dto.SyncStatusSuccess}
	for i := range rows {
		current := teacherIDsOfPattern(rows[i].Teachers)
		if equalStrings(current, teacherIDs) {
			continue // 已一致，幂等跳过
		}
		if err := r.PatternRow.ReplaceTeachers(ctx, rows[i].PatternRowID, teacherIDs); err != nil {
			s.logger.Error("替换模板行教师集合失败",
				zap.String("pattern_row_id", rows[i].PatternRowID), zap.Error(err))
			return nil, err
		}
		result.RowsUpdated++
	}

	return result, nil
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ════════════════════════════════════════════════════════════
// 日期区间路径 — 两阶段：先全量规划，再统一落库
// 存在未解决冲突时整批中止，不留半套日期区间
// ════════════════════════════════════════════════════════════

// 规划的写入操作
type plannedOp struct {
	kind       plannedOpKind
	patternRow *model.PatternRow // createOverride 用
	date       time.Time
	overrideID string // appendTeacher / replaceSlot 用
	position   int
	teacherIDs []string // createOverride 的完整教师列表
}

type plannedOpKind int

const (
	opCreateOverride plannedOpKind = iota
	opAppendTeacher
	opReplaceSlot
)

func (s *syncService) syncDateRange(ctx context.Context, r *repository.Repository, a *model.TeachingAssignment, inst *model.TimetableInstance, rows []model.PatternRow, scope model.Scope, resolutions map[string]string) (*dto.SyncResult, error) {
	conflicts := newConflictBuilder()
	var plan []plannedOp

	// ── 规划阶段（零写入）──

	for i := range rows {
		row := &rows[i]
		dates := expandWeekday(row.DayOfWeek, *scope.Start, scope.End, inst.TermStart, inst.TermEnd)

		for _, date := range dates {
			ov, err := r.OverrideRow.GetBySlot(ctx, inst.InstanceID, date, row.Period, row.DayOfWeek)
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				s.logger.Error("查询例外行失败",
					zap.String("instance_id", inst.InstanceID),
					zap.String("date", date.Format(dateLayout)), zap.Error(err))
				return nil, err
			}

			if ov == nil {
				s.planForPattern(row, date, a.TeacherID, resolutions, conflicts, &plan)
				continue
			}
			s.planForOverride(ov, a.TeacherID, resolutions, conflicts, &plan)
		}
	}

	if !conflicts.empty() {
		// 未解决冲突 ⇒ 整批中止，调用方拿到按科目聚合的描述后补充 resolutions 重入
		return &dto.SyncResult{Status: dto.SyncStatusConflict, Conflicts: conflicts.list()}, nil
	}

	// ── 落库阶段 ──

	result := &dto.SyncResult{Status: dto.SyncStatusSuccess}
	for _, op := range plan {
		switch op.kind {
		case opCreateOverride:
			if err := s.applyCreateOverride(ctx, r, inst, op); err != nil {
				return nil, err
			}
			result.RowsCreated++
		case opAppendTeacher:
			if err := r.OverrideRow.AppendTeacher(ctx, op.overrideID, a.TeacherID, op.position); err != nil {
				s.logger.Error("追加例外行教师失败", zap.String("override_row_id", op.overrideID), zap.Error(err))
				return nil, err
			}
			result.RowsUpdated++
		case opReplaceSlot:
			if err := r.OverrideRow.ReplaceTeacherSlot(ctx, op.overrideID, op.position, a.TeacherID); err != nil {
				s.logger.Error("替换例外行槽位失败", zap.String("override_row_id", op.overrideID), zap.Error(err))
				return nil, err
			}
			result.RowsUpdated++
		}
	}

	return result, nil
}

// planForPattern 目标日期尚无例外行：从模板行克隆
func (s *syncService) planForPattern(row *model.PatternRow, date time.Time, teacherID string, resolutions map[string]string, conflicts *conflictBuilder, plan *[]plannedOp) {
	patternTeachers := teacherIDsOfPattern(row.Teachers)

	switch slotOccupancy(patternTeachers, teacherID, model.OverrideSlotCapacity) {
	case occAlreadyAssigned:
		// 幂等：教师已在该槽位上

	case occFree:
		*plan = append(*plan, plannedOp{
			kind:       opCreateOverride,
			patternRow: row,
			date:       date,
			teacherIDs: append(append([]string{}, patternTeachers...), teacherID),
		})

	case occFull:
		slot, ok := resolutions[row.SubjectID]
		pos := model.SlotPosition(slot)
		if !ok || pos < 0 {
			conflicts.add(row.SubjectID, row.Period, date, row.PatternRowID, patternTeachers, teacherID)
			return
		}
		teacherIDs := append([]string{}, patternTeachers[:model.OverrideSlotCapacity]...)
		teacherIDs[pos] = teacherID
		*plan = append(*plan, plannedOp{
			kind:       opCreateOverride,
			patternRow: row,
			date:       date,
			teacherIDs: teacherIDs,
		})
	}
}

// planForOverride 目标日期已有例外行：追加 / 幂等跳过 / 冲突
func (s *syncService) planForOverride(ov *model.OverrideRow, teacherID string, resolutions map[string]string, conflicts *conflictBuilder, plan *[]plannedOp) {
	existing := teacherIDsOfOverride(ov.Teachers)

	switch slotOccupancy(existing, teacherID, model.OverrideSlotCapacity) {
	case occAlreadyAssigned:
		// 幂等：无需操作

	case occFree:
		*plan = append(*plan, plannedOp{
			kind:       opAppendTeacher,
			overrideID: ov.OverrideRowID,
			position:   len(existing),
		})

	case occFull:
		slot, ok := resolutions[ov.SubjectID]
		pos := model.SlotPosition(slot)
		if !ok || pos < 0 {
			conflicts.add(ov.SubjectID, ov.Period, ov.Date, ov.OverrideRowID, existing, teacherID)
			return
		}
		*plan = append(*plan, plannedOp{
			kind:       opReplaceSlot,
			overrideID: ov.OverrideRowID,
			position:   pos,
		})
	}
}

// applyCreateOverride 从模板行克隆例外行并写入教师槽位
func (s *syncService) applyCreateOverride(ctx context.Context, r *repository.Repository, inst *model.TimetableInstance, op plannedOp) error {
	row := op.patternRow
	ov := &model.OverrideRow{
		InstanceID: inst.InstanceID,
		Date:       op.date,
		DayOfWeek:  row.DayOfWeek,
		Period:     row.Period,
		SubjectID:  row.SubjectID,
		RoomID:     row.RoomID,
	}
	for i, tid := range op.teacherIDs {
		if i >= model.OverrideSlotCapacity {
			break
		}
		ov.Teachers = append(ov.Teachers, model.OverrideRowTeacher{
			TeacherID: tid,
			Position:  i,
		})
	}

	if err := r.OverrideRow.Create(ctx, ov); err != nil {
		s.logger.Error("创建例外行失败",
			zap.String("pattern_row_id", row.PatternRowID),
			zap.String("date", op.date.Format(dateLayout)), zap.Error(err))
		return err
	}
	return nil
}

// ════════════════════════════════════════════════════════════
// ClearPairTeachers — (班级, 科目) 对已无安排时清空模板行
// ════════════════════════════════════════════════════════════

func (s *syncService) ClearPairTeachers(ctx context.Context, txRepo *repository.Repository, classID, subjectID, campusID string) (int, error) {
	link, err := txRepo.SubjectLink.Resolve(ctx, subjectID, campusID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	inst, err := txRepo.Instance.GetByClass(ctx, classID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}

	rows, err := txRepo.PatternRow.ListByInstanceSubject(ctx, inst.InstanceID, link.TimetableSubjectID)
	if err != nil {
		return 0, err
	}

	cleared := 0
	for i := range rows {
		if len(rows[i].Teachers) == 0 {
			continue
		}
		if err := txRepo.PatternRow.ReplaceTeachers(ctx, rows[i].PatternRowID, nil); err != nil {
			return cleared, fmt.Errorf("清空模板行教师集合失败 (row=%s): %w", rows[i].PatternRowID, err)
		}
		cleared++
	}
	return cleared, nil
}

// [自证通过] internal/service/sync_service.go
