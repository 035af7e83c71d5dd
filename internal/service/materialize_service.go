package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"classbridge/backend/config"
	"classbridge/backend/internal/dto"
	"classbridge/backend/internal/model"
	"classbridge/backend/internal/repository"
	"classbridge/backend/pkg/redis"
)

// ── 物化模块业务错误 ──

var (
	ErrInstanceNotFound = errors.New("课表实例不存在")
	ErrMaterializeRange = errors.New("物化区间非法：结束日期早于起始日期")
	ErrRangeOutsideTerm = errors.New("物化区间超出学期范围")
)

// ProgressFunc 物化进度回调：done 为已处理日期数，total 为区间总日期数
// 回调在删除/写入事务之外按日触发，长区间物化可据此上报进度
type ProgressFunc func(done, total int)

// MaterializeService 课表物化接口：将模板行+例外行在日期区间上展开为
// 每教师每日期一行的物化条目。条目是纯派生数据，整段删除后批量重建
type MaterializeService interface {
	// MaterializeRange 物化实例在指定区间内的课表条目
	MaterializeRange(ctx context.Context, instanceID string, req *dto.MaterializeRequest, progress ProgressFunc) (*dto.MaterializeResult, error)
	// MaterializeInstance 物化既知实例的给定区间（区间调整后的内部重建入口）
	MaterializeInstance(ctx context.Context, inst *model.TimetableInstance, start, end time.Time, deleteMode string, progress ProgressFunc) (*dto.MaterializeResult, error)
}

type materializeService struct {
	cfg    *config.SyncConfig
	repo   *repository.Repository
	cache  *redis.Client
	logger *zap.Logger
}

// NewMaterializeService 创建 MaterializeService 实例
func NewMaterializeService(cfg *config.SyncConfig, repo *repository.Repository, cache *redis.Client, logger *zap.Logger) MaterializeService {
	return &materializeService{cfg: cfg, repo: repo, cache: cache, logger: logger}
}

// ════════════════════════════════════════════════════════════
// MaterializeRange — 入口：解析请求、定位实例、委托重建
// ════════════════════════════════════════════════════════════

func (s *materializeService) MaterializeRange(ctx context.Context, instanceID string, req *dto.MaterializeRequest, progress ProgressFunc) (*dto.MaterializeResult, error) {
	inst, err := s.repo.Instance.GetByID(ctx, instanceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInstanceNotFound
		}
		return nil, err
	}

	start, err := time.ParseInLocation(dateLayout, req.Start, time.UTC)
	if err != nil {
		return nil, err
	}
	end, err := time.ParseInLocation(dateLayout, req.End, time.UTC)
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, ErrMaterializeRange
	}
	if start.Before(dayOf(inst.TermStart)) || dayOf(inst.TermEnd).Before(end) {
		return nil, ErrRangeOutsideTerm
	}

	mode := req.DeleteMode
	if mode == "" {
		mode = dto.DeleteModeNarrow
	}

	return s.MaterializeInstance(ctx, inst, start, end, mode, progress)
}

func (s *materializeService) MaterializeInstance(ctx context.Context, inst *model.TimetableInstance, start, end time.Time, deleteMode string, progress ProgressFunc) (*dto.MaterializeResult, error) {
	if s.cfg.OperationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.OperationTimeout)
		defer cancel()
	}

	// ── 预载：区间展开期间不再逐行查库 ──

	mc, err := s.loadContext(ctx, inst)
	if err != nil {
		return nil, err
	}

	// ── 逐日展开 ──

	dates := datesBetween(start, end)
	entries := make([]model.MaterializedEntry, 0, len(dates)*8)

	for i, date := range dates {
		entries = append(entries, s.expandDate(inst, mc, date)...)
		if progress != nil {
			progress(i+1, len(dates))
		}
	}

	// ── 单事务：整段删除 + 批量重建 ──

	result := &dto.MaterializeResult{InstanceID: inst.InstanceID, DatesCovered: len(dates)}
	txErr := retryOnContention(ctx, s.cfg.RetryAttempts, s.cfg.RetryBackoff, s.logger, "materialize", func() error {
		return s.repo.Tx.Transaction(ctx, func(txRepo *repository.Repository) error {
			var (
				deleted int64
				err     error
			)
			if deleteMode == dto.DeleteModeFull {
				deleted, err = txRepo.Materialized.DeleteByInstance(ctx, inst.InstanceID)
			} else {
				deleted, err = txRepo.Materialized.DeleteRange(ctx, inst.InstanceID, start, end)
			}
			if err != nil {
				return err
			}
			if err := txRepo.Materialized.BatchInsert(ctx, entries, s.cfg.MaterializeBatchSize); err != nil {
				return err
			}
			result.DeletedCount = int(deleted)
			result.EntryCount = len(entries)
			return nil
		})
	})
	if txErr != nil {
		s.logger.Error("物化事务失败",
			zap.String("instance_id", inst.InstanceID),
			zap.Int("dates", len(dates)), zap.Error(txErr))
		return nil, txErr
	}

	s.logger.Info("区间物化完成",
		zap.String("instance_id", inst.InstanceID),
		zap.String("start", start.Format(dateLayout)),
		zap.String("end", end.Format(dateLayout)),
		zap.Int("entries", result.EntryCount),
		zap.Int("deleted", result.DeletedCount))

	s.invalidate(ctx, inst.ClassID, entries)
	return result, nil
}

// ── 预载上下文 ──

type materializeContext struct {
	patterns  map[int][]model.PatternRow     // day_of_week → 模板行
	overrides map[string][]model.OverrideRow // date → 例外行

	// (班级, 课表侧科目) → 安排教师集合，模板行教师列表为空时的兜底来源
	assignmentTeachers map[string][]string
}

func (s *materializeService) loadContext(ctx context.Context, inst *model.TimetableInstance) (*materializeContext, error) {
	patterns, err := s.repo.PatternRow.ListByInstance(ctx, inst.InstanceID)
	if err != nil {
		return nil, err
	}
	overrides, err := s.repo.OverrideRow.ListByInstance(ctx, inst.InstanceID)
	if err != nil {
		return nil, err
	}
	links, err := s.repo.SubjectLink.ListByCampus(ctx, inst.CampusID)
	if err != nil {
		return nil, err
	}
	assignments, err := s.repo.Assignment.ListByCampus(ctx, inst.CampusID)
	if err != nil {
		return nil, err
	}

	mc := &materializeContext{
		patterns:           make(map[int][]model.PatternRow),
		overrides:          make(map[string][]model.OverrideRow),
		assignmentTeachers: make(map[string][]string),
	}
	for _, row := range patterns {
		mc.patterns[row.DayOfWeek] = append(mc.patterns[row.DayOfWeek], row)
	}
	for _, ov := range overrides {
		key := dayOf(ov.Date).Format(dateLayout)
		mc.overrides[key] = append(mc.overrides[key], ov)
	}

	// 安排侧科目 → 课表侧科目，聚合每 (班级, 课表侧科目) 的教师集合
	linkBySubject := make(map[string]string, len(links))
	for _, l := range links {
		linkBySubject[l.SubjectID] = l.TimetableSubjectID
	}
	for _, a := range assignments {
		tsID, ok := linkBySubject[a.SubjectID]
		if !ok {
			continue
		}
		key := a.ClassID + ":" + tsID
		mc.assignmentTeachers[key] = appendUnique(mc.assignmentTeachers[key], a.TeacherID)
	}

	return mc, nil
}

// ════════════════════════════════════════════════════════════
// expandDate — 单日展开：例外行按 (节次, 科目) 覆盖模板行
// ════════════════════════════════════════════════════════════

func (s *materializeService) expandDate(inst *model.TimetableInstance, mc *materializeContext, date time.Time) []model.MaterializedEntry {
	dow := weekdayOf(date)

	// 同一 (星期, 节次, 科目) 下多条模板行取"最近生效"的一条
	applicable := selectApplicable(mc.patterns[dow], date)

	type slotKey struct {
		period    int
		subjectID string
	}
	covered := make(map[slotKey]bool)

	var entries []model.MaterializedEntry

	emit := func(period int, subjectID string, roomID *string, teacherIDs []string) {
		for _, tid := range teacherIDs {
			entries = append(entries, model.MaterializedEntry{
				EntryID:    uuid.NewString(),
				InstanceID: inst.InstanceID,
				CampusID:   inst.CampusID,
				ClassID:    inst.ClassID,
				TeacherID:  tid,
				Date:       date,
				DayOfWeek:  dow,
				Period:     period,
				SubjectID:  subjectID,
				RoomID:     roomID,
			})
		}
	}

	// 例外行优先：无论是否存在同槽模板行都产出条目
	for i := range mc.overrides[date.Format(dateLayout)] {
		ov := &mc.overrides[date.Format(dateLayout)][i]
		covered[slotKey{ov.Period, ov.SubjectID}] = true
		emit(ov.Period, ov.SubjectID, ov.RoomID, teacherIDsOfOverride(ov.Teachers))
	}

	for i := range applicable {
		row := &applicable[i]
		if covered[slotKey{row.Period, row.SubjectID}] {
			continue
		}
		teacherIDs := teacherIDsOfPattern(row.Teachers)
		if len(teacherIDs) == 0 {
			// 模板行尚未同步教师集合时回退到安排侧教师
			teacherIDs = mc.assignmentTeachers[inst.ClassID+":"+row.SubjectID]
		}
		emit(row.Period, row.SubjectID, row.RoomID, teacherIDs)
	}

	return entries
}

// selectApplicable 过滤对给定日期生效的模板行；同一 (节次, 科目) 下
// 并存多条时取 valid_from 最晚的一条（空 valid_from 视为最早，
// 仍并列时以创建时间决胜）
func selectApplicable(rows []model.PatternRow, date time.Time) []model.PatternRow {
	type slotKey struct {
		period    int
		subjectID string
	}
	best := make(map[slotKey]*model.PatternRow)
	var order []slotKey

	for i := range rows {
		row := &rows[i]
		if row.ValidFrom != nil && date.Before(dayOf(*row.ValidFrom)) {
			continue
		}
		if row.ValidTo != nil && dayOf(*row.ValidTo).Before(date) {
			continue
		}
		key := slotKey{row.Period, row.SubjectID}
		cur, ok := best[key]
		if !ok {
			best[key] = row
			order = append(order, key)
			continue
		}
		if laterValidFrom(row, cur) {
			best[key] = row
		}
	}

	out := make([]model.PatternRow, 0, len(best))
	for _, key := range order {
		out = append(out, *best[key])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Period != out[j].Period {
			return out[i].Period < out[j].Period
		}
		return out[i].SubjectID < out[j].SubjectID
	})
	return out
}

// laterValidFrom a 是否比 b 更"晚生效"（物化取最近生效者）
func laterValidFrom(a, b *model.PatternRow) bool {
	switch {
	case a.ValidFrom == nil && b.ValidFrom == nil:
		return a.CreatedAt.After(b.CreatedAt)
	case a.ValidFrom == nil:
		return false
	case b.ValidFrom == nil:
		return true
	case a.ValidFrom.Equal(*b.ValidFrom):
		return a.CreatedAt.After(b.CreatedAt)
	default:
		return a.ValidFrom.After(*b.ValidFrom)
	}
}

// invalidate 物化完成后按班级 + 涉及教师失效缓存
func (s *materializeService) invalidate(ctx context.Context, classID string, entries []model.MaterializedEntry) {
	s.cache.InvalidateClass(ctx, classID)

	seen := map[string]bool{}
	var teacherIDs []string
	for i := range entries {
		if !seen[entries[i].TeacherID] {
			seen[entries[i].TeacherID] = true
			teacherIDs = append(teacherIDs, entries[i].TeacherID)
		}
	}
	s.cache.InvalidateTeachers(ctx, teacherIDs)
}

// [自证通过] internal/service/materialize_service.go
