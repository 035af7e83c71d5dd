package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"classbridge/backend/config"
	"classbridge/backend/internal/dto"
	"classbridge/backend/internal/model"
	"classbridge/backend/internal/repository"
	"classbridge/backend/pkg/redis"
)

// ── 批量同步业务错误 ──

var (
	ErrBatchEmpty = errors.New("批量变更列表为空")

	// 事务内哨兵：遇到未解决冲突时触发整体回滚，结果随闭包带出
	errBatchConflict = errors.New("批量同步存在未解决冲突")
)

// BatchService 批量编排接口：一批安排变更（增/改/删）在单事务内
// 全部落库并逐条同步，任一校验失败或未解决冲突则整批回滚；
// 提交成功后重算涉及班级的物化条目
type BatchService interface {
	BatchSync(ctx context.Context, operatorID string, req *dto.BatchSyncRequest) (*dto.BatchResult, error)
}

type batchService struct {
	cfg    *config.SyncConfig
	repo   *repository.Repository
	cache  *redis.Client
	sync   SyncService
	mat    MaterializeService
	locks  *keyedMutex
	logger *zap.Logger
}

// NewBatchService 创建 BatchService 实例
func NewBatchService(cfg *config.SyncConfig, repo *repository.Repository, cache *redis.Client, sync SyncService, mat MaterializeService, locks *keyedMutex, logger *zap.Logger) BatchService {
	return &batchService{cfg: cfg, repo: repo, cache: cache, sync: sync, mat: mat, locks: locks, logger: logger}
}

// ════════════════════════════════════════════════════════════
// BatchSync — 三阶段：全量校验 → 事务内落库+同步 → 汇总
// ════════════════════════════════════════════════════════════

func (s *batchService) BatchSync(ctx context.Context, operatorID string, req *dto.BatchSyncRequest) (*dto.BatchResult, error) {
	if len(req.Changes) == 0 {
		return nil, ErrBatchEmpty
	}

	if s.cfg.OperationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.OperationTimeout)
		defer cancel()
	}

	// ── 阶段一：全量校验（零写入）──

	changes, errs, err := s.validateAll(ctx, req.Changes)
	if err != nil {
		return nil, err
	}
	if len(errs) > 0 {
		return &dto.BatchResult{Success: false, Errors: errs}, nil
	}

	// 排序后整体加 (班级, 科目) 键锁，避免并发批次交叉死锁；
	// update 迁移 (班级, 科目) 时旧键一并锁定
	keys := make([]string, 0, len(changes))
	for _, c := range changes {
		keys = append(keys, pairKey(c.classID, c.subjectID))
		if c.existing != nil && (c.existing.ClassID != c.classID || c.existing.SubjectID != c.subjectID) {
			keys = append(keys, pairKey(c.existing.ClassID, c.existing.SubjectID))
		}
	}
	unlock := s.locks.LockAll(keys)
	defer unlock()

	// ── 阶段二：单事务内落库 + 逐条同步 ──

	var result *dto.BatchResult
	txErr := retryOnContention(ctx, s.cfg.RetryAttempts, s.cfg.RetryBackoff, s.logger, "batch_sync", func() error {
		result = nil
		return s.repo.Tx.Transaction(ctx, func(txRepo *repository.Repository) error {
			r, err := s.applyAll(ctx, txRepo, operatorID, changes, req.Resolutions)
			if err != nil {
				return err
			}
			result = r
			if !r.Success {
				return errBatchConflict // 冲突 ⇒ 回滚，结果已带出
			}
			return nil
		})
	})

	if txErr != nil && !errors.Is(txErr, errBatchConflict) {
		s.logger.Error("批量同步事务失败", zap.Int("changes", len(changes)), zap.Error(txErr))
		return nil, txErr
	}

	// ── 阶段三：提交后重算物化条目、失效缓存 ──

	if result.Success {
		s.rematerializeClasses(ctx, changes)
		s.invalidateAll(ctx, changes)
	}

	return result, nil
}

// rematerializeClasses 提交后对本批涉及的班级（含迁移前的旧班级）
// 重算整学期物化条目。条目是纯派生数据，失败只记日志，可经物化接口重建
func (s *batchService) rematerializeClasses(ctx context.Context, changes []normalizedChange) {
	seen := map[string]bool{}
	var classIDs []string
	for _, ch := range changes {
		if !seen[ch.classID] {
			seen[ch.classID] = true
			classIDs = append(classIDs, ch.classID)
		}
		if ch.existing != nil && !seen[ch.existing.ClassID] {
			seen[ch.existing.ClassID] = true
			classIDs = append(classIDs, ch.existing.ClassID)
		}
	}

	for _, classID := range classIDs {
		inst, err := s.repo.Instance.GetByClass(ctx, classID)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				s.logger.Warn("批量同步后查询课表实例失败", zap.String("class_id", classID), zap.Error(err))
			}
			continue
		}
		if _, err := s.mat.MaterializeInstance(ctx, inst, dayOf(inst.TermStart), dayOf(inst.TermEnd), dto.DeleteModeNarrow, nil); err != nil {
			s.logger.Warn("批量同步后重算物化条目失败",
				zap.String("instance_id", inst.InstanceID), zap.Error(err))
		}
	}
}

// ── 校验阶段 ──

// 校验通过后的规范化变更（作用域已解析，delete 已补齐键字段）
type normalizedChange struct {
	index        int
	op           string
	assignmentID string
	teacherID    string
	classID      string
	subjectID    string
	campusID     string
	scope        model.Scope
	existing     *model.TeachingAssignment // update/delete 时预读的当前行
}

func (s *batchService) validateAll(ctx context.Context, changes []dto.AssignmentChange) ([]normalizedChange, []string, error) {
	var (
		out  []normalizedChange
		errs []string
		seen = map[string]int{} // teacher:class:subject → 首次出现位置
	)

	for i, ch := range changes {
		nc := normalizedChange{
			index:        i,
			op:           ch.Op,
			assignmentID: ch.AssignmentID,
			teacherID:    ch.TeacherID,
			classID:      ch.ClassID,
			subjectID:    ch.SubjectID,
			campusID:     ch.CampusID,
		}

		switch ch.Op {
		case dto.ChangeOpCreate:
			if ch.TeacherID == "" || ch.ClassID == "" || ch.SubjectID == "" || ch.CampusID == "" {
				errs = append(errs, fmt.Sprintf("第 %d 条：create 缺少必填字段", i+1))
				continue
			}
			scope, serr := parseScope(ch)
			if serr != nil {
				errs = append(errs, fmt.Sprintf("第 %d 条：%v", i+1, serr))
				continue
			}
			nc.scope = scope

		case dto.ChangeOpUpdate:
			if ch.AssignmentID == "" {
				errs = append(errs, fmt.Sprintf("第 %d 条：update 缺少 assignment_id", i+1))
				continue
			}
			existing, err := s.repo.Assignment.GetByID(ctx, ch.AssignmentID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					errs = append(errs, fmt.Sprintf("第 %d 条：授课安排 %s 不存在", i+1, ch.AssignmentID))
					continue
				}
				return nil, nil, err
			}
			nc.existing = existing
			// 未提供的字段沿用当前值
			if nc.teacherID == "" {
				nc.teacherID = existing.TeacherID
			}
			if nc.classID == "" {
				nc.classID = existing.ClassID
			}
			if nc.subjectID == "" {
				nc.subjectID = existing.SubjectID
			}
			if nc.campusID == "" {
				nc.campusID = existing.CampusID
			} else if nc.campusID != existing.CampusID {
				errs = append(errs, fmt.Sprintf("第 %d 条：禁止跨校区迁移授课安排", i+1))
				continue
			}
			if ch.ScopeType == "" {
				scope, serr := existing.Scope()
				if serr != nil {
					errs = append(errs, fmt.Sprintf("第 %d 条：%v", i+1, serr))
					continue
				}
				nc.scope = scope
			} else {
				scope, serr := parseScope(ch)
				if serr != nil {
					errs = append(errs, fmt.Sprintf("第 %d 条：%v", i+1, serr))
					continue
				}
				nc.scope = scope
			}

		case dto.ChangeOpDelete:
			if ch.AssignmentID == "" {
				errs = append(errs, fmt.Sprintf("第 %d 条：delete 缺少 assignment_id", i+1))
				continue
			}
			existing, err := s.repo.Assignment.GetByID(ctx, ch.AssignmentID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					errs = append(errs, fmt.Sprintf("第 %d 条：授课安排 %s 不存在", i+1, ch.AssignmentID))
					continue
				}
				return nil, nil, err
			}
			nc.existing = existing
			nc.teacherID = existing.TeacherID
			nc.classID = existing.ClassID
			nc.subjectID = existing.SubjectID
			nc.campusID = existing.CampusID

		default:
			errs = append(errs, fmt.Sprintf("第 %d 条：未知操作类型 %q", i+1, ch.Op))
			continue
		}

		// 同批重复的 (教师, 班级, 科目) create 视为编排错误
		if nc.op == dto.ChangeOpCreate {
			key := nc.teacherID + ":" + nc.classID + ":" + nc.subjectID
			if first, dup := seen[key]; dup {
				errs = append(errs, fmt.Sprintf("第 %d 条：与第 %d 条重复（同一教师/班级/科目）", i+1, first+1))
				continue
			}
			seen[key] = i
		}

		out = append(out, nc)
	}

	return out, errs, nil
}

func parseScope(ch dto.AssignmentChange) (model.Scope, error) {
	switch model.ScopeKind(ch.ScopeType) {
	case model.ScopeFullYear, "":
		return model.Scope{Kind: model.ScopeFullYear}, nil
	case model.ScopeDateRange:
		if ch.ScopeStart == nil {
			return model.Scope{}, errors.New("日期区间安排缺少必填的起始日期")
		}
		start, err := time.ParseInLocation(dateLayout, *ch.ScopeStart, time.UTC)
		if err != nil {
			return model.Scope{}, fmt.Errorf("起始日期格式非法: %v", err)
		}
		scope := model.Scope{Kind: model.ScopeDateRange, Start: &start}
		if ch.ScopeEnd != nil {
			end, err := time.ParseInLocation(dateLayout, *ch.ScopeEnd, time.UTC)
			if err != nil {
				return model.Scope{}, fmt.Errorf("结束日期格式非法: %v", err)
			}
			if end.Before(start) {
				return model.Scope{}, errors.New("日期区间安排的结束日期早于起始日期")
			}
			scope.End = &end
		}
		return scope, nil
	default:
		return model.Scope{}, fmt.Errorf("未知的授课安排作用域类型 %q", ch.ScopeType)
	}
}

// ── 落库 + 同步阶段（事务内）──

func (s *batchService) applyAll(ctx context.Context, txRepo *repository.Repository, operatorID string, changes []normalizedChange, resolutions map[string]string) (*dto.BatchResult, error) {
	result := &dto.BatchResult{Success: true}

	var operator *string
	if operatorID != "" {
		operator = &operatorID
	}

	// 先全部落库，再按安排逐条同步；删除与迁移记录失去安排的旧
	// (班级, 科目) 对，落库完成后统一对剩余安排重算
	type pair struct{ classID, subjectID, campusID string }
	var (
		syncIDs    []string
		stalePairs []pair
		staleSeen  = map[pair]bool{}
	)
	markStale := func(p pair) {
		if !staleSeen[p] {
			staleSeen[p] = true
			stalePairs = append(stalePairs, p)
		}
	}

	for _, ch := range changes {
		switch ch.op {
		case dto.ChangeOpCreate:
			a := &model.TeachingAssignment{
				CampusID:  ch.campusID,
				TeacherID: ch.teacherID,
				ClassID:   ch.classID,
				SubjectID: ch.subjectID,
			}
			a.SetScope(ch.scope)
			a.CreatedBy = operator
			if err := txRepo.Assignment.Create(ctx, a); err != nil {
				return nil, fmt.Errorf("创建授课安排失败 (第 %d 条): %w", ch.index+1, err)
			}
			result.Stats.Created++
			syncIDs = append(syncIDs, a.AssignmentID)

		case dto.ChangeOpUpdate:
			// 在副本上更新：重试时不能带着上轮已递增的 version
			a := new(model.TeachingAssignment)
			*a = *ch.existing
			a.TeacherID = ch.teacherID
			a.ClassID = ch.classID
			a.SubjectID = ch.subjectID
			a.SetScope(ch.scope)
			a.UpdatedBy = operator
			if err := txRepo.Assignment.Update(ctx, a); err != nil {
				return nil, fmt.Errorf("更新授课安排失败 (第 %d 条): %w", ch.index+1, err)
			}
			result.Stats.Updated++
			syncIDs = append(syncIDs, a.AssignmentID)
			// 迁移到新 (班级, 科目) 对时旧对失去本条安排，需要重算
			if ch.existing.ClassID != ch.classID || ch.existing.SubjectID != ch.subjectID {
				markStale(pair{ch.existing.ClassID, ch.existing.SubjectID, ch.existing.CampusID})
			}

		case dto.ChangeOpDelete:
			if err := txRepo.Assignment.Delete(ctx, ch.assignmentID, operator); err != nil {
				return nil, fmt.Errorf("删除授课安排失败 (第 %d 条): %w", ch.index+1, err)
			}
			result.Stats.Deleted++
			markStale(pair{ch.classID, ch.subjectID, ch.campusID})
		}
	}

	// 逐条同步（SyncInTx 不加锁：本批已由 LockAll 整体持锁）
	for _, id := range syncIDs {
		sr, err := s.sync.SyncInTx(ctx, txRepo, id, resolutions)
		if err != nil {
			return nil, err
		}
		switch sr.Status {
		case dto.SyncStatusSuccess:
			result.Stats.Synced++
		case dto.SyncStatusConflict:
			result.Success = false
			result.Conflicts = append(result.Conflicts, sr.Conflicts...)
		case dto.SyncStatusValidationError:
			result.Success = false
			result.Errors = append(result.Errors, sr.Errors...)
		}
	}

	// 删除/迁移后重算失去安排的 (班级, 科目) 对：仍有安排则以剩余任一条
	// 重入同步（全学年路径读全集），否则清空模板行教师集合
	for _, p := range stalePairs {
		remaining, err := txRepo.Assignment.ListByClassSubject(ctx, p.classID, p.subjectID, p.campusID)
		if err != nil {
			return nil, err
		}
		if len(remaining) > 0 {
			sr, err := s.sync.SyncInTx(ctx, txRepo, remaining[0].AssignmentID, resolutions)
			if err != nil {
				return nil, err
			}
			if sr.Status == dto.SyncStatusConflict {
				result.Success = false
				result.Conflicts = append(result.Conflicts, sr.Conflicts...)
			}
			continue
		}
		if _, err := s.sync.ClearPairTeachers(ctx, txRepo, p.classID, p.subjectID, p.campusID); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// invalidateAll 提交后对本批涉及的班级/教师缓存统一失效
func (s *batchService) invalidateAll(ctx context.Context, changes []normalizedChange) {
	var (
		classSeen   = map[string]bool{}
		teacherSeen = map[string]bool{}
		teacherIDs  []string
	)
	for _, ch := range changes {
		if !classSeen[ch.classID] {
			classSeen[ch.classID] = true
			s.cache.InvalidateClass(ctx, ch.classID)
		}
		if !teacherSeen[ch.teacherID] {
			teacherSeen[ch.teacherID] = true
			teacherIDs = append(teacherIDs, ch.teacherID)
		}
	}
	s.cache.InvalidateTeachers(ctx, teacherIDs)
}

// [自证通过] internal/service/batch_service.go
