package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"classbridge/backend/config"
	"classbridge/backend/internal/dto"
	"classbridge/backend/internal/model"
)

// ── 测试辅助 ──

func setupBatchTest() (BatchService, *testRepos) {
	repos := newTestRepos()
	cfg := &config.SyncConfig{
		MaterializeBatchSize: 500,
		RetryAttempts:        3,
		RetryBackoff:         time.Millisecond,
	}
	locks := newKeyedMutex()
	repoAgg := repos.toRepository()
	mat := NewMaterializeService(cfg, repoAgg, nil, zap.NewNop())
	syncSvc := NewSyncService(repoAgg, nil, locks, mat, zap.NewNop())
	svc := NewBatchService(cfg, repoAgg, nil, syncSvc, mat, locks, zap.NewNop())
	return svc, repos
}

func createChange(teacherID, scopeType string, start, end *string) dto.AssignmentChange {
	return dto.AssignmentChange{
		Op:         dto.ChangeOpCreate,
		TeacherID:  teacherID,
		ClassID:    "c-1",
		SubjectID:  "s-math",
		CampusID:   "campus-1",
		ScopeType:  scopeType,
		ScopeStart: start,
		ScopeEnd:   end,
	}
}

func strPtr(s string) *string { return &s }

// ════════════════════════════════════════════════════════════
// 成功路径
// ════════════════════════════════════════════════════════════

func TestBatchService_CreateAndSync(t *testing.T) {
	svc, repos := setupBatchTest()
	seedTimetable(repos)

	result, err := svc.BatchSync(context.Background(), "op-1", &dto.BatchSyncRequest{
		Changes: []dto.AssignmentChange{
			createChange("t-1", string(model.ScopeFullYear), nil, nil),
			createChange("t-2", string(model.ScopeFullYear), nil, nil),
		},
	})
	if err != nil {
		t.Fatalf("BatchSync 失败: %v", err)
	}
	if !result.Success {
		t.Fatalf("期望成功，实际 %+v", result)
	}
	if result.Stats.Created != 2 || result.Stats.Synced != 2 {
		t.Errorf("统计不符: %+v", result.Stats)
	}

	got := patternTeachers(repos, "pr-mon")
	if len(got) != 2 || got[0] != "t-1" || got[1] != "t-2" {
		t.Errorf("模板行教师集合 = %v, want [t-1 t-2]", got)
	}
}

func TestBatchService_UpdateReplacesTeacher(t *testing.T) {
	svc, repos := setupBatchTest()
	seedTimetable(repos)
	seedAssignment(repos, "a-1", "t-1", string(model.ScopeFullYear), nil, nil)
	_ = repos.patternRow.ReplaceTeachers(context.Background(), "pr-mon", []string{"t-1"})

	result, err := svc.BatchSync(context.Background(), "op-1", &dto.BatchSyncRequest{
		Changes: []dto.AssignmentChange{
			{Op: dto.ChangeOpUpdate, AssignmentID: "a-1", TeacherID: "t-2"},
		},
	})
	if err != nil {
		t.Fatalf("BatchSync 失败: %v", err)
	}
	if !result.Success || result.Stats.Updated != 1 {
		t.Fatalf("期望更新成功，实际 %+v", result)
	}

	got := patternTeachers(repos, "pr-mon")
	if len(got) != 1 || got[0] != "t-2" {
		t.Errorf("模板行应替换为 [t-2]，实际 %v", got)
	}
}

func TestBatchService_UpdateMoveResyncsOldPair(t *testing.T) {
	svc, repos := setupBatchTest()
	seedTimetable(repos)
	// 物理科目：独立映射与模板行
	repos.subject.subjects["s-phys"] = &model.Subject{SubjectID: "s-phys", CampusID: "campus-1", Name: "物理"}
	repos.subject.subjects["ts-phys"] = &model.Subject{SubjectID: "ts-phys", CampusID: "campus-1", Name: "物理"}
	repos.subjectLink.links = append(repos.subjectLink.links, &model.SubjectLink{
		LinkID: "link-3", CampusID: "campus-1", SubjectID: "s-phys", TimetableSubjectID: "ts-phys",
	})
	repos.patternRow.rows = append(repos.patternRow.rows, &model.PatternRow{
		PatternRowID: "pr-phys", InstanceID: "inst-1", DayOfWeek: 3, Period: 2, SubjectID: "ts-phys",
	})

	seedAssignment(repos, "a-1", "t-1", string(model.ScopeFullYear), nil, nil)
	_ = repos.patternRow.ReplaceTeachers(context.Background(), "pr-mon", []string{"t-1"})

	// 安排从数学迁移到物理
	result, err := svc.BatchSync(context.Background(), "op-1", &dto.BatchSyncRequest{
		Changes: []dto.AssignmentChange{
			{Op: dto.ChangeOpUpdate, AssignmentID: "a-1", SubjectID: "s-phys"},
		},
	})
	if err != nil {
		t.Fatalf("BatchSync 失败: %v", err)
	}
	if !result.Success || result.Stats.Updated != 1 {
		t.Fatalf("期望更新成功，实际 %+v", result)
	}

	if got := patternTeachers(repos, "pr-phys"); len(got) != 1 || got[0] != "t-1" {
		t.Errorf("物理模板行应为 [t-1]，实际 %v", got)
	}
	// 旧 (班级, 科目) 对失去唯一安排，模板行教师集合随之清空
	if got := patternTeachers(repos, "pr-mon"); len(got) != 0 {
		t.Errorf("迁移后旧数学模板行应已清空，实际残留 %v", got)
	}
}

func TestBatchService_DeleteResyncsRemaining(t *testing.T) {
	svc, repos := setupBatchTest()
	seedTimetable(repos)
	seedAssignment(repos, "a-1", "t-1", string(model.ScopeFullYear), nil, nil)
	seedAssignment(repos, "a-2", "t-2", string(model.ScopeFullYear), nil, nil)
	_ = repos.patternRow.ReplaceTeachers(context.Background(), "pr-mon", []string{"t-1", "t-2"})

	result, err := svc.BatchSync(context.Background(), "op-1", &dto.BatchSyncRequest{
		Changes: []dto.AssignmentChange{
			{Op: dto.ChangeOpDelete, AssignmentID: "a-2"},
		},
	})
	if err != nil {
		t.Fatalf("BatchSync 失败: %v", err)
	}
	if !result.Success || result.Stats.Deleted != 1 {
		t.Fatalf("期望删除成功，实际 %+v", result)
	}

	got := patternTeachers(repos, "pr-mon")
	if len(got) != 1 || got[0] != "t-1" {
		t.Errorf("删除后模板行应为 [t-1]，实际 %v", got)
	}
}

func TestBatchService_DeleteLastClearsPattern(t *testing.T) {
	svc, repos := setupBatchTest()
	seedTimetable(repos)
	seedAssignment(repos, "a-1", "t-1", string(model.ScopeFullYear), nil, nil)
	_ = repos.patternRow.ReplaceTeachers(context.Background(), "pr-mon", []string{"t-1"})

	result, err := svc.BatchSync(context.Background(), "op-1", &dto.BatchSyncRequest{
		Changes: []dto.AssignmentChange{
			{Op: dto.ChangeOpDelete, AssignmentID: "a-1"},
		},
	})
	if err != nil {
		t.Fatalf("BatchSync 失败: %v", err)
	}
	if !result.Success {
		t.Fatalf("期望成功，实际 %+v", result)
	}

	if got := patternTeachers(repos, "pr-mon"); len(got) != 0 {
		t.Errorf("最后一条安排删除后模板行应清空，实际 %v", got)
	}
}

func TestBatchService_DeleteWithoutOperator(t *testing.T) {
	svc, repos := setupBatchTest()
	seedTimetable(repos)
	seedAssignment(repos, "a-1", "t-1", string(model.ScopeFullYear), nil, nil)
	_ = repos.patternRow.ReplaceTeachers(context.Background(), "pr-mon", []string{"t-1"})

	result, err := svc.BatchSync(context.Background(), "", &dto.BatchSyncRequest{
		Changes: []dto.AssignmentChange{
			{Op: dto.ChangeOpDelete, AssignmentID: "a-1"},
		},
	})
	if err != nil {
		t.Fatalf("BatchSync 失败: %v", err)
	}
	if !result.Success || result.Stats.Deleted != 1 {
		t.Fatalf("无操作人删除应成功，实际 %+v", result)
	}
	// 操作人缺省时 deleted_by 必须落 NULL 而非空串
	if repos.assignment.lastDeletedBy != nil {
		t.Errorf("deleted_by 应为 nil，实际 %q", *repos.assignment.lastDeletedBy)
	}
}

func TestBatchService_SuccessRematerializes(t *testing.T) {
	svc, repos := setupBatchTest()
	seedTimetable(repos)

	result, err := svc.BatchSync(context.Background(), "op-1", &dto.BatchSyncRequest{
		Changes: []dto.AssignmentChange{
			createChange("t-1", string(model.ScopeFullYear), nil, nil),
		},
	})
	if err != nil {
		t.Fatalf("BatchSync 失败: %v", err)
	}
	if !result.Success {
		t.Fatalf("期望成功，实际 %+v", result)
	}

	// 提交后整学期物化条目随之重建：学期内的周一第3节由新教师承担
	got := entriesOn(repos, "2025-01-06")
	if len(got) != 1 || got[0] != "t-1" {
		t.Errorf("2025-01-06 物化条目教师 = %v, want [t-1]", got)
	}
}

// ════════════════════════════════════════════════════════════
// 校验与原子性
// ════════════════════════════════════════════════════════════

func TestBatchService_EmptyChanges(t *testing.T) {
	svc, repos := setupBatchTest()
	seedTimetable(repos)

	_, err := svc.BatchSync(context.Background(), "op-1", &dto.BatchSyncRequest{})
	if !errors.Is(err, ErrBatchEmpty) {
		t.Fatalf("期望 ErrBatchEmpty，实际 %v", err)
	}
}

func TestBatchService_ValidationFailsWholeBatch(t *testing.T) {
	svc, repos := setupBatchTest()
	seedTimetable(repos)

	// 第 4 条引用不存在的安排，整批拒绝
	result, err := svc.BatchSync(context.Background(), "op-1", &dto.BatchSyncRequest{
		Changes: []dto.AssignmentChange{
			createChange("t-1", string(model.ScopeFullYear), nil, nil),
			createChange("t-2", string(model.ScopeFullYear), nil, nil),
			createChange("t-3", string(model.ScopeFullYear), nil, nil),
			{Op: dto.ChangeOpUpdate, AssignmentID: "missing", TeacherID: "t-1"},
			{Op: dto.ChangeOpDelete, AssignmentID: "also-missing"},
		},
	})
	if err != nil {
		t.Fatalf("BatchSync 失败: %v", err)
	}
	if result.Success {
		t.Fatal("期望整批拒绝")
	}
	if len(result.Errors) != 2 {
		t.Errorf("期望 2 条校验错误，实际 %v", result.Errors)
	}
	// 前 3 条有效变更同样不得落库
	if n := len(repos.assignment.assignments); n != 0 {
		t.Errorf("校验失败后不得有任何安排落库，实际 %d 条", n)
	}
}

func TestBatchService_DuplicateCreateRejected(t *testing.T) {
	svc, repos := setupBatchTest()
	seedTimetable(repos)

	result, err := svc.BatchSync(context.Background(), "op-1", &dto.BatchSyncRequest{
		Changes: []dto.AssignmentChange{
			createChange("t-1", string(model.ScopeFullYear), nil, nil),
			createChange("t-1", string(model.ScopeFullYear), nil, nil),
		},
	})
	if err != nil {
		t.Fatalf("BatchSync 失败: %v", err)
	}
	if result.Success || len(result.Errors) == 0 {
		t.Fatalf("同批重复变更应被拒绝，实际 %+v", result)
	}
}

func TestBatchService_ConflictRollsBackEverything(t *testing.T) {
	svc, repos := setupBatchTest()
	seedTimetable(repos)
	// 周一第3节两个槽位已满 → 日期区间变更必然冲突
	_ = repos.patternRow.ReplaceTeachers(context.Background(), "pr-mon", []string{"t-1", "t-2"})

	// 英语科目：独立的模板行，本应同步成功
	repos.subject.subjects["s-eng"] = &model.Subject{SubjectID: "s-eng", CampusID: "campus-1", Name: "英语"}
	repos.subjectLink.links = append(repos.subjectLink.links, &model.SubjectLink{
		LinkID: "link-2", CampusID: "campus-1", SubjectID: "s-eng", TimetableSubjectID: "ts-eng",
	})
	repos.patternRow.rows = append(repos.patternRow.rows, &model.PatternRow{
		PatternRowID: "pr-eng", InstanceID: "inst-1", DayOfWeek: 2, Period: 1, SubjectID: "ts-eng",
	})

	engChange := dto.AssignmentChange{
		Op: dto.ChangeOpCreate, TeacherID: "t-1", ClassID: "c-1",
		SubjectID: "s-eng", CampusID: "campus-1", ScopeType: string(model.ScopeFullYear),
	}

	result, err := svc.BatchSync(context.Background(), "op-1", &dto.BatchSyncRequest{
		Changes: []dto.AssignmentChange{
			engChange,
			createChange("t-3", string(model.ScopeDateRange), strPtr("2025-01-06"), strPtr("2025-01-27")),
		},
	})
	if err != nil {
		t.Fatalf("BatchSync 失败: %v", err)
	}
	if result.Success {
		t.Fatal("存在冲突时不应成功")
	}
	if len(result.Conflicts) != 1 || result.Conflicts[0].SubjectID != "ts-math" {
		t.Fatalf("冲突描述不符: %+v", result.Conflicts)
	}

	// 整批回滚：连本应成功的英语变更也不落库
	if n := len(repos.assignment.assignments); n != 0 {
		t.Errorf("冲突回滚后不得有任何安排落库，实际 %d 条", n)
	}
	if got := patternTeachers(repos, "pr-eng"); len(got) != 0 {
		t.Errorf("冲突回滚后英语模板行应保持为空，实际 %v", got)
	}
	if n := len(repos.overrideRow.rows); n != 0 {
		t.Errorf("冲突回滚后不得留下例外行，实际 %d 行", n)
	}
}

// ════════════════════════════════════════════════════════════
// 锁竞争重试
// ════════════════════════════════════════════════════════════

func TestBatchService_RetriesOnDeadlock(t *testing.T) {
	svc, repos := setupBatchTest()
	seedTimetable(repos)

	// 前两次提交阶段模拟死锁，第三次放行；放行后停用注入，
	// 后续物化重建的提交不计入尝试次数
	attempts := 0
	repos.tx.beforeCommit = func() error {
		attempts++
		if attempts < 3 {
			return errDeadlock
		}
		repos.tx.beforeCommit = nil
		return nil
	}

	result, err := svc.BatchSync(context.Background(), "op-1", &dto.BatchSyncRequest{
		Changes: []dto.AssignmentChange{
			createChange("t-1", string(model.ScopeFullYear), nil, nil),
		},
	})
	if err != nil {
		t.Fatalf("BatchSync 失败: %v", err)
	}
	if !result.Success {
		t.Fatalf("重试后应成功，实际 %+v", result)
	}
	if attempts != 3 {
		t.Errorf("期望 3 次提交尝试，实际 %d 次", attempts)
	}
	if n := len(repos.assignment.assignments); n != 1 {
		t.Errorf("重试成功后应恰好落库 1 条安排，实际 %d 条", n)
	}
}
