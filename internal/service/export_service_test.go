package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
)

// ── 测试辅助 ──

func setupExportTest() (ExportService, *testRepos) {
	repos := newTestRepos()
	svc := NewExportService(repos.toRepository(), zap.NewNop())
	return svc, repos
}

func TestExportService_ClassWeekXLSX(t *testing.T) {
	svc, repos := setupExportTest()
	seedTimetable(repos)
	seedEntry(repos, "e-1", "c-1", "t-1", "2025-01-06", 3, "ts-math")
	seedEntry(repos, "e-2", "c-1", "t-2", "2025-01-06", 3, "ts-math")

	// 周三传参也应落到所在周的周一
	buf, filename, err := svc.ExportClassWeek(context.Background(), "c-1", "2025-01-08")
	if err != nil {
		t.Fatalf("ExportClassWeek 失败: %v", err)
	}
	if buf.Len() == 0 {
		t.Error("导出内容为空")
	}
	if filename != "周课表_高一(1)班_2025-01-06.xlsx" {
		t.Errorf("文件名不符: %s", filename)
	}
}

func TestExportService_ClassWeekNoEntries(t *testing.T) {
	svc, repos := setupExportTest()
	seedTimetable(repos)

	_, _, err := svc.ExportClassWeek(context.Background(), "c-1", "2025-01-06")
	if !errors.Is(err, ErrExportNoEntries) {
		t.Errorf("空区间期望 ErrExportNoEntries，实际 %v", err)
	}
}

func TestExportService_TeacherCalendarICS(t *testing.T) {
	svc, repos := setupExportTest()
	seedTimetable(repos)
	seedEntry(repos, "e-1", "c-1", "t-1", "2025-01-06", 3, "ts-math")

	buf, filename, err := svc.ExportTeacherCalendar(context.Background(), "t-1", "2025-01-06", "2025-01-31")
	if err != nil {
		t.Fatalf("ExportTeacherCalendar 失败: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "BEGIN:VCALENDAR") || !strings.Contains(out, "e-1") {
		t.Errorf("ICS 内容不完整:\n%s", out)
	}
	if !strings.Contains(out, "SUMMARY:") {
		t.Error("ICS 缺少事件摘要")
	}
	if filename != "课表_王老师_2025-01-06.ics" {
		t.Errorf("文件名不符: %s", filename)
	}
}

func TestExportService_TeacherCalendarInvertedRange(t *testing.T) {
	svc, repos := setupExportTest()
	seedTimetable(repos)

	_, _, err := svc.ExportTeacherCalendar(context.Background(), "t-1", "2025-01-31", "2025-01-06")
	if !errors.Is(err, ErrTimetableRange) {
		t.Errorf("倒置区间期望 ErrTimetableRange，实际 %v", err)
	}
}
