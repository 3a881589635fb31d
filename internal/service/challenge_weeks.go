package service

import (
	"time"

	"github.com/habitloop/internal/db"
)

// 挑战固定为 4 周，一周主题对应一个周数
const ChallengeTotalWeeks = 4

// NextMonday 返回严格晚于 today 的下一个周一（today 本身是周一时返回下周一）。
// 报名当天即可选第一周的习惯，但节奏统一推迟到周一开始，保证所有人按整周推进。
func NextMonday(today time.Time) time.Time {
	day := normalizeToDay(today)

	offset := (8 - int(day.Weekday())) % 7
	if offset == 0 {
		offset = 7
	}

	return day.AddDate(0, 0, offset)
}

// EffectiveWeek 根据开赛日与 today 实时推算当前周数，范围 0-4，0 表示尚未开赛。
// 没有开赛日的旧数据回退到存量计数器。today 由调用方显式传入，保持纯函数便于测试。
func EffectiveWeek(enrollment *db.ChallengeEnrollment, today time.Time) int {
	if enrollment.Week1StartDate == nil {
		return enrollment.CurrentWeekCounter
	}

	start := normalizeToDay(*enrollment.Week1StartDate)
	day := normalizeToDay(today)

	if day.Before(start) {
		return 0
	}

	diffDays := int(day.Sub(start).Hours() / 24)
	week := diffDays/7 + 1
	if week > ChallengeTotalWeeks {
		week = ChallengeTotalWeeks
	}

	return week
}

// normalizeToDay 抹掉时分秒，按各自所在时区取日历日后固定到 UTC，
// 避免夏令时导致的跨日差值不足 24 小时。
func normalizeToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
