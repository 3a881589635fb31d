package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/habitloop/internal/db"
	"github.com/habitloop/internal/service"
)

type habitSchedulePayload struct {
	HabitName     string `json:"habit_name"`
	Weekdays      []int  `json:"weekdays"`
	TimeBucket    string `json:"time_bucket"`
	Timezone      string `json:"timezone"`
	ChallengeSlug string `json:"challenge_slug"`
}

// ListHabits 返回当前用户的全部排期行，按习惯分组
func (a *API) ListHabits(c *gin.Context) {
	userID := currentUserID(c)

	rows, err := a.schedules.ListSchedules(userID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取习惯排期失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"habits":       serializeScheduleRows(rows),
		"time_buckets": service.TimeBucketKeys(),
	})
}

// CreateHabit 校验并展开排期行后写入
// 时区缺省回退到用户资料，资料缺失再回退默认值
func (a *API) CreateHabit(c *gin.Context) {
	userID := currentUserID(c)

	var payload habitSchedulePayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	timezone := payload.Timezone
	if timezone == "" {
		tz, err := a.profiles.Timezone(userID)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "读取用户时区失败")
			return
		}
		timezone = tz
	}

	weekdays := make([]time.Weekday, 0, len(payload.Weekdays))
	for _, day := range payload.Weekdays {
		weekdays = append(weekdays, time.Weekday(day))
	}

	rows, err := a.schedules.CreateHabitSchedule(userID, service.HabitScheduleInput{
		HabitName:     payload.HabitName,
		Weekdays:      weekdays,
		TimeBucket:    payload.TimeBucket,
		Timezone:      timezone,
		ChallengeSlug: payload.ChallengeSlug,
	})
	if err != nil {
		handleScheduleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"rows": serializeScheduleRows(rows)})
}

// DeleteHabit 删除某个习惯的全部排期行
func (a *API) DeleteHabit(c *gin.Context) {
	userID := currentUserID(c)

	name := c.Param("name")
	if err := a.schedules.DeleteHabit(userID, name); err != nil {
		handleScheduleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func serializeScheduleRows(rows []db.HabitScheduleRow) []gin.H {
	items := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		item := gin.H{
			"habit_name":    row.HabitName,
			"day_of_week":   row.DayOfWeek,
			"reminder_time": row.ReminderTime,
			"timezone":      row.Timezone,
		}
		if row.ChallengeSlug != "" {
			item["challenge_slug"] = row.ChallengeSlug
		}
		items = append(items, item)
	}
	return items
}

func handleScheduleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrWeekdaysRequired):
		respondError(c, http.StatusBadRequest, "请至少选择一个提醒日")
	case errors.Is(err, service.ErrInvalidWeekday):
		respondError(c, http.StatusBadRequest, "提醒日不合法")
	case errors.Is(err, service.ErrHabitNameRequired), errors.Is(err, service.ErrHabitNameTooLong):
		respondError(c, http.StatusBadRequest, "习惯名称不合法")
	case errors.Is(err, service.ErrUnknownTimeBucket):
		respondError(c, http.StatusBadRequest, "提醒时间档不合法")
	case errors.Is(err, service.ErrHabitCapacityExceeded):
		respondError(c, http.StatusBadRequest, "同时追踪的习惯最多 3 个")
	default:
		respondError(c, http.StatusInternalServerError, "操作失败")
	}
}
