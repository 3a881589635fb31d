package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/habitloop/internal/db"
	"github.com/habitloop/internal/service"
)

const dateFormat = "2006-01-02"

// GetChallengeDefinition 返回挑战定义，主题描述渲染为 HTML
func (a *API) GetChallengeDefinition(c *gin.Context) {
	def, err := service.ChallengeBySlug(c.Param("slug"))
	if err != nil {
		respondError(c, http.StatusNotFound, "挑战不存在")
		return
	}

	areas := make([]gin.H, 0, len(def.FocusAreas))
	for _, area := range def.FocusAreas {
		rendered, err := service.RenderFocusAreaHTML(area)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "渲染挑战内容失败")
			return
		}
		areas = append(areas, gin.H{
			"slug":             area.Slug,
			"title":            area.Title,
			"default_week":     area.DefaultWeek,
			"description_html": rendered,
			"evidence":         area.Evidence,
			"survey_question":  area.SurveyQuestion,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"slug":        def.Slug,
		"title":       def.Title,
		"total_weeks": service.ChallengeTotalWeeks,
		"focus_areas": areas,
	})
}

// GetActiveChallenge 返回当前进行中的报名与实时推算的周数
func (a *API) GetActiveChallenge(c *gin.Context) {
	userID := currentUserID(c)

	enrollment, err := a.challenges.ActiveEnrollment(userID)
	if err != nil {
		if errors.Is(err, service.ErrEnrollmentNotFound) {
			c.JSON(http.StatusOK, gin.H{"enrollment": nil})
			return
		}
		respondError(c, http.StatusInternalServerError, "获取挑战进度失败")
		return
	}

	areas, err := a.challenges.OrderedFocusAreas(enrollment)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取挑战进度失败")
		return
	}

	logs, err := a.challenges.WeeklyHabitLogs(enrollment.ID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取挑战进度失败")
		return
	}

	week := service.EffectiveWeek(enrollment, time.Now())

	payload := gin.H{
		"enrollment":    serializeEnrollment(enrollment, week),
		"focus_areas":   serializeFocusAreas(areas),
		"logged_habits": serializeWeeklyLogs(logs),
		"current_focus": nil,
	}
	if week >= 1 && week <= len(areas) {
		payload["current_focus"] = areas[week-1].Slug
	}

	c.JSON(http.StatusOK, payload)
}

// StartChallenge 报名参加挑战
func (a *API) StartChallenge(c *gin.Context) {
	userID := currentUserID(c)

	var payload struct {
		ChallengeSlug  string         `json:"challenge_slug"`
		SurveyScores   map[string]int `json:"survey_scores"`
		FocusAreaOrder []string       `json:"focus_area_order"`
	}
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	enrollment, err := a.challenges.StartChallenge(service.StartChallengeInput{
		UserID:         userID,
		ChallengeSlug:  payload.ChallengeSlug,
		SurveyScores:   payload.SurveyScores,
		FocusAreaOrder: payload.FocusAreaOrder,
	})
	if err != nil {
		handleChallengeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"enrollment": serializeEnrollment(enrollment, service.EffectiveWeek(enrollment, time.Now()))})
}

// AdvanceWeek 推进到下一周；已处于最后一周时返回专用 code，客户端应转向完成流程
func (a *API) AdvanceWeek(c *gin.Context) {
	id, ok := enrollmentIDParam(c)
	if !ok {
		return
	}

	enrollment, err := a.challenges.AdvanceWeek(id)
	if err != nil {
		if errors.Is(err, service.ErrChallengeAtFinalWeek) {
			c.JSON(http.StatusConflict, gin.H{"error": "已是最后一周", "code": "at_final_week"})
			return
		}
		handleChallengeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"enrollment": serializeEnrollment(enrollment, service.EffectiveWeek(enrollment, time.Now()))})
}

// CompleteChallenge 完成挑战并记录结营感想
func (a *API) CompleteChallenge(c *gin.Context) {
	id, ok := enrollmentIDParam(c)
	if !ok {
		return
	}

	var payload struct {
		FinalReflection string `json:"final_reflection"`
	}
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	enrollment, err := a.challenges.CompleteChallenge(id, payload.FinalReflection)
	if err != nil {
		handleChallengeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"enrollment": serializeEnrollment(enrollment, service.ChallengeTotalWeeks)})
}

// CancelChallenge 放弃挑战并清理其创建的排期行与追踪配置
func (a *API) CancelChallenge(c *gin.Context) {
	id, ok := enrollmentIDParam(c)
	if !ok {
		return
	}

	var payload struct {
		ChallengeSlug string `json:"challenge_slug"`
	}
	if c.Request.Body != nil && c.Request.ContentLength > 0 {
		if !bindJSON(c, &payload, "请求参数不合法") {
			return
		}
	}

	if err := a.challenges.CancelChallenge(currentUserID(c), id, payload.ChallengeSlug); err != nil {
		handleChallengeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}

// ReorderFocusAreas 保存用户自定义的主题顺序
func (a *API) ReorderFocusAreas(c *gin.Context) {
	id, ok := enrollmentIDParam(c)
	if !ok {
		return
	}

	var payload struct {
		FocusAreaOrder []string `json:"focus_area_order"`
	}
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	if err := a.challenges.ReorderFocusAreas(id, payload.FocusAreaOrder); err != nil {
		handleChallengeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"focus_area_order": payload.FocusAreaOrder})
}

// LogWeeklyHabit 记录某一周选定的习惯
func (a *API) LogWeeklyHabit(c *gin.Context) {
	id, ok := enrollmentIDParam(c)
	if !ok {
		return
	}

	var payload struct {
		WeekNumber    int    `json:"week_number"`
		FocusAreaSlug string `json:"focus_area_slug"`
		HabitName     string `json:"habit_name"`
	}
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	record, err := a.challenges.LogWeeklyHabit(id, payload.WeekNumber, payload.FocusAreaSlug, payload.HabitName)
	if err != nil {
		handleChallengeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"log": serializeWeeklyLog(*record)})
}

// ListCompletedChallenges 返回历史完成记录
func (a *API) ListCompletedChallenges(c *gin.Context) {
	enrollments, err := a.challenges.CompletedEnrollments(currentUserID(c))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取挑战历史失败")
		return
	}

	items := make([]gin.H, 0, len(enrollments))
	for i := range enrollments {
		items = append(items, serializeEnrollment(&enrollments[i], service.ChallengeTotalWeeks))
	}

	c.JSON(http.StatusOK, gin.H{"enrollments": items})
}

func serializeEnrollment(enrollment *db.ChallengeEnrollment, effectiveWeek int) gin.H {
	item := gin.H{
		"id":                   enrollment.PublicID,
		"challenge_slug":       enrollment.ChallengeSlug,
		"status":               enrollment.Status,
		"effective_week":       effectiveWeek,
		"current_week_counter": enrollment.CurrentWeekCounter,
		"survey_scores":        service.ParseSurveyScores(enrollment),
		"created_at":           enrollment.CreatedAt.Format(time.RFC3339),
	}

	if enrollment.Week1StartDate != nil {
		item["week1_start_date"] = enrollment.Week1StartDate.Format(dateFormat)
	}
	if enrollment.FinalReflection != "" {
		item["final_reflection"] = enrollment.FinalReflection
	}
	if enrollment.CompletedAt != nil {
		item["completed_at"] = enrollment.CompletedAt.Format(time.RFC3339)
	}

	return item
}

func serializeFocusAreas(areas []service.FocusArea) []gin.H {
	items := make([]gin.H, 0, len(areas))
	for _, area := range areas {
		items = append(items, gin.H{
			"slug":  area.Slug,
			"title": area.Title,
			"week":  area.DefaultWeek,
		})
	}
	return items
}

func serializeWeeklyLog(log db.ChallengeHabitLog) gin.H {
	return gin.H{
		"week_number":     log.WeekNumber,
		"focus_area_slug": log.FocusAreaSlug,
		"habit_name":      log.HabitName,
		"logged_at":       log.LoggedAt.Format(time.RFC3339),
	}
}

func serializeWeeklyLogs(logs []db.ChallengeHabitLog) []gin.H {
	items := make([]gin.H, 0, len(logs))
	for _, log := range logs {
		items = append(items, serializeWeeklyLog(log))
	}
	return items
}

func handleChallengeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUnknownChallenge):
		respondError(c, http.StatusNotFound, "挑战不存在")
	case errors.Is(err, service.ErrEnrollmentNotFound):
		respondError(c, http.StatusNotFound, "报名不存在")
	case errors.Is(err, service.ErrEnrollmentActiveExists):
		respondError(c, http.StatusConflict, "已有进行中的挑战")
	case errors.Is(err, service.ErrEnrollmentNotActive):
		respondError(c, http.StatusConflict, "挑战已结束")
	case errors.Is(err, service.ErrInvalidFocusAreaOrder):
		respondError(c, http.StatusBadRequest, "主题顺序不合法")
	case errors.Is(err, service.ErrInvalidWeekNumber):
		respondError(c, http.StatusBadRequest, "周数不合法")
	case errors.Is(err, service.ErrHabitNameRequired), errors.Is(err, service.ErrHabitNameTooLong):
		respondError(c, http.StatusBadRequest, "习惯名称不合法")
	default:
		respondError(c, http.StatusInternalServerError, "操作失败")
	}
}
