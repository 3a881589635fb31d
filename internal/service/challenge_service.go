package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/habitloop/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrEnrollmentNotFound 在指定报名不存在时返回
	ErrEnrollmentNotFound = errors.New("enrollment not found")
	// ErrEnrollmentActiveExists 在用户已有进行中的挑战时返回
	ErrEnrollmentActiveExists = errors.New("an active enrollment already exists")
	// ErrEnrollmentNotActive 在对已结束的报名执行变更时返回
	ErrEnrollmentNotActive = errors.New("enrollment is not active")
	// ErrChallengeAtFinalWeek 表示已处于最后一周，调用方应引导用户完成挑战而非重试
	ErrChallengeAtFinalWeek = errors.New("challenge already at final week")
	// ErrInvalidFocusAreaOrder 在自定义主题顺序不是默认顺序的排列时返回
	ErrInvalidFocusAreaOrder = errors.New("focus area order is not a permutation of the definition")
	// ErrInvalidWeekNumber 在周数超出 1-4 时返回
	ErrInvalidWeekNumber = errors.New("week number out of range")
)

// maxReflectionLength 为结营感想的长度上限
const maxReflectionLength = 2000

// ChallengeService 负责挑战报名的生命周期编排
// 状态只允许 active → completed / abandoned，结束态不再流转
type ChallengeService struct {
	db *gorm.DB
}

// NewChallengeService 构造 ChallengeService
func NewChallengeService(gdb *gorm.DB) *ChallengeService {
	return &ChallengeService{db: gdb}
}

// StartChallengeInput 描述报名时的输入
// SurveyScores 为报名问卷按主题的自评分；FocusAreaOrder 可选，为空使用默认顺序
type StartChallengeInput struct {
	UserID         uint
	ChallengeSlug  string
	SurveyScores   map[string]int
	FocusAreaOrder []string
}

// StartChallenge 创建一条 active 状态的报名。
// 开赛日推迟到下一个周一（NextMonday），当天即可先选第一周的习惯。
// 同一用户同时只允许一条 active 报名。
func (s *ChallengeService) StartChallenge(input StartChallengeInput) (*db.ChallengeEnrollment, error) {
	def, err := ChallengeBySlug(input.ChallengeSlug)
	if err != nil {
		return nil, err
	}

	if _, err := s.ActiveEnrollment(input.UserID); err == nil {
		return nil, ErrEnrollmentActiveExists
	} else if !errors.Is(err, ErrEnrollmentNotFound) {
		return nil, err
	}

	order := ""
	if len(input.FocusAreaOrder) > 0 {
		if !ValidateFocusAreaOrder(input.FocusAreaOrder, def.FocusAreaSlugs()) {
			return nil, ErrInvalidFocusAreaOrder
		}
		order, err = encodeFocusAreaOrder(input.FocusAreaOrder)
		if err != nil {
			return nil, err
		}
	}

	scores := ""
	if len(input.SurveyScores) > 0 {
		encoded, err := json.Marshal(input.SurveyScores)
		if err != nil {
			return nil, fmt.Errorf("encode survey scores: %w", err)
		}
		scores = string(encoded)
	}

	week1 := NextMonday(time.Now())
	enrollment := db.ChallengeEnrollment{
		PublicID:       uuid.NewString(),
		UserID:         input.UserID,
		ChallengeSlug:  def.Slug,
		Status:         db.EnrollmentStatusActive,
		Week1StartDate: &week1,
		FocusAreaOrder: order,
		SurveyScores:   scores,
	}

	if err := s.db.Create(&enrollment).Error; err != nil {
		return nil, fmt.Errorf("create enrollment: %w", err)
	}

	return &enrollment, nil
}

// ActiveEnrollment 返回用户当前进行中的报名，不存在时返回 ErrEnrollmentNotFound
func (s *ChallengeService) ActiveEnrollment(userID uint) (*db.ChallengeEnrollment, error) {
	var enrollment db.ChallengeEnrollment
	err := s.db.Where("user_id = ? AND status = ?", userID, db.EnrollmentStatusActive).
		First(&enrollment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEnrollmentNotFound
		}
		return nil, fmt.Errorf("get active enrollment: %w", err)
	}
	return &enrollment, nil
}

// CompletedEnrollments 返回用户历史上已完成的报名，按完成时间倒序
func (s *ChallengeService) CompletedEnrollments(userID uint) ([]db.ChallengeEnrollment, error) {
	var enrollments []db.ChallengeEnrollment
	if err := s.db.Where("user_id = ? AND status = ?", userID, db.EnrollmentStatusCompleted).
		Order("completed_at DESC").
		Find(&enrollments).Error; err != nil {
		return nil, fmt.Errorf("list completed enrollments: %w", err)
	}
	return enrollments, nil
}

// GetEnrollment 按对外 ID 查找报名
func (s *ChallengeService) GetEnrollment(publicID string) (*db.ChallengeEnrollment, error) {
	var enrollment db.ChallengeEnrollment
	err := s.db.Where("public_id = ?", strings.TrimSpace(publicID)).First(&enrollment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEnrollmentNotFound
		}
		return nil, fmt.Errorf("get enrollment: %w", err)
	}
	return &enrollment, nil
}

// AdvanceWeek 将存量周数计数器推进到下一周。
// 目标周取计数器与实时推算周数的较大值加一，保证乱序调用不会回退进度；
// 目标超过第 4 周返回 ErrChallengeAtFinalWeek，调用方应转向完成流程。
func (s *ChallengeService) AdvanceWeek(publicID string) (*db.ChallengeEnrollment, error) {
	enrollment, err := s.GetEnrollment(publicID)
	if err != nil {
		return nil, err
	}

	if enrollment.Status != db.EnrollmentStatusActive {
		return nil, ErrEnrollmentNotActive
	}

	target := max(enrollment.CurrentWeekCounter, EffectiveWeek(enrollment, time.Now())) + 1
	if target > ChallengeTotalWeeks {
		return nil, ErrChallengeAtFinalWeek
	}

	if err := s.db.Model(enrollment).
		Update("current_week_counter", target).Error; err != nil {
		return nil, fmt.Errorf("advance week: %w", err)
	}

	enrollment.CurrentWeekCounter = target
	return enrollment, nil
}

// CompleteChallenge 将报名标记为 completed 并记录结营感想与完成时间
func (s *ChallengeService) CompleteChallenge(publicID, finalReflection string) (*db.ChallengeEnrollment, error) {
	enrollment, err := s.GetEnrollment(publicID)
	if err != nil {
		return nil, err
	}

	if enrollment.Status != db.EnrollmentStatusActive {
		return nil, ErrEnrollmentNotActive
	}

	reflection := strings.TrimSpace(habitNameSanitizer.Sanitize(finalReflection))
	if len([]rune(reflection)) > maxReflectionLength {
		reflection = string([]rune(reflection)[:maxReflectionLength])
	}

	now := time.Now()
	updates := map[string]any{
		"status":           db.EnrollmentStatusCompleted,
		"final_reflection": reflection,
		"completed_at":     &now,
	}
	if err := s.db.Model(enrollment).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("complete challenge: %w", err)
	}

	enrollment.Status = db.EnrollmentStatusCompleted
	enrollment.FinalReflection = reflection
	enrollment.CompletedAt = &now
	return enrollment, nil
}

// AbandonChallenge 将报名标记为 abandoned，不清理关联数据
func (s *ChallengeService) AbandonChallenge(publicID string) error {
	enrollment, err := s.GetEnrollment(publicID)
	if err != nil {
		return err
	}

	if enrollment.Status == db.EnrollmentStatusAbandoned {
		return nil
	}
	if enrollment.Status != db.EnrollmentStatusActive {
		return ErrEnrollmentNotActive
	}

	if err := s.db.Model(enrollment).
		Update("status", db.EnrollmentStatusAbandoned).Error; err != nil {
		return fmt.Errorf("abandon challenge: %w", err)
	}
	return nil
}

// CancelChallenge 放弃挑战并级联清理该挑战创建的排期行与追踪配置。
// 三步没有跨表事务：先改报名状态，再做两次幂等删除（物理删除，删不存在的行为空操作），
// 任一步失败后整体重试都会收敛到同一终态。
func (s *ChallengeService) CancelChallenge(userID uint, publicID, challengeSlug string) error {
	enrollment, err := s.GetEnrollment(publicID)
	if err != nil {
		return err
	}

	if enrollment.UserID != userID {
		return ErrEnrollmentNotFound
	}

	slug := strings.TrimSpace(challengeSlug)
	if slug == "" {
		slug = enrollment.ChallengeSlug
	}
	if slug != enrollment.ChallengeSlug {
		return ErrEnrollmentNotFound
	}

	if err := s.AbandonChallenge(enrollment.PublicID); err != nil {
		return err
	}

	if err := s.db.Unscoped().
		Where("user_id = ? AND challenge_slug = ?", userID, slug).
		Delete(&db.HabitScheduleRow{}).Error; err != nil {
		return fmt.Errorf("delete challenge habit rows: %w", err)
	}

	if err := s.db.Unscoped().
		Where("user_id = ? AND challenge_slug = ?", userID, slug).
		Delete(&db.TrackingConfig{}).Error; err != nil {
		return fmt.Errorf("delete challenge tracking configs: %w", err)
	}

	return nil
}

// LogWeeklyHabit 记录某一周选定的习惯。
// 同一周重复提交按 upsert 处理，保留最后一次选择。
func (s *ChallengeService) LogWeeklyHabit(publicID string, weekNumber int, focusAreaSlug, habitName string) (*db.ChallengeHabitLog, error) {
	if weekNumber < 1 || weekNumber > ChallengeTotalWeeks {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWeekNumber, weekNumber)
	}

	enrollment, err := s.GetEnrollment(publicID)
	if err != nil {
		return nil, err
	}
	if enrollment.Status != db.EnrollmentStatusActive {
		return nil, ErrEnrollmentNotActive
	}

	def, err := ChallengeBySlug(enrollment.ChallengeSlug)
	if err != nil {
		return nil, err
	}
	if _, ok := def.FocusAreaBySlug(focusAreaSlug); !ok {
		return nil, fmt.Errorf("%w: focus area %s", ErrInvalidFocusAreaOrder, focusAreaSlug)
	}

	name, err := NormalizeHabitName(habitName)
	if err != nil {
		return nil, err
	}

	record := db.ChallengeHabitLog{
		EnrollmentID:  enrollment.ID,
		WeekNumber:    weekNumber,
		FocusAreaSlug: focusAreaSlug,
		HabitName:     name,
		LoggedAt:      time.Now(),
	}

	if err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "enrollment_id"}, {Name: "week_number"}},
		DoUpdates: clause.AssignmentColumns([]string{"focus_area_slug", "habit_name", "logged_at", "updated_at"}),
	}).Create(&record).Error; err != nil {
		return nil, fmt.Errorf("upsert weekly habit log: %w", err)
	}

	if err := s.db.Where("enrollment_id = ? AND week_number = ?", enrollment.ID, weekNumber).
		First(&record).Error; err != nil {
		return nil, fmt.Errorf("reload weekly habit log: %w", err)
	}

	return &record, nil
}

// WeeklyHabitLogs 返回报名的全部周习惯记录，按周数排序
func (s *ChallengeService) WeeklyHabitLogs(enrollmentID uint) ([]db.ChallengeHabitLog, error) {
	var logs []db.ChallengeHabitLog
	if err := s.db.Where("enrollment_id = ?", enrollmentID).
		Order("week_number ASC").
		Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("list weekly habit logs: %w", err)
	}
	return logs, nil
}

// ReorderFocusAreas 持久化用户的自定义主题顺序（周数 = 新下标 + 1）。
// 顺序必须是定义 slug 的一个排列，校验失败返回 ErrInvalidFocusAreaOrder。
func (s *ChallengeService) ReorderFocusAreas(publicID string, slugs []string) error {
	enrollment, err := s.GetEnrollment(publicID)
	if err != nil {
		return err
	}
	if enrollment.Status != db.EnrollmentStatusActive {
		return ErrEnrollmentNotActive
	}

	def, err := ChallengeBySlug(enrollment.ChallengeSlug)
	if err != nil {
		return err
	}

	if !ValidateFocusAreaOrder(slugs, def.FocusAreaSlugs()) {
		return ErrInvalidFocusAreaOrder
	}

	encoded, err := encodeFocusAreaOrder(slugs)
	if err != nil {
		return err
	}

	if err := s.db.Model(enrollment).
		Update("focus_area_order", encoded).Error; err != nil {
		return fmt.Errorf("reorder focus areas: %w", err)
	}
	return nil
}

// OrderedFocusAreas 返回按用户自定义顺序排列的主题列表，周数重编为下标加一。
// 保存的顺序与当前定义不匹配（主题增删过）时丢弃并回退默认顺序。
func (s *ChallengeService) OrderedFocusAreas(enrollment *db.ChallengeEnrollment) ([]FocusArea, error) {
	def, err := ChallengeBySlug(enrollment.ChallengeSlug)
	if err != nil {
		return nil, err
	}

	areas := def.FocusAreas
	if saved, ok := decodeFocusAreaOrder(enrollment.FocusAreaOrder); ok &&
		ValidateFocusAreaOrder(saved, def.FocusAreaSlugs()) {
		reordered := make([]FocusArea, 0, len(saved))
		for _, slug := range saved {
			area, _ := def.FocusAreaBySlug(slug)
			reordered = append(reordered, area)
		}
		areas = reordered
	}

	result := make([]FocusArea, len(areas))
	copy(result, areas)
	for i := range result {
		result[i].DefaultWeek = i + 1
	}
	return result, nil
}

// ValidateFocusAreaOrder 校验 saved 是否为 definition 的一个精确排列：
// 长度一致、集合一致、无重复。防止挑战定义增删主题后旧顺序继续生效。
func ValidateFocusAreaOrder(saved, definition []string) bool {
	if len(saved) != len(definition) {
		return false
	}

	expected := make(map[string]struct{}, len(definition))
	for _, slug := range definition {
		expected[slug] = struct{}{}
	}

	seen := make(map[string]struct{}, len(saved))
	for _, slug := range saved {
		if _, ok := expected[slug]; !ok {
			return false
		}
		if _, dup := seen[slug]; dup {
			return false
		}
		seen[slug] = struct{}{}
	}

	return true
}

// ParseSurveyScores 解析报名问卷自评分，内容非法时返回空映射
func ParseSurveyScores(enrollment *db.ChallengeEnrollment) map[string]int {
	scores := make(map[string]int)
	raw := strings.TrimSpace(enrollment.SurveyScores)
	if raw == "" {
		return scores
	}
	if err := json.Unmarshal([]byte(raw), &scores); err != nil {
		return map[string]int{}
	}
	return scores
}

func encodeFocusAreaOrder(slugs []string) (string, error) {
	encoded, err := json.Marshal(slugs)
	if err != nil {
		return "", fmt.Errorf("encode focus area order: %w", err)
	}
	return string(encoded), nil
}

func decodeFocusAreaOrder(raw string) ([]string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}
	var slugs []string
	if err := json.Unmarshal([]byte(raw), &slugs); err != nil {
		return nil, false
	}
	return slugs, true
}
