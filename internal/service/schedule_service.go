package service

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/habitloop/internal/db"
	"github.com/microcosm-cc/bluemonday"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrWeekdaysRequired 在未选择任何提醒星期时返回
	ErrWeekdaysRequired = errors.New("at least one weekday is required")
	// ErrInvalidWeekday 在星期值超出 0-6 时返回
	ErrInvalidWeekday = errors.New("weekday out of range")
	// ErrHabitNameRequired 在习惯名称为空时返回
	ErrHabitNameRequired = errors.New("habit name is required")
	// ErrHabitNameTooLong 在习惯名称超长时返回
	ErrHabitNameTooLong = errors.New("habit name exceeds 200 characters")
	// ErrHabitCapacityExceeded 在超出同时进行的习惯上限时返回
	ErrHabitCapacityExceeded = errors.New("habit capacity exceeded")
)

const (
	// MaxDistinctHabits 限制一个用户同时追踪的不同习惯数量（挑战习惯与个人习惯合计）
	MaxDistinctHabits = 3
	// DefaultTimezone 在用户资料缺失时兜底
	DefaultTimezone = "America/Chicago"
	// maxHabitNameLength 为自定义习惯名称的长度上限
	maxHabitNameLength = 200
)

// habitNameSanitizer 过滤用户自由输入中的 HTML 片段
var habitNameSanitizer = bluemonday.StrictPolicy()

// ScheduleService 负责提醒排期行与追踪配置的读写
type ScheduleService struct {
	db *gorm.DB
}

// NewScheduleService 构造 ScheduleService
func NewScheduleService(gdb *gorm.DB) *ScheduleService {
	return &ScheduleService{db: gdb}
}

// HabitScheduleInput 描述创建习惯排期时的输入
// Weekdays 采用 time.Weekday（周日为 0），与持久化约定一致
type HabitScheduleInput struct {
	HabitName     string
	Weekdays      []time.Weekday
	TimeBucket    string
	Timezone      string
	ChallengeSlug string
}

// NormalizeHabitName 清洗用户输入的习惯名称：去 HTML、去首尾空白、校验长度
func NormalizeHabitName(raw string) (string, error) {
	name := strings.TrimSpace(habitNameSanitizer.Sanitize(raw))
	if name == "" {
		return "", ErrHabitNameRequired
	}
	if len([]rune(name)) > maxHabitNameLength {
		return "", ErrHabitNameTooLong
	}
	return name, nil
}

// BuildReminderRows 将 (习惯, 星期集合, 时间档, 时区) 展开成逐星期的排期行。
// 星期集合去重后排序，空集合视为校验错误；时区缺省回退 DefaultTimezone。
func BuildReminderRows(habitName string, weekdays []time.Weekday, bucket, timezone string) ([]db.HabitScheduleRow, error) {
	name, err := NormalizeHabitName(habitName)
	if err != nil {
		return nil, err
	}

	if len(weekdays) == 0 {
		return nil, ErrWeekdaysRequired
	}

	hour, err := TimeBucketHour(bucket)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(timezone) == "" {
		timezone = DefaultTimezone
	}

	unique := make([]time.Weekday, 0, len(weekdays))
	seen := make(map[time.Weekday]struct{}, len(weekdays))
	for _, day := range weekdays {
		if day < time.Sunday || day > time.Saturday {
			return nil, fmt.Errorf("%w: %d", ErrInvalidWeekday, int(day))
		}
		if _, ok := seen[day]; ok {
			continue
		}
		seen[day] = struct{}{}
		unique = append(unique, day)
	}
	slices.Sort(unique)

	reminderTime := fmt.Sprintf("%02d:00:00", hour)

	rows := make([]db.HabitScheduleRow, 0, len(unique))
	for _, day := range unique {
		rows = append(rows, db.HabitScheduleRow{
			HabitName:    name,
			DayOfWeek:    int(day),
			ReminderTime: reminderTime,
			Timezone:     timezone,
		})
	}

	return rows, nil
}

// HabitSelection 维护选择习惯向导中的待定集合
// Existing 为已持久化的习惯名称，Toggle/AddCustom 都统一以显式错误拒绝超额
type HabitSelection struct {
	existing map[string]struct{}
	pending  map[string]struct{}
}

// NewHabitSelection 以现有习惯名称初始化选择器
func NewHabitSelection(existingNames []string) *HabitSelection {
	existing := make(map[string]struct{}, len(existingNames))
	for _, name := range existingNames {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		existing[trimmed] = struct{}{}
	}
	return &HabitSelection{existing: existing, pending: make(map[string]struct{})}
}

// distinctCount 统计现有与待定习惯的去重总数
func (s *HabitSelection) distinctCount() int {
	count := len(s.existing)
	for name := range s.pending {
		if _, ok := s.existing[name]; !ok {
			count++
		}
	}
	return count
}

// Toggle 切换一个推荐习惯的选中状态；取消选中总是允许，
// 新增选中在达到上限时返回 ErrHabitCapacityExceeded。连续两次 Toggle 恢复原状。
func (s *HabitSelection) Toggle(habitName string) error {
	name, err := NormalizeHabitName(habitName)
	if err != nil {
		return err
	}

	if _, ok := s.pending[name]; ok {
		delete(s.pending, name)
		return nil
	}

	if _, ok := s.existing[name]; !ok && s.distinctCount() >= MaxDistinctHabits {
		return ErrHabitCapacityExceeded
	}

	s.pending[name] = struct{}{}
	return nil
}

// AddCustom 加入用户手动输入的习惯，与 Toggle 使用同一容量校验
func (s *HabitSelection) AddCustom(habitName string) error {
	return s.Toggle(habitName)
}

// Selected 返回当前待定习惯名称，按字典序排序
func (s *HabitSelection) Selected() []string {
	names := make([]string, 0, len(s.pending))
	for name := range s.pending {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ExistingHabitNames 返回用户当前持有的去重习惯名称
func (s *ScheduleService) ExistingHabitNames(userID uint) ([]string, error) {
	var names []string
	if err := s.db.Model(&db.HabitScheduleRow{}).
		Distinct("habit_name").
		Where("user_id = ?", userID).
		Order("habit_name ASC").
		Pluck("habit_name", &names).Error; err != nil {
		return nil, fmt.Errorf("list habit names: %w", err)
	}
	return names, nil
}

// CreateHabitSchedule 展开排期行并持久化，同时写入追踪配置。
// 新习惯会先做容量校验；同名习惯重复提交按 upsert 处理，保证重试收敛。
func (s *ScheduleService) CreateHabitSchedule(userID uint, input HabitScheduleInput) ([]db.HabitScheduleRow, error) {
	rows, err := BuildReminderRows(input.HabitName, input.Weekdays, input.TimeBucket, input.Timezone)
	if err != nil {
		return nil, err
	}

	existing, err := s.ExistingHabitNames(userID)
	if err != nil {
		return nil, err
	}

	name := rows[0].HabitName
	if !slices.Contains(existing, name) && len(existing) >= MaxDistinctHabits {
		return nil, ErrHabitCapacityExceeded
	}

	for i := range rows {
		rows[i].UserID = userID
		rows[i].ChallengeSlug = strings.TrimSpace(input.ChallengeSlug)
	}

	if err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "habit_name"}, {Name: "day_of_week"}},
		DoUpdates: clause.AssignmentColumns([]string{"reminder_time", "timezone", "challenge_slug", "updated_at"}),
	}).Create(&rows).Error; err != nil {
		return nil, fmt.Errorf("upsert habit schedule rows: %w", err)
	}

	config := db.TrackingConfig{
		UserID:           userID,
		HabitName:        name,
		ChallengeSlug:    strings.TrimSpace(input.ChallengeSlug),
		RemindersEnabled: true,
	}
	if err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "habit_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"challenge_slug", "reminders_enabled", "updated_at"}),
	}).Create(&config).Error; err != nil {
		return nil, fmt.Errorf("upsert tracking config: %w", err)
	}

	return rows, nil
}

// ListSchedules 返回用户的全部排期行，按习惯与星期排序
func (s *ScheduleService) ListSchedules(userID uint) ([]db.HabitScheduleRow, error) {
	var rows []db.HabitScheduleRow
	if err := s.db.Where("user_id = ?", userID).
		Order("habit_name ASC, day_of_week ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list habit schedule rows: %w", err)
	}
	return rows, nil
}

// DeleteHabit 删除某个习惯的全部排期行与追踪配置，行不存在时为空操作。
// 物理删除，避免软删除残留占用唯一索引导致同名习惯无法重建。
func (s *ScheduleService) DeleteHabit(userID uint, habitName string) error {
	name := strings.TrimSpace(habitName)
	if name == "" {
		return ErrHabitNameRequired
	}

	if err := s.db.Unscoped().
		Where("user_id = ? AND habit_name = ?", userID, name).
		Delete(&db.HabitScheduleRow{}).Error; err != nil {
		return fmt.Errorf("delete habit schedule rows: %w", err)
	}

	if err := s.db.Unscoped().
		Where("user_id = ? AND habit_name = ?", userID, name).
		Delete(&db.TrackingConfig{}).Error; err != nil {
		return fmt.Errorf("delete tracking config: %w", err)
	}

	return nil
}
