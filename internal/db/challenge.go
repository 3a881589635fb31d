package db

import (
	"time"

	"gorm.io/gorm"
)

// 挑战报名状态，只允许 active → completed / abandoned 的单向流转
const (
	EnrollmentStatusActive    = "active"
	EnrollmentStatusCompleted = "completed"
	EnrollmentStatusAbandoned = "abandoned"
)

// ChallengeEnrollment 记录用户参加一期 4 周挑战的进度
// Week1StartDate 为推迟到的周一开赛日，当前周数始终基于它实时推算
// CurrentWeekCounter 是迁移前遗留的周数计数器，仅在缺少开赛日时兜底
// FocusAreaOrder 保存用户自定义的主题顺序（JSON 数组），为空表示使用默认顺序
// SurveyScores 保存报名时按主题填写的自评分（JSON 对象）
type ChallengeEnrollment struct {
	gorm.Model
	PublicID           string `gorm:"size:36;uniqueIndex;not null"`
	UserID             uint   `gorm:"index;not null"`
	ChallengeSlug      string `gorm:"size:80;index;not null"`
	Status             string `gorm:"size:20;index;not null;default:active"`
	CurrentWeekCounter int    `gorm:"default:0"`
	Week1StartDate     *time.Time
	FocusAreaOrder     string `gorm:"size:512"`
	SurveyScores       string `gorm:"size:1024"`
	FinalReflection    string `gorm:"size:2000"`
	CompletedAt        *time.Time
}

// TableName 返回自定义表名
func (ChallengeEnrollment) TableName() string {
	return "challenge_enrollments"
}

// ChallengeHabitLog 记录每周选定的习惯，追加写入
// EnrollmentID + WeekNumber 采用唯一索引，保证每周至多一条且重复提交幂等
type ChallengeHabitLog struct {
	gorm.Model
	EnrollmentID  uint      `gorm:"index;index:idx_challenge_habit_log_unique,unique;not null"`
	WeekNumber    int       `gorm:"index:idx_challenge_habit_log_unique,unique;not null"`
	FocusAreaSlug string    `gorm:"size:80;not null"`
	HabitName     string    `gorm:"size:200;not null"`
	LoggedAt      time.Time `gorm:"not null"`
}

// TableName 返回自定义表名
func (ChallengeHabitLog) TableName() string {
	return "challenge_habit_logs"
}
