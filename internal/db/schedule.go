package db

import "gorm.io/gorm"

// HabitScheduleRow 表示一条 (习惯, 星期几) 的提醒排期
// DayOfWeek 采用 0-6 且周日为 0 的约定（与 time.Weekday 一致），
// 下游提醒派发方按此约定消费，禁止按 ISO 周一为 0 重新解释
// ReminderTime 固定为零填充的 "HH:00:00" 字符串
// ChallengeSlug 为空表示个人习惯，非空表示由对应挑战创建，取消挑战时级联删除
type HabitScheduleRow struct {
	gorm.Model
	UserID        uint   `gorm:"index;index:idx_habit_schedule_unique,unique;not null"`
	HabitName     string `gorm:"size:200;index:idx_habit_schedule_unique,unique;not null"`
	DayOfWeek     int    `gorm:"index:idx_habit_schedule_unique,unique;not null"`
	ReminderTime  string `gorm:"size:8;not null"`
	Timezone      string `gorm:"size:64;not null"`
	ChallengeSlug string `gorm:"size:80;index"`
}

// TableName 返回自定义表名
func (HabitScheduleRow) TableName() string {
	return "habit_schedule_rows"
}

// TrackingConfig 保存单个习惯的打卡追踪开关
// 与排期行共用 ChallengeSlug 标记，取消挑战时一并删除
type TrackingConfig struct {
	gorm.Model
	UserID           uint   `gorm:"index;index:idx_tracking_config_unique,unique;not null"`
	HabitName        string `gorm:"size:200;index:idx_tracking_config_unique,unique;not null"`
	ChallengeSlug    string `gorm:"size:80;index"`
	RemindersEnabled bool   `gorm:"default:true"`
}

// TableName 返回自定义表名
func (TrackingConfig) TableName() string {
	return "tracking_configs"
}
