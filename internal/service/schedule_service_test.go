package service

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/habitloop/internal/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupScheduleTestDB(t *testing.T) func() {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := gdb.AutoMigrate(&db.HabitScheduleRow{}, &db.TrackingConfig{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	db.DB = gdb

	return func() {
		sqlDB, err := db.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}

func TestBuildReminderRows(t *testing.T) {
	rows, err := BuildReminderRows("Walk 10 minutes", []time.Weekday{time.Monday, time.Wednesday, time.Friday}, "early-morning", "America/Chicago")
	if err != nil {
		t.Fatalf("BuildReminderRows returned error: %v", err)
	}

	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}

	wantDays := []int{int(time.Monday), int(time.Wednesday), int(time.Friday)}
	for i, row := range rows {
		if row.DayOfWeek != wantDays[i] {
			t.Fatalf("row %d: expected day %d, got %d", i, wantDays[i], row.DayOfWeek)
		}
		if row.ReminderTime != "06:00:00" {
			t.Fatalf("row %d: expected reminder time 06:00:00, got %s", i, row.ReminderTime)
		}
		if row.Timezone != "America/Chicago" {
			t.Fatalf("row %d: expected timezone America/Chicago, got %s", i, row.Timezone)
		}
		if row.HabitName != "Walk 10 minutes" {
			t.Fatalf("row %d: unexpected habit name %s", i, row.HabitName)
		}
	}
}

func TestBuildReminderRowsDefaults(t *testing.T) {
	rows, err := BuildReminderRows("晨跑", []time.Weekday{time.Sunday}, "", "")
	if err != nil {
		t.Fatalf("BuildReminderRows returned error: %v", err)
	}

	if rows[0].ReminderTime != "08:00:00" {
		t.Fatalf("expected default mid-morning time 08:00:00, got %s", rows[0].ReminderTime)
	}
	if rows[0].Timezone != DefaultTimezone {
		t.Fatalf("expected default timezone %s, got %s", DefaultTimezone, rows[0].Timezone)
	}
	if rows[0].DayOfWeek != 0 {
		t.Fatalf("expected Sunday to map to 0, got %d", rows[0].DayOfWeek)
	}
}

func TestBuildReminderRowsDeduplicatesWeekdays(t *testing.T) {
	rows, err := BuildReminderRows("阅读", []time.Weekday{time.Friday, time.Monday, time.Friday}, "bedtime", "")
	if err != nil {
		t.Fatalf("BuildReminderRows returned error: %v", err)
	}

	if len(rows) != 2 {
		t.Fatalf("expected 2 rows after dedupe, got %d", len(rows))
	}
	if rows[0].DayOfWeek != int(time.Monday) || rows[1].DayOfWeek != int(time.Friday) {
		t.Fatalf("expected sorted days [1 5], got [%d %d]", rows[0].DayOfWeek, rows[1].DayOfWeek)
	}
}

func TestBuildReminderRowsValidation(t *testing.T) {
	if _, err := BuildReminderRows("晨跑", nil, "", ""); !errors.Is(err, ErrWeekdaysRequired) {
		t.Fatalf("expected ErrWeekdaysRequired, got %v", err)
	}

	if _, err := BuildReminderRows("   ", []time.Weekday{time.Monday}, "", ""); !errors.Is(err, ErrHabitNameRequired) {
		t.Fatalf("expected ErrHabitNameRequired, got %v", err)
	}

	long := strings.Repeat("很", 201)
	if _, err := BuildReminderRows(long, []time.Weekday{time.Monday}, "", ""); !errors.Is(err, ErrHabitNameTooLong) {
		t.Fatalf("expected ErrHabitNameTooLong, got %v", err)
	}

	if _, err := BuildReminderRows("晨跑", []time.Weekday{time.Weekday(7)}, "", ""); !errors.Is(err, ErrInvalidWeekday) {
		t.Fatalf("expected ErrInvalidWeekday, got %v", err)
	}

	if _, err := BuildReminderRows("晨跑", []time.Weekday{time.Monday}, "midnight", ""); !errors.Is(err, ErrUnknownTimeBucket) {
		t.Fatalf("expected ErrUnknownTimeBucket, got %v", err)
	}
}

func TestNormalizeHabitNameStripsHTML(t *testing.T) {
	name, err := NormalizeHabitName("  <b>晨跑</b> ")
	if err != nil {
		t.Fatalf("NormalizeHabitName returned error: %v", err)
	}
	if name != "晨跑" {
		t.Fatalf("expected sanitized name 晨跑, got %q", name)
	}
}

func TestHabitSelectionCapacity(t *testing.T) {
	sel := NewHabitSelection([]string{"晨跑", "阅读"})

	if err := sel.Toggle("冥想"); err != nil {
		t.Fatalf("third habit should be allowed: %v", err)
	}

	// 已到上限，新增被显式拒绝
	if err := sel.Toggle("早睡"); !errors.Is(err, ErrHabitCapacityExceeded) {
		t.Fatalf("expected ErrHabitCapacityExceeded, got %v", err)
	}
	if err := sel.AddCustom("早睡"); !errors.Is(err, ErrHabitCapacityExceeded) {
		t.Fatalf("expected ErrHabitCapacityExceeded for custom add, got %v", err)
	}

	// 已有习惯重复选中不占新名额
	if err := sel.Toggle("晨跑"); err != nil {
		t.Fatalf("existing habit should be toggleable: %v", err)
	}
}

func TestHabitSelectionToggleIsReversible(t *testing.T) {
	sel := NewHabitSelection(nil)

	if err := sel.Toggle("晨跑"); err != nil {
		t.Fatalf("Toggle returned error: %v", err)
	}
	if err := sel.Toggle("晨跑"); err != nil {
		t.Fatalf("second Toggle returned error: %v", err)
	}

	if selected := sel.Selected(); len(selected) != 0 {
		t.Fatalf("expected empty pending set after double toggle, got %v", selected)
	}
}

func TestCreateHabitScheduleCapacity(t *testing.T) {
	cleanup := setupScheduleTestDB(t)
	defer cleanup()

	svc := NewScheduleService(db.DB)

	for _, name := range []string{"晨跑", "阅读", "冥想"} {
		if _, err := svc.CreateHabitSchedule(1, HabitScheduleInput{
			HabitName: name,
			Weekdays:  []time.Weekday{time.Monday},
		}); err != nil {
			t.Fatalf("CreateHabitSchedule(%s) returned error: %v", name, err)
		}
	}

	// 第 4 个不同习惯触发容量校验，且不产生任何写入
	if _, err := svc.CreateHabitSchedule(1, HabitScheduleInput{
		HabitName: "早睡",
		Weekdays:  []time.Weekday{time.Monday},
	}); !errors.Is(err, ErrHabitCapacityExceeded) {
		t.Fatalf("expected ErrHabitCapacityExceeded, got %v", err)
	}

	var count int64
	if err := db.DB.Model(&db.HabitScheduleRow{}).Where("habit_name = ?", "早睡").Count(&count).Error; err != nil {
		t.Fatalf("count returned error: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected zero rows for rejected habit, got %d", count)
	}

	// 同名习惯重复提交按 upsert 处理，不触发容量校验
	if _, err := svc.CreateHabitSchedule(1, HabitScheduleInput{
		HabitName:  "晨跑",
		Weekdays:   []time.Weekday{time.Monday, time.Tuesday},
		TimeBucket: "bedtime",
	}); err != nil {
		t.Fatalf("resubmitting existing habit returned error: %v", err)
	}
}

func TestDeleteHabitIsIdempotent(t *testing.T) {
	cleanup := setupScheduleTestDB(t)
	defer cleanup()

	svc := NewScheduleService(db.DB)

	if _, err := svc.CreateHabitSchedule(1, HabitScheduleInput{
		HabitName: "晨跑",
		Weekdays:  []time.Weekday{time.Monday, time.Friday},
	}); err != nil {
		t.Fatalf("CreateHabitSchedule returned error: %v", err)
	}

	if err := svc.DeleteHabit(1, "晨跑"); err != nil {
		t.Fatalf("DeleteHabit returned error: %v", err)
	}
	if err := svc.DeleteHabit(1, "晨跑"); err != nil {
		t.Fatalf("second DeleteHabit returned error: %v", err)
	}

	names, err := svc.ExistingHabitNames(1)
	if err != nil {
		t.Fatalf("ExistingHabitNames returned error: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("expected no habit names after delete, got %v", names)
	}
}
