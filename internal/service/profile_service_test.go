package service

import (
	"errors"
	"testing"

	"github.com/habitloop/internal/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupProfileTestDB(t *testing.T) (*ProfileService, func()) {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := gdb.AutoMigrate(&db.User{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	db.DB = gdb

	return NewProfileService(gdb), func() {
		sqlDB, err := db.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}

func TestTimezoneFallsBackToDefault(t *testing.T) {
	svc, cleanup := setupProfileTestDB(t)
	defer cleanup()

	// 用户不存在时回退默认时区，不报错
	tz, err := svc.Timezone(9999)
	if err != nil {
		t.Fatalf("Timezone returned error: %v", err)
	}
	if tz != DefaultTimezone {
		t.Fatalf("expected default timezone %s, got %s", DefaultTimezone, tz)
	}

	user := db.User{Username: "tz-empty", Password: "x"}
	if err := db.DB.Create(&user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	tz, err = svc.Timezone(user.ID)
	if err != nil {
		t.Fatalf("Timezone returned error: %v", err)
	}
	if tz != DefaultTimezone {
		t.Fatalf("expected default timezone for empty field, got %s", tz)
	}
}

func TestUpdateTimezone(t *testing.T) {
	svc, cleanup := setupProfileTestDB(t)
	defer cleanup()

	user := db.User{Username: "tz-update", Password: "x"}
	if err := db.DB.Create(&user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	if err := svc.UpdateTimezone(user.ID, "Asia/Shanghai"); err != nil {
		t.Fatalf("UpdateTimezone returned error: %v", err)
	}

	tz, err := svc.Timezone(user.ID)
	if err != nil {
		t.Fatalf("Timezone returned error: %v", err)
	}
	if tz != "Asia/Shanghai" {
		t.Fatalf("expected Asia/Shanghai, got %s", tz)
	}
}

func TestUpdateTimezoneRejectsInvalid(t *testing.T) {
	svc, cleanup := setupProfileTestDB(t)
	defer cleanup()

	for _, bad := range []string{"", "   ", "Mars/Olympus"} {
		err := svc.UpdateTimezone(1, bad)
		if !errors.Is(err, ErrInvalidTimezone) {
			t.Fatalf("timezone %q: expected ErrInvalidTimezone, got %v", bad, err)
		}
	}
}
