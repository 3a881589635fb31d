package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/habitloop/internal/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) (*API, func()) {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := gdb.AutoMigrate(&db.User{}, &db.ChallengeEnrollment{}, &db.ChallengeHabitLog{}, &db.HabitScheduleRow{}, &db.TrackingConfig{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	db.DB = gdb

	return NewAPI(gdb), func() {
		sqlDB, err := db.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}

func seedEnrollment(t *testing.T, counter int) db.ChallengeEnrollment {
	t.Helper()
	start := time.Now().AddDate(0, 0, -1)
	enrollment := db.ChallengeEnrollment{
		PublicID:           "test-enrollment-id",
		UserID:             1,
		ChallengeSlug:      "foundations-4week",
		Status:             db.EnrollmentStatusActive,
		CurrentWeekCounter: counter,
		Week1StartDate:     &start,
	}
	if err := db.DB.Create(&enrollment).Error; err != nil {
		t.Fatalf("failed to seed enrollment: %v", err)
	}
	return enrollment
}

func TestGetChallengeDefinition(t *testing.T) {
	api, cleanup := setupTestDB(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/api/challenges/foundations-4week", nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Params = gin.Params{gin.Param{Key: "slug", Value: "foundations-4week"}}

	api.GetChallengeDefinition(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var payload struct {
		TotalWeeks int `json:"total_weeks"`
		FocusAreas []struct {
			Slug            string `json:"slug"`
			DescriptionHTML string `json:"description_html"`
		} `json:"focus_areas"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if payload.TotalWeeks != 4 {
		t.Fatalf("expected 4 total weeks, got %d", payload.TotalWeeks)
	}
	if len(payload.FocusAreas) != 4 {
		t.Fatalf("expected 4 focus areas, got %d", len(payload.FocusAreas))
	}
	if payload.FocusAreas[0].DescriptionHTML == "" {
		t.Fatal("expected rendered focus area description")
	}
}

func TestGetChallengeDefinitionUnknownSlug(t *testing.T) {
	api, cleanup := setupTestDB(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/api/challenges/nonexistent", nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Params = gin.Params{gin.Param{Key: "slug", Value: "nonexistent"}}

	api.GetChallengeDefinition(c)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", w.Code)
	}
}

func TestAdvanceWeekAtFinalWeekReturnsConflict(t *testing.T) {
	api, cleanup := setupTestDB(t)
	defer cleanup()

	enrollment := seedEnrollment(t, 4)

	req := httptest.NewRequest(http.MethodPost, "/api/challenge/"+enrollment.PublicID+"/advance", nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Params = gin.Params{gin.Param{Key: "id", Value: enrollment.PublicID}}

	api.AdvanceWeek(c)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", w.Code)
	}

	var payload struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload.Code != "at_final_week" {
		t.Fatalf("expected code at_final_week, got %q", payload.Code)
	}
}

func TestAdvanceWeekUnknownEnrollment(t *testing.T) {
	api, cleanup := setupTestDB(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodPost, "/api/challenge/missing/advance", nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Params = gin.Params{gin.Param{Key: "id", Value: "missing"}}

	api.AdvanceWeek(c)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", w.Code)
	}
}

func TestLogWeeklyHabitInvalidWeek(t *testing.T) {
	api, cleanup := setupTestDB(t)
	defer cleanup()

	enrollment := seedEnrollment(t, 1)

	body, _ := json.Marshal(map[string]any{
		"week_number":     5,
		"focus_area_slug": "sleep",
		"habit_name":      "早睡",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/challenge/"+enrollment.PublicID+"/log", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Params = gin.Params{gin.Param{Key: "id", Value: enrollment.PublicID}}

	api.LogWeeklyHabit(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
}
