package main

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/habitloop/internal/config"
	"github.com/habitloop/internal/db"
	"github.com/habitloop/internal/service"
	"golang.org/x/crypto/bcrypt"
)

// 测试数据生成器：创建一个演示用户、一条已进行两周的报名和若干习惯排期
func main() {
	// 初始化数据库
	cfg := config.Load()
	if err := db.Init(cfg.DatabasePath); err != nil {
		log.Fatal("数据库初始化失败:", err)
	}

	user, err := ensureDemoUser(cfg.DefaultTimezone)
	if err != nil {
		log.Fatal("创建演示用户失败:", err)
	}

	enrollment, err := ensureDemoEnrollment(user.ID)
	if err != nil {
		log.Fatal("创建演示报名失败:", err)
	}

	if err := seedDemoHabits(user.ID); err != nil {
		log.Fatal("创建演示习惯失败:", err)
	}

	week := service.EffectiveWeek(enrollment, time.Now())
	fmt.Printf("演示数据就绪：用户 demo / demo123，报名 %s 当前第 %d 周\n", enrollment.PublicID, week)
}

func ensureDemoUser(timezone string) (*db.User, error) {
	var user db.User
	if err := db.DB.Where("username = ?", "demo").First(&user).Error; err == nil {
		return &user, nil
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte("demo123"), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user = db.User{Username: "demo", Password: string(hashed), Timezone: timezone}
	if err := db.DB.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func ensureDemoEnrollment(userID uint) (*db.ChallengeEnrollment, error) {
	svc := service.NewChallengeService(db.DB)
	if enrollment, err := svc.ActiveEnrollment(userID); err == nil {
		return enrollment, nil
	}

	// 开赛日回拨 8 天，让演示账号处于第 2 周
	start := service.NextMonday(time.Now().AddDate(0, 0, -15))
	enrollment := db.ChallengeEnrollment{
		PublicID:       uuid.NewString(),
		UserID:         userID,
		ChallengeSlug:  "foundations-4week",
		Status:         db.EnrollmentStatusActive,
		Week1StartDate: &start,
		SurveyScores:   `{"sleep":2,"movement":3,"nutrition":3,"stress":2}`,
	}
	if err := db.DB.Create(&enrollment).Error; err != nil {
		return nil, err
	}

	if _, err := svc.LogWeeklyHabit(enrollment.PublicID, 1, "sleep", "23 点前上床"); err != nil {
		return nil, err
	}

	return &enrollment, nil
}

func seedDemoHabits(userID uint) error {
	svc := service.NewScheduleService(db.DB)

	inputs := []service.HabitScheduleInput{
		{
			HabitName:     "23 点前上床",
			Weekdays:      []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
			TimeBucket:    "bedtime",
			ChallengeSlug: "foundations-4week",
		},
		{
			HabitName:  "晨跑",
			Weekdays:   []time.Weekday{time.Saturday, time.Sunday},
			TimeBucket: "early-morning",
		},
	}

	for _, input := range inputs {
		if _, err := svc.CreateHabitSchedule(userID, input); err != nil {
			return err
		}
	}
	return nil
}
