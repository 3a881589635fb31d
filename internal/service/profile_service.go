package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/habitloop/internal/db"
	"gorm.io/gorm"
)

// ErrInvalidTimezone 在给定的时区标识无法加载时返回
var ErrInvalidTimezone = errors.New("invalid timezone")

// ProfileService 负责读取与维护用户资料中的排期相关字段
type ProfileService struct {
	db *gorm.DB
}

// NewProfileService 构造 ProfileService
func NewProfileService(gdb *gorm.DB) *ProfileService {
	return &ProfileService{db: gdb}
}

// Timezone 返回用户配置的 IANA 时区。
// 用户不存在或未配置时区时回退 DefaultTimezone，不视为错误。
func (s *ProfileService) Timezone(userID uint) (string, error) {
	var user db.User
	if err := s.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return DefaultTimezone, nil
		}
		return "", fmt.Errorf("get profile timezone: %w", err)
	}

	tz := strings.TrimSpace(user.Timezone)
	if tz == "" {
		return DefaultTimezone, nil
	}
	return tz, nil
}

// UpdateTimezone 校验并保存用户时区
func (s *ProfileService) UpdateTimezone(userID uint, timezone string) error {
	tz := strings.TrimSpace(timezone)
	if _, err := time.LoadLocation(tz); err != nil || tz == "" {
		return fmt.Errorf("%w: %s", ErrInvalidTimezone, timezone)
	}

	if err := s.db.Model(&db.User{}).
		Where("id = ?", userID).
		Update("timezone", tz).Error; err != nil {
		return fmt.Errorf("update profile timezone: %w", err)
	}
	return nil
}
