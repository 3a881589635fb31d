package handler

import (
	"github.com/habitloop/internal/service"
	"gorm.io/gorm"
)

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db         *gorm.DB
	challenges *service.ChallengeService
	schedules  *service.ScheduleService
	profiles   *service.ProfileService
}

// NewAPI constructs a handler set with shared services.
func NewAPI(db *gorm.DB) *API {
	return &API{
		db:         db,
		challenges: service.NewChallengeService(db),
		schedules:  service.NewScheduleService(db),
		profiles:   service.NewProfileService(db),
	}
}

// DB exposes the underlying gorm instance for legacy paths.
func (a *API) DB() *gorm.DB {
	return a.db
}
