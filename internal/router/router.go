package router

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/habitloop/internal/db"
	"github.com/habitloop/internal/handler"
)

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(sessionSecret string) *gin.Engine {
	r := gin.Default()

	// 配置会话中间件
	store := cookie.NewStore([]byte(sessionSecret))
	r.Use(sessions.Sessions("habitloop_session", store))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	api := handler.NewAPI(db.DB)

	r.POST("/login", handler.Login)
	r.GET("/logout", handler.Logout)

	// 需要登录的业务路由
	auth := r.Group("/api")
	auth.Use(handler.AuthRequired())
	{
		auth.GET("/challenges/:slug", api.GetChallengeDefinition)

		auth.GET("/challenge", api.GetActiveChallenge)
		auth.GET("/challenge/completed", api.ListCompletedChallenges)
		auth.POST("/challenge", api.StartChallenge)
		auth.POST("/challenge/:id/advance", api.AdvanceWeek)
		auth.POST("/challenge/:id/complete", api.CompleteChallenge)
		auth.POST("/challenge/:id/cancel", api.CancelChallenge)
		auth.POST("/challenge/:id/log", api.LogWeeklyHabit)
		auth.PUT("/challenge/:id/focus-order", api.ReorderFocusAreas)

		auth.GET("/habits", api.ListHabits)
		auth.POST("/habits", api.CreateHabit)
		auth.DELETE("/habits/:name", api.DeleteHabit)
	}

	return r
}
