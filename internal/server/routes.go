package server

import (
	"github.com/gin-gonic/gin"
)

func (s *Server) setupRoutes() {
	gin.SetMode(s.ginMode)
	s.router = gin.New()

	s.router.Use(gin.Logger())
	s.router.Use(gin.Recovery())
	s.router.Use(s.corsMiddleware())
	s.router.Use(s.maxBodySizeMiddleware())

	s.router.GET("/health", s.healthCheck)
	s.router.GET("/api/stats", s.getStatsData)

	api := s.router.Group("/v1")
	{
		api.GET("/models", s.listModels)

		battles := api.Group("/arena/battles")
		battles.POST("", s.startBattle)
		battles.GET("/:id", s.battleStatus)
		battles.GET("/:id/responses", s.battleResponses)
		battles.POST("/:id/votes", s.vote)
		battles.DELETE("/:id", s.deleteBattle)

		api.GET("/arena/ratings", s.leaderboard)
	}
}
