package server

import (
	"net/http"

	"modelarena/internal/core"

	"github.com/gin-gonic/gin"
)

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "storage_status": s.arena.StorageStatus()})
}

func (s *Server) getStatsData(c *gin.Context) {
	c.JSON(http.StatusOK, s.metricsService.Snapshot())
}

func (s *Server) listModels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"object": "list", "data": s.arena.Models()})
}

func (s *Server) startBattle(c *gin.Context) {
	var req core.StartBattleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithBadRequest(c, "invalid request body")
		return
	}

	resp, err := s.arena.StartBattle(c.Request.Context(), req.Prompt, req.Models)
	if err != nil {
		s.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (s *Server) battleStatus(c *gin.Context) {
	resp, err := s.arena.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) battleResponses(c *gin.Context) {
	resp, err := s.arena.GetResponses(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) vote(c *gin.Context) {
	var req core.VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithBadRequest(c, "invalid request body: choice and round are required")
		return
	}

	resp, err := s.arena.Vote(c.Request.Context(), c.Param("id"), req.Choice, *req.Round)
	if err != nil {
		s.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) deleteBattle(c *gin.Context) {
	if err := s.arena.DeleteBattle(c.Request.Context(), c.Param("id")); err != nil {
		s.respondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) leaderboard(c *gin.Context) {
	entries, err := s.arena.Leaderboard(c.Request.Context())
	if err != nil {
		s.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ratings": entries})
}
