package server

import (
	"errors"
	"net/http"

	"modelarena/internal/core"

	"github.com/gin-gonic/gin"
)

// errorMapping ties a sentinel error to its HTTP status and machine-readable code.
// The first match wins.
var errorMapping = []struct {
	err    error
	status int
	code   string
}{
	{core.ErrBattleNotFound, http.StatusNotFound, "battle_not_found"},
	{core.ErrInvalidChoice, http.StatusBadRequest, "invalid_choice"},
	{core.ErrNotEnoughModels, http.StatusBadRequest, "not_enough_models"},
	{core.ErrUnknownModel, http.StatusBadRequest, "unknown_model"},
	{core.ErrEmptyPrompt, http.StatusBadRequest, "empty_prompt"},
	{core.ErrPromptTooLong, http.StatusBadRequest, "prompt_too_long"},
	{core.ErrStaleVote, http.StatusConflict, "stale_vote"},
	{core.ErrStaleWrite, http.StatusConflict, "stale_write"},
	{core.ErrBattleFailed, http.StatusConflict, "battle_failed"},
	{core.ErrBattleCompleted, http.StatusConflict, "battle_completed"},
	{core.ErrResponsesPending, http.StatusConflict, "responses_pending"},
	{core.ErrBackendsUnavailable, http.StatusServiceUnavailable, "backends_unavailable"},
	{core.ErrInvariantViolation, http.StatusInternalServerError, "invariant_violation"},
}

// statusForError returns the HTTP status and code for err.
func statusForError(err error) (int, string) {
	for _, m := range errorMapping {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

// respondWithError writes {"error", "code"}. Unmapped errors are logged and
// reported without detail.
func (s *Server) respondWithError(c *gin.Context, err error) {
	status, code := statusForError(err)
	message := err.Error()
	if code == "internal_error" {
		s.config.Logger.Error("Request %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
		message = "internal server error"
	}
	c.JSON(status, gin.H{"error": message, "code": code})
}

func respondWithBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message, "code": "invalid_request"})
}
