package scheduling

import (
	"errors"
	"net/http"

	"tournament-scheduler/backend/internal/locks"
	"tournament-scheduler/backend/internal/schedule"

	"github.com/gin-gonic/gin"
)

// statusForCode maps stable core error codes to HTTP statuses. The core
// never picks statuses itself.
func statusForCode(code string) int {
	switch code {
	case schedule.CodeNotFound:
		return http.StatusNotFound
	case schedule.CodeVersionNotDraft, schedule.CodeSourceVersionNotFinal:
		// lifecycle-state refusals are contract violations, not conflicts
		return http.StatusBadRequest
	case schedule.CodeDuplicateEdge, schedule.CodeAssignmentOverlap:
		return http.StatusConflict
	case schedule.CodeLockTimeout:
		return http.StatusServiceUnavailable
	case schedule.CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// respondError writes the coded error envelope. Lock failures surface as
// LOCK_TIMEOUT so clients can retry.
func respondError(c *gin.Context, err error) {
	if errors.Is(err, locks.ErrLockTimeout) || errors.Is(err, locks.ErrLockAlreadyHeld) {
		coded := schedule.NewError(schedule.CodeLockTimeout, "schedule version is locked by another operation")
		c.JSON(statusForCode(coded.Code), gin.H{"error": coded})
		return
	}
	coded := schedule.AsError(err)
	c.JSON(statusForCode(coded.Code), gin.H{"error": coded})
}
