package scheduling

import (
	"net/http"

	"tournament-scheduler/backend/internal/locks"
	"tournament-scheduler/backend/internal/models"
	"tournament-scheduler/backend/internal/schedule"

	"github.com/gin-gonic/gin"
)

// HandleCreateVersion creates a new draft schedule version for a tournament
func HandleCreateVersion(c *gin.Context, versionService *schedule.VersionService) {
	var req struct {
		Notes string `json:"notes"`
	}
	// body is optional; an empty draft request is fine
	_ = c.ShouldBindJSON(&req)

	version, err := versionService.CreateDraft(c.Param("id"), req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, version)
}

// HandleListVersions lists a tournament's schedule versions, newest first
func HandleListVersions(c *gin.Context, versionService *schedule.VersionService) {
	versions, err := versionService.List(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, versions)
}

// HandleGetVersion gets a schedule version by ID
func HandleGetVersion(c *gin.Context, versionService *schedule.VersionService) {
	version, err := versionService.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, version)
}

// HandleResetVersion empties a draft version under its advisory lock
func HandleResetVersion(
	c *gin.Context,
	versionService *schedule.VersionService,
	lockManager *locks.LockManager,
	notify func(eventType, tournamentID, versionID string),
) {
	versionID := c.Param("id")

	var result *schedule.ResetResult
	err := lockManager.WithVersionLock(c.Request.Context(), versionID, func() error {
		var runErr error
		result, runErr = versionService.Reset(versionID)
		return runErr
	})
	if err != nil {
		respondError(c, err)
		return
	}

	if version, err := versionService.Get(versionID); err == nil {
		notify("version_reset", version.TournamentID, versionID)
	}
	c.JSON(http.StatusOK, result)
}

// HandleFinalizeVersion runs the sanity checks and marks the version final
func HandleFinalizeVersion(
	c *gin.Context,
	versionService *schedule.VersionService,
	lockManager *locks.LockManager,
	notify func(eventType, tournamentID, versionID string),
) {
	versionID := c.Param("id")

	var version *models.ScheduleVersion
	err := lockManager.WithVersionLock(c.Request.Context(), versionID, func() error {
		v, runErr := versionService.Finalize(versionID)
		if runErr != nil {
			return runErr
		}
		version = v
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}

	notify("version_finalized", version.TournamentID, version.ID)
	c.JSON(http.StatusOK, version)
}

// HandleCloneVersion deep-copies a finalized version into a new draft
func HandleCloneVersion(c *gin.Context, versionService *schedule.VersionService) {
	result, err := versionService.CloneToDraft(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}
