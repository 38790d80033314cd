package scheduling

import (
	"net/http"

	"tournament-scheduler/backend/internal/locks"
	"tournament-scheduler/backend/internal/middleware"
	"tournament-scheduler/backend/internal/models"
	"tournament-scheduler/backend/internal/schedule"

	"github.com/gin-gonic/gin"
)

// HandleGenerateSlots generates the slot supply of a draft version, either
// from the tournament's day grid or from explicit manual ranges.
func HandleGenerateSlots(
	c *gin.Context,
	slotGenerator *schedule.SlotGenerator,
	lockManager *locks.LockManager,
) {
	versionID := c.Param("id")

	var req models.GenerateSlotsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// an empty body means auto generation for this version
		req = models.GenerateSlotsRequest{}
	}
	req.ScheduleVersionID = versionID

	var result *schedule.SlotResult
	err := lockManager.WithVersionLock(c.Request.Context(), versionID, func() error {
		var runErr error
		result, runErr = slotGenerator.Generate(req)
		return runErr
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// HandleListSlots lists a version's active slots in canonical read order
func HandleListSlots(c *gin.Context, slotGenerator *schedule.SlotGenerator) {
	slots, err := slotGenerator.ListSlots(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, slots)
}

// HandleGenerateMatches regenerates the match inventory of a draft version,
// for one event or for every event of the tournament.
func HandleGenerateMatches(
	c *gin.Context,
	inventoryGenerator *schedule.InventoryGenerator,
	versionService *schedule.VersionService,
	scheduleService *schedule.Service,
	lockManager *locks.LockManager,
) {
	versionID := c.Param("id")

	var req models.GenerateMatchesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		req = models.GenerateMatchesRequest{}
	}
	req.ScheduleVersionID = versionID

	version, err := versionService.Get(versionID)
	if err != nil {
		respondError(c, err)
		return
	}

	eventIDs := []string{req.EventID}
	if req.EventID == "" {
		events, err := scheduleService.ListEvents(version.TournamentID)
		if err != nil {
			respondError(c, err)
			return
		}
		eventIDs = eventIDs[:0]
		for _, event := range events {
			eventIDs = append(eventIDs, event.ID)
		}
	}

	results := make([]*schedule.InventoryResult, 0, len(eventIDs))
	err = lockManager.WithVersionLock(c.Request.Context(), versionID, func() error {
		for _, eventID := range eventIDs {
			result, runErr := inventoryGenerator.Generate(eventID, versionID, req.WipeExisting)
			if runErr != nil {
				return runErr
			}
			results = append(results, result)
		}
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedule_version_id": versionID, "events": results})
}

// HandleAssignGroups runs waterfall grouping for one event
func HandleAssignGroups(c *gin.Context, groupingEngine *schedule.GroupingEngine) {
	result, err := groupingEngine.AssignGroups(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// HandleInjectTeams replaces placeholders with registered teams on one
// event's matches of a draft version.
func HandleInjectTeams(c *gin.Context, injector *schedule.Injector, lockManager *locks.LockManager) {
	var req models.InjectTeamsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	var result *schedule.InjectionResult
	err := lockManager.WithVersionLock(c.Request.Context(), req.ScheduleVersionID, func() error {
		var runErr error
		result, runErr = injector.Inject(c.Param("id"), req.ScheduleVersionID, req.TeamOrderOverride)
		return runErr
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// HandleAutoAssign runs the rest-aware assignment engine for a draft version
func HandleAutoAssign(
	c *gin.Context,
	assignmentEngine *schedule.AssignmentEngine,
	lockManager *locks.LockManager,
) {
	versionID := c.Param("id")

	var req models.AutoAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		req = models.AutoAssignRequest{}
	}

	var outcome *schedule.AssignmentOutcome
	err := lockManager.WithVersionLock(c.Request.Context(), versionID, func() error {
		var runErr error
		outcome, runErr = assignmentEngine.AutoAssign(versionID, req)
		return runErr
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

// HandleBuild runs the full build pipeline for a tournament's draft version
// under its advisory lock. Builds are rate limited per user.
func HandleBuild(
	c *gin.Context,
	orchestrator *schedule.Orchestrator,
	lockManager *locks.LockManager,
	buildLimiter *middleware.BuildActionLimiter,
	notify func(eventType, tournamentID, versionID string),
) {
	tournamentID := c.Param("id")
	versionID := c.Param("version_id")

	if userID := c.GetString("user_id"); buildLimiter != nil && !buildLimiter.AllowBuild(userID) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many build runs. Please slow down."})
		return
	}

	var req models.BuildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		req = models.BuildRequest{}
	}

	var result *schedule.BuildResult
	err := lockManager.WithVersionLock(c.Request.Context(), versionID, func() error {
		var runErr error
		result, runErr = orchestrator.Build(tournamentID, versionID, req)
		return runErr
	})
	if err != nil {
		respondError(c, err)
		return
	}

	if !req.DryRun {
		notify("build_completed", tournamentID, versionID)
	}
	c.JSON(http.StatusOK, result)
}

// HandleGetGrid returns the day-by-court read model of a version
func HandleGetGrid(c *gin.Context, reporter *schedule.Reporter) {
	grid, err := reporter.Grid(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, grid)
}

// HandleGetConflicts returns the conflict and diagnostics report of a version
func HandleGetConflicts(c *gin.Context, reporter *schedule.Reporter) {
	report, err := reporter.Report(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
