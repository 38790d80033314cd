package scheduling

import (
	"net/http"

	"tournament-scheduler/backend/internal/models"
	"tournament-scheduler/backend/internal/schedule"
	"tournament-scheduler/backend/internal/validation"

	"github.com/gin-gonic/gin"
)

// HandleCreateTournament creates a tournament with its playable days
func HandleCreateTournament(c *gin.Context, scheduleService *schedule.Service) {
	var req models.CreateTournamentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	if err := validation.ValidateTournamentName(req.Name); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tournament, err := scheduleService.CreateTournament(req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, tournament)
}

// HandleListTournaments lists all tournaments
func HandleListTournaments(c *gin.Context, scheduleService *schedule.Service) {
	tournaments, err := scheduleService.ListTournaments()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tournaments)
}

// HandleGetTournament gets a tournament by ID
func HandleGetTournament(c *gin.Context, scheduleService *schedule.Service) {
	tournament, err := scheduleService.GetTournament(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tournament)
}

// HandleListDays lists a tournament's playable days in date order
func HandleListDays(c *gin.Context, scheduleService *schedule.Service) {
	days, err := scheduleService.ListDays(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, days)
}

// HandleGetPlanReport builds the tournament-wide plan report. An optional
// version_id query feeds slot supply into the capacity hints.
func HandleGetPlanReport(c *gin.Context, planValidator *schedule.PlanValidator) {
	report, err := planValidator.GetPlanReport(c.Param("id"), c.Query("version_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
