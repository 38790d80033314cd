package scheduling

import (
	"net/http"
	"strconv"

	"tournament-scheduler/backend/internal/models"
	"tournament-scheduler/backend/internal/schedule"
	"tournament-scheduler/backend/internal/validation"

	"github.com/gin-gonic/gin"
)

// HandleCreateEvent creates an event with its draw plan under a tournament
func HandleCreateEvent(c *gin.Context, scheduleService *schedule.Service) {
	var req models.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	if err := validation.ValidateEventName(req.Name); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	event, err := scheduleService.CreateEvent(c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, event)
}

// HandleListEvents lists a tournament's events in creation order
func HandleListEvents(c *gin.Context, scheduleService *schedule.Service) {
	events, err := scheduleService.ListEvents(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

// HandleGetEvent gets an event by ID
func HandleGetEvent(c *gin.Context, scheduleService *schedule.Service) {
	event, err := scheduleService.GetEvent(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, event)
}

// HandleUpdateDrawStatus moves an event's draw lifecycle marker
func HandleUpdateDrawStatus(c *gin.Context, scheduleService *schedule.Service) {
	var req struct {
		DrawStatus string `json:"draw_status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	event, err := scheduleService.UpdateEventDrawStatus(c.Param("id"), req.DrawStatus)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, event)
}

// HandleAddTeam registers a team on an event
func HandleAddTeam(c *gin.Context, scheduleService *schedule.Service) {
	var req models.AddTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	if err := validation.ValidateTeamName(req.Name); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	team, err := scheduleService.AddTeam(c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, team)
}

// HandleListTeams lists an event's teams in canonical order
func HandleListTeams(c *gin.Context, scheduleService *schedule.Service) {
	teams, err := scheduleService.ListTeams(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, teams)
}

// HandleRemoveTeam deletes a team and its avoid edges
func HandleRemoveTeam(c *gin.Context, scheduleService *schedule.Service) {
	teamID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid team id"})
		return
	}

	if err := scheduleService.RemoveTeam(teamID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted", "team_id": teamID})
}

// HandleAddAvoidEdge creates one avoid edge between two teams of an event
func HandleAddAvoidEdge(c *gin.Context, scheduleService *schedule.Service) {
	var pair models.AvoidEdgePair
	if err := c.ShouldBindJSON(&pair); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	edge, err := scheduleService.AddAvoidEdge(c.Param("id"), pair)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, edge)
}

// HandleAddAvoidEdgesBulk creates edges from explicit pairs and link groups.
// ?dry_run=true validates and reports without persisting.
func HandleAddAvoidEdgesBulk(c *gin.Context, scheduleService *schedule.Service) {
	var req models.BulkAvoidEdgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	dryRun := c.Query("dry_run") == "true"
	result, err := scheduleService.AddAvoidEdgesBulk(c.Param("id"), req, dryRun)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// HandleListAvoidEdges lists an event's edges in canonical pair order
func HandleListAvoidEdges(c *gin.Context, scheduleService *schedule.Service) {
	edges, err := scheduleService.ListAvoidEdges(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, edges)
}

// HandleRemoveAvoidEdge deletes one edge by ID
func HandleRemoveAvoidEdge(c *gin.Context, scheduleService *schedule.Service) {
	edgeID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid edge id"})
		return
	}

	if err := scheduleService.RemoveAvoidEdge(edgeID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted", "edge_id": edgeID})
}
