package main

import (
	"context"
	"log"
	"time"

	"tournament-scheduler/backend/internal/auth"
	"tournament-scheduler/backend/internal/db"
	"tournament-scheduler/backend/internal/locks"
	"tournament-scheduler/backend/internal/middleware"
	"tournament-scheduler/backend/internal/redis"
	"tournament-scheduler/backend/internal/schedule"
	"tournament-scheduler/backend/internal/server/handlers"
	"tournament-scheduler/backend/internal/server/scheduling"
	"tournament-scheduler/backend/internal/server/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Server holds all dependencies and configuration for the scheduler server
type Server struct {
	config Config
	db     *db.DB
	redis  *redis.Client

	// Services
	authService     *auth.Service
	scheduleService *schedule.Service
	versionService  *schedule.VersionService
	planValidator   *schedule.PlanValidator
	inventory       *schedule.InventoryGenerator
	grouping        *schedule.GroupingEngine
	injector        *schedule.Injector
	slots           *schedule.SlotGenerator
	assigner        *schedule.AssignmentEngine
	orchestrator    *schedule.Orchestrator
	reporter        *schedule.Reporter

	// Infrastructure
	lockManager  *locks.LockManager
	buildLimiter *middleware.BuildActionLimiter
	hub          *websocket.Hub
}

// NewServer creates and initializes a new Server instance
func NewServer(config Config) (*Server, error) {
	// Initialize database
	database, err := db.New(config.DBConfig)
	if err != nil {
		return nil, err
	}

	// Redis backs the advisory version locks. Without it the server still
	// runs, serializing nothing across instances.
	var lockManager *locks.LockManager
	redisClient, err := redis.New(config.RedisConfig)
	if err != nil {
		log.Printf("[REDIS] Unavailable, version locks disabled: %v", err)
		redisClient = nil
	} else {
		lockManager = locks.NewLockManager(redisClient.Client)
	}

	server := &Server{
		config:          config,
		db:              database,
		redis:           redisClient,
		authService:     auth.NewService(config.JWTSecret),
		scheduleService: schedule.NewService(database.DB),
		versionService:  schedule.NewVersionService(database.DB),
		planValidator:   schedule.NewPlanValidator(database.DB),
		inventory:       schedule.NewInventoryGenerator(database.DB),
		grouping:        schedule.NewGroupingEngine(database.DB),
		injector:        schedule.NewInjector(database.DB),
		slots:           schedule.NewSlotGenerator(database.DB),
		assigner:        schedule.NewAssignmentEngine(database.DB),
		orchestrator:    schedule.NewOrchestrator(database.DB),
		reporter:        schedule.NewReporter(database.DB),
		lockManager:     lockManager,
		buildLimiter:    middleware.NewBuildActionLimiter(),
		hub:             websocket.NewHub(),
	}

	if lockManager != nil {
		if _, err := lockManager.CleanupOrphanedLocks(context.Background()); err != nil {
			log.Printf("[LOCK] Startup orphan cleanup failed: %v", err)
		}
	}

	return server, nil
}

// notifyVersionEvent pushes one version lifecycle event to connected planners
func (s *Server) notifyVersionEvent(eventType, tournamentID, versionID string) {
	s.hub.NotifyVersionEvent(eventType, tournamentID, versionID)
}

// Run starts the server and blocks until it exits
func (s *Server) Run() error {
	// Set Gin mode based on environment
	if s.config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := s.setupRoutes()

	log.Printf("Server starting on port %s", s.config.ServerPort)
	return r.Run(":" + s.config.ServerPort)
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *gin.Engine {
	r := gin.Default()

	// Configure CORS
	corsConfig := cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return true // Allow all origins
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "X-Requested-With", "Accept", "Origin"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           86400 * time.Second,
	}
	r.Use(cors.New(corsConfig))

	// Public routes
	r.GET("/health", s.handleHealth)
	r.POST("/api/auth/register", func(c *gin.Context) { handlers.HandleRegister(c, s.db, s.authService) })
	r.POST("/api/auth/login", func(c *gin.Context) { handlers.HandleLogin(c, s.db, s.authService) })

	// Protected routes
	authorized := r.Group("/")
	authorized.Use(handlers.AuthMiddleware(s.authService))
	{
		authorized.GET("/api/user", func(c *gin.Context) { handlers.HandleGetCurrentUser(c, s.db) })

		// Tournament endpoints
		authorized.POST("/api/tournaments", func(c *gin.Context) { scheduling.HandleCreateTournament(c, s.scheduleService) })
		authorized.GET("/api/tournaments", func(c *gin.Context) { scheduling.HandleListTournaments(c, s.scheduleService) })
		authorized.GET("/api/tournaments/:id", func(c *gin.Context) { scheduling.HandleGetTournament(c, s.scheduleService) })
		authorized.GET("/api/tournaments/:id/days", func(c *gin.Context) { scheduling.HandleListDays(c, s.scheduleService) })
		authorized.GET("/api/tournaments/:id/plan-report", func(c *gin.Context) { scheduling.HandleGetPlanReport(c, s.planValidator) })

		// Event endpoints
		authorized.POST("/api/tournaments/:id/events", func(c *gin.Context) { scheduling.HandleCreateEvent(c, s.scheduleService) })
		authorized.GET("/api/tournaments/:id/events", func(c *gin.Context) { scheduling.HandleListEvents(c, s.scheduleService) })
		authorized.GET("/api/events/:id", func(c *gin.Context) { scheduling.HandleGetEvent(c, s.scheduleService) })
		authorized.PATCH("/api/events/:id/draw-status", func(c *gin.Context) { scheduling.HandleUpdateDrawStatus(c, s.scheduleService) })

		// Team and avoid-edge endpoints
		authorized.POST("/api/events/:id/teams", func(c *gin.Context) { scheduling.HandleAddTeam(c, s.scheduleService) })
		authorized.GET("/api/events/:id/teams", func(c *gin.Context) { scheduling.HandleListTeams(c, s.scheduleService) })
		authorized.DELETE("/api/teams/:id", func(c *gin.Context) { scheduling.HandleRemoveTeam(c, s.scheduleService) })
		authorized.POST("/api/events/:id/avoid-edges", func(c *gin.Context) { scheduling.HandleAddAvoidEdge(c, s.scheduleService) })
		authorized.POST("/api/events/:id/avoid-edges/bulk", func(c *gin.Context) { scheduling.HandleAddAvoidEdgesBulk(c, s.scheduleService) })
		authorized.GET("/api/events/:id/avoid-edges", func(c *gin.Context) { scheduling.HandleListAvoidEdges(c, s.scheduleService) })
		authorized.DELETE("/api/avoid-edges/:id", func(c *gin.Context) { scheduling.HandleRemoveAvoidEdge(c, s.scheduleService) })

		// Grouping and injection
		authorized.POST("/api/events/:id/groups", func(c *gin.Context) { scheduling.HandleAssignGroups(c, s.grouping) })
		authorized.POST("/api/events/:id/inject", func(c *gin.Context) { scheduling.HandleInjectTeams(c, s.injector, s.lockManager) })

		// Version lifecycle
		authorized.POST("/api/tournaments/:id/versions", func(c *gin.Context) { scheduling.HandleCreateVersion(c, s.versionService) })
		authorized.GET("/api/tournaments/:id/versions", func(c *gin.Context) { scheduling.HandleListVersions(c, s.versionService) })
		authorized.GET("/api/versions/:id", func(c *gin.Context) { scheduling.HandleGetVersion(c, s.versionService) })
		authorized.POST("/api/versions/:id/reset", func(c *gin.Context) {
			scheduling.HandleResetVersion(c, s.versionService, s.lockManager, s.notifyVersionEvent)
		})
		authorized.POST("/api/versions/:id/finalize", func(c *gin.Context) {
			scheduling.HandleFinalizeVersion(c, s.versionService, s.lockManager, s.notifyVersionEvent)
		})
		authorized.POST("/api/versions/:id/clone", func(c *gin.Context) { scheduling.HandleCloneVersion(c, s.versionService) })

		// Slots, matches, assignment
		authorized.POST("/api/versions/:id/slots", func(c *gin.Context) { scheduling.HandleGenerateSlots(c, s.slots, s.lockManager) })
		authorized.GET("/api/versions/:id/slots", func(c *gin.Context) { scheduling.HandleListSlots(c, s.slots) })
		authorized.POST("/api/versions/:id/matches", func(c *gin.Context) {
			scheduling.HandleGenerateMatches(c, s.inventory, s.versionService, s.scheduleService, s.lockManager)
		})
		authorized.POST("/api/versions/:id/assign", func(c *gin.Context) {
			scheduling.HandleAutoAssign(c, s.assigner, s.lockManager)
		})

		// Build pipeline
		authorized.POST("/api/tournaments/:id/versions/:version_id/build", func(c *gin.Context) {
			scheduling.HandleBuild(c, s.orchestrator, s.lockManager, s.buildLimiter, s.notifyVersionEvent)
		})

		// Read models
		authorized.GET("/api/versions/:id/grid", func(c *gin.Context) { scheduling.HandleGetGrid(c, s.reporter) })
		authorized.GET("/api/versions/:id/conflicts", func(c *gin.Context) { scheduling.HandleGetConflicts(c, s.reporter) })
	}

	// WebSocket endpoint (handles auth internally)
	r.GET("/ws/schedule", func(c *gin.Context) { websocket.HandleScheduleWS(c, s.authService, s.hub) })

	return r
}

// handleHealth reports database and redis connectivity
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := gin.H{"status": "ok", "database": "ok", "redis": "ok"}
	code := 200

	sqlDB, err := s.db.DB.DB()
	if err != nil || sqlDB.PingContext(ctx) != nil {
		status["database"] = "down"
		status["status"] = "degraded"
		code = 503
	}

	if s.redis == nil {
		status["redis"] = "disabled"
	} else if err := s.redis.HealthCheck(ctx); err != nil {
		status["redis"] = "down"
		status["status"] = "degraded"
	}

	c.JSON(code, status)
}

// Close cleanly shuts down the server
func (s *Server) Close() error {
	s.buildLimiter.Stop()
	if s.redis != nil {
		s.redis.Close()
	}
	sqlDB, err := s.db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
