package schedule

import (
	"encoding/json"
	"errors"
	"sort"

	"tournament-scheduler/backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service owns tournament, day, event, team, and avoid-edge CRUD
type Service struct {
	db *gorm.DB
}

// NewService creates a new scheduling service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// CreateTournament creates a tournament with its playable days
func (s *Service) CreateTournament(req models.CreateTournamentRequest) (*models.Tournament, error) {
	tournament := &models.Tournament{
		ID:   uuid.New().String(),
		Name: req.Name,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		for _, day := range req.Days {
			if !validDate(day.DayDate) {
				return Errorf(CodePlanInvalid, "invalid day date %q", day.DayDate)
			}
			if !validClock(day.StartTime) || !validClock(day.EndTime) {
				return Errorf(CodePlanInvalid, "invalid time window %s-%s on %s", day.StartTime, day.EndTime, day.DayDate)
			}
			startMin, _ := minutesOfDay(day.StartTime)
			endMin, _ := minutesOfDay(day.EndTime)
			if endMin <= startMin {
				return Errorf(CodePlanInvalid, "day %s window end %s is not after start %s", day.DayDate, day.EndTime, day.StartTime)
			}
			if day.CourtsAvailable < 1 {
				return Errorf(CodePlanInvalid, "day %s needs at least one court", day.DayDate)
			}
		}

		if err := tx.Create(tournament).Error; err != nil {
			return err
		}
		for _, day := range req.Days {
			labels := ""
			if len(day.CourtLabels) > 0 {
				raw, err := json.Marshal(day.CourtLabels)
				if err != nil {
					return err
				}
				labels = string(raw)
			}
			record := models.TournamentDay{
				TournamentID:    tournament.ID,
				DayDate:         day.DayDate,
				StartTime:       day.StartTime,
				EndTime:         day.EndTime,
				CourtsAvailable: day.CourtsAvailable,
				CourtLabels:     labels,
				IsActive:        true,
			}
			if err := tx.Create(&record).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tournament, nil
}

// GetTournament returns one tournament by id
func (s *Service) GetTournament(id string) (*models.Tournament, error) {
	return findTournament(s.db, id)
}

// ListTournaments returns all tournaments, newest first
func (s *Service) ListTournaments() ([]models.Tournament, error) {
	var tournaments []models.Tournament
	if err := s.db.Order("created_at DESC, id ASC").Find(&tournaments).Error; err != nil {
		return nil, err
	}
	return tournaments, nil
}

// ListDays returns a tournament's days in date order
func (s *Service) ListDays(tournamentID string) ([]models.TournamentDay, error) {
	if _, err := findTournament(s.db, tournamentID); err != nil {
		return nil, err
	}
	var days []models.TournamentDay
	if err := s.db.Where("tournament_id = ?", tournamentID).Find(&days).Error; err != nil {
		return nil, err
	}
	sort.Slice(days, func(i, j int) bool { return days[i].DayDate < days[j].DayDate })
	return days, nil
}

// CreateEvent creates an event with its draw plan under a tournament
func (s *Service) CreateEvent(tournamentID string, req models.CreateEventRequest) (*models.Event, error) {
	if _, err := findTournament(s.db, tournamentID); err != nil {
		return nil, err
	}

	event := &models.Event{
		ID:                   uuid.New().String(),
		TournamentID:         tournamentID,
		Name:                 req.Name,
		Category:             req.Category,
		TeamCount:            req.TeamCount,
		GuaranteeSelected:    req.GuaranteeSelected,
		DrawStatus:           DrawNotStarted,
		DrawPlan:             string(req.DrawPlan),
		ScheduleProfile:      req.ScheduleProfile,
		StandardDurationMin:  req.StandardDurationMin,
		WaterfallDurationMin: req.WaterfallDurationMin,
	}
	if event.StandardDurationMin == 0 {
		event.StandardDurationMin = defaultStandardMinutes
	}
	if event.WaterfallDurationMin == 0 {
		event.WaterfallDurationMin = defaultWfMinutes
	}

	if _, err := ParseDrawPlan(event); err != nil {
		return nil, err
	}
	if err := s.db.Create(event).Error; err != nil {
		return nil, err
	}
	return event, nil
}

// GetEvent returns one event by id
func (s *Service) GetEvent(id string) (*models.Event, error) {
	return findEvent(s.db, id)
}

// ListEvents returns a tournament's events in creation order
func (s *Service) ListEvents(tournamentID string) ([]models.Event, error) {
	if _, err := findTournament(s.db, tournamentID); err != nil {
		return nil, err
	}
	var events []models.Event
	if err := s.db.Where("tournament_id = ?", tournamentID).
		Order("created_at ASC, id ASC").Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// UpdateEventDrawStatus moves an event's draw lifecycle marker
func (s *Service) UpdateEventDrawStatus(eventID, status string) (*models.Event, error) {
	switch status {
	case DrawNotStarted, DrawDraft, DrawFinal:
	default:
		return nil, Errorf(CodePlanInvalid, "unknown draw status %q", status)
	}
	event, err := findEvent(s.db, eventID)
	if err != nil {
		return nil, err
	}
	if err := s.db.Model(event).Update("draw_status", status).Error; err != nil {
		return nil, err
	}
	event.DrawStatus = status
	return event, nil
}

// AddTeam registers a team on an event
func (s *Service) AddTeam(eventID string, req models.AddTeamRequest) (*models.Team, error) {
	event, err := findEvent(s.db, eventID)
	if err != nil {
		return nil, err
	}

	team := &models.Team{
		EventID:      event.ID,
		Name:         req.Name,
		Seed:         req.Seed,
		Rating:       req.Rating,
		RegisteredAt: req.RegisteredAt,
	}
	if req.Seed != nil {
		team.SeedEventID = &event.ID
	}
	if err := s.db.Create(team).Error; err != nil {
		return nil, err
	}
	return team, nil
}

// ListTeams returns an event's teams in canonical order
func (s *Service) ListTeams(eventID string) ([]models.Team, error) {
	if _, err := findEvent(s.db, eventID); err != nil {
		return nil, err
	}
	var teams []models.Team
	if err := s.db.Where("event_id = ?", eventID).Find(&teams).Error; err != nil {
		return nil, err
	}
	sortTeamsCanonical(teams)
	return teams, nil
}

// RemoveTeam deletes a team and its avoid edges
func (s *Service) RemoveTeam(teamID int64) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var team models.Team
		if err := tx.First(&team, "id = ?", teamID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTeamNotFound.With("team_id", teamID)
			}
			return err
		}
		if err := tx.Where("team_id_a = ? OR team_id_b = ?", teamID, teamID).
			Delete(&models.TeamAvoidEdge{}).Error; err != nil {
			return err
		}
		return tx.Delete(&team).Error
	})
}

// AvoidEdgeResult summarizes one avoid-edge mutation
type AvoidEdgeResult struct {
	EventID      string  `json:"event_id"`
	CreatedCount int     `json:"created_count"`
	SkippedCount int     `json:"skipped_count"`
	DryRun       bool    `json:"dry_run"`
	Issues       []Issue `json:"issues"`
}

// AddAvoidEdge creates one canonical avoid edge between two teams of an event
func (s *Service) AddAvoidEdge(eventID string, pair models.AvoidEdgePair) (*models.TeamAvoidEdge, error) {
	var edge *models.TeamAvoidEdge
	err := s.db.Transaction(func(tx *gorm.DB) error {
		event, err := findEvent(tx, eventID)
		if err != nil {
			return err
		}
		created, err := createEdge(tx, event, pair)
		if err != nil {
			return err
		}
		edge = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return edge, nil
}

// AddAvoidEdgesBulk creates avoid edges from explicit pairs and link groups.
// Link groups expand to every pair among their members. With dryRun the
// whole run validates and reports but persists nothing.
func (s *Service) AddAvoidEdgesBulk(eventID string, req models.BulkAvoidEdgeRequest, dryRun bool) (*AvoidEdgeResult, error) {
	result := &AvoidEdgeResult{EventID: eventID, DryRun: dryRun, Issues: []Issue{}}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		event, err := findEvent(tx, eventID)
		if err != nil {
			return err
		}

		pairs := make([]models.AvoidEdgePair, 0, len(req.Pairs))
		pairs = append(pairs, req.Pairs...)
		for _, group := range req.LinkGroups {
			members := append([]int64(nil), group.TeamIDs...)
			sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
			for i := 0; i < len(members); i++ {
				for j := i + 1; j < len(members); j++ {
					pairs = append(pairs, models.AvoidEdgePair{
						TeamIDA: members[i],
						TeamIDB: members[j],
						Reason:  group.Reason,
					})
				}
			}
		}

		for _, pair := range pairs {
			if _, err := createEdge(tx, event, pair); err != nil {
				var coded *Error
				if errors.As(err, &coded) && (coded.Code == CodeSelfEdge || coded.Code == CodeDuplicateEdge) {
					result.SkippedCount++
					result.Issues = append(result.Issues, Issue{Code: coded.Code, Message: coded.Message})
					continue
				}
				return err
			}
			result.CreatedCount++
		}

		if dryRun {
			return errDryRunRollback
		}
		return nil
	})
	if err != nil {
		if dryRun && errors.Is(err, errDryRunRollback) {
			return result, nil
		}
		return nil, err
	}
	return result, nil
}

// errDryRunRollback aborts a validation-only transaction after the work ran
var errDryRunRollback = errors.New("dry run rollback")

// ListAvoidEdges returns an event's edges in canonical pair order
func (s *Service) ListAvoidEdges(eventID string) ([]models.TeamAvoidEdge, error) {
	if _, err := findEvent(s.db, eventID); err != nil {
		return nil, err
	}
	var edges []models.TeamAvoidEdge
	if err := s.db.Where("event_id = ?", eventID).
		Order("team_id_a ASC, team_id_b ASC").Find(&edges).Error; err != nil {
		return nil, err
	}
	return edges, nil
}

// RemoveAvoidEdge deletes one edge by id
func (s *Service) RemoveAvoidEdge(edgeID int64) error {
	res := s.db.Where("id = ?", edgeID).Delete(&models.TeamAvoidEdge{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return NewError(CodeNotFound, "avoid edge not found").With("edge_id", edgeID)
	}
	return nil
}

// createEdge validates and stores one edge in canonical (low id, high id)
// form inside the caller's transaction.
func createEdge(tx *gorm.DB, event *models.Event, pair models.AvoidEdgePair) (*models.TeamAvoidEdge, error) {
	if pair.TeamIDA == pair.TeamIDB {
		return nil, ErrSelfEdge.With("team_id", pair.TeamIDA)
	}
	a, b := pair.TeamIDA, pair.TeamIDB
	if a > b {
		a, b = b, a
	}

	var count int64
	if err := tx.Model(&models.Team{}).
		Where("event_id = ? AND id IN ?", event.ID, []int64{a, b}).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count != 2 {
		return nil, ErrTeamNotFound.
			With("event_id", event.ID).
			With("team_id_a", a).
			With("team_id_b", b)
	}

	var existing int64
	if err := tx.Model(&models.TeamAvoidEdge{}).
		Where("event_id = ? AND team_id_a = ? AND team_id_b = ?", event.ID, a, b).
		Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, ErrDuplicateEdge.
			With("team_id_a", a).
			With("team_id_b", b)
	}

	edge := &models.TeamAvoidEdge{
		EventID: event.ID,
		TeamIDA: a,
		TeamIDB: b,
		Reason:  pair.Reason,
	}
	if err := tx.Create(edge).Error; err != nil {
		return nil, err
	}
	return edge, nil
}
