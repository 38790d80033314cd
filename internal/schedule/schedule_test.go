package schedule

import (
	"encoding/json"
	"fmt"
	"testing"

	"tournament-scheduler/backend/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB opens an isolated in-memory store with the full schema.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// a single connection keeps the in-memory database alive across queries
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Tournament{},
		&models.TournamentDay{},
		&models.Event{},
		&models.Team{},
		&models.TeamAvoidEdge{},
		&models.ScheduleVersion{},
		&models.ScheduleSlot{},
		&models.Match{},
		&models.MatchAssignment{},
	))
	return db
}

func planJSON(template string, wfRounds int) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"template_type":%q,"wf_rounds":%d}`, template, wfRounds))
}

// createTournament creates a tournament; without explicit days it gets one
// twelve-hour day with two courts.
func createTournament(t *testing.T, db *gorm.DB, days ...models.DayRequest) *models.Tournament {
	t.Helper()
	if len(days) == 0 {
		days = []models.DayRequest{{
			DayDate:         "2026-06-05",
			StartTime:       "09:00",
			EndTime:         "21:00",
			CourtsAvailable: 2,
		}}
	}
	tournament, err := NewService(db).CreateTournament(models.CreateTournamentRequest{
		Name: "Test Open",
		Days: days,
	})
	require.NoError(t, err)
	return tournament
}

func createEvent(t *testing.T, db *gorm.DB, tournamentID string, teamCount, guarantee int, plan json.RawMessage) *models.Event {
	t.Helper()
	event, err := NewService(db).CreateEvent(tournamentID, models.CreateEventRequest{
		Name:              fmt.Sprintf("Event %d/%d", teamCount, guarantee),
		TeamCount:         teamCount,
		GuaranteeSelected: guarantee,
		DrawPlan:          plan,
	})
	require.NoError(t, err)
	return event
}

// addSeededTeams registers n teams seeded 1..n in canonical order.
func addSeededTeams(t *testing.T, db *gorm.DB, eventID string, n int) []models.Team {
	t.Helper()
	service := NewService(db)
	teams := make([]models.Team, 0, n)
	for i := 1; i <= n; i++ {
		seed := i
		team, err := service.AddTeam(eventID, models.AddTeamRequest{
			Name: fmt.Sprintf("Team %02d", i),
			Seed: &seed,
		})
		require.NoError(t, err)
		teams = append(teams, *team)
	}
	return teams
}

func createDraft(t *testing.T, db *gorm.DB, tournamentID string) *models.ScheduleVersion {
	t.Helper()
	version, err := NewVersionService(db).CreateDraft(tournamentID, "")
	require.NoError(t, err)
	return version
}

// requireCode asserts a failure carrying the given stable error code.
func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, AsError(err).Code, "unexpected error: %v", err)
}

func hasIssue(issues []Issue, code string) bool {
	for _, issue := range issues {
		if issue.Code == code {
			return true
		}
	}
	return false
}
