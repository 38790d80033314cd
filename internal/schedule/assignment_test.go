package schedule

import (
	"fmt"
	"sort"
	"testing"

	"tournament-scheduler/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// newTestMatch inserts one match row directly so tests control stage,
// duration, and participants precisely.
func newTestMatch(t *testing.T, db *gorm.DB, eventID, versionID, code, matchType string, round, seq, duration int, teamA, teamB *int64) *models.Match {
	t.Helper()
	match := &models.Match{
		EventID:           eventID,
		ScheduleVersionID: versionID,
		MatchCode:         code,
		MatchType:         matchType,
		RoundIndex:        round,
		SequenceInRound:   seq,
		DurationMinutes:   duration,
		TeamAID:           teamA,
		TeamBID:           teamB,
		PlaceholderSideA:  code + " side A",
		PlaceholderSideB:  code + " side B",
		Status:            "unscheduled",
	}
	require.NoError(t, db.Create(match).Error)
	return match
}

// assignedStarts maps match codes to "day start court" of their slot.
func assignedStarts(t *testing.T, db *gorm.DB, versionID string) map[string]string {
	t.Helper()
	var assignments []models.MatchAssignment
	require.NoError(t, db.Where("schedule_version_id = ?", versionID).Find(&assignments).Error)
	out := make(map[string]string, len(assignments))
	for _, a := range assignments {
		var match models.Match
		require.NoError(t, db.First(&match, "id = ?", a.MatchID).Error)
		var slot models.ScheduleSlot
		require.NoError(t, db.First(&slot, "id = ?", a.SlotID).Error)
		out[match.MatchCode] = fmt.Sprintf("%s %s c%d", slot.DayDate, slot.StartTime, slot.CourtNumber)
	}
	return out
}

func assignmentFixture(t *testing.T, db *gorm.DB, days ...models.DayRequest) (*models.Event, *models.ScheduleVersion, []models.Team) {
	t.Helper()
	tournament := createTournament(t, db, days...)
	event := createEvent(t, db, tournament.ID, 8, 4, planJSON(TemplateCanonical32, 0))
	teams := addSeededTeams(t, db, event.ID, 8)
	version := createDraft(t, db, tournament.ID)
	_, err := NewSlotGenerator(db).Generate(models.GenerateSlotsRequest{ScheduleVersionID: version.ID})
	require.NoError(t, err)
	return event, version, teams
}

func TestAutoAssign_FirstFitOnSingleCourt(t *testing.T) {
	db := setupTestDB(t)
	event, version, teams := assignmentFixture(t, db, models.DayRequest{
		DayDate: "2026-06-05", StartTime: "09:00", EndTime: "21:00", CourtsAvailable: 1,
	})

	newTestMatch(t, db, event.ID, version.ID, "M1", MatchTypeMain, 1, 1, 90, &teams[0].ID, &teams[1].ID)
	newTestMatch(t, db, event.ID, version.ID, "M2", MatchTypeMain, 1, 2, 90, &teams[2].ID, &teams[3].ID)

	outcome, err := NewAssignmentEngine(db).AutoAssign(version.ID, models.AutoAssignRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.AssignedCount)
	assert.Zero(t, outcome.UnassignedCount)

	starts := assignedStarts(t, db, version.ID)
	// disjoint teams still queue behind the court occupancy
	assert.Equal(t, "2026-06-05 09:00 c1", starts["M1"])
	assert.Equal(t, "2026-06-05 10:30 c1", starts["M2"])

	var match models.Match
	require.NoError(t, db.First(&match, "match_code = ?", "M1").Error)
	assert.Equal(t, "scheduled", match.Status)
}

func TestAutoAssign_ParallelCourts(t *testing.T) {
	db := setupTestDB(t)
	event, version, teams := assignmentFixture(t, db, models.DayRequest{
		DayDate: "2026-06-05", StartTime: "09:00", EndTime: "21:00", CourtsAvailable: 2,
	})

	newTestMatch(t, db, event.ID, version.ID, "M1", MatchTypeMain, 1, 1, 90, &teams[0].ID, &teams[1].ID)
	newTestMatch(t, db, event.ID, version.ID, "M2", MatchTypeMain, 1, 2, 90, &teams[2].ID, &teams[3].ID)

	_, err := NewAssignmentEngine(db).AutoAssign(version.ID, models.AutoAssignRequest{})
	require.NoError(t, err)

	starts := assignedStarts(t, db, version.ID)
	assert.Equal(t, "2026-06-05 09:00 c1", starts["M1"])
	assert.Equal(t, "2026-06-05 09:00 c2", starts["M2"])
}

func TestAutoAssign_DefaultRestGap(t *testing.T) {
	db := setupTestDB(t)
	event, version, teams := assignmentFixture(t, db, models.DayRequest{
		DayDate: "2026-06-05", StartTime: "09:00", EndTime: "21:00", CourtsAvailable: 1,
	})

	// same pair back to back: 90 minutes play plus 90 minutes rest
	newTestMatch(t, db, event.ID, version.ID, "M1", MatchTypeMain, 1, 1, 90, &teams[0].ID, &teams[1].ID)
	newTestMatch(t, db, event.ID, version.ID, "M2", MatchTypeMain, 2, 1, 90, &teams[0].ID, &teams[1].ID)

	outcome, err := NewAssignmentEngine(db).AutoAssign(version.ID, models.AutoAssignRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.AssignedCount)
	assert.Zero(t, outcome.RestViolationsSummary.TotalRestBlocked)

	starts := assignedStarts(t, db, version.ID)
	assert.Equal(t, "2026-06-05 09:00 c1", starts["M1"])
	assert.Equal(t, "2026-06-05 12:00 c1", starts["M2"])
}

func TestAutoAssign_WaterfallToScoringRestGap(t *testing.T) {
	db := setupTestDB(t)
	event, version, teams := assignmentFixture(t, db, models.DayRequest{
		DayDate: "2026-06-05", StartTime: "09:00", EndTime: "21:00", CourtsAvailable: 1,
	})

	// waterfall finish at 10:00 releases the pair for scoring at 11:00
	newTestMatch(t, db, event.ID, version.ID, "WF1_1", MatchTypeWF, 1, 1, 60, &teams[0].ID, &teams[1].ID)
	newTestMatch(t, db, event.ID, version.ID, "M1", MatchTypeMain, 1, 1, 90, &teams[0].ID, &teams[1].ID)

	_, err := NewAssignmentEngine(db).AutoAssign(version.ID, models.AutoAssignRequest{})
	require.NoError(t, err)

	starts := assignedStarts(t, db, version.ID)
	assert.Equal(t, "2026-06-05 09:00 c1", starts["WF1_1"])
	assert.Equal(t, "2026-06-05 11:00 c1", starts["M1"])
}

func TestAutoAssign_UnassignedReasons(t *testing.T) {
	t.Run("slots exhausted", func(t *testing.T) {
		db := setupTestDB(t)
		tournament := createTournament(t, db)
		event := createEvent(t, db, tournament.ID, 8, 4, planJSON(TemplateCanonical32, 0))
		teams := addSeededTeams(t, db, event.ID, 8)
		version := createDraft(t, db, tournament.ID)
		// no slots generated at all
		newTestMatch(t, db, event.ID, version.ID, "M1", MatchTypeMain, 1, 1, 90, &teams[0].ID, &teams[1].ID)

		outcome, err := NewAssignmentEngine(db).AutoAssign(version.ID, models.AutoAssignRequest{})
		require.NoError(t, err)
		require.Len(t, outcome.Unassigned, 1)
		assert.Equal(t, ReasonSlotsExhausted, outcome.Unassigned[0].Reason)
	})

	t.Run("duration too long", func(t *testing.T) {
		db := setupTestDB(t)
		event, version, teams := assignmentFixture(t, db, models.DayRequest{
			DayDate: "2026-06-05", StartTime: "09:00", EndTime: "10:00", CourtsAvailable: 1,
		})
		newTestMatch(t, db, event.ID, version.ID, "M1", MatchTypeMain, 1, 1, 90, &teams[0].ID, &teams[1].ID)

		outcome, err := NewAssignmentEngine(db).AutoAssign(version.ID, models.AutoAssignRequest{})
		require.NoError(t, err)
		require.Len(t, outcome.Unassigned, 1)
		assert.Equal(t, ReasonDurationTooLong, outcome.Unassigned[0].Reason)
	})

	t.Run("no rest compatible slot", func(t *testing.T) {
		db := setupTestDB(t)
		event, version, teams := assignmentFixture(t, db, models.DayRequest{
			DayDate: "2026-06-05", StartTime: "09:00", EndTime: "12:00", CourtsAvailable: 1,
		})
		// the 10:30 slot fits the second match but violates the 90-minute
		// rest rule; no later slot fits before day end
		newTestMatch(t, db, event.ID, version.ID, "M1", MatchTypeMain, 1, 1, 90, &teams[0].ID, &teams[1].ID)
		newTestMatch(t, db, event.ID, version.ID, "M2", MatchTypeMain, 2, 1, 90, &teams[0].ID, &teams[1].ID)

		outcome, err := NewAssignmentEngine(db).AutoAssign(version.ID, models.AutoAssignRequest{})
		require.NoError(t, err)
		assert.Equal(t, 1, outcome.AssignedCount)
		require.Len(t, outcome.Unassigned, 1)
		assert.Equal(t, "M2", outcome.Unassigned[0].MatchCode)
		assert.Equal(t, ReasonNoRestCompatibleSlot, outcome.Unassigned[0].Reason)
		assert.Equal(t, 1, outcome.RestViolationsSummary.TotalRestBlocked)
		assert.Equal(t, 1, outcome.RestViolationsSummary.ScoringToScoringViolations)
		assert.Zero(t, outcome.RestViolationsSummary.WfToScoringViolations)
	})
}

func TestAutoAssign_StageOrderGovernsPlacement(t *testing.T) {
	db := setupTestDB(t)
	event, version, teams := assignmentFixture(t, db, models.DayRequest{
		DayDate: "2026-06-05", StartTime: "09:00", EndTime: "21:00", CourtsAvailable: 1,
	})

	// inserted out of order; the canonical sort still schedules WF first
	newTestMatch(t, db, event.ID, version.ID, "FINAL", MatchTypeMain, 3, 1, 90, nil, nil)
	newTestMatch(t, db, event.ID, version.ID, "WF1_1", MatchTypeWF, 1, 1, 60, &teams[0].ID, &teams[1].ID)
	newTestMatch(t, db, event.ID, version.ID, "QF1", MatchTypeMain, 1, 1, 90, &teams[2].ID, &teams[3].ID)

	_, err := NewAssignmentEngine(db).AutoAssign(version.ID, models.AutoAssignRequest{})
	require.NoError(t, err)

	starts := assignedStarts(t, db, version.ID)
	assert.Equal(t, "2026-06-05 09:00 c1", starts["WF1_1"])
	assert.Equal(t, "2026-06-05 10:00 c1", starts["QF1"])
	assert.Equal(t, "2026-06-05 11:30 c1", starts["FINAL"])
}

func TestAutoAssign_Deterministic(t *testing.T) {
	db := setupTestDB(t)
	tournament := createTournament(t, db)
	event := createEvent(t, db, tournament.ID, 8, 4, planJSON(TemplateCanonical32, 2))
	addSeededTeams(t, db, event.ID, 8)
	version := createDraft(t, db, tournament.ID)

	_, err := NewInventoryGenerator(db).Generate(event.ID, version.ID, false)
	require.NoError(t, err)
	_, err = NewInjector(db).Inject(event.ID, version.ID, nil)
	require.NoError(t, err)
	_, err = NewSlotGenerator(db).Generate(models.GenerateSlotsRequest{ScheduleVersionID: version.ID})
	require.NoError(t, err)

	engine := NewAssignmentEngine(db)
	pairs := func() []string {
		outcome, err := engine.AutoAssign(version.ID, models.AutoAssignRequest{ClearExisting: true})
		require.NoError(t, err)
		require.NotZero(t, outcome.AssignedCount)
		starts := assignedStarts(t, db, version.ID)
		keys := make([]string, 0, len(starts))
		for code, at := range starts {
			keys = append(keys, code+"@"+at)
		}
		sort.Strings(keys)
		return keys
	}

	first := pairs()
	second := pairs()
	assert.Equal(t, first, second)
}

func TestAutoAssign_IncrementalKeepsExisting(t *testing.T) {
	db := setupTestDB(t)
	event, version, teams := assignmentFixture(t, db, models.DayRequest{
		DayDate: "2026-06-05", StartTime: "09:00", EndTime: "21:00", CourtsAvailable: 1,
	})

	newTestMatch(t, db, event.ID, version.ID, "M1", MatchTypeMain, 1, 1, 90, &teams[0].ID, &teams[1].ID)
	engine := NewAssignmentEngine(db)
	_, err := engine.AutoAssign(version.ID, models.AutoAssignRequest{})
	require.NoError(t, err)
	before := assignedStarts(t, db, version.ID)

	// a later-added match joins without disturbing the first placement
	newTestMatch(t, db, event.ID, version.ID, "M2", MatchTypeMain, 1, 2, 90, &teams[2].ID, &teams[3].ID)
	outcome, err := engine.AutoAssign(version.ID, models.AutoAssignRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.AssignedCount)

	after := assignedStarts(t, db, version.ID)
	assert.Equal(t, before["M1"], after["M1"])
	assert.Equal(t, "2026-06-05 10:30 c1", after["M2"])
}

func TestAutoAssign_HonorPreferredDay(t *testing.T) {
	db := setupTestDB(t)
	event, version, teams := assignmentFixture(t, db,
		models.DayRequest{DayDate: "2026-06-05", StartTime: "09:00", EndTime: "21:00", CourtsAvailable: 1},
		models.DayRequest{DayDate: "2026-06-06", StartTime: "09:00", EndTime: "21:00", CourtsAvailable: 1},
	)

	preferred := "2026-06-06"
	match := newTestMatch(t, db, event.ID, version.ID, "M1", MatchTypeMain, 1, 1, 90, &teams[0].ID, &teams[1].ID)
	require.NoError(t, db.Model(match).Update("preferred_day", preferred).Error)

	_, err := NewAssignmentEngine(db).AutoAssign(version.ID, models.AutoAssignRequest{HonorPreferredDay: true})
	require.NoError(t, err)

	starts := assignedStarts(t, db, version.ID)
	assert.Equal(t, "2026-06-06 09:00 c1", starts["M1"])
}

func TestAutoAssign_RequiresDraftVersion(t *testing.T) {
	db := setupTestDB(t)
	tournament := createTournament(t, db)
	version := createDraft(t, db, tournament.ID)

	_, err := NewVersionService(db).Finalize(version.ID)
	require.NoError(t, err)

	_, err = NewAssignmentEngine(db).AutoAssign(version.ID, models.AutoAssignRequest{})
	requireCode(t, err, CodeVersionNotDraft)
}
