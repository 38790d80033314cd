package schedule

import (
	"sort"
	"testing"

	"tournament-scheduler/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func persistedPairs(t *testing.T, db *gorm.DB, versionID string) []string {
	t.Helper()
	starts := assignedStarts(t, db, versionID)
	pairs := make([]string, 0, len(starts))
	for code, at := range starts {
		pairs = append(pairs, code+"@"+at)
	}
	sort.Strings(pairs)
	return pairs
}

// generateSlots fills the version's slot supply from the day grid; build
// itself only consumes slots.
func generateSlots(t *testing.T, db *gorm.DB, versionID string) {
	t.Helper()
	_, err := NewSlotGenerator(db).Generate(models.GenerateSlotsRequest{ScheduleVersionID: versionID})
	require.NoError(t, err)
}

func TestBuild_FullPipeline(t *testing.T) {
	db := setupTestDB(t)
	tournament := createTournament(t, db)
	event := createEvent(t, db, tournament.ID, 8, 4, planJSON(TemplateCanonical32, 0))
	addSeededTeams(t, db, event.ID, 8)
	version := createDraft(t, db, tournament.ID)
	generateSlots(t, db, version.ID)

	result, err := NewOrchestrator(db).Build(tournament.ID, version.ID, models.BuildRequest{})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Summary.EventsBuilt)
	assert.Equal(t, 9, result.Summary.MatchesCreated)
	assert.Equal(t, 4, result.Summary.TeamsInjected)
	assert.Equal(t, 96, result.Summary.SlotsAvailable)
	assert.Equal(t, 9, result.Summary.AssignedCount)
	assert.Zero(t, result.Summary.UnassignedCount)
	assert.False(t, result.DryRun)

	require.NotNil(t, result.Grid)
	require.Len(t, result.Grid.Days, 1)
	assert.Empty(t, result.Grid.Unassigned)
	require.NotNil(t, result.Conflicts)
	assert.Equal(t, 9, result.Conflicts.Summary.AssignedCount)
	assert.Equal(t, 1.0, result.Conflicts.Summary.AssignmentRate)
}

func TestBuild_RepeatedBuildsAreBitIdentical(t *testing.T) {
	db := setupTestDB(t)
	tournament := createTournament(t, db)
	event := createEvent(t, db, tournament.ID, 8, 5, planJSON(TemplateCanonical32, 0))
	addSeededTeams(t, db, event.ID, 8)
	version := createDraft(t, db, tournament.ID)
	generateSlots(t, db, version.ID)
	orchestrator := NewOrchestrator(db)

	_, err := orchestrator.Build(tournament.ID, version.ID, models.BuildRequest{ClearExisting: true})
	require.NoError(t, err)
	first := persistedPairs(t, db, version.ID)

	_, err = orchestrator.Build(tournament.ID, version.ID, models.BuildRequest{ClearExisting: true})
	require.NoError(t, err)
	second := persistedPairs(t, db, version.ID)

	assert.Equal(t, first, second)
}

func TestBuild_IndependentVersionsShareChecksum(t *testing.T) {
	db := setupTestDB(t)
	tournament := createTournament(t, db)
	event := createEvent(t, db, tournament.ID, 8, 4, planJSON(TemplateCanonical32, 0))
	addSeededTeams(t, db, event.ID, 8)
	orchestrator := NewOrchestrator(db)
	versions := NewVersionService(db)

	checksums := make([]string, 0, 2)
	for i := 0; i < 2; i++ {
		version := createDraft(t, db, tournament.ID)
		generateSlots(t, db, version.ID)
		_, err := orchestrator.Build(tournament.ID, version.ID, models.BuildRequest{ClearExisting: true})
		require.NoError(t, err)
		finalized, err := versions.Finalize(version.ID)
		require.NoError(t, err)
		checksums = append(checksums, *finalized.FinalizedChecksum)
	}
	assert.Equal(t, checksums[0], checksums[1])
}

func TestBuild_DryRunPersistsNothing(t *testing.T) {
	db := setupTestDB(t)
	tournament := createTournament(t, db)
	event := createEvent(t, db, tournament.ID, 8, 4, planJSON(TemplateCanonical32, 0))
	addSeededTeams(t, db, event.ID, 8)
	version := createDraft(t, db, tournament.ID)
	generateSlots(t, db, version.ID)

	result, err := NewOrchestrator(db).Build(tournament.ID, version.ID, models.BuildRequest{DryRun: true})
	require.NoError(t, err)

	// the response reflects the full run
	assert.True(t, result.DryRun)
	assert.Equal(t, 9, result.Summary.MatchesCreated)
	assert.Equal(t, 96, result.Summary.SlotsAvailable)
	assert.Equal(t, 9, result.Summary.AssignedCount)
	require.NotNil(t, result.Grid)

	// yet nothing committed
	for _, model := range []interface{}{&models.Match{}, &models.MatchAssignment{}} {
		var count int64
		require.NoError(t, db.Model(model).Where("schedule_version_id = ?", version.ID).Count(&count).Error)
		assert.Zero(t, count)
	}

	// the pre-existing slot supply is untouched
	var slots int64
	require.NoError(t, db.Model(&models.ScheduleSlot{}).Where("schedule_version_id = ?", version.ID).Count(&slots).Error)
	assert.Equal(t, int64(96), slots)
}

func TestBuild_ValidationFailureRollsBack(t *testing.T) {
	db := setupTestDB(t)
	tournament := createTournament(t, db)
	// bypass the create-time parse so the build-time validator trips
	broken := &models.Event{
		ID:                "evt-broken",
		TournamentID:      tournament.ID,
		Name:              "Broken",
		TeamCount:         8,
		GuaranteeSelected: 4,
		DrawPlan:          `not json`,
	}
	require.NoError(t, db.Create(broken).Error)
	version := createDraft(t, db, tournament.ID)

	_, err := NewOrchestrator(db).Build(tournament.ID, version.ID, models.BuildRequest{})
	requireCode(t, err, CodePlanInvalid)
	assert.Equal(t, StepValidate, AsError(err).Context["failed_step"])

	var count int64
	require.NoError(t, db.Model(&models.Match{}).Where("schedule_version_id = ?", version.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestBuild_GuardsVersionOwnership(t *testing.T) {
	db := setupTestDB(t)
	tournament := createTournament(t, db)
	other := createTournament(t, db)
	version := createDraft(t, db, other.ID)

	_, err := NewOrchestrator(db).Build(tournament.ID, version.ID, models.BuildRequest{})
	requireCode(t, err, CodePlanInvalid)
}

func TestBuild_RequiresDraftVersion(t *testing.T) {
	db := setupTestDB(t)
	tournament := createTournament(t, db)
	version := createDraft(t, db, tournament.ID)
	_, err := NewVersionService(db).Finalize(version.ID)
	require.NoError(t, err)

	_, err = NewOrchestrator(db).Build(tournament.ID, version.ID, models.BuildRequest{})
	requireCode(t, err, CodeVersionNotDraft)
}

func TestBuild_NoTeamsIsWarningNotFailure(t *testing.T) {
	db := setupTestDB(t)
	tournament := createTournament(t, db)
	createEvent(t, db, tournament.ID, 8, 4, planJSON(TemplateCanonical32, 0))
	version := createDraft(t, db, tournament.ID)
	generateSlots(t, db, version.ID)

	result, err := NewOrchestrator(db).Build(tournament.ID, version.ID, models.BuildRequest{})
	require.NoError(t, err)

	assert.True(t, hasIssue(result.Warnings, WarnNoTeamsForEvent))
	assert.Zero(t, result.Summary.TeamsInjected)
	// placeholder matches still generate and schedule
	assert.Equal(t, 9, result.Summary.MatchesCreated)
	assert.Equal(t, 9, result.Summary.AssignedCount)
}

func TestBuild_LargeFieldSkipsInjection(t *testing.T) {
	db := setupTestDB(t)
	tournament := createTournament(t, db)
	event := createEvent(t, db, tournament.ID, 12, 4, planJSON(TemplatePoolsDynamic, 2))
	addSeededTeams(t, db, event.ID, 12)
	version := createDraft(t, db, tournament.ID)
	generateSlots(t, db, version.ID)

	result, err := NewOrchestrator(db).Build(tournament.ID, version.ID, models.BuildRequest{})
	require.NoError(t, err)

	assert.True(t, hasIssue(result.Warnings, WarnInjectionSkipped))
	assert.Zero(t, result.Summary.TeamsInjected)
	assert.Equal(t, 3, result.Summary.GroupsAssigned)
	assert.Equal(t, 30, result.Summary.MatchesCreated)

	// grouping persisted through the pipeline transaction
	var grouped int64
	require.NoError(t, db.Model(&models.Team{}).
		Where("event_id = ? AND wf_group_index IS NOT NULL", event.ID).
		Count(&grouped).Error)
	assert.Equal(t, int64(12), grouped)
}

func TestBuild_RerunWithoutClearKeepsInventory(t *testing.T) {
	db := setupTestDB(t)
	tournament := createTournament(t, db)
	event := createEvent(t, db, tournament.ID, 8, 4, planJSON(TemplateCanonical32, 0))
	addSeededTeams(t, db, event.ID, 8)
	version := createDraft(t, db, tournament.ID)
	generateSlots(t, db, version.ID)
	orchestrator := NewOrchestrator(db)

	first, err := orchestrator.Build(tournament.ID, version.ID, models.BuildRequest{})
	require.NoError(t, err)
	assert.Equal(t, 9, first.Summary.MatchesCreated)
	assert.Zero(t, first.Summary.MatchesKept)
	before := persistedPairs(t, db, version.ID)

	second, err := orchestrator.Build(tournament.ID, version.ID, models.BuildRequest{})
	require.NoError(t, err)
	// existing matches are confirmed, not duplicated
	assert.Zero(t, second.Summary.MatchesCreated)
	assert.Equal(t, 9, second.Summary.MatchesKept)

	var count int64
	require.NoError(t, db.Model(&models.Match{}).Where("schedule_version_id = ?", version.ID).Count(&count).Error)
	assert.Equal(t, int64(9), count)
	// committed assignments survive a non-clearing re-run
	assert.Equal(t, before, persistedPairs(t, db, version.ID))
}

func TestBuild_NoSlotsIsWarningNotFailure(t *testing.T) {
	db := setupTestDB(t)
	tournament := createTournament(t, db)
	event := createEvent(t, db, tournament.ID, 8, 4, planJSON(TemplateCanonical32, 0))
	addSeededTeams(t, db, event.ID, 8)
	version := createDraft(t, db, tournament.ID)

	result, err := NewOrchestrator(db).Build(tournament.ID, version.ID, models.BuildRequest{})
	require.NoError(t, err)

	assert.True(t, hasIssue(result.Warnings, WarnNoSlotsForVersion))
	assert.Zero(t, result.Summary.SlotsAvailable)
	assert.Equal(t, 9, result.Summary.MatchesCreated)
	assert.Zero(t, result.Summary.AssignedCount)
	assert.Equal(t, 9, result.Summary.UnassignedCount)

	// build never creates slots on its own
	var slots int64
	require.NoError(t, db.Model(&models.ScheduleSlot{}).Where("schedule_version_id = ?", version.ID).Count(&slots).Error)
	assert.Zero(t, slots)
}

func TestBuild_MultiEventTournament(t *testing.T) {
	db := setupTestDB(t)
	tournament := createTournament(t, db,
		models.DayRequest{DayDate: "2026-06-05", StartTime: "08:00", EndTime: "22:00", CourtsAvailable: 4},
		models.DayRequest{DayDate: "2026-06-06", StartTime: "08:00", EndTime: "22:00", CourtsAvailable: 4},
	)
	bracket := createEvent(t, db, tournament.ID, 8, 4, planJSON(TemplateCanonical32, 0))
	rr := createEvent(t, db, tournament.ID, 4, 4, planJSON(TemplateRROnly, 0))
	addSeededTeams(t, db, bracket.ID, 8)
	addSeededTeams(t, db, rr.ID, 4)
	version := createDraft(t, db, tournament.ID)
	generateSlots(t, db, version.ID)

	result, err := NewOrchestrator(db).Build(tournament.ID, version.ID, models.BuildRequest{})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Summary.EventsBuilt)
	assert.Equal(t, 9+6, result.Summary.MatchesCreated)
	assert.Equal(t, 4+6, result.Summary.TeamsInjected)
	assert.Equal(t, 15, result.Summary.AssignedCount)
	assert.Zero(t, result.Summary.UnassignedCount)
}
