package schedule

import (
	"testing"
	"time"

	"tournament-scheduler/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addEdge(t *testing.T, service *Service, eventID string, a, b int64) {
	t.Helper()
	_, err := service.AddAvoidEdge(eventID, models.AvoidEdgePair{TeamIDA: a, TeamIDB: b, Reason: "same club"})
	require.NoError(t, err)
}

func TestAssignGroups_SeparatesAvoidedPair(t *testing.T) {
	db := setupTestDB(t)
	service := NewService(db)
	tournament := createTournament(t, db)
	event := createEvent(t, db, tournament.ID, 8, 4, planJSON(TemplatePoolsDynamic, 1))
	teams := addSeededTeams(t, db, event.ID, 8)
	addEdge(t, service, event.ID, teams[0].ID, teams[1].ID)

	result, err := NewGroupingEngine(db).AssignGroups(event.ID)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Groups)
	assert.Equal(t, []int{4, 4}, result.GroupSizes)
	assert.Equal(t, 1, result.TotalAvoidEdges)
	assert.Equal(t, 1, result.SeparatedEdges)
	assert.Equal(t, 1.0, result.SeparationRate)
	assert.Equal(t, []int{0, 0}, result.InternalConflicts)
	// one linked pair plus six singletons
	assert.Equal(t, 7, result.Components)
	assert.Equal(t, 2, result.ComponentSizes[0])

	groupOf := make(map[int64]int)
	for _, a := range result.Assignments {
		groupOf[a.TeamID] = a.GroupIndex
	}
	assert.NotEqual(t, groupOf[teams[0].ID], groupOf[teams[1].ID])

	// wf_group_index persisted on every team
	var persisted []models.Team
	require.NoError(t, db.Where("event_id = ?", event.ID).Find(&persisted).Error)
	for _, team := range persisted {
		require.NotNil(t, team.WfGroupIndex, "team %s", team.Name)
		assert.Equal(t, groupOf[team.ID], *team.WfGroupIndex)
	}
}

func TestAssignGroups_TriangleLeavesOneInternalConflict(t *testing.T) {
	db := setupTestDB(t)
	service := NewService(db)
	tournament := createTournament(t, db)
	event := createEvent(t, db, tournament.ID, 8, 4, planJSON(TemplatePoolsDynamic, 1))
	teams := addSeededTeams(t, db, event.ID, 8)

	// a triangle cannot be 2-colored; exactly one edge stays internal
	addEdge(t, service, event.ID, teams[0].ID, teams[1].ID)
	addEdge(t, service, event.ID, teams[0].ID, teams[2].ID)
	addEdge(t, service, event.ID, teams[1].ID, teams[2].ID)

	result, err := NewGroupingEngine(db).AssignGroups(event.ID)
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalAvoidEdges)
	assert.Equal(t, 2, result.SeparatedEdges)
	assert.InDelta(t, 2.0/3.0, result.SeparationRate, 1e-9)
	assert.Equal(t, 1, result.InternalConflicts[0]+result.InternalConflicts[1])
	assert.Equal(t, 3, result.ComponentSizes[0])
}

func TestAssignGroups_Deterministic(t *testing.T) {
	db := setupTestDB(t)
	service := NewService(db)
	tournament := createTournament(t, db)
	event := createEvent(t, db, tournament.ID, 12, 4, planJSON(TemplatePoolsDynamic, 2))
	teams := addSeededTeams(t, db, event.ID, 12)
	addEdge(t, service, event.ID, teams[2].ID, teams[7].ID)
	addEdge(t, service, event.ID, teams[4].ID, teams[9].ID)

	engine := NewGroupingEngine(db)
	first, err := engine.AssignGroups(event.ID)
	require.NoError(t, err)
	second, err := engine.AssignGroups(event.ID)
	require.NoError(t, err)

	assert.Equal(t, first.Assignments, second.Assignments)
	assert.Equal(t, first.GroupSizes, second.GroupSizes)
	assert.Equal(t, 3, first.Groups)
	assert.Equal(t, []int{4, 4, 4}, first.GroupSizes)
}

func TestAssignGroups_CapacityMismatch(t *testing.T) {
	db := setupTestDB(t)
	tournament := createTournament(t, db)
	event := createEvent(t, db, tournament.ID, 8, 4, planJSON(TemplatePoolsDynamic, 1))
	addSeededTeams(t, db, event.ID, 7)

	_, err := NewGroupingEngine(db).AssignGroups(event.ID)
	requireCode(t, err, CodeGroupCapacityMismatch)
}

func TestAssignGroups_TemplateWithoutGroupingStage(t *testing.T) {
	db := setupTestDB(t)
	tournament := createTournament(t, db)
	event := createEvent(t, db, tournament.ID, 6, 4, planJSON(TemplateRROnly, 0))
	addSeededTeams(t, db, event.ID, 6)

	_, err := NewGroupingEngine(db).AssignGroups(event.ID)
	requireCode(t, err, CodeTemplateUnsupported)
}

func TestSortTeamsCanonical(t *testing.T) {
	seed := func(n int) *int { return &n }
	rating := func(r float64) *float64 { return &r }
	at := func(s string) *time.Time {
		ts, err := time.Parse(time.RFC3339, s)
		require.NoError(t, err)
		return &ts
	}

	teams := []models.Team{
		{ID: 1, Name: "unseeded late", RegisteredAt: at("2026-03-02T10:00:00Z")},
		{ID: 2, Name: "seed two", Seed: seed(2)},
		{ID: 3, Name: "unseeded strong", Rating: rating(1800)},
		{ID: 4, Name: "seed one", Seed: seed(1)},
		{ID: 5, Name: "unseeded early", RegisteredAt: at("2026-03-01T10:00:00Z")},
		{ID: 6, Name: "unseeded blank"},
	}

	sortTeamsCanonical(teams)

	got := make([]int64, len(teams))
	for i, team := range teams {
		got[i] = team.ID
	}
	// seeds first; then rating desc; then registration asc; ids last
	assert.Equal(t, []int64{4, 2, 3, 5, 1, 6}, got)
}
