package schedule

import (
	"encoding/json"
	"testing"

	"tournament-scheduler/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReport_SummaryAndByteStability(t *testing.T) {
	db := setupTestDB(t)
	_, _, version := buildSmallSchedule(t, db)
	reporter := NewReporter(db)

	report, err := reporter.Report(version.ID)
	require.NoError(t, err)

	assert.Equal(t, 9, report.Summary.TotalMatches)
	assert.Equal(t, 9, report.Summary.AssignedCount)
	assert.Zero(t, report.Summary.UnassignedCount)
	assert.Equal(t, 96, report.Summary.TotalSlots)
	assert.Equal(t, 1.0, report.Summary.AssignmentRate)
	assert.Empty(t, report.Unassigned)
	assert.Empty(t, report.OrderingIntegrity)

	// repeat calls on unchanged state must serialize identically
	first, err := json.Marshal(report)
	require.NoError(t, err)
	again, err := reporter.Report(version.ID)
	require.NoError(t, err)
	second, err := json.Marshal(again)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestReport_SlotPressure(t *testing.T) {
	db := setupTestDB(t)
	_, _, version := buildSmallSchedule(t, db)

	report, err := NewReporter(db).Report(version.ID)
	require.NoError(t, err)

	// one day, two courts
	require.Len(t, report.SlotPressure.Courts, 2)
	total, used := 0, 0
	for _, court := range report.SlotPressure.Courts {
		assert.Equal(t, "2026-06-05", court.DayDate)
		assert.Equal(t, court.TotalSlots, court.UsedSlots+court.UnusedSlots)
		total += court.TotalSlots
		used += court.UsedSlots
	}
	assert.Equal(t, 96, total)
	assert.Equal(t, 9, used)

	// every 15-minute block is shorter than a 90-minute match
	assert.Equal(t, 90, report.SlotPressure.LongestMatchMinutes)
	assert.Equal(t, 96, report.SlotPressure.BlocksShorterThanMax)
}

func TestReport_UnassignedReasonsMatchEngine(t *testing.T) {
	db := setupTestDB(t)
	event, version, teams := assignmentFixture(t, db, models.DayRequest{
		DayDate: "2026-06-05", StartTime: "09:00", EndTime: "12:00", CourtsAvailable: 1,
	})
	newTestMatch(t, db, event.ID, version.ID, "M1", MatchTypeMain, 1, 1, 90, &teams[0].ID, &teams[1].ID)
	newTestMatch(t, db, event.ID, version.ID, "M2", MatchTypeMain, 2, 1, 90, &teams[0].ID, &teams[1].ID)

	outcome, err := NewAssignmentEngine(db).AutoAssign(version.ID, models.AutoAssignRequest{})
	require.NoError(t, err)
	require.Len(t, outcome.Unassigned, 1)

	report, err := NewReporter(db).Report(version.ID)
	require.NoError(t, err)
	require.Len(t, report.Unassigned, 1)
	assert.Equal(t, outcome.Unassigned[0].MatchCode, report.Unassigned[0].MatchCode)
	assert.Equal(t, outcome.Unassigned[0].Reason, report.Unassigned[0].Reason)
}

func TestReport_StageTimelineAndOrdering(t *testing.T) {
	db := setupTestDB(t)
	event, version, teams := assignmentFixture(t, db, models.DayRequest{
		DayDate: "2026-06-05", StartTime: "09:00", EndTime: "21:00", CourtsAvailable: 1,
	})

	// hand-place a scoring match before the waterfall finishes
	wf := newTestMatch(t, db, event.ID, version.ID, "WF1_1", MatchTypeWF, 1, 1, 60, &teams[0].ID, &teams[1].ID)
	main := newTestMatch(t, db, event.ID, version.ID, "QF1", MatchTypeMain, 1, 1, 90, &teams[2].ID, &teams[3].ID)

	slots, err := NewSlotGenerator(db).ListSlots(version.ID)
	require.NoError(t, err)
	slotAt := func(start string) int64 {
		for _, s := range slots {
			if s.StartTime == start {
				return s.ID
			}
		}
		t.Fatalf("no slot at %s", start)
		return 0
	}
	require.NoError(t, db.Create(&models.MatchAssignment{ScheduleVersionID: version.ID, MatchID: main.ID, SlotID: slotAt("09:00")}).Error)
	require.NoError(t, db.Create(&models.MatchAssignment{ScheduleVersionID: version.ID, MatchID: wf.ID, SlotID: slotAt("10:00")}).Error)

	report, err := NewReporter(db).Report(version.ID)
	require.NoError(t, err)

	byStage := make(map[string]StageTimelineEntry)
	for _, entry := range report.StageTimeline {
		byStage[entry.Stage] = entry
	}
	require.Contains(t, byStage, MatchTypeWF)
	require.Contains(t, byStage, MatchTypeMain)
	assert.Equal(t, "2026-06-05 10:00", byStage[MatchTypeWF].FirstStart)
	assert.False(t, byStage[MatchTypeWF].SpilloverWarning)
	// the scoring stage starts before the waterfall stage ends
	assert.True(t, byStage[MatchTypeMain].SpilloverWarning)

	require.Len(t, report.OrderingIntegrity, 1)
	violation := report.OrderingIntegrity[0]
	assert.Equal(t, "STAGE_ORDER_INVERSION", violation.Type)
	assert.Equal(t, "QF1", violation.EarlierMatch)
	assert.Equal(t, "WF1_1", violation.LaterMatch)
}

func TestReport_WfConflictLens(t *testing.T) {
	db := setupTestDB(t)
	service := NewService(db)
	tournament := createTournament(t, db)
	event := createEvent(t, db, tournament.ID, 8, 4, planJSON(TemplatePoolsDynamic, 1))
	teams := addSeededTeams(t, db, event.ID, 8)
	addEdge(t, service, event.ID, teams[0].ID, teams[1].ID)
	version := createDraft(t, db, tournament.ID)

	_, err := NewGroupingEngine(db).AssignGroups(event.ID)
	require.NoError(t, err)

	report, err := NewReporter(db).Report(version.ID)
	require.NoError(t, err)
	require.Len(t, report.WfConflictLens, 1)

	lens := report.WfConflictLens[0]
	assert.Equal(t, event.ID, lens.EventID)
	assert.Equal(t, 8, lens.GraphSummary.Teams)
	assert.Equal(t, 1, lens.GraphSummary.AvoidEdges)
	assert.Equal(t, 7, lens.GraphSummary.Components)
	assert.Equal(t, 2, lens.GroupingSummary.Groups)
	assert.Equal(t, []int{4, 4}, lens.GroupingSummary.GroupSizes)
	assert.Empty(t, lens.UnavoidableConflicts)
	assert.Equal(t, 1.0, lens.SeparationEffectiveness)
}

func TestGrid_DayCourtStructure(t *testing.T) {
	db := setupTestDB(t)
	_, _, version := buildSmallSchedule(t, db)

	grid, err := NewReporter(db).Grid(version.ID)
	require.NoError(t, err)
	require.Len(t, grid.Days, 1)
	assert.Equal(t, "2026-06-05", grid.Days[0].DayDate)
	require.Len(t, grid.Days[0].Courts, 2)
	assert.Empty(t, grid.Unassigned)

	cells := 0
	for _, court := range grid.Days[0].Courts {
		last := ""
		for _, cell := range court.Cells {
			cells++
			assert.NotEmpty(t, cell.MatchCode)
			// cells run in start-time order within a court
			assert.True(t, last < cell.StartTime, "cells out of order: %s after %s", cell.StartTime, last)
			last = cell.StartTime
		}
	}
	assert.Equal(t, 9, cells)

	// end time follows the match duration, not the 15-minute block
	first := grid.Days[0].Courts[0].Cells[0]
	assert.Equal(t, "09:00", first.StartTime)
	assert.Equal(t, "10:30", first.EndTime)
}

func TestGrid_ListsUnassignedMatches(t *testing.T) {
	db := setupTestDB(t)
	tournament := createTournament(t, db)
	event := createEvent(t, db, tournament.ID, 4, 4, planJSON(TemplateRROnly, 0))
	version := createDraft(t, db, tournament.ID)

	_, err := NewInventoryGenerator(db).Generate(event.ID, version.ID, false)
	require.NoError(t, err)

	grid, err := NewReporter(db).Grid(version.ID)
	require.NoError(t, err)
	assert.Empty(t, grid.Days)
	assert.Len(t, grid.Unassigned, 6)
	assert.Equal(t, "RR1_1", grid.Unassigned[0].MatchCode)
}

func TestReport_VersionNotFound(t *testing.T) {
	db := setupTestDB(t)
	reporter := NewReporter(db)
	_, err := reporter.Report("missing")
	requireCode(t, err, CodeNotFound)
	_, err = reporter.Grid("missing")
	requireCode(t, err, CodeNotFound)
}
