package schedule

import (
	"sort"

	"tournament-scheduler/backend/internal/models"

	"gorm.io/gorm"
)

// Rest rule constants in minutes: a team coming out of a waterfall match
// needs 60 minutes before a scoring match; any other consecutive pair
// needs 90.
const (
	restAfterWaterfall = 60
	restDefault        = 90
)

// AssignmentEngine deterministically first-fits matches onto slots,
// honoring duration, court non-overlap, and per-team rest gaps. No
// backtracking, no swaps, no randomness.
type AssignmentEngine struct {
	db *gorm.DB
}

// NewAssignmentEngine creates a new assignment engine
func NewAssignmentEngine(db *gorm.DB) *AssignmentEngine {
	return &AssignmentEngine{db: db}
}

// UnassignedMatch names one match the engine could not place and why
type UnassignedMatch struct {
	MatchID   int64  `json:"match_id"`
	MatchCode string `json:"match_code"`
	Reason    string `json:"reason"`
}

// RestViolationsSummary aggregates rest-blocked placements by rule
type RestViolationsSummary struct {
	WfToScoringViolations      int `json:"wf_to_scoring_violations"`
	ScoringToScoringViolations int `json:"scoring_to_scoring_violations"`
	TotalRestBlocked           int `json:"total_rest_blocked"`
}

// AssignmentOutcome is the engine's result
type AssignmentOutcome struct {
	ScheduleVersionID     string                `json:"schedule_version_id"`
	AssignedCount         int                   `json:"assigned_count"`
	UnassignedCount       int                   `json:"unassigned_count"`
	Unassigned            []UnassignedMatch     `json:"unassigned"`
	RestViolationsSummary RestViolationsSummary `json:"rest_violations_summary"`
}

// restState is the per-team (last match end, last match stage) tracker
type restState struct {
	endAbs int64
	stage  string
}

// occupied is one busy interval on a (day, court)
type occupied struct {
	startMin int
	endMin   int
}

type courtKey struct {
	day   string
	court int
}

// AutoAssign runs the engine in its own transaction
func (e *AssignmentEngine) AutoAssign(versionID string, req models.AutoAssignRequest) (*AssignmentOutcome, error) {
	var outcome *AssignmentOutcome
	err := e.db.Transaction(func(tx *gorm.DB) error {
		version, err := requireDraftVersion(tx, versionID)
		if err != nil {
			return err
		}
		outcome, err = e.AutoAssignTx(tx, version, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// AutoAssignTx runs the single-pass first-fit inside the caller's
// transaction. Identical inputs yield identical assignments.
func (e *AssignmentEngine) AutoAssignTx(tx *gorm.DB, version *models.ScheduleVersion, req models.AutoAssignRequest) (*AssignmentOutcome, error) {
	outcome := &AssignmentOutcome{
		ScheduleVersionID: version.ID,
		Unassigned:        []UnassignedMatch{},
	}

	if req.ClearExisting {
		if err := tx.Where("schedule_version_id = ?", version.ID).
			Delete(&models.MatchAssignment{}).Error; err != nil {
			return nil, err
		}
		if err := tx.Model(&models.Match{}).
			Where("schedule_version_id = ?", version.ID).
			Update("status", "unscheduled").Error; err != nil {
			return nil, err
		}
	}

	slots, err := loadSlots(tx, version.ID)
	if err != nil {
		return nil, err
	}
	sort.Slice(slots, func(i, j int) bool { return slotAssignLess(&slots[i], &slots[j]) })

	var matches []models.Match
	if err := tx.Where("schedule_version_id = ?", version.ID).Find(&matches).Error; err != nil {
		return nil, err
	}
	sort.Slice(matches, func(i, j int) bool { return matchLess(&matches[i], &matches[j]) })

	dayEnds, err := loadDayEnds(tx, version.TournamentID)
	if err != nil {
		return nil, err
	}

	slotStartMin := make([]int, len(slots))
	slotStartAbs := make([]int64, len(slots))
	for i := range slots {
		min, err := minutesOfDay(slots[i].StartTime)
		if err != nil {
			return nil, NewError(CodePlanInvalid, err.Error())
		}
		abs, err := absoluteMinutes(slots[i].DayDate, min)
		if err != nil {
			return nil, NewError(CodePlanInvalid, err.Error())
		}
		slotStartMin[i] = min
		slotStartAbs[i] = abs
	}

	busy := make(map[courtKey][]occupied)
	assignedSlots := make(map[int64]bool)
	teamState := make(map[int64]restState)

	// seed occupancy and rest state from assignments that survive a
	// non-clearing run
	if !req.ClearExisting {
		if err := seedExistingState(tx, version, slots, slotStartMin, slotStartAbs, busy, assignedSlots, teamState); err != nil {
			return nil, err
		}
	}

	alreadyAssigned := make(map[int64]bool)
	var existing []models.MatchAssignment
	if err := tx.Where("schedule_version_id = ?", version.ID).Find(&existing).Error; err != nil {
		return nil, err
	}
	for _, a := range existing {
		alreadyAssigned[a.MatchID] = true
	}

	for mi := range matches {
		match := &matches[mi]
		if alreadyAssigned[match.ID] {
			outcome.AssignedCount++
			continue
		}

		idx, probe := e.findSlot(match, slots, slotStartMin, slotStartAbs, dayEnds, busy, assignedSlots, teamState, req.HonorPreferredDay)
		if idx < 0 {
			reason := probe.reason(len(slots))
			outcome.Unassigned = append(outcome.Unassigned, UnassignedMatch{
				MatchID:   match.ID,
				MatchCode: match.MatchCode,
				Reason:    reason,
			})
			outcome.UnassignedCount++
			if reason == ReasonNoRestCompatibleSlot {
				outcome.RestViolationsSummary.TotalRestBlocked++
				if probe.restBlockedWf {
					outcome.RestViolationsSummary.WfToScoringViolations++
				}
				if probe.restBlockedScoring {
					outcome.RestViolationsSummary.ScoringToScoringViolations++
				}
			}
			continue
		}

		slot := &slots[idx]
		assignment := models.MatchAssignment{
			ScheduleVersionID: version.ID,
			MatchID:           match.ID,
			SlotID:            slot.ID,
		}
		if err := tx.Create(&assignment).Error; err != nil {
			return nil, err
		}
		if err := tx.Model(&models.Match{}).Where("id = ?", match.ID).
			Update("status", "scheduled").Error; err != nil {
			return nil, err
		}

		key := courtKey{day: slot.DayDate, court: slot.CourtNumber}
		busy[key] = append(busy[key], occupied{startMin: slotStartMin[idx], endMin: slotStartMin[idx] + match.DurationMinutes})
		assignedSlots[slot.ID] = true
		endAbs := slotStartAbs[idx] + int64(match.DurationMinutes)
		for _, teamID := range []*int64{match.TeamAID, match.TeamBID} {
			if teamID != nil {
				teamState[*teamID] = restState{endAbs: endAbs, stage: match.MatchType}
			}
		}
		outcome.AssignedCount++
	}

	return outcome, nil
}

// slotProbe tracks why candidate slots were rejected so the final reason is
// the most specific one.
type slotProbe struct {
	anyUnoccupied      bool
	anyFits            bool
	restBlockedWf      bool
	restBlockedScoring bool
}

func (p *slotProbe) reason(totalSlots int) string {
	switch {
	case totalSlots == 0 || !p.anyUnoccupied:
		return ReasonSlotsExhausted
	case !p.anyFits:
		return ReasonDurationTooLong
	case p.restBlockedWf || p.restBlockedScoring:
		return ReasonNoRestCompatibleSlot
	default:
		return ReasonNoCompatibleSlot
	}
}

// findSlot walks slots in canonical order and returns the first compatible
// index, or -1 with the probe explaining the failure. When preferred-day
// handling is enabled and the match carries one, slots on that day are
// tried first; the canonical order still governs within each pass.
func (e *AssignmentEngine) findSlot(
	match *models.Match,
	slots []models.ScheduleSlot,
	slotStartMin []int,
	slotStartAbs []int64,
	dayEnds map[string]int,
	busy map[courtKey][]occupied,
	assignedSlots map[int64]bool,
	teamState map[int64]restState,
	honorPreferredDay bool,
) (int, *slotProbe) {
	probe := &slotProbe{}

	passes := [][]bool{nil} // nil = no day filter
	if honorPreferredDay && match.PreferredDay != nil {
		filter := make([]bool, len(slots))
		for i := range slots {
			filter[i] = slots[i].DayDate == *match.PreferredDay
		}
		passes = [][]bool{filter, nil}
	}

	for _, filter := range passes {
		for i := range slots {
			if filter != nil && !filter[i] {
				continue
			}
			slot := &slots[i]
			startMin := slotStartMin[i]
			endMin := startMin + match.DurationMinutes

			// condition 1: court not occupied over the match's span
			if assignedSlots[slot.ID] {
				continue
			}
			key := courtKey{day: slot.DayDate, court: slot.CourtNumber}
			overlaps := false
			for _, iv := range busy[key] {
				if startMin < iv.endMin && iv.startMin < endMin {
					overlaps = true
					break
				}
			}
			if overlaps {
				continue
			}
			probe.anyUnoccupied = true

			// condition 2: enough wall clock before day end
			dayEnd, ok := dayEnds[slot.DayDate]
			if !ok {
				dayEnd = 24 * 60
			}
			if endMin > dayEnd {
				continue
			}
			probe.anyFits = true

			// condition 3: rest gap for each resolved team
			restOK := true
			for _, teamID := range []*int64{match.TeamAID, match.TeamBID} {
				if teamID == nil {
					continue
				}
				state, played := teamState[*teamID]
				if !played {
					continue
				}
				gap := restDefault
				if state.stage == MatchTypeWF && match.MatchType != MatchTypeWF {
					gap = restAfterWaterfall
				}
				if slotStartAbs[i] < state.endAbs+int64(gap) {
					restOK = false
					if gap == restAfterWaterfall {
						probe.restBlockedWf = true
					} else {
						probe.restBlockedScoring = true
					}
				}
			}
			if !restOK {
				continue
			}
			return i, probe
		}
	}
	return -1, probe
}

// loadDayEnds maps day dates to their end-of-day minute for condition 2
func loadDayEnds(tx *gorm.DB, tournamentID string) (map[string]int, error) {
	var days []models.TournamentDay
	if err := tx.Where("tournament_id = ?", tournamentID).Find(&days).Error; err != nil {
		return nil, err
	}
	ends := make(map[string]int, len(days))
	for _, day := range days {
		endMin, err := minutesOfDay(day.EndTime)
		if err != nil {
			return nil, NewError(CodePlanInvalid, err.Error())
		}
		ends[day.DayDate] = endMin
	}
	return ends, nil
}

// seedExistingState replays surviving assignments into the occupancy map
// and per-team rest tracker so an incremental run respects them.
func seedExistingState(
	tx *gorm.DB,
	version *models.ScheduleVersion,
	slots []models.ScheduleSlot,
	slotStartMin []int,
	slotStartAbs []int64,
	busy map[courtKey][]occupied,
	assignedSlots map[int64]bool,
	teamState map[int64]restState,
) error {
	slotIdx := make(map[int64]int, len(slots))
	for i := range slots {
		slotIdx[slots[i].ID] = i
	}

	var assignments []models.MatchAssignment
	if err := tx.Where("schedule_version_id = ?", version.ID).Find(&assignments).Error; err != nil {
		return err
	}
	if len(assignments) == 0 {
		return nil
	}

	matchByID := make(map[int64]models.Match)
	var matches []models.Match
	if err := tx.Where("schedule_version_id = ?", version.ID).Find(&matches).Error; err != nil {
		return err
	}
	for _, m := range matches {
		matchByID[m.ID] = m
	}

	// replay in slot-time order so each team's rest state ends at its
	// latest match
	sort.Slice(assignments, func(i, j int) bool {
		ii, oki := slotIdx[assignments[i].SlotID]
		jj, okj := slotIdx[assignments[j].SlotID]
		if !oki || !okj {
			return assignments[i].ID < assignments[j].ID
		}
		return slotStartAbs[ii] < slotStartAbs[jj]
	})

	for _, a := range assignments {
		i, ok := slotIdx[a.SlotID]
		if !ok {
			continue
		}
		match, ok := matchByID[a.MatchID]
		if !ok {
			continue
		}
		slot := &slots[i]
		key := courtKey{day: slot.DayDate, court: slot.CourtNumber}
		busy[key] = append(busy[key], occupied{startMin: slotStartMin[i], endMin: slotStartMin[i] + match.DurationMinutes})
		assignedSlots[slot.ID] = true
		endAbs := slotStartAbs[i] + int64(match.DurationMinutes)
		for _, teamID := range []*int64{match.TeamAID, match.TeamBID} {
			if teamID != nil {
				if prev, seen := teamState[*teamID]; !seen || endAbs > prev.endAbs {
					teamState[*teamID] = restState{endAbs: endAbs, stage: match.MatchType}
				}
			}
		}
	}
	return nil
}
