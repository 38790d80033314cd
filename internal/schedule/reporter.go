package schedule

import (
	"fmt"
	"sort"

	"tournament-scheduler/backend/internal/models"

	"gorm.io/gorm"
)

// Reporter is the read-only diagnostic analyzer over a schedule version.
// It never writes; repeated calls on unchanged state produce identical
// output.
type Reporter struct {
	db *gorm.DB
}

// NewReporter creates a new reporter
func NewReporter(db *gorm.DB) *Reporter {
	return &Reporter{db: db}
}

// ReportSummary is the headline counts of a conflict report
type ReportSummary struct {
	TotalMatches    int     `json:"total_matches"`
	AssignedCount   int     `json:"assigned_count"`
	UnassignedCount int     `json:"unassigned_count"`
	TotalSlots      int     `json:"total_slots"`
	AssignmentRate  float64 `json:"assignment_rate"`
}

// CourtPressure is slot usage on one (day, court)
type CourtPressure struct {
	DayDate     string `json:"day_date"`
	CourtNumber int    `json:"court_number"`
	CourtLabel  string `json:"court_label"`
	TotalSlots  int    `json:"total_slots"`
	UsedSlots   int    `json:"used_slots"`
	UnusedSlots int    `json:"unused_slots"`
}

// SlotPressure groups unused slot counts and undersized blocks
type SlotPressure struct {
	Courts               []CourtPressure `json:"courts"`
	BlocksShorterThanMax int             `json:"blocks_shorter_than_longest_match"`
	LongestMatchMinutes  int             `json:"longest_match_minutes"`
}

// StageTimelineEntry is one stage's schedule span
type StageTimelineEntry struct {
	Stage            string `json:"stage"`
	AssignedCount    int    `json:"assigned_count"`
	UnassignedCount  int    `json:"unassigned_count"`
	FirstStart       string `json:"first_start,omitempty"` // "YYYY-MM-DD HH:MM"
	LastStart        string `json:"last_start,omitempty"`
	SpilloverWarning bool   `json:"spillover_warning"`
}

// OrderingViolation is one out-of-order pair in the slot-time walk
type OrderingViolation struct {
	Type         string `json:"type"` // STAGE_ORDER_INVERSION, ROUND_ORDER_INVERSION, ORDERING_VIOLATION
	EarlierMatch string `json:"earlier_match"`
	LaterMatch   string `json:"later_match"`
	EarlierStart string `json:"earlier_start"`
	LaterStart   string `json:"later_start"`
}

// WfGraphSummary describes the avoid graph of one event
type WfGraphSummary struct {
	Teams          int   `json:"teams"`
	AvoidEdges     int   `json:"avoid_edges"`
	Components     int   `json:"components"`
	ComponentSizes []int `json:"component_sizes"`
}

// WfGroupingSummary describes the persisted grouping of one event
type WfGroupingSummary struct {
	Groups            int   `json:"groups"`
	GroupSizes        []int `json:"group_sizes"`
	InternalConflicts []int `json:"internal_conflicts"`
}

// WfUnavoidableConflict is one avoid edge whose endpoints share a group
type WfUnavoidableConflict struct {
	TeamIDA    int64  `json:"team_id_a"`
	TeamIDB    int64  `json:"team_id_b"`
	GroupIndex int    `json:"group_index"`
	Reason     string `json:"reason,omitempty"`
}

// WfLensEntry is the per-event waterfall conflict lens
type WfLensEntry struct {
	EventID                 string                  `json:"event_id"`
	EventName               string                  `json:"event_name"`
	GraphSummary            WfGraphSummary          `json:"graph_summary"`
	GroupingSummary         WfGroupingSummary       `json:"grouping_summary"`
	UnavoidableConflicts    []WfUnavoidableConflict `json:"unavoidable_conflicts"`
	SeparationEffectiveness float64                 `json:"separation_effectiveness"`
}

// ConflictReport is the full diagnostic document
type ConflictReport struct {
	ScheduleVersionID string               `json:"schedule_version_id"`
	Summary           ReportSummary        `json:"summary"`
	Unassigned        []UnassignedMatch    `json:"unassigned"`
	SlotPressure      SlotPressure         `json:"slot_pressure"`
	StageTimeline     []StageTimelineEntry `json:"stage_timeline"`
	OrderingIntegrity []OrderingViolation  `json:"ordering_integrity"`
	WfConflictLens    []WfLensEntry        `json:"wf_conflict_lens"`
}

// Report builds the diagnostic report for a version
func (r *Reporter) Report(versionID string) (*ConflictReport, error) {
	version, err := findVersion(r.db, versionID)
	if err != nil {
		return nil, err
	}

	slots, err := loadSlots(r.db, versionID)
	if err != nil {
		return nil, err
	}

	var matches []models.Match
	if err := r.db.Where("schedule_version_id = ?", versionID).Find(&matches).Error; err != nil {
		return nil, err
	}
	sort.Slice(matches, func(i, j int) bool { return matchLess(&matches[i], &matches[j]) })

	var assignments []models.MatchAssignment
	if err := r.db.Where("schedule_version_id = ?", versionID).Find(&assignments).Error; err != nil {
		return nil, err
	}

	report := &ConflictReport{
		ScheduleVersionID: versionID,
		Unassigned:        []UnassignedMatch{},
		StageTimeline:     []StageTimelineEntry{},
		OrderingIntegrity: []OrderingViolation{},
		WfConflictLens:    []WfLensEntry{},
	}

	assignedMatch := make(map[int64]int64, len(assignments)) // match -> slot
	usedSlot := make(map[int64]int64, len(assignments))      // slot -> match
	for _, a := range assignments {
		assignedMatch[a.MatchID] = a.SlotID
		usedSlot[a.SlotID] = a.MatchID
	}

	report.Summary = ReportSummary{
		TotalMatches:    len(matches),
		AssignedCount:   len(assignments),
		UnassignedCount: len(matches) - len(assignments),
		TotalSlots:      len(slots),
	}
	if len(matches) > 0 {
		report.Summary.AssignmentRate = float64(len(assignments)) / float64(len(matches))
	}

	if err := r.recomputeUnassigned(version, matches, slots, assignedMatch, report); err != nil {
		return nil, err
	}
	r.buildSlotPressure(matches, slots, usedSlot, report)
	if err := r.buildStageTimeline(matches, slots, assignedMatch, report); err != nil {
		return nil, err
	}
	if err := r.buildOrderingIntegrity(matches, slots, assignedMatch, report); err != nil {
		return nil, err
	}
	if err := r.buildWfLens(version, report); err != nil {
		return nil, err
	}
	return report, nil
}

// recomputeUnassigned re-derives each unassigned match's reason with the
// same predicates the engine uses, against the committed assignments.
func (r *Reporter) recomputeUnassigned(
	version *models.ScheduleVersion,
	matches []models.Match,
	slots []models.ScheduleSlot,
	assignedMatch map[int64]int64,
	report *ConflictReport,
) error {
	ordered := make([]models.ScheduleSlot, len(slots))
	copy(ordered, slots)
	sort.Slice(ordered, func(i, j int) bool { return slotAssignLess(&ordered[i], &ordered[j]) })

	slotStartMin := make([]int, len(ordered))
	slotStartAbs := make([]int64, len(ordered))
	for i := range ordered {
		min, err := minutesOfDay(ordered[i].StartTime)
		if err != nil {
			return err
		}
		abs, err := absoluteMinutes(ordered[i].DayDate, min)
		if err != nil {
			return err
		}
		slotStartMin[i] = min
		slotStartAbs[i] = abs
	}

	dayEnds, err := loadDayEnds(r.db, version.TournamentID)
	if err != nil {
		return err
	}

	busy := make(map[courtKey][]occupied)
	assignedSlots := make(map[int64]bool)
	teamState := make(map[int64]restState)
	if err := seedExistingState(r.db, version, ordered, slotStartMin, slotStartAbs, busy, assignedSlots, teamState); err != nil {
		return err
	}

	engine := &AssignmentEngine{}
	for i := range matches {
		match := &matches[i]
		if _, ok := assignedMatch[match.ID]; ok {
			continue
		}
		idx, probe := engine.findSlot(match, ordered, slotStartMin, slotStartAbs, dayEnds, busy, assignedSlots, teamState, false)
		reason := ReasonNoCompatibleSlot
		if idx < 0 {
			reason = probe.reason(len(ordered))
		}
		report.Unassigned = append(report.Unassigned, UnassignedMatch{
			MatchID:   match.ID,
			MatchCode: match.MatchCode,
			Reason:    reason,
		})
	}
	return nil
}

func (r *Reporter) buildSlotPressure(
	matches []models.Match,
	slots []models.ScheduleSlot,
	usedSlot map[int64]int64,
	report *ConflictReport,
) {
	longest := 0
	for _, m := range matches {
		if m.DurationMinutes > longest {
			longest = m.DurationMinutes
		}
	}

	type courtAgg struct {
		pressure CourtPressure
	}
	keys := []string{}
	byKey := map[string]*courtAgg{}
	short := 0
	for _, slot := range slots {
		key := fmt.Sprintf("%s|%04d", slot.DayDate, slot.CourtNumber)
		agg, ok := byKey[key]
		if !ok {
			agg = &courtAgg{pressure: CourtPressure{
				DayDate:     slot.DayDate,
				CourtNumber: slot.CourtNumber,
				CourtLabel:  slot.CourtLabel,
			}}
			byKey[key] = agg
			keys = append(keys, key)
		}
		agg.pressure.TotalSlots++
		if _, used := usedSlot[slot.ID]; used {
			agg.pressure.UsedSlots++
		} else {
			agg.pressure.UnusedSlots++
		}
		if slot.BlockMinutes < longest {
			short++
		}
	}
	sort.Strings(keys)

	pressure := SlotPressure{Courts: []CourtPressure{}, BlocksShorterThanMax: short, LongestMatchMinutes: longest}
	for _, key := range keys {
		pressure.Courts = append(pressure.Courts, byKey[key].pressure)
	}
	report.SlotPressure = pressure
}

func (r *Reporter) buildStageTimeline(
	matches []models.Match,
	slots []models.ScheduleSlot,
	assignedMatch map[int64]int64,
	report *ConflictReport,
) error {
	slotByID := make(map[int64]*models.ScheduleSlot, len(slots))
	for i := range slots {
		slotByID[slots[i].ID] = &slots[i]
	}

	type span struct {
		entry    StageTimelineEntry
		firstAbs int64
		lastAbs  int64
		lastEnd  int64
		seen     bool
	}
	stages := []string{MatchTypeWF, MatchTypeMain, MatchTypeConsolation, MatchTypePlacement}
	spans := make(map[string]*span, len(stages))
	for _, s := range stages {
		spans[s] = &span{entry: StageTimelineEntry{Stage: s}}
	}

	for i := range matches {
		match := &matches[i]
		sp, ok := spans[match.MatchType]
		if !ok {
			continue
		}
		slotID, assigned := assignedMatch[match.ID]
		if !assigned {
			sp.entry.UnassignedCount++
			continue
		}
		sp.entry.AssignedCount++
		slot := slotByID[slotID]
		if slot == nil {
			continue
		}
		min, err := minutesOfDay(slot.StartTime)
		if err != nil {
			return err
		}
		abs, err := absoluteMinutes(slot.DayDate, min)
		if err != nil {
			return err
		}
		stamp := fmt.Sprintf("%s %s", slot.DayDate, slot.StartTime)
		if !sp.seen || abs < sp.firstAbs {
			sp.firstAbs = abs
			sp.entry.FirstStart = stamp
		}
		if !sp.seen || abs > sp.lastAbs {
			sp.lastAbs = abs
			sp.entry.LastStart = stamp
		}
		if end := abs + int64(match.DurationMinutes); end > sp.lastEnd {
			sp.lastEnd = end
		}
		sp.seen = true
	}

	// spillover: a lower-priority stage starting before a higher-priority
	// stage has finished
	for i, stage := range stages {
		sp := spans[stage]
		if !sp.seen {
			continue
		}
		for j := 0; j < i; j++ {
			higher := spans[stages[j]]
			if higher.seen && sp.firstAbs < higher.lastEnd {
				sp.entry.SpilloverWarning = true
			}
		}
	}

	for _, stage := range stages {
		sp := spans[stage]
		if sp.entry.AssignedCount > 0 || sp.entry.UnassignedCount > 0 {
			report.StageTimeline = append(report.StageTimeline, sp.entry)
		}
	}
	return nil
}

func (r *Reporter) buildOrderingIntegrity(
	matches []models.Match,
	slots []models.ScheduleSlot,
	assignedMatch map[int64]int64,
	report *ConflictReport,
) error {
	slotByID := make(map[int64]*models.ScheduleSlot, len(slots))
	for i := range slots {
		slotByID[slots[i].ID] = &slots[i]
	}
	matchByID := make(map[int64]*models.Match, len(matches))
	for i := range matches {
		matchByID[matches[i].ID] = &matches[i]
	}

	type timed struct {
		match *models.Match
		slot  *models.ScheduleSlot
		abs   int64
	}
	var walk []timed
	for matchID, slotID := range assignedMatch {
		match, slot := matchByID[matchID], slotByID[slotID]
		if match == nil || slot == nil {
			continue
		}
		min, err := minutesOfDay(slot.StartTime)
		if err != nil {
			return err
		}
		abs, err := absoluteMinutes(slot.DayDate, min)
		if err != nil {
			return err
		}
		walk = append(walk, timed{match: match, slot: slot, abs: abs})
	}
	sort.Slice(walk, func(i, j int) bool {
		if walk[i].abs != walk[j].abs {
			return walk[i].abs < walk[j].abs
		}
		if walk[i].slot.CourtNumber != walk[j].slot.CourtNumber {
			return walk[i].slot.CourtNumber < walk[j].slot.CourtNumber
		}
		return walk[i].slot.ID < walk[j].slot.ID
	})

	for i := 1; i < len(walk); i++ {
		prev, cur := walk[i-1], walk[i]
		if cur.abs == prev.abs {
			continue // simultaneous starts carry no ordering claim
		}
		if !matchLess(cur.match, prev.match) {
			continue
		}
		vType := "ORDERING_VIOLATION"
		if stagePriority(cur.match.MatchType) < stagePriority(prev.match.MatchType) {
			vType = "STAGE_ORDER_INVERSION"
		} else if cur.match.MatchType == prev.match.MatchType &&
			cur.match.EventID == prev.match.EventID &&
			cur.match.RoundIndex < prev.match.RoundIndex {
			vType = "ROUND_ORDER_INVERSION"
		}
		report.OrderingIntegrity = append(report.OrderingIntegrity, OrderingViolation{
			Type:         vType,
			EarlierMatch: prev.match.MatchCode,
			LaterMatch:   cur.match.MatchCode,
			EarlierStart: fmt.Sprintf("%s %s", prev.slot.DayDate, prev.slot.StartTime),
			LaterStart:   fmt.Sprintf("%s %s", cur.slot.DayDate, cur.slot.StartTime),
		})
	}
	return nil
}

func (r *Reporter) buildWfLens(version *models.ScheduleVersion, report *ConflictReport) error {
	var events []models.Event
	if err := r.db.Where("tournament_id = ?", version.TournamentID).
		Order("created_at ASC, id ASC").Find(&events).Error; err != nil {
		return err
	}

	for i := range events {
		event := &events[i]
		plan, err := ParseDrawPlan(event)
		if err != nil {
			continue
		}
		groups := GroupTarget(plan.TemplateType, event.TeamCount)
		if groups == 0 {
			continue
		}

		var teams []models.Team
		if err := r.db.Where("event_id = ?", event.ID).Find(&teams).Error; err != nil {
			return err
		}
		var edges []models.TeamAvoidEdge
		if err := r.db.Where("event_id = ?", event.ID).Order("team_id_a ASC, team_id_b ASC").Find(&edges).Error; err != nil {
			return err
		}

		adjacency := make(map[int64][]int64, len(teams))
		for _, e := range edges {
			adjacency[e.TeamIDA] = append(adjacency[e.TeamIDA], e.TeamIDB)
			adjacency[e.TeamIDB] = append(adjacency[e.TeamIDB], e.TeamIDA)
		}
		componentSizes := connectedComponentSizes(teams, adjacency)

		groupOf := make(map[int64]int, len(teams))
		sizes := make([]int, groups)
		grouped := 0
		for _, t := range teams {
			if t.WfGroupIndex == nil {
				continue
			}
			groupOf[t.ID] = *t.WfGroupIndex
			if *t.WfGroupIndex >= 0 && *t.WfGroupIndex < groups {
				sizes[*t.WfGroupIndex]++
			}
			grouped++
		}

		internal := make([]int, groups)
		separated := 0
		unavoidable := []WfUnavoidableConflict{}
		for _, e := range edges {
			ga, okA := groupOf[e.TeamIDA]
			gb, okB := groupOf[e.TeamIDB]
			if !okA || !okB {
				continue
			}
			if ga == gb {
				if ga >= 0 && ga < groups {
					internal[ga]++
				}
				unavoidable = append(unavoidable, WfUnavoidableConflict{
					TeamIDA:    e.TeamIDA,
					TeamIDB:    e.TeamIDB,
					GroupIndex: ga,
					Reason:     e.Reason,
				})
			} else {
				separated++
			}
		}

		effectiveness := 1.0
		if len(edges) > 0 {
			effectiveness = float64(separated) / float64(len(edges))
		}

		report.WfConflictLens = append(report.WfConflictLens, WfLensEntry{
			EventID:   event.ID,
			EventName: event.Name,
			GraphSummary: WfGraphSummary{
				Teams:          len(teams),
				AvoidEdges:     len(edges),
				Components:     len(componentSizes),
				ComponentSizes: componentSizes,
			},
			GroupingSummary: WfGroupingSummary{
				Groups:            groups,
				GroupSizes:        sizes,
				InternalConflicts: internal,
			},
			UnavoidableConflicts:    unavoidable,
			SeparationEffectiveness: effectiveness,
		})
	}
	return nil
}

// GridCell is one scheduled match in the grid read model
type GridCell struct {
	MatchID   int64  `json:"match_id"`
	MatchCode string `json:"match_code"`
	EventID   string `json:"event_id"`
	MatchType string `json:"match_type"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	TeamAID   *int64 `json:"team_a_id,omitempty"`
	TeamBID   *int64 `json:"team_b_id,omitempty"`
	SideA     string `json:"side_a"`
	SideB     string `json:"side_b"`
}

// GridCourt is one court's ordered schedule on one day
type GridCourt struct {
	CourtNumber int        `json:"court_number"`
	CourtLabel  string     `json:"court_label"`
	Cells       []GridCell `json:"cells"`
}

// GridDay is one day of the grid
type GridDay struct {
	DayDate string      `json:"day_date"`
	Courts  []GridCourt `json:"courts"`
}

// ScheduleGrid is the day-by-court read model of a version
type ScheduleGrid struct {
	ScheduleVersionID string            `json:"schedule_version_id"`
	Days              []GridDay         `json:"days"`
	Unassigned        []UnassignedMatch `json:"unassigned"`
}

// Grid builds the day/court grid for a version
func (r *Reporter) Grid(versionID string) (*ScheduleGrid, error) {
	if _, err := findVersion(r.db, versionID); err != nil {
		return nil, err
	}

	slots, err := loadSlots(r.db, versionID)
	if err != nil {
		return nil, err
	}
	var matches []models.Match
	if err := r.db.Where("schedule_version_id = ?", versionID).Find(&matches).Error; err != nil {
		return nil, err
	}
	var assignments []models.MatchAssignment
	if err := r.db.Where("schedule_version_id = ?", versionID).Find(&assignments).Error; err != nil {
		return nil, err
	}

	matchByID := make(map[int64]*models.Match, len(matches))
	for i := range matches {
		matchByID[matches[i].ID] = &matches[i]
	}
	matchBySlot := make(map[int64]*models.Match, len(assignments))
	assigned := make(map[int64]bool, len(assignments))
	for _, a := range assignments {
		if m := matchByID[a.MatchID]; m != nil {
			matchBySlot[a.SlotID] = m
			assigned[m.ID] = true
		}
	}

	// the read model nests court under day, so walk (day, court, start)
	// rather than the flat read order
	ordered := make([]models.ScheduleSlot, len(slots))
	copy(ordered, slots)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].DayDate != ordered[j].DayDate {
			return ordered[i].DayDate < ordered[j].DayDate
		}
		if ordered[i].CourtNumber != ordered[j].CourtNumber {
			return ordered[i].CourtNumber < ordered[j].CourtNumber
		}
		if ordered[i].StartTime != ordered[j].StartTime {
			return ordered[i].StartTime < ordered[j].StartTime
		}
		return ordered[i].ID < ordered[j].ID
	})

	grid := &ScheduleGrid{ScheduleVersionID: versionID, Days: []GridDay{}, Unassigned: []UnassignedMatch{}}
	var day *GridDay
	var court *GridCourt
	for i := range ordered {
		slot := &ordered[i]
		match, ok := matchBySlot[slot.ID]
		if !ok {
			continue
		}
		if day == nil || day.DayDate != slot.DayDate {
			grid.Days = append(grid.Days, GridDay{DayDate: slot.DayDate, Courts: []GridCourt{}})
			day = &grid.Days[len(grid.Days)-1]
			court = nil
		}
		if court == nil || court.CourtNumber != slot.CourtNumber {
			day.Courts = append(day.Courts, GridCourt{CourtNumber: slot.CourtNumber, CourtLabel: slot.CourtLabel, Cells: []GridCell{}})
			court = &day.Courts[len(day.Courts)-1]
		}
		startMin, err := minutesOfDay(slot.StartTime)
		if err != nil {
			return nil, err
		}
		court.Cells = append(court.Cells, GridCell{
			MatchID:   match.ID,
			MatchCode: match.MatchCode,
			EventID:   match.EventID,
			MatchType: match.MatchType,
			StartTime: slot.StartTime,
			EndTime:   clockOfMinutes(startMin + match.DurationMinutes),
			TeamAID:   match.TeamAID,
			TeamBID:   match.TeamBID,
			SideA:     match.PlaceholderSideA,
			SideB:     match.PlaceholderSideB,
		})
	}

	sort.Slice(matches, func(i, j int) bool { return matchLess(&matches[i], &matches[j]) })
	for i := range matches {
		if !assigned[matches[i].ID] {
			grid.Unassigned = append(grid.Unassigned, UnassignedMatch{
				MatchID:   matches[i].ID,
				MatchCode: matches[i].MatchCode,
			})
		}
	}
	return grid, nil
}
