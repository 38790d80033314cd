package schedule

import (
	"fmt"

	"tournament-scheduler/backend/internal/models"

	"gorm.io/gorm"
)

// InventoryGenerator produces the deterministic match list for an event
// inside a draft schedule version.
type InventoryGenerator struct {
	db *gorm.DB
}

// NewInventoryGenerator creates a new inventory generator
func NewInventoryGenerator(db *gorm.DB) *InventoryGenerator {
	return &InventoryGenerator{db: db}
}

// InventoryResult summarizes one generation run
type InventoryResult struct {
	EventID     string `json:"event_id"`
	Created     int    `json:"created"`
	Wiped       int    `json:"wiped"`
	WF          int    `json:"wf"`
	Main        int    `json:"main"`
	Consolation int    `json:"consolation"`
	Placement   int    `json:"placement"`
}

// Generate runs the generator for one event in its own transaction
func (g *InventoryGenerator) Generate(eventID, versionID string, wipeExisting bool) (*InventoryResult, error) {
	var result *InventoryResult
	err := g.db.Transaction(func(tx *gorm.DB) error {
		event, err := findEvent(tx, eventID)
		if err != nil {
			return err
		}
		version, err := requireDraftVersion(tx, versionID)
		if err != nil {
			return err
		}
		result, err = g.GenerateTx(tx, event, version, wipeExisting)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GenerateTx runs the generator inside the caller's transaction. The output
// is fully determined by the event's plan, guarantee, and team count; a
// wipeExisting re-run therefore reproduces the same inventory.
func (g *InventoryGenerator) GenerateTx(tx *gorm.DB, event *models.Event, version *models.ScheduleVersion, wipeExisting bool) (*InventoryResult, error) {
	check := ValidateEvent(event)
	if !check.OK {
		return nil, NewError(CodePlanInvalid, "draw plan has blocking issues").
			With("event_id", event.ID).
			With("blocking", check.Blocking)
	}
	plan, err := ParseDrawPlan(event)
	if err != nil {
		return nil, err
	}

	result := &InventoryResult{EventID: event.ID}

	if wipeExisting {
		var existing []models.Match
		if err := tx.Where("event_id = ? AND schedule_version_id = ?", event.ID, version.ID).Find(&existing).Error; err != nil {
			return nil, err
		}
		if len(existing) > 0 {
			ids := make([]int64, len(existing))
			for i, m := range existing {
				ids[i] = m.ID
			}
			if err := tx.Where("schedule_version_id = ? AND match_id IN ?", version.ID, ids).
				Delete(&models.MatchAssignment{}).Error; err != nil {
				return nil, err
			}
			if err := tx.Where("event_id = ? AND schedule_version_id = ?", event.ID, version.ID).
				Delete(&models.Match{}).Error; err != nil {
				return nil, err
			}
			result.Wiped = len(existing)
		}
	}

	matches, err := buildInventory(event, version, plan)
	if err != nil {
		return nil, err
	}

	for i := range matches {
		if err := tx.Create(&matches[i]).Error; err != nil {
			return nil, err
		}
		switch matches[i].MatchType {
		case MatchTypeWF:
			result.WF++
		case MatchTypeMain:
			result.Main++
		case MatchTypeConsolation:
			result.Consolation++
		case MatchTypePlacement:
			result.Placement++
		}
	}
	result.Created = len(matches)
	return result, nil
}

// buildInventory constructs the in-memory match list for a validated plan
func buildInventory(event *models.Event, version *models.ScheduleVersion, plan *DrawPlan) ([]models.Match, error) {
	n := event.TeamCount
	wfDur := plan.WfDuration(event)
	stdDur := plan.StandardDuration(event)

	base := func(code, matchType string, round, seq, duration int, sideA, sideB string) models.Match {
		return models.Match{
			EventID:           event.ID,
			ScheduleVersionID: version.ID,
			MatchCode:         code,
			MatchType:         matchType,
			RoundIndex:        round,
			SequenceInRound:   seq,
			DurationMinutes:   duration,
			PlaceholderSideA:  sideA,
			PlaceholderSideB:  sideB,
			Status:            "unscheduled",
		}
	}

	var matches []models.Match

	emitWF := func(rounds int) {
		for r := 1; r <= rounds; r++ {
			for s := 1; s <= n/2; s++ {
				matches = append(matches, base(
					fmt.Sprintf("WF%d_%d", r, s), MatchTypeWF, r, s, wfDur,
					fmt.Sprintf("WF R%d Slot %d", r, 2*s-1),
					fmt.Sprintf("WF R%d Slot %d", r, 2*s),
				))
			}
		}
	}

	switch plan.TemplateType {
	case TemplateRROnly:
		pairings := circlePairings(n)
		for r, roundPairs := range pairings {
			for s, pair := range roundPairs {
				matches = append(matches, base(
					fmt.Sprintf("RR%d_%d", r+1, s+1), MatchTypeMain, r+1, s+1, stdDur,
					fmt.Sprintf("Seed %d", pair[0]+1),
					fmt.Sprintf("Seed %d", pair[1]+1),
				))
			}
		}

	case TemplatePoolsDynamic, TemplatePools4Legacy:
		emitWF(plan.WfRounds)
		s := poolSize(n)
		pools := n / s
		poolPairings := circlePairings(s)
		for p := 1; p <= pools; p++ {
			seq := 0
			for _, roundPairs := range poolPairings {
				for _, pair := range roundPairs {
					seq++
					matches = append(matches, base(
						fmt.Sprintf("P%d_%d", p, seq), MatchTypeMain, p, seq, stdDur,
						fmt.Sprintf("Pool %d Team %d", p, pair[0]+1),
						fmt.Sprintf("Pool %d Team %d", p, pair[1]+1),
					))
				}
			}
		}

	case TemplateBrackets8:
		emitWF(plan.WfRounds)
		for b := 1; b <= 4; b++ {
			matches = append(matches, bracketMatches(event, version, fmt.Sprintf("B%d_", b), b, stdDur)...)
		}

	case TemplateCanonical32:
		if plan.WfRounds > 0 {
			emitWF(plan.WfRounds)
		}
		matches = append(matches, bracketMatches(event, version, "", 1, stdDur)...)

	default:
		return nil, Errorf(CodeTemplateUnsupported, "unrecognized template %s", plan.TemplateType)
	}

	return matches, nil
}

// bracketMatches emits the fixed 8-team bracket for one bracket instance.
// prefix namespaces the match codes when an event carries several brackets;
// bracket is the 1-based bracket number used for sequence offsets.
func bracketMatches(event *models.Event, version *models.ScheduleVersion, prefix string, bracket int, duration int) []models.Match {
	tier1 := 1
	tier2 := 2
	placement := func(t string) *string { return &t }

	m := func(suffix, matchType string, round, seq int, sideA, sideB string) models.Match {
		return models.Match{
			EventID:           event.ID,
			ScheduleVersionID: version.ID,
			MatchCode:         prefix + suffix,
			MatchType:         matchType,
			RoundIndex:        round,
			SequenceInRound:   seq,
			DurationMinutes:   duration,
			PlaceholderSideA:  prefix + sideA,
			PlaceholderSideB:  prefix + sideB,
			Status:            "unscheduled",
		}
	}

	qfSeq := (bracket - 1) * 4
	sfSeq := (bracket - 1) * 2

	out := []models.Match{
		m("QF1", MatchTypeMain, 1, qfSeq+1, "Seed 1", "Seed 8"),
		m("QF2", MatchTypeMain, 1, qfSeq+2, "Seed 4", "Seed 5"),
		m("QF3", MatchTypeMain, 1, qfSeq+3, "Seed 3", "Seed 6"),
		m("QF4", MatchTypeMain, 1, qfSeq+4, "Seed 2", "Seed 7"),
		m("SF1", MatchTypeMain, 2, sfSeq+1, "Winner of QF1", "Winner of QF2"),
		m("SF2", MatchTypeMain, 2, sfSeq+2, "Winner of QF3", "Winner of QF4"),
		m("FINAL", MatchTypeMain, 3, bracket, "Winner of SF1", "Winner of SF2"),
	}

	cons1a := m("CONS1_1", MatchTypeConsolation, 1, sfSeq+1, "Loser of QF1", "Loser of QF2")
	cons1a.ConsolationTier = &tier1
	cons1b := m("CONS1_2", MatchTypeConsolation, 1, sfSeq+2, "Loser of QF3", "Loser of QF4")
	cons1b.ConsolationTier = &tier1
	out = append(out, cons1a, cons1b)

	if event.GuaranteeSelected == 5 {
		cons2 := m("CONS2_1", MatchTypeConsolation, 2, bracket, "Loser of CONS1_1", "Loser of CONS1_2")
		cons2.ConsolationTier = &tier2
		pl1 := m("PL1_3rd4th", MatchTypePlacement, 1, bracket, "Loser of SF1", "Loser of SF2")
		pl1.PlacementType = placement(PlacementMainSFLosers)
		pl2 := m("PL2_5th6th", MatchTypePlacement, 1, bracket, "Winner of CONS1_1", "Winner of CONS1_2")
		pl2.PlacementType = placement(PlacementConsR1Winners)
		pl3 := m("PL3_7th8th", MatchTypePlacement, 1, bracket, "Loser of CONS1_1", "Loser of CONS1_2")
		pl3.PlacementType = placement(PlacementConsR1Losers)
		out = append(out, cons2, pl1, pl2, pl3)
	}

	return out
}

// circlePairings returns the standard circle-method round-robin schedule for
// n teams (n even) as 0-based index pairs: rounds[r][s] = {a, b}. Index 0
// stays fixed while the ring rotates; the fixed pair's sides alternate per
// round so team 0 does not always sit on side A.
func circlePairings(n int) [][][2]int {
	ring := make([]int, n-1)
	for i := range ring {
		ring[i] = i + 1
	}

	rounds := make([][][2]int, 0, n-1)
	for r := 0; r < n-1; r++ {
		arr := append([]int{0}, ring...)
		pairs := make([][2]int, 0, n/2)
		for i := 0; i < n/2; i++ {
			a, b := arr[i], arr[n-1-i]
			if i == 0 && r%2 == 1 {
				a, b = b, a
			}
			pairs = append(pairs, [2]int{a, b})
		}
		rounds = append(rounds, pairs)

		// rotate: last element moves to the front of the ring
		ring = append([]int{ring[len(ring)-1]}, ring[:len(ring)-1]...)
	}
	return rounds
}
