package schedule

import (
	"sort"

	"tournament-scheduler/backend/internal/models"

	"gorm.io/gorm"
)

// qfSeedPairs is the fixed seed placement of an 8-team bracket:
// QF1 seed1 v seed8, QF2 seed4 v seed5, QF3 seed3 v seed6, QF4 seed2 v seed7.
var qfSeedPairs = map[string][2]int{
	"QF1": {1, 8},
	"QF2": {4, 5},
	"QF3": {3, 6},
	"QF4": {2, 7},
}

// Injector attaches concrete team ids to matches whose participants are
// immediately resolvable; everything else keeps its textual placeholder.
type Injector struct {
	db *gorm.DB
}

// NewInjector creates a new team injector
func NewInjector(db *gorm.DB) *Injector {
	return &Injector{db: db}
}

// InjectionResult summarizes one injection run
type InjectionResult struct {
	EventID          string  `json:"event_id"`
	InjectedCount    int     `json:"injected_count"`
	PlaceholderCount int     `json:"placeholder_count"`
	Warnings         []Issue `json:"warnings"`
}

// Inject runs injection for one event in its own transaction
func (inj *Injector) Inject(eventID, versionID string, teamOrderOverride []int64) (*InjectionResult, error) {
	var result *InjectionResult
	err := inj.db.Transaction(func(tx *gorm.DB) error {
		event, err := findEvent(tx, eventID)
		if err != nil {
			return err
		}
		version, err := requireDraftVersion(tx, versionID)
		if err != nil {
			return err
		}
		result, err = inj.InjectTx(tx, event, version, teamOrderOverride)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// InjectTx runs injection inside the caller's transaction. Idempotent:
// prior injections on the event's version-bound matches are cleared first.
func (inj *Injector) InjectTx(tx *gorm.DB, event *models.Event, version *models.ScheduleVersion, teamOrderOverride []int64) (*InjectionResult, error) {
	result := &InjectionResult{EventID: event.ID, Warnings: []Issue{}}

	if event.TeamCount > 8 {
		return nil, Errorf(CodeInvalidTeamCount, "team injection supports at most 8 teams, event has %d", event.TeamCount).
			With("event_id", event.ID).
			With("team_count", event.TeamCount)
	}
	if event.TeamCount%2 != 0 {
		return nil, Errorf(CodeInvalidTeamCount, "team_count %d must be even", event.TeamCount).
			With("event_id", event.ID)
	}

	var teams []models.Team
	if err := tx.Where("event_id = ?", event.ID).Find(&teams).Error; err != nil {
		return nil, err
	}
	if len(teams) == 0 {
		result.Warnings = append(result.Warnings, Issue{
			Code:    WarnNoTeamsForEvent,
			Message: "event has no teams registered; injection skipped",
		})
		return result, nil
	}

	ordered, err := orderTeams(teams, teamOrderOverride)
	if err != nil {
		return nil, err
	}

	var matches []models.Match
	if err := tx.Where("event_id = ? AND schedule_version_id = ?", event.ID, version.ID).
		Find(&matches).Error; err != nil {
		return nil, err
	}

	// clear prior injections so a re-run starts from a clean slate
	if err := tx.Model(&models.Match{}).
		Where("event_id = ? AND schedule_version_id = ?", event.ID, version.ID).
		Updates(map[string]interface{}{"team_a_id": nil, "team_b_id": nil}).Error; err != nil {
		return nil, err
	}
	for i := range matches {
		matches[i].TeamAID = nil
		matches[i].TeamBID = nil
	}

	if event.TeamCount == 8 {
		err = injectBracket(tx, matches, ordered)
	} else {
		err = injectRoundRobin(tx, matches, ordered)
	}
	if err != nil {
		return nil, err
	}

	for i := range matches {
		if matches[i].TeamAID != nil && matches[i].TeamBID != nil {
			result.InjectedCount++
		} else {
			result.PlaceholderCount++
		}
	}
	return result, nil
}

// orderTeams applies the deterministic team ordering, or the explicit
// override when one is supplied.
func orderTeams(teams []models.Team, override []int64) ([]models.Team, error) {
	if len(override) == 0 {
		ordered := make([]models.Team, len(teams))
		copy(ordered, teams)
		sortTeamsCanonical(ordered)
		return ordered, nil
	}

	byID := make(map[int64]models.Team, len(teams))
	for _, t := range teams {
		byID[t.ID] = t
	}
	ordered := make([]models.Team, 0, len(override))
	for _, id := range override {
		team, ok := byID[id]
		if !ok {
			return nil, ErrTeamNotFound.With("team_id", id)
		}
		ordered = append(ordered, team)
	}
	return ordered, nil
}

// injectRoundRobin regenerates the circle-method pairing schedule and walks
// the MAIN matches in (round, sequence, id) order, assigning the next pair.
func injectRoundRobin(tx *gorm.DB, matches []models.Match, ordered []models.Team) error {
	n := len(ordered)
	pairings := circlePairings(n)
	var flat [][2]int
	for _, round := range pairings {
		flat = append(flat, round...)
	}

	var mains []*models.Match
	for i := range matches {
		if matches[i].MatchType == MatchTypeMain {
			mains = append(mains, &matches[i])
		}
	}
	sort.Slice(mains, func(i, j int) bool {
		if mains[i].RoundIndex != mains[j].RoundIndex {
			return mains[i].RoundIndex < mains[j].RoundIndex
		}
		if mains[i].SequenceInRound != mains[j].SequenceInRound {
			return mains[i].SequenceInRound < mains[j].SequenceInRound
		}
		return mains[i].ID < mains[j].ID
	})

	for i, match := range mains {
		if i >= len(flat) {
			break
		}
		teamA := ordered[flat[i][0]]
		teamB := ordered[flat[i][1]]
		match.TeamAID = &teamA.ID
		match.TeamBID = &teamB.ID
		if err := tx.Model(&models.Match{}).Where("id = ?", match.ID).
			Updates(map[string]interface{}{"team_a_id": teamA.ID, "team_b_id": teamB.ID}).Error; err != nil {
			return err
		}
	}
	return nil
}

// injectBracket resolves the four quarterfinals from the seed map; later
// rounds keep their placeholders.
func injectBracket(tx *gorm.DB, matches []models.Match, ordered []models.Team) error {
	for i := range matches {
		match := &matches[i]
		seeds, ok := qfSeedPairs[match.MatchCode]
		if !ok {
			continue
		}
		if seeds[0] > len(ordered) || seeds[1] > len(ordered) {
			continue
		}
		teamA := ordered[seeds[0]-1]
		teamB := ordered[seeds[1]-1]
		match.TeamAID = &teamA.ID
		match.TeamBID = &teamB.ID
		if err := tx.Model(&models.Match{}).Where("id = ?", match.ID).
			Updates(map[string]interface{}{"team_a_id": teamA.ID, "team_b_id": teamB.ID}).Error; err != nil {
			return err
		}
	}
	return nil
}
