package schedule

import (
	"encoding/json"
	"fmt"

	"tournament-scheduler/backend/internal/models"

	"gorm.io/gorm"
)

// Template types. WF_TO_POOLS_4 and CANONICAL_32 are legacy spellings that
// remain accepted on input; new plans should use the first three.
const (
	TemplateRROnly       = "RR_ONLY"
	TemplatePoolsDynamic = "WF_TO_POOLS_DYNAMIC"
	TemplateBrackets8    = "WF_TO_BRACKETS_8"
	TemplatePools4Legacy = "WF_TO_POOLS_4"
	TemplateCanonical32  = "CANONICAL_32"
)

// Match types
const (
	MatchTypeWF          = "WF"
	MatchTypeMain        = "MAIN"
	MatchTypeConsolation = "CONSOLATION"
	MatchTypePlacement   = "PLACEMENT"
)

// Placement types
const (
	PlacementMainSFLosers  = "MAIN_SF_LOSERS"
	PlacementConsR1Winners = "CONS_R1_WINNERS"
	PlacementConsR1Losers  = "CONS_R1_LOSERS"
)

// Draw statuses
const (
	DrawNotStarted = "not_started"
	DrawDraft      = "draft"
	DrawFinal      = "final"
)

// allowedDurations is the closed set of match durations in minutes.
var allowedDurations = map[int]bool{60: true, 90: true, 105: true, 120: true}

// Default block durations when neither the plan nor the event sets one
const (
	defaultWfMinutes       = 60
	defaultStandardMinutes = 90
)

// PlanTiming carries the per-stage block durations of a draw plan
type PlanTiming struct {
	WfBlockMinutes       int `json:"wf_block_minutes,omitempty"`
	StandardBlockMinutes int `json:"standard_block_minutes,omitempty"`
}

// DrawPlan is the event-scoped document describing template, WF rounds,
// durations, and cadence
type DrawPlan struct {
	TemplateType   string     `json:"template_type"`
	WfRounds       int        `json:"wf_rounds"`
	PostWf         string     `json:"post_wf,omitempty"`
	PoolAssignment string     `json:"pool_assignment,omitempty"`
	Timing         PlanTiming `json:"timing"`
	CadenceHint    string     `json:"cadence_hint,omitempty"`
}

// ParseDrawPlan decodes the event's embedded draw-plan document
func ParseDrawPlan(event *models.Event) (*DrawPlan, error) {
	if event.DrawPlan == "" {
		return nil, Errorf(CodePlanInvalid, "event %s has no draw plan", event.ID)
	}
	var plan DrawPlan
	if err := json.Unmarshal([]byte(event.DrawPlan), &plan); err != nil {
		return nil, Errorf(CodePlanInvalid, "event %s draw plan unparseable: %v", event.ID, err)
	}
	return &plan, nil
}

// WfDuration resolves the waterfall match duration for an event, falling back
// to the event-level default.
func (p *DrawPlan) WfDuration(event *models.Event) int {
	if p.Timing.WfBlockMinutes != 0 {
		return p.Timing.WfBlockMinutes
	}
	if event.WaterfallDurationMin != 0 {
		return event.WaterfallDurationMin
	}
	return defaultWfMinutes
}

// StandardDuration resolves the non-WF match duration for an event.
func (p *DrawPlan) StandardDuration(event *models.Event) int {
	if p.Timing.StandardBlockMinutes != 0 {
		return p.Timing.StandardBlockMinutes
	}
	if event.StandardDurationMin != 0 {
		return event.StandardDurationMin
	}
	return defaultStandardMinutes
}

// requiredWfRounds returns the WF round count fixed by (template, team_count).
// The bool reports whether the pair is recognized at all. CANONICAL_32 is the
// 8-team alias and tolerates wf_rounds 0 or 2; it reports its legacy fixed
// value 2 here and the validator special-cases the tolerance.
func requiredWfRounds(template string, teamCount int) (int, bool) {
	switch template {
	case TemplateRROnly:
		return 0, teamCount >= 2 && teamCount%2 == 0
	case TemplatePoolsDynamic:
		switch teamCount {
		case 8, 10:
			return 1, true
		case 12, 14, 16, 18, 20:
			return 2, true
		}
		return 0, false
	case TemplateBrackets8:
		return 2, teamCount == 32
	case TemplateCanonical32:
		return 2, teamCount == 8
	case TemplatePools4Legacy:
		return 2, teamCount == 16
	}
	return 0, false
}

// poolSize picks the post-WF pool size for a dynamic-pools event: the
// smallest size in {4,5,6,7} that divides the field evenly.
func poolSize(teamCount int) int {
	for _, s := range []int{4, 5, 6, 7} {
		if teamCount%s == 0 {
			return s
		}
	}
	return 0
}

// GroupTarget returns the number of WF groups the grouping engine must
// produce for an event, or 0 when the template carries no grouping stage.
func GroupTarget(template string, teamCount int) int {
	switch template {
	case TemplatePoolsDynamic, TemplatePools4Legacy:
		if s := poolSize(teamCount); s > 0 {
			return teamCount / s
		}
	case TemplateBrackets8:
		if teamCount == 32 {
			return 4
		}
	}
	return 0
}

// InventoryExpectation enumerates the match counts a validated plan will
// generate, per stage.
type InventoryExpectation struct {
	WF          int `json:"wf"`
	Main        int `json:"main"`
	Consolation int `json:"consolation"`
	Placement   int `json:"placement"`
	Total       int `json:"total"`
}

// bracketCounts returns (main, consolation, placement) for one 8-team bracket
// under the given guarantee.
func bracketCounts(guarantee int) (int, int, int) {
	// QF x4, SF x2, Final x1
	main := 7
	cons := 2
	placement := 0
	if guarantee == 5 {
		cons = 3
		placement = 3
	}
	return main, cons, placement
}

// ExpectedCounts computes the inventory a plan generates without touching
// the store. Fails with TEMPLATE_UNSUPPORTED on an unrecognized pair.
func ExpectedCounts(event *models.Event, plan *DrawPlan) (*InventoryExpectation, error) {
	n := event.TeamCount
	if _, ok := requiredWfRounds(plan.TemplateType, n); !ok {
		return nil, Errorf(CodeTemplateUnsupported, "template %s does not support team_count %d", plan.TemplateType, n).
			With("event_id", event.ID)
	}

	exp := &InventoryExpectation{}
	switch plan.TemplateType {
	case TemplateRROnly:
		exp.Main = n * (n - 1) / 2
	case TemplatePoolsDynamic, TemplatePools4Legacy:
		exp.WF = plan.WfRounds * (n / 2)
		s := poolSize(n)
		exp.Main = (n / s) * s * (s - 1) / 2
	case TemplateBrackets8:
		exp.WF = plan.WfRounds * (n / 2)
		m, c, p := bracketCounts(event.GuaranteeSelected)
		exp.Main, exp.Consolation, exp.Placement = 4*m, 4*c, 4*p
	case TemplateCanonical32:
		if plan.WfRounds > 0 {
			exp.WF = plan.WfRounds * (n / 2)
		}
		m, c, p := bracketCounts(event.GuaranteeSelected)
		exp.Main, exp.Consolation, exp.Placement = m, c, p
	}
	exp.Total = exp.WF + exp.Main + exp.Consolation + exp.Placement
	return exp, nil
}

// PlanCheck is the result of validating one event's draw plan
type PlanCheck struct {
	EventID  string  `json:"event_id"`
	OK       bool    `json:"ok"`
	Blocking []Issue `json:"blocking"`
	Warnings []Issue `json:"warnings"`
}

// ValidateEvent checks template/team-count compatibility and plan invariants.
// Blocking issues gate every downstream operation.
func ValidateEvent(event *models.Event) *PlanCheck {
	check := &PlanCheck{EventID: event.ID, Blocking: []Issue{}, Warnings: []Issue{}}
	block := func(code, format string, args ...interface{}) {
		check.Blocking = append(check.Blocking, Issue{Code: code, Message: fmt.Sprintf(format, args...)})
	}
	warn := func(code, format string, args ...interface{}) {
		check.Warnings = append(check.Warnings, Issue{Code: code, Message: fmt.Sprintf(format, args...)})
	}

	n := event.TeamCount
	if n < 2 {
		block("TEAM_COUNT_TOO_SMALL", "team_count %d must be at least 2", n)
	}
	if n%2 != 0 {
		block("TEAM_COUNT_ODD", "team_count %d must be even", n)
	}
	if event.GuaranteeSelected != 4 && event.GuaranteeSelected != 5 {
		block("GUARANTEE_INVALID", "guarantee_selected %d must be 4 or 5", event.GuaranteeSelected)
	}

	plan, err := ParseDrawPlan(event)
	if err != nil {
		block("PLAN_UNPARSEABLE", "%v", err)
		check.OK = false
		return check
	}

	fixedRounds, ok := requiredWfRounds(plan.TemplateType, n)
	if !ok {
		block("TEMPLATE_TEAM_COUNT_MISMATCH", "template %s does not support team_count %d", plan.TemplateType, n)
	} else {
		switch plan.TemplateType {
		case TemplateCanonical32:
			// 8-team alias: legacy plans carry 2, trimmed plans carry 0
			if plan.WfRounds != 0 && plan.WfRounds != 2 {
				block("WF_ROUNDS_MISMATCH", "template %s requires wf_rounds 0 or 2, got %d", plan.TemplateType, plan.WfRounds)
			}
		default:
			if plan.WfRounds != fixedRounds {
				block("WF_ROUNDS_MISMATCH", "template %s with %d teams requires wf_rounds %d, got %d", plan.TemplateType, n, fixedRounds, plan.WfRounds)
			}
		}
	}

	if plan.TemplateType == TemplateCanonical32 || plan.TemplateType == TemplatePools4Legacy {
		warn(WarnLegacyTemplate, "template %s is legacy; prefer %s", plan.TemplateType, preferredTemplate(plan.TemplateType))
	}

	if d := plan.WfDuration(event); !allowedDurations[d] {
		block("DURATION_INVALID", "wf_block_minutes %d not in {60, 90, 105, 120}", d)
	}
	if d := plan.StandardDuration(event); !allowedDurations[d] {
		block("DURATION_INVALID", "standard_block_minutes %d not in {60, 90, 105, 120}", d)
	}

	check.OK = len(check.Blocking) == 0
	return check
}

func preferredTemplate(legacy string) string {
	switch legacy {
	case TemplateCanonical32:
		return TemplateBrackets8
	case TemplatePools4Legacy:
		return TemplatePoolsDynamic
	}
	return legacy
}

// EventPlanReport is the per-event section of a plan report
type EventPlanReport struct {
	EventID      string                `json:"event_id"`
	EventName    string                `json:"event_name"`
	TemplateType string                `json:"template_type"`
	TeamCount    int                   `json:"team_count"`
	Guarantee    int                   `json:"guarantee_selected"`
	OK           bool                  `json:"ok"`
	Blocking     []Issue               `json:"blocking"`
	Warnings     []Issue               `json:"warnings"`
	Expected     *InventoryExpectation `json:"expected,omitempty"`
	TotalMinutes int                   `json:"total_minutes"`
}

// PlanReport enumerates per-event inventory expectations plus totals and,
// when a version is supplied, capacity hints against its slot supply.
type PlanReport struct {
	TournamentID  string               `json:"tournament_id"`
	Events        []EventPlanReport    `json:"events"`
	Totals        InventoryExpectation `json:"totals"`
	TotalMinutes  int                  `json:"total_minutes"`
	CourtMinutes  int                  `json:"court_minutes,omitempty"`
	CapacityHints []Issue              `json:"capacity_hints"`
}

// PlanValidator gates operations that depend on a plan being implementable
type PlanValidator struct {
	db *gorm.DB
}

// NewPlanValidator creates a new plan validator
func NewPlanValidator(db *gorm.DB) *PlanValidator {
	return &PlanValidator{db: db}
}

// GetPlanReport builds the tournament-wide plan report. versionID may be
// empty; when set, slot supply of that version feeds the capacity hints.
func (v *PlanValidator) GetPlanReport(tournamentID, versionID string) (*PlanReport, error) {
	var tournament models.Tournament
	if err := v.db.Where("id = ?", tournamentID).First(&tournament).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrTournamentNotFound.With("tournament_id", tournamentID)
		}
		return nil, err
	}

	var events []models.Event
	if err := v.db.Where("tournament_id = ?", tournamentID).Order("created_at ASC, id ASC").Find(&events).Error; err != nil {
		return nil, err
	}

	report := &PlanReport{TournamentID: tournamentID, Events: []EventPlanReport{}, CapacityHints: []Issue{}}
	for i := range events {
		event := &events[i]
		check := ValidateEvent(event)
		er := EventPlanReport{
			EventID:   event.ID,
			EventName: event.Name,
			TeamCount: event.TeamCount,
			Guarantee: event.GuaranteeSelected,
			OK:        check.OK,
			Blocking:  check.Blocking,
			Warnings:  check.Warnings,
		}
		if plan, err := ParseDrawPlan(event); err == nil {
			er.TemplateType = plan.TemplateType
			if check.OK {
				exp, err := ExpectedCounts(event, plan)
				if err == nil {
					er.Expected = exp
					er.TotalMinutes = exp.WF*plan.WfDuration(event) +
						(exp.Main+exp.Consolation+exp.Placement)*plan.StandardDuration(event)
					report.Totals.WF += exp.WF
					report.Totals.Main += exp.Main
					report.Totals.Consolation += exp.Consolation
					report.Totals.Placement += exp.Placement
					report.Totals.Total += exp.Total
					report.TotalMinutes += er.TotalMinutes
				}
			}
		}
		report.Events = append(report.Events, er)
	}

	if versionID != "" {
		var slotCount int64
		if err := v.db.Model(&models.ScheduleSlot{}).
			Where("schedule_version_id = ? AND is_active = ?", versionID, true).
			Count(&slotCount).Error; err != nil {
			return nil, err
		}
		report.CourtMinutes = int(slotCount) * 15
		if report.CourtMinutes > 0 {
			if report.TotalMinutes > report.CourtMinutes {
				report.CapacityHints = append(report.CapacityHints, Issue{
					Code:    WarnCapacityOver,
					Message: fmt.Sprintf("planned %d match minutes exceed %d available court minutes", report.TotalMinutes, report.CourtMinutes),
				})
			} else if report.TotalMinutes*2 < report.CourtMinutes {
				report.CapacityHints = append(report.CapacityHints, Issue{
					Code:    WarnCapacityUnder,
					Message: fmt.Sprintf("planned %d match minutes use under half of %d available court minutes", report.TotalMinutes, report.CourtMinutes),
				})
			}
		}
	}

	return report, nil
}
