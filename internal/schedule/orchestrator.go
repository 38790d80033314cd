package schedule

import (
	"errors"

	"tournament-scheduler/backend/internal/models"

	"gorm.io/gorm"
)

// Build pipeline step names, reported on failure
const (
	StepValidate  = "validate_plans"
	StepInventory = "generate_inventory"
	StepGrouping  = "assign_groups"
	StepInjection = "inject_teams"
	StepSlots     = "generate_slots"
	StepAssign    = "auto_assign"
	StepReport    = "build_report"
)

// Orchestrator runs the full build pipeline for one draft version in a
// single transaction: validate, inventory, grouping, injection, slots,
// assignment, report. A failure at any step rolls the whole run back and
// names the step.
type Orchestrator struct {
	db        *gorm.DB
	inventory *InventoryGenerator
	grouping  *GroupingEngine
	injector  *Injector
	assigner  *AssignmentEngine
}

// NewOrchestrator creates a new build orchestrator
func NewOrchestrator(db *gorm.DB) *Orchestrator {
	return &Orchestrator{
		db:        db,
		inventory: NewInventoryGenerator(db),
		grouping:  NewGroupingEngine(db),
		injector:  NewInjector(db),
		assigner:  NewAssignmentEngine(db),
	}
}

// BuildSummary aggregates the per-step counters of one build run
type BuildSummary struct {
	EventsBuilt     int   `json:"events_built"`
	MatchesCreated  int   `json:"matches_created"`
	MatchesKept     int   `json:"matches_kept"`
	GroupsAssigned  int   `json:"groups_assigned"`
	TeamsInjected   int   `json:"teams_injected"`
	SlotsAvailable  int   `json:"slots_available"`
	AssignedCount   int   `json:"assigned_count"`
	UnassignedCount int   `json:"unassigned_count"`
	WipedMatches    int64 `json:"wiped_matches"`
}

// BuildResult is the composite output of one build run
type BuildResult struct {
	TournamentID      string                `json:"tournament_id"`
	ScheduleVersionID string                `json:"schedule_version_id"`
	DryRun            bool                  `json:"dry_run"`
	Summary           BuildSummary          `json:"summary"`
	Warnings          []Issue               `json:"warnings"`
	Unassigned        []UnassignedMatch     `json:"unassigned"`
	RestViolations    RestViolationsSummary `json:"rest_violations_summary"`
	Grid              *ScheduleGrid         `json:"grid,omitempty"`
	Conflicts         *ConflictReport       `json:"conflicts,omitempty"`
}

// errDryRunBuild aborts a dry-run transaction after the pipeline completed
var errDryRunBuild = errors.New("dry run build rollback")

// stepError names the failed pipeline step on the error's context
func stepError(step string, err error) error {
	return AsError(err).With("failed_step", step)
}

// Build runs the pipeline for one tournament's draft version
func (o *Orchestrator) Build(tournamentID, versionID string, req models.BuildRequest) (*BuildResult, error) {
	result := &BuildResult{
		TournamentID:      tournamentID,
		ScheduleVersionID: versionID,
		DryRun:            req.DryRun,
		Warnings:          []Issue{},
		Unassigned:        []UnassignedMatch{},
	}

	err := o.db.Transaction(func(tx *gorm.DB) error {
		if _, err := findTournament(tx, tournamentID); err != nil {
			return stepError(StepValidate, err)
		}
		version, err := requireDraftVersion(tx, versionID)
		if err != nil {
			return stepError(StepValidate, err)
		}
		if version.TournamentID != tournamentID {
			return stepError(StepValidate,
				Errorf(CodePlanInvalid, "schedule version %s belongs to another tournament", versionID))
		}

		var events []models.Event
		if err := tx.Where("tournament_id = ?", tournamentID).
			Order("created_at ASC, id ASC").Find(&events).Error; err != nil {
			return stepError(StepValidate, err)
		}

		// step 1: every event's plan must validate before anything mutates
		for i := range events {
			check := ValidateEvent(&events[i])
			result.Warnings = append(result.Warnings, check.Warnings...)
			if !check.OK {
				err := Errorf(CodePlanInvalid, "event %s failed plan validation", events[i].ID).
					With("event_id", events[i].ID).
					With("blocking", check.Blocking)
				return stepError(StepValidate, err)
			}
		}

		// step 2: the match inventory per event. Without clear_existing a
		// version that already holds an event's matches keeps them as-is;
		// only clear_existing wipes and regenerates.
		for i := range events {
			event := &events[i]
			result.Summary.EventsBuilt++
			if !req.ClearExisting {
				var existing int64
				if err := tx.Model(&models.Match{}).
					Where("event_id = ? AND schedule_version_id = ?", event.ID, versionID).
					Count(&existing).Error; err != nil {
					return stepError(StepInventory, err)
				}
				if existing > 0 {
					result.Summary.MatchesKept += int(existing)
					continue
				}
			}
			inv, err := o.inventory.GenerateTx(tx, event, version, req.ClearExisting)
			if err != nil {
				return stepError(StepInventory, err)
			}
			result.Summary.MatchesCreated += inv.Created
			result.Summary.WipedMatches += int64(inv.Wiped)
		}

		// step 3: waterfall grouping where the template has one
		for i := range events {
			event := &events[i]
			plan, err := ParseDrawPlan(event)
			if err != nil {
				return stepError(StepGrouping, err)
			}
			if GroupTarget(plan.TemplateType, event.TeamCount) == 0 {
				continue
			}
			var teamCount int64
			if err := tx.Model(&models.Team{}).Where("event_id = ?", event.ID).Count(&teamCount).Error; err != nil {
				return stepError(StepGrouping, err)
			}
			if teamCount == 0 {
				result.Warnings = append(result.Warnings, Issue{
					Code:    WarnNoTeamsForEvent,
					Message: "event " + event.ID + " has no teams; grouping skipped",
				})
				continue
			}
			gr, err := o.grouping.AssignGroupsTx(tx, event)
			if err != nil {
				return stepError(StepGrouping, err)
			}
			result.Summary.GroupsAssigned += gr.Groups
		}

		// step 4: team injection for small fields; larger fields keep their
		// placeholders until brackets resolve
		for i := range events {
			event := &events[i]
			if event.TeamCount > 8 {
				var teamCount int64
				if err := tx.Model(&models.Team{}).Where("event_id = ?", event.ID).Count(&teamCount).Error; err != nil {
					return stepError(StepInjection, err)
				}
				if teamCount > 0 {
					result.Warnings = append(result.Warnings, Issue{
						Code:    WarnInjectionSkipped,
						Message: "event " + event.ID + " exceeds the 8-team injection limit; placeholders kept",
					})
				}
				continue
			}
			inj, err := o.injector.InjectTx(tx, event, version, nil)
			if err != nil {
				return stepError(StepInjection, err)
			}
			result.Warnings = append(result.Warnings, inj.Warnings...)
			result.Summary.TeamsInjected += inj.InjectedCount
		}

		// step 5: confirm the slot supply; slot generation has its own route
		// and build never widens its write surface to create slots
		var slotCount int64
		if err := tx.Model(&models.ScheduleSlot{}).
			Where("schedule_version_id = ? AND is_active = ?", versionID, true).
			Count(&slotCount).Error; err != nil {
			return stepError(StepSlots, err)
		}
		result.Summary.SlotsAvailable = int(slotCount)
		if slotCount == 0 {
			result.Warnings = append(result.Warnings, Issue{
				Code:    WarnNoSlotsForVersion,
				Message: "no slots available; assignment will place nothing",
			})
		}

		// step 6: rest-aware assignment
		var matchCount int64
		if err := tx.Model(&models.Match{}).
			Where("schedule_version_id = ?", versionID).
			Count(&matchCount).Error; err != nil {
			return stepError(StepAssign, err)
		}
		if matchCount == 0 {
			result.Warnings = append(result.Warnings, Issue{
				Code:    WarnNoMatchesToAssign,
				Message: "no matches generated; nothing to assign",
			})
		} else {
			outcome, err := o.assigner.AutoAssignTx(tx, version, models.AutoAssignRequest{
				ClearExisting: req.ClearExisting,
			})
			if err != nil {
				return stepError(StepAssign, err)
			}
			result.Summary.AssignedCount = outcome.AssignedCount
			result.Summary.UnassignedCount = outcome.UnassignedCount
			result.Unassigned = outcome.Unassigned
			result.RestViolations = outcome.RestViolationsSummary
		}

		// step 7: read models, built against the transaction so a dry run
		// still reports what it would have produced
		reporter := NewReporter(tx)
		grid, err := reporter.Grid(versionID)
		if err != nil {
			return stepError(StepReport, err)
		}
		conflicts, err := reporter.Report(versionID)
		if err != nil {
			return stepError(StepReport, err)
		}
		result.Grid = grid
		result.Conflicts = conflicts

		if req.DryRun {
			return errDryRunBuild
		}
		return nil
	})
	if err != nil {
		if req.DryRun && errors.Is(err, errDryRunBuild) {
			return result, nil
		}
		return nil, err
	}
	return result, nil
}
