package schedule

import (
	"encoding/json"
	"fmt"
	"sort"

	"tournament-scheduler/backend/internal/models"

	"gorm.io/gorm"
)

// Slot sources
const (
	SlotSourceAuto   = "auto"
	SlotSourceManual = "manual"
)

// slotTickMinutes is the start-opportunity cadence
const slotTickMinutes = 15

// SlotGenerator emits 15-minute start opportunities across tournament days
// and courts for one draft version.
type SlotGenerator struct {
	db *gorm.DB
}

// NewSlotGenerator creates a new slot generator
func NewSlotGenerator(db *gorm.DB) *SlotGenerator {
	return &SlotGenerator{db: db}
}

// SlotResult summarizes one generation run
type SlotResult struct {
	ScheduleVersionID string `json:"schedule_version_id"`
	SlotsCreated      int    `json:"slots_created"`
	SlotsWiped        int64  `json:"slots_wiped"`
}

// Generate runs the generator in its own transaction
func (g *SlotGenerator) Generate(req models.GenerateSlotsRequest) (*SlotResult, error) {
	var result *SlotResult
	err := g.db.Transaction(func(tx *gorm.DB) error {
		version, err := requireDraftVersion(tx, req.ScheduleVersionID)
		if err != nil {
			return err
		}
		result, err = g.GenerateTx(tx, version, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GenerateTx emits one slot per 15-minute tick from each window's start
// (inclusive) to its end (exclusive), per court, inside the caller's
// transaction.
func (g *SlotGenerator) GenerateTx(tx *gorm.DB, version *models.ScheduleVersion, req models.GenerateSlotsRequest) (*SlotResult, error) {
	result := &SlotResult{ScheduleVersionID: version.ID}

	if req.WipeExisting {
		res := tx.Where("schedule_version_id = ?", version.ID).Delete(&models.MatchAssignment{})
		if res.Error != nil {
			return nil, res.Error
		}
		res = tx.Where("schedule_version_id = ?", version.ID).Delete(&models.ScheduleSlot{})
		if res.Error != nil {
			return nil, res.Error
		}
		result.SlotsWiped = res.RowsAffected
	}

	source := req.Source
	if source == "" {
		source = SlotSourceAuto
	}

	var ranges []models.ManualSlotRange
	switch source {
	case SlotSourceAuto:
		var days []models.TournamentDay
		if err := tx.Where("tournament_id = ? AND is_active = ?", version.TournamentID, true).
			Find(&days).Error; err != nil {
			return nil, err
		}
		sort.Slice(days, func(i, j int) bool { return days[i].DayDate < days[j].DayDate })
		for _, day := range days {
			labels := courtLabels(&day)
			for court := 1; court <= day.CourtsAvailable; court++ {
				ranges = append(ranges, models.ManualSlotRange{
					DayDate:     day.DayDate,
					StartTime:   day.StartTime,
					EndTime:     day.EndTime,
					CourtNumber: court,
					CourtLabel:  labels[court-1],
				})
			}
		}
	case SlotSourceManual:
		ranges = req.Ranges
	default:
		return nil, Errorf(CodePlanInvalid, "unknown slot source %q", source)
	}

	for _, r := range ranges {
		startMin, err := minutesOfDay(r.StartTime)
		if err != nil {
			return nil, NewError(CodePlanInvalid, err.Error())
		}
		endMin, err := minutesOfDay(r.EndTime)
		if err != nil {
			return nil, NewError(CodePlanInvalid, err.Error())
		}
		if endMin <= startMin {
			return nil, Errorf(CodePlanInvalid, "day %s window end %s is not after start %s", r.DayDate, r.EndTime, r.StartTime)
		}
		if !validDate(r.DayDate) {
			return nil, Errorf(CodePlanInvalid, "invalid day date %q", r.DayDate)
		}

		label := r.CourtLabel
		if label == "" {
			label = fmt.Sprintf("Court %d", r.CourtNumber)
		}
		for tick := startMin; tick < endMin; tick += slotTickMinutes {
			slot := models.ScheduleSlot{
				ScheduleVersionID: version.ID,
				DayDate:           r.DayDate,
				StartTime:         clockOfMinutes(tick),
				EndTime:           clockOfMinutes(tick + slotTickMinutes),
				CourtNumber:       r.CourtNumber,
				CourtLabel:        label,
				BlockMinutes:      slotTickMinutes,
				IsActive:          true,
			}
			if err := tx.Create(&slot).Error; err != nil {
				return nil, err
			}
			result.SlotsCreated++
		}
	}
	return result, nil
}

// ListSlots returns a version's active slots in deterministic read order
func (g *SlotGenerator) ListSlots(versionID string) ([]models.ScheduleSlot, error) {
	return loadSlots(g.db, versionID)
}

func loadSlots(tx *gorm.DB, versionID string) ([]models.ScheduleSlot, error) {
	var slots []models.ScheduleSlot
	if err := tx.Where("schedule_version_id = ? AND is_active = ?", versionID, true).
		Find(&slots).Error; err != nil {
		return nil, err
	}
	sort.Slice(slots, func(i, j int) bool { return slotReadLess(&slots[i], &slots[j]) })
	return slots, nil
}

// courtLabels resolves per-court labels for a day, falling back to
// "Court N" when the day carries none.
func courtLabels(day *models.TournamentDay) []string {
	labels := make([]string, day.CourtsAvailable)
	var configured []string
	if day.CourtLabels != "" {
		_ = json.Unmarshal([]byte(day.CourtLabels), &configured)
	}
	for i := 0; i < day.CourtsAvailable; i++ {
		if i < len(configured) && configured[i] != "" {
			labels[i] = configured[i]
		} else {
			labels[i] = fmt.Sprintf("Court %d", i+1)
		}
	}
	return labels
}
