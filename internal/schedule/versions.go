package schedule

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"tournament-scheduler/backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Version statuses
const (
	VersionDraft = "draft"
	VersionFinal = "final"
)

// VersionService owns the schedule version lifecycle: draft creation,
// reset, finalization, and cloning.
type VersionService struct {
	db *gorm.DB
}

// NewVersionService creates a new version service
func NewVersionService(db *gorm.DB) *VersionService {
	return &VersionService{db: db}
}

// findTournament loads a tournament or returns a coded not-found failure
func findTournament(tx *gorm.DB, tournamentID string) (*models.Tournament, error) {
	var tournament models.Tournament
	if err := tx.Where("id = ?", tournamentID).First(&tournament).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrTournamentNotFound.With("tournament_id", tournamentID)
		}
		return nil, err
	}
	return &tournament, nil
}

// findEvent loads an event or returns a coded not-found failure
func findEvent(tx *gorm.DB, eventID string) (*models.Event, error) {
	var event models.Event
	if err := tx.Where("id = ?", eventID).First(&event).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrEventNotFound.With("event_id", eventID)
		}
		return nil, err
	}
	return &event, nil
}

// findVersion loads a schedule version or returns a coded not-found failure
func findVersion(tx *gorm.DB, versionID string) (*models.ScheduleVersion, error) {
	var version models.ScheduleVersion
	if err := tx.Where("id = ?", versionID).First(&version).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrVersionNotFound.With("schedule_version_id", versionID)
		}
		return nil, err
	}
	return &version, nil
}

// requireDraftVersion is the draft-only write guard every mutating operation
// runs first.
func requireDraftVersion(tx *gorm.DB, versionID string) (*models.ScheduleVersion, error) {
	version, err := findVersion(tx, versionID)
	if err != nil {
		return nil, err
	}
	if version.Status != VersionDraft {
		return nil, Errorf(CodeVersionNotDraft, "schedule version %s has status %s, expected draft", version.ID, version.Status).
			With("schedule_version_id", version.ID).
			With("status", version.Status)
	}
	return version, nil
}

// CreateDraft creates a new draft version with the next version number
func (s *VersionService) CreateDraft(tournamentID, notes string) (*models.ScheduleVersion, error) {
	var version *models.ScheduleVersion
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := findTournament(tx, tournamentID); err != nil {
			return err
		}

		var maxNumber int
		row := tx.Model(&models.ScheduleVersion{}).
			Where("tournament_id = ?", tournamentID).
			Select("COALESCE(MAX(version_number), 0)").
			Row()
		if err := row.Scan(&maxNumber); err != nil {
			return err
		}

		version = &models.ScheduleVersion{
			ID:            uuid.New().String(),
			TournamentID:  tournamentID,
			VersionNumber: maxNumber + 1,
			Status:        VersionDraft,
			Notes:         notes,
		}
		return tx.Create(version).Error
	})
	if err != nil {
		return nil, err
	}
	return version, nil
}

// Get retrieves a version by ID
func (s *VersionService) Get(versionID string) (*models.ScheduleVersion, error) {
	return findVersion(s.db, versionID)
}

// List retrieves all versions of a tournament, newest first
func (s *VersionService) List(tournamentID string) ([]models.ScheduleVersion, error) {
	var versions []models.ScheduleVersion
	if err := s.db.Where("tournament_id = ?", tournamentID).
		Order("version_number DESC").Find(&versions).Error; err != nil {
		return nil, err
	}
	return versions, nil
}

// ResetResult reports what a reset removed
type ResetResult struct {
	ScheduleVersionID  string `json:"schedule_version_id"`
	DeletedAssignments int64  `json:"deleted_assignments"`
	DeletedMatches     int64  `json:"deleted_matches"`
	DeletedSlots       int64  `json:"deleted_slots"`
}

// Reset empties a draft version: assignments, then matches, then slots,
// child before parent, in one transaction.
func (s *VersionService) Reset(versionID string) (*ResetResult, error) {
	result := &ResetResult{ScheduleVersionID: versionID}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := requireDraftVersion(tx, versionID); err != nil {
			return err
		}

		res := tx.Where("schedule_version_id = ?", versionID).Delete(&models.MatchAssignment{})
		if res.Error != nil {
			return res.Error
		}
		result.DeletedAssignments = res.RowsAffected

		res = tx.Where("schedule_version_id = ?", versionID).Delete(&models.Match{})
		if res.Error != nil {
			return res.Error
		}
		result.DeletedMatches = res.RowsAffected

		res = tx.Where("schedule_version_id = ?", versionID).Delete(&models.ScheduleSlot{})
		if res.Error != nil {
			return res.Error
		}
		result.DeletedSlots = res.RowsAffected
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Finalize runs the sanity checks and, when they pass, marks the version
// final with a deterministic content checksum. Finalized versions are
// immutable from then on.
func (s *VersionService) Finalize(versionID string) (*models.ScheduleVersion, error) {
	var version *models.ScheduleVersion
	err := s.db.Transaction(func(tx *gorm.DB) error {
		v, err := requireDraftVersion(tx, versionID)
		if err != nil {
			return err
		}

		if err := runSanityChecks(tx, v); err != nil {
			return err
		}

		checksum, err := ComputeChecksum(tx, versionID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		v.Status = VersionFinal
		v.FinalizedAt = &now
		v.FinalizedChecksum = &checksum
		if err := tx.Model(v).Updates(map[string]interface{}{
			"status":             VersionFinal,
			"finalized_at":       now,
			"finalized_checksum": checksum,
		}).Error; err != nil {
			return err
		}
		version = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return version, nil
}

// runSanityChecks enforces the finalization preconditions:
// no double-booked slot, version-consistent assignments, and match team
// references pointing at teams of the same event.
func runSanityChecks(tx *gorm.DB, version *models.ScheduleVersion) error {
	var assignments []models.MatchAssignment
	if err := tx.Where("schedule_version_id = ?", version.ID).Find(&assignments).Error; err != nil {
		return err
	}

	seenSlot := make(map[int64]bool, len(assignments))
	for _, a := range assignments {
		if seenSlot[a.SlotID] {
			return Errorf(CodeAssignmentOverlap, "slot %d is assigned more than once", a.SlotID).
				With("slot_id", a.SlotID)
		}
		seenSlot[a.SlotID] = true
	}

	if len(assignments) > 0 {
		matchIDs := make([]int64, len(assignments))
		slotIDs := make([]int64, len(assignments))
		for i, a := range assignments {
			matchIDs[i] = a.MatchID
			slotIDs[i] = a.SlotID
		}
		var count int64
		if err := tx.Model(&models.Match{}).
			Where("id IN ? AND schedule_version_id = ?", matchIDs, version.ID).
			Count(&count).Error; err != nil {
			return err
		}
		if int(count) != len(assignments) {
			return NewError(CodePlanInvalid, "assignment references a match outside this version")
		}
		if err := tx.Model(&models.ScheduleSlot{}).
			Where("id IN ? AND schedule_version_id = ?", slotIDs, version.ID).
			Count(&count).Error; err != nil {
			return err
		}
		if int(count) != len(assignments) {
			return NewError(CodePlanInvalid, "assignment references a slot outside this version")
		}
	}

	var matches []models.Match
	if err := tx.Where("schedule_version_id = ?", version.ID).Find(&matches).Error; err != nil {
		return err
	}
	for _, m := range matches {
		for _, teamID := range []*int64{m.TeamAID, m.TeamBID} {
			if teamID == nil {
				continue
			}
			var team models.Team
			if err := tx.Where("id = ?", *teamID).First(&team).Error; err != nil {
				if err == gorm.ErrRecordNotFound {
					return Errorf(CodePlanInvalid, "match %s references missing team %d", m.MatchCode, *teamID)
				}
				return err
			}
			if team.EventID != m.EventID {
				return Errorf(CodePlanInvalid, "match %s references team %d of another event", m.MatchCode, *teamID).
					With("match_id", m.ID).
					With("team_id", *teamID)
			}
		}
	}
	return nil
}

// ComputeChecksum builds the canonical serialization of a version's slots,
// matches, and assignments and returns its SHA-256 hex digest. The lines
// reference entities by their 1-based ordinal in canonical order rather than
// by storage id, so a cloned version with remapped ids and an independently
// built identical schedule both produce the same digest.
func ComputeChecksum(tx *gorm.DB, versionID string) (string, error) {
	var slots []models.ScheduleSlot
	if err := tx.Where("schedule_version_id = ?", versionID).Find(&slots).Error; err != nil {
		return "", err
	}
	sort.Slice(slots, func(i, j int) bool { return slotReadLess(&slots[i], &slots[j]) })

	var matches []models.Match
	if err := tx.Where("schedule_version_id = ?", versionID).Find(&matches).Error; err != nil {
		return "", err
	}
	sort.Slice(matches, func(i, j int) bool { return matchChecksumLess(&matches[i], &matches[j]) })

	var assignments []models.MatchAssignment
	if err := tx.Where("schedule_version_id = ?", versionID).Find(&assignments).Error; err != nil {
		return "", err
	}

	slotOrdinal := make(map[int64]int, len(slots))
	var lines []string
	for i, slot := range slots {
		slotOrdinal[slot.ID] = i + 1
		lines = append(lines, fmt.Sprintf("S|%s|%s|%d|%d", slot.DayDate, slot.StartTime, slot.CourtNumber, i+1))
	}

	matchOrdinal := make(map[int64]int, len(matches))
	for i, match := range matches {
		matchOrdinal[match.ID] = i + 1
		lines = append(lines, fmt.Sprintf("M|%s|%d|%d|%d", match.MatchType, match.RoundIndex, match.SequenceInRound, i+1))
	}

	type pair struct{ slot, match int }
	pairs := make([]pair, 0, len(assignments))
	for _, a := range assignments {
		pairs = append(pairs, pair{slot: slotOrdinal[a.SlotID], match: matchOrdinal[a.MatchID]})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].slot != pairs[j].slot {
			return pairs[i].slot < pairs[j].slot
		}
		return pairs[i].match < pairs[j].match
	})
	for _, p := range pairs {
		lines = append(lines, fmt.Sprintf("A|%d|%d", p.slot, p.match))
	}

	sum := sha256.Sum256([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(sum[:]), nil
}

// CloneResult reports the entity counts a clone copied
type CloneResult struct {
	SourceVersionID        string `json:"source_version_id"`
	NewVersionID           string `json:"new_version_id"`
	NewVersionNumber       int    `json:"new_version_number"`
	CopiedSlotsCount       int    `json:"copied_slots_count"`
	CopiedMatchesCount     int    `json:"copied_matches_count"`
	CopiedAssignmentsCount int    `json:"copied_assignments_count"`
}

// CloneToDraft deep-copies a finalized version into a new draft with
// remapped slot and match ids.
func (s *VersionService) CloneToDraft(versionID string) (*CloneResult, error) {
	var result *CloneResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		source, err := findVersion(tx, versionID)
		if err != nil {
			return err
		}
		if source.Status != VersionFinal {
			return ErrSourceNotFinal.
				With("schedule_version_id", source.ID).
				With("status", source.Status)
		}

		var maxNumber int
		row := tx.Model(&models.ScheduleVersion{}).
			Where("tournament_id = ?", source.TournamentID).
			Select("COALESCE(MAX(version_number), 0)").
			Row()
		if err := row.Scan(&maxNumber); err != nil {
			return err
		}

		draft := &models.ScheduleVersion{
			ID:            uuid.New().String(),
			TournamentID:  source.TournamentID,
			VersionNumber: maxNumber + 1,
			Status:        VersionDraft,
			Notes:         fmt.Sprintf("cloned from version %d", source.VersionNumber),
		}
		if err := tx.Create(draft).Error; err != nil {
			return err
		}

		var slots []models.ScheduleSlot
		if err := tx.Where("schedule_version_id = ?", source.ID).Order("id ASC").Find(&slots).Error; err != nil {
			return err
		}
		slotMap := make(map[int64]int64, len(slots))
		for i := range slots {
			oldID := slots[i].ID
			clone := slots[i]
			clone.ID = 0
			clone.ScheduleVersionID = draft.ID
			if err := tx.Create(&clone).Error; err != nil {
				return err
			}
			slotMap[oldID] = clone.ID
		}

		var matches []models.Match
		if err := tx.Where("schedule_version_id = ?", source.ID).Order("id ASC").Find(&matches).Error; err != nil {
			return err
		}
		matchMap := make(map[int64]int64, len(matches))
		for i := range matches {
			oldID := matches[i].ID
			clone := matches[i]
			clone.ID = 0
			clone.ScheduleVersionID = draft.ID
			if err := tx.Create(&clone).Error; err != nil {
				return err
			}
			matchMap[oldID] = clone.ID
		}

		var assignments []models.MatchAssignment
		if err := tx.Where("schedule_version_id = ?", source.ID).Order("id ASC").Find(&assignments).Error; err != nil {
			return err
		}
		for i := range assignments {
			clone := models.MatchAssignment{
				ScheduleVersionID: draft.ID,
				MatchID:           matchMap[assignments[i].MatchID],
				SlotID:            slotMap[assignments[i].SlotID],
			}
			if err := tx.Create(&clone).Error; err != nil {
				return err
			}
		}

		result = &CloneResult{
			SourceVersionID:        source.ID,
			NewVersionID:           draft.ID,
			NewVersionNumber:       draft.VersionNumber,
			CopiedSlotsCount:       len(slots),
			CopiedMatchesCount:     len(matches),
			CopiedAssignmentsCount: len(assignments),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
