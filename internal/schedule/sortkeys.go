package schedule

import "tournament-scheduler/backend/internal/models"

// stagePriority is the fixed stage ordering used by every canonical sort:
// WF first, then MAIN, CONSOLATION, PLACEMENT.
func stagePriority(matchType string) int {
	switch matchType {
	case MatchTypeWF:
		return 1
	case MatchTypeMain:
		return 2
	case MatchTypeConsolation:
		return 3
	case MatchTypePlacement:
		return 4
	}
	return 5
}

// placementOrder fixes the tie-break among placement matches
func placementOrder(placementType *string) int {
	if placementType == nil {
		return 0
	}
	switch *placementType {
	case PlacementMainSFLosers:
		return 1
	case PlacementConsR1Winners:
		return 2
	case PlacementConsR1Losers:
		return 3
	}
	return 4
}

// matchLess is the canonical match ordering: stage priority, round index,
// event, match type, placement order, sequence, match code. MAIN finals
// (round 3) sort before any PLACEMENT because stage priority dominates.
func matchLess(a, b *models.Match) bool {
	if pa, pb := stagePriority(a.MatchType), stagePriority(b.MatchType); pa != pb {
		return pa < pb
	}
	if a.RoundIndex != b.RoundIndex {
		return a.RoundIndex < b.RoundIndex
	}
	if a.EventID != b.EventID {
		return a.EventID < b.EventID
	}
	if a.MatchType != b.MatchType {
		return a.MatchType < b.MatchType
	}
	if pa, pb := placementOrder(a.PlacementType), placementOrder(b.PlacementType); pa != pb {
		return pa < pb
	}
	if a.SequenceInRound != b.SequenceInRound {
		return a.SequenceInRound < b.SequenceInRound
	}
	return a.MatchCode < b.MatchCode
}

// matchChecksumLess orders matches for the finalization checksum:
// (match_type, round_index, sequence_in_round, id), match_type in stage
// priority order.
func matchChecksumLess(a, b *models.Match) bool {
	if pa, pb := stagePriority(a.MatchType), stagePriority(b.MatchType); pa != pb {
		return pa < pb
	}
	if a.RoundIndex != b.RoundIndex {
		return a.RoundIndex < b.RoundIndex
	}
	if a.SequenceInRound != b.SequenceInRound {
		return a.SequenceInRound < b.SequenceInRound
	}
	return a.ID < b.ID
}

// slotReadLess is the deterministic read order for slots:
// (day_date, start_time, court_number, id).
func slotReadLess(a, b *models.ScheduleSlot) bool {
	if a.DayDate != b.DayDate {
		return a.DayDate < b.DayDate
	}
	if a.StartTime != b.StartTime {
		return a.StartTime < b.StartTime
	}
	if a.CourtNumber != b.CourtNumber {
		return a.CourtNumber < b.CourtNumber
	}
	return a.ID < b.ID
}

// slotAssignLess is the slot ordering the assignment engine walks:
// (day_date, start minutes, court_label, id).
func slotAssignLess(a, b *models.ScheduleSlot) bool {
	if a.DayDate != b.DayDate {
		return a.DayDate < b.DayDate
	}
	if a.StartTime != b.StartTime {
		return a.StartTime < b.StartTime
	}
	if a.CourtLabel != b.CourtLabel {
		return a.CourtLabel < b.CourtLabel
	}
	return a.ID < b.ID
}
