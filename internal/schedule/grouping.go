package schedule

import (
	"sort"
	"time"

	"tournament-scheduler/backend/internal/models"

	"gorm.io/gorm"
)

// GroupingEngine partitions the teams of a WF-bearing event into
// equally-sized groups so that avoid-edges cross group boundaries whenever
// possible. The heuristic is a single deterministic pass; unavoidable
// conflicts are reported, never raised.
type GroupingEngine struct {
	db *gorm.DB
}

// NewGroupingEngine creates a new grouping engine
func NewGroupingEngine(db *gorm.DB) *GroupingEngine {
	return &GroupingEngine{db: db}
}

// TeamGroup is one team's resulting group index
type TeamGroup struct {
	TeamID     int64 `json:"team_id"`
	GroupIndex int   `json:"group_index"`
}

// GroupingResult summarizes one grouping run
type GroupingResult struct {
	EventID           string      `json:"event_id"`
	Groups            int         `json:"groups"`
	GroupSizes        []int       `json:"group_sizes"`
	InternalConflicts []int       `json:"internal_conflicts"`
	TotalAvoidEdges   int         `json:"total_avoid_edges"`
	SeparatedEdges    int         `json:"separated_edges"`
	SeparationRate    float64     `json:"separation_rate"`
	Components        int         `json:"components"`
	ComponentSizes    []int       `json:"component_sizes"`
	Assignments       []TeamGroup `json:"assignments"`
}

// AssignGroups runs the engine for one event in its own transaction
func (g *GroupingEngine) AssignGroups(eventID string) (*GroupingResult, error) {
	var result *GroupingResult
	err := g.db.Transaction(func(tx *gorm.DB) error {
		event, err := findEvent(tx, eventID)
		if err != nil {
			return err
		}
		result, err = g.AssignGroupsTx(tx, event)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AssignGroupsTx runs the engine inside the caller's transaction and
// persists wf_group_index on every team. Identical inputs always yield
// identical assignments.
func (g *GroupingEngine) AssignGroupsTx(tx *gorm.DB, event *models.Event) (*GroupingResult, error) {
	plan, err := ParseDrawPlan(event)
	if err != nil {
		return nil, err
	}
	groups := GroupTarget(plan.TemplateType, event.TeamCount)
	if groups == 0 {
		return nil, Errorf(CodeTemplateUnsupported, "template %s has no waterfall grouping stage", plan.TemplateType).
			With("event_id", event.ID)
	}

	var teams []models.Team
	if err := tx.Where("event_id = ?", event.ID).Find(&teams).Error; err != nil {
		return nil, err
	}
	if len(teams)%groups != 0 {
		return nil, Errorf(CodeGroupCapacityMismatch, "%d teams cannot split into %d equal groups", len(teams), groups).
			With("event_id", event.ID).
			With("team_count", len(teams)).
			With("groups", groups)
	}
	capacity := len(teams) / groups

	var edges []models.TeamAvoidEdge
	if err := tx.Where("event_id = ?", event.ID).Find(&edges).Error; err != nil {
		return nil, err
	}

	adjacency := make(map[int64][]int64, len(teams))
	for _, e := range edges {
		adjacency[e.TeamIDA] = append(adjacency[e.TeamIDA], e.TeamIDB)
		adjacency[e.TeamIDB] = append(adjacency[e.TeamIDB], e.TeamIDA)
	}

	componentSizes := connectedComponentSizes(teams, adjacency)

	ordered := make([]models.Team, len(teams))
	copy(ordered, teams)
	sortTeamsCanonical(ordered)

	// single-pass constructive placement: fewest avoid-neighbors already in
	// the group, then lowest group index
	assignment := make(map[int64]int, len(teams))
	sizes := make([]int, groups)
	for _, team := range ordered {
		best := -1
		bestConflicts := 0
		for gi := 0; gi < groups; gi++ {
			if sizes[gi] >= capacity {
				continue
			}
			conflicts := 0
			for _, neighbor := range adjacency[team.ID] {
				if placed, ok := assignment[neighbor]; ok && placed == gi {
					conflicts++
				}
			}
			if best == -1 || conflicts < bestConflicts {
				best = gi
				bestConflicts = conflicts
			}
		}
		assignment[team.ID] = best
		sizes[best]++
	}

	internal := make([]int, groups)
	separated := 0
	for _, e := range edges {
		ga, gb := assignment[e.TeamIDA], assignment[e.TeamIDB]
		if ga == gb {
			internal[ga]++
		} else {
			separated++
		}
	}

	result := &GroupingResult{
		EventID:           event.ID,
		Groups:            groups,
		GroupSizes:        sizes,
		InternalConflicts: internal,
		TotalAvoidEdges:   len(edges),
		SeparatedEdges:    separated,
		SeparationRate:    1.0,
		Components:        len(componentSizes),
		ComponentSizes:    componentSizes,
		Assignments:       make([]TeamGroup, 0, len(teams)),
	}
	if len(edges) > 0 {
		result.SeparationRate = float64(separated) / float64(len(edges))
	}

	for _, team := range ordered {
		gi := assignment[team.ID]
		result.Assignments = append(result.Assignments, TeamGroup{TeamID: team.ID, GroupIndex: gi})
		if err := tx.Model(&models.Team{}).Where("id = ?", team.ID).
			Update("wf_group_index", gi).Error; err != nil {
			return nil, err
		}
	}
	return result, nil
}

// sortTeamsCanonical orders teams by seed ascending (null seeds last),
// rating descending, registration timestamp ascending, then id.
func sortTeamsCanonical(teams []models.Team) {
	sort.Slice(teams, func(i, j int) bool {
		si, sj := seedOrNull(&teams[i]), seedOrNull(&teams[j])
		if si != sj {
			return si < sj
		}
		ri, rj := ratingOrZero(&teams[i]), ratingOrZero(&teams[j])
		if ri != rj {
			return ri > rj
		}
		ti, tj := registeredOrMax(&teams[i]), registeredOrMax(&teams[j])
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return teams[i].ID < teams[j].ID
	})
}

func seedOrNull(t *models.Team) int {
	if t.Seed == nil {
		return 999
	}
	return *t.Seed
}

func ratingOrZero(t *models.Team) float64 {
	if t.Rating == nil {
		return 0
	}
	return *t.Rating
}

func registeredOrMax(t *models.Team) time.Time {
	if t.RegisteredAt == nil {
		// unregistered timestamps sort after every real one
		return time.Unix(1<<40, 0)
	}
	return *t.RegisteredAt
}

// connectedComponentSizes computes component sizes of the avoid graph with
// an iterative DFS, largest first then by smallest member id for stability.
func connectedComponentSizes(teams []models.Team, adjacency map[int64][]int64) []int {
	ids := make([]int64, len(teams))
	for i, t := range teams {
		ids[i] = t.ID
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	visited := make(map[int64]bool, len(ids))
	var sizes []int
	for _, start := range ids {
		if visited[start] {
			continue
		}
		size := 0
		stack := []int64{start}
		for len(stack) > 0 {
			node := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if visited[node] {
				continue
			}
			visited[node] = true
			size++
			neighbors := append([]int64(nil), adjacency[node]...)
			sort.Slice(neighbors, func(i, j int) bool { return neighbors[i] > neighbors[j] })
			for _, n := range neighbors {
				if !visited[n] {
					stack = append(stack, n)
				}
			}
		}
		sizes = append(sizes, size)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(sizes)))
	return sizes
}
