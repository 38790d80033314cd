package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// Tournament is the top-level container for events, days, and schedule versions
type Tournament struct {
	ID        string         `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	Name      string         `gorm:"column:name;type:varchar(100);not null" json:"name"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

// TableName specifies the table name for Tournament model
func (Tournament) TableName() string {
	return "tournaments"
}

// TournamentDay is one playable day of a tournament with its court count and time window
type TournamentDay struct {
	ID              int64          `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	TournamentID    string         `gorm:"column:tournament_id;type:varchar(36);not null;index:idx_day_tournament" json:"tournament_id"`
	DayDate         string         `gorm:"column:day_date;type:varchar(10);not null" json:"day_date"`      // YYYY-MM-DD
	StartTime       string         `gorm:"column:start_time;type:varchar(5);not null" json:"start_time"`   // HH:MM
	EndTime         string         `gorm:"column:end_time;type:varchar(5);not null" json:"end_time"`       // HH:MM
	CourtsAvailable int            `gorm:"column:courts_available;not null;default:1" json:"courts_available"`
	CourtLabels     string         `gorm:"column:court_labels;type:json" json:"court_labels,omitempty"` // optional JSON array of labels
	IsActive        bool           `gorm:"column:is_active;default:true" json:"is_active"`
	DeletedAt       gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

// TableName specifies the table name for TournamentDay model
func (TournamentDay) TableName() string {
	return "tournament_days"
}

// Event is a competition category inside a tournament carrying its own draw plan
type Event struct {
	ID                   string         `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	TournamentID         string         `gorm:"column:tournament_id;type:varchar(36);not null;index:idx_event_tournament" json:"tournament_id"`
	Name                 string         `gorm:"column:name;type:varchar(100);not null" json:"name"`
	Category             string         `gorm:"column:category;type:varchar(50)" json:"category"`
	TeamCount            int            `gorm:"column:team_count;not null" json:"team_count"`
	GuaranteeSelected    int            `gorm:"column:guarantee_selected;not null;default:4" json:"guarantee_selected"`
	DrawStatus           string         `gorm:"column:draw_status;type:varchar(20);default:not_started" json:"draw_status"` // not_started, draft, final
	DrawPlan             string         `gorm:"column:draw_plan;type:json" json:"draw_plan"`
	ScheduleProfile      string         `gorm:"column:schedule_profile;type:varchar(50)" json:"schedule_profile"`
	StandardDurationMin  int            `gorm:"column:standard_duration_min;default:90" json:"standard_duration_min"`
	WaterfallDurationMin int            `gorm:"column:waterfall_duration_min;default:60" json:"waterfall_duration_min"`
	CreatedAt            time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
	DeletedAt            gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

// TableName specifies the table name for Event model
func (Event) TableName() string {
	return "events"
}

// Team is a registered team of an event. Name is unique within the event;
// seed is unique within the event when non-null.
type Team struct {
	ID           int64          `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	EventID      string         `gorm:"column:event_id;type:varchar(36);not null;index:idx_team_event;uniqueIndex:unique_team_name" json:"event_id"`
	Name         string         `gorm:"column:name;type:varchar(100);not null;uniqueIndex:unique_team_name" json:"name"`
	Seed         *int           `gorm:"column:seed;uniqueIndex:unique_team_seed" json:"seed,omitempty"`
	SeedEventID  *string        `gorm:"column:seed_event_id;type:varchar(36);uniqueIndex:unique_team_seed" json:"-"` // set iff Seed is set, so NULL seeds never collide
	Rating       *float64       `gorm:"column:rating" json:"rating,omitempty"`
	RegisteredAt *time.Time     `gorm:"column:registered_at" json:"registered_at,omitempty"`
	WfGroupIndex *int           `gorm:"column:wf_group_index" json:"wf_group_index,omitempty"`
	DeletedAt    gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

// TableName specifies the table name for Team model
func (Team) TableName() string {
	return "teams"
}

// TeamAvoidEdge is an undirected avoid marker between two teams of the same event.
// TeamIDA < TeamIDB is the canonical form; uniqueness is on the canonical pair.
type TeamAvoidEdge struct {
	ID        int64          `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	EventID   string         `gorm:"column:event_id;type:varchar(36);not null;index:idx_edge_event;uniqueIndex:unique_edge_pair" json:"event_id"`
	TeamIDA   int64          `gorm:"column:team_id_a;not null;uniqueIndex:unique_edge_pair" json:"team_id_a"`
	TeamIDB   int64          `gorm:"column:team_id_b;not null;uniqueIndex:unique_edge_pair" json:"team_id_b"`
	Reason    string         `gorm:"column:reason;type:varchar(100)" json:"reason,omitempty"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

// TableName specifies the table name for TeamAvoidEdge model
func (TeamAvoidEdge) TableName() string {
	return "team_avoid_edges"
}

// ScheduleVersion is one draft or finalized schedule of a tournament
type ScheduleVersion struct {
	ID                string         `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	TournamentID      string         `gorm:"column:tournament_id;type:varchar(36);not null;index:idx_version_tournament;uniqueIndex:unique_version_number" json:"tournament_id"`
	VersionNumber     int            `gorm:"column:version_number;not null;uniqueIndex:unique_version_number" json:"version_number"`
	Status            string         `gorm:"column:status;type:varchar(10);default:draft" json:"status"` // draft, final
	Notes             string         `gorm:"column:notes;type:varchar(255)" json:"notes,omitempty"`
	CreatedAt         time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	FinalizedAt       *time.Time     `gorm:"column:finalized_at" json:"finalized_at,omitempty"`
	FinalizedChecksum *string        `gorm:"column:finalized_checksum;type:varchar(64)" json:"finalized_checksum,omitempty"`
	DeletedAt         gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

// TableName specifies the table name for ScheduleVersion model
func (ScheduleVersion) TableName() string {
	return "schedule_versions"
}

// ScheduleSlot is a 15-minute start opportunity on one court of one day.
// It is not a fixed-length reservation; occupancy follows the assigned
// match's duration.
type ScheduleSlot struct {
	ID                int64          `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ScheduleVersionID string         `gorm:"column:schedule_version_id;type:varchar(36);not null;index:idx_slot_version" json:"schedule_version_id"`
	DayDate           string         `gorm:"column:day_date;type:varchar(10);not null" json:"day_date"`
	StartTime         string         `gorm:"column:start_time;type:varchar(5);not null" json:"start_time"`
	EndTime           string         `gorm:"column:end_time;type:varchar(5);not null" json:"end_time"`
	CourtNumber       int            `gorm:"column:court_number;not null" json:"court_number"`
	CourtLabel        string         `gorm:"column:court_label;type:varchar(50)" json:"court_label"`
	BlockMinutes      int            `gorm:"column:block_minutes;not null;default:15" json:"block_minutes"`
	IsActive          bool           `gorm:"column:is_active;default:true" json:"is_active"`
	DeletedAt         gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

// TableName specifies the table name for ScheduleSlot model
func (ScheduleSlot) TableName() string {
	return "schedule_slots"
}

// Match is a generated match of an event, bound to one schedule version
type Match struct {
	ID                int64          `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	EventID           string         `gorm:"column:event_id;type:varchar(36);not null;index:idx_match_event" json:"event_id"`
	ScheduleVersionID string         `gorm:"column:schedule_version_id;type:varchar(36);not null;index:idx_match_version" json:"schedule_version_id"`
	MatchCode         string         `gorm:"column:match_code;type:varchar(30);not null" json:"match_code"`
	MatchType         string         `gorm:"column:match_type;type:varchar(15);not null" json:"match_type"` // WF, MAIN, CONSOLATION, PLACEMENT
	RoundIndex        int            `gorm:"column:round_index;not null" json:"round_index"`
	SequenceInRound   int            `gorm:"column:sequence_in_round;not null" json:"sequence_in_round"`
	DurationMinutes   int            `gorm:"column:duration_minutes;not null" json:"duration_minutes"` // 60, 90, 105, 120
	ConsolationTier   *int           `gorm:"column:consolation_tier" json:"consolation_tier,omitempty"`
	PlacementType     *string        `gorm:"column:placement_type;type:varchar(20)" json:"placement_type,omitempty"`
	TeamAID           *int64         `gorm:"column:team_a_id" json:"team_a_id,omitempty"`
	TeamBID           *int64         `gorm:"column:team_b_id" json:"team_b_id,omitempty"`
	PlaceholderSideA  string         `gorm:"column:placeholder_side_a;type:varchar(50);not null" json:"placeholder_side_a"`
	PlaceholderSideB  string         `gorm:"column:placeholder_side_b;type:varchar(50);not null" json:"placeholder_side_b"`
	PreferredDay      *string        `gorm:"column:preferred_day;type:varchar(10)" json:"preferred_day,omitempty"`
	Status            string         `gorm:"column:status;type:varchar(15);default:unscheduled" json:"status"` // unscheduled, scheduled
	DeletedAt         gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

// TableName specifies the table name for Match model
func (Match) TableName() string {
	return "matches"
}

// MatchAssignment binds one match to one slot within a schedule version
type MatchAssignment struct {
	ID                int64          `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ScheduleVersionID string         `gorm:"column:schedule_version_id;type:varchar(36);not null;index:idx_assignment_version" json:"schedule_version_id"`
	MatchID           int64          `gorm:"column:match_id;not null;uniqueIndex:unique_assignment_match" json:"match_id"`
	SlotID            int64          `gorm:"column:slot_id;not null;uniqueIndex:unique_assignment_slot" json:"slot_id"`
	CreatedAt         time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	DeletedAt         gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

// TableName specifies the table name for MatchAssignment model
func (MatchAssignment) TableName() string {
	return "match_assignments"
}

// User is a planner account for the thin auth adapter
type User struct {
	ID           string    `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	Username     string    `gorm:"column:username;type:varchar(50);uniqueIndex;not null" json:"username"`
	Email        string    `gorm:"column:email;type:varchar(100);uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"column:password_hash;type:varchar(255);not null" json:"-"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for User model
func (User) TableName() string {
	return "users"
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// DayRequest describes one tournament day in a create request
type DayRequest struct {
	DayDate         string   `json:"day_date" binding:"required"`
	StartTime       string   `json:"start_time" binding:"required"`
	EndTime         string   `json:"end_time" binding:"required"`
	CourtsAvailable int      `json:"courts_available" binding:"required,min=1"`
	CourtLabels     []string `json:"court_labels,omitempty"`
}

// CreateTournamentRequest represents the request to create a tournament
type CreateTournamentRequest struct {
	Name string       `json:"name" binding:"required"`
	Days []DayRequest `json:"days" binding:"required,min=1"`
}

// CreateEventRequest represents the request to create an event with its draw plan
type CreateEventRequest struct {
	Name                 string          `json:"name" binding:"required"`
	Category             string          `json:"category"`
	TeamCount            int             `json:"team_count" binding:"required,min=2"`
	GuaranteeSelected    int             `json:"guarantee_selected" binding:"required"`
	DrawPlan             json.RawMessage `json:"draw_plan" binding:"required"`
	ScheduleProfile      string          `json:"schedule_profile"`
	StandardDurationMin  int             `json:"standard_duration_min"`
	WaterfallDurationMin int             `json:"waterfall_duration_min"`
}

// AddTeamRequest represents one team to register on an event
type AddTeamRequest struct {
	Name         string     `json:"name" binding:"required"`
	Seed         *int       `json:"seed,omitempty"`
	Rating       *float64   `json:"rating,omitempty"`
	RegisteredAt *time.Time `json:"registered_at,omitempty"`
}

// AvoidEdgePair is one explicit pair in a bulk avoid-edge request
type AvoidEdgePair struct {
	TeamIDA int64  `json:"team_id_a" binding:"required"`
	TeamIDB int64  `json:"team_id_b" binding:"required"`
	Reason  string `json:"reason,omitempty"`
}

// AvoidEdgeLinkGroup expands to all canonical pairs among its members
type AvoidEdgeLinkGroup struct {
	Code    string  `json:"code" binding:"required"`
	TeamIDs []int64 `json:"team_ids" binding:"required,min=2"`
	Reason  string  `json:"reason,omitempty"`
}

// BulkAvoidEdgeRequest carries either explicit pairs or link groups
type BulkAvoidEdgeRequest struct {
	Pairs      []AvoidEdgePair      `json:"pairs,omitempty"`
	LinkGroups []AvoidEdgeLinkGroup `json:"link_groups,omitempty"`
}

// ManualSlotRange describes one explicit day/court window for manual slot generation
type ManualSlotRange struct {
	DayDate     string `json:"day_date" binding:"required"`
	StartTime   string `json:"start_time" binding:"required"`
	EndTime     string `json:"end_time" binding:"required"`
	CourtNumber int    `json:"court_number" binding:"required,min=1"`
	CourtLabel  string `json:"court_label,omitempty"`
}

// GenerateSlotsRequest represents the request to generate slots for a version
type GenerateSlotsRequest struct {
	ScheduleVersionID string            `json:"schedule_version_id" binding:"required"`
	Source            string            `json:"source"` // auto (default), manual
	Ranges            []ManualSlotRange `json:"ranges,omitempty"`
	WipeExisting      bool              `json:"wipe_existing"`
}

// GenerateMatchesRequest represents the request to generate the match inventory
type GenerateMatchesRequest struct {
	ScheduleVersionID string `json:"schedule_version_id" binding:"required"`
	EventID           string `json:"event_id,omitempty"` // empty = all events
	WipeExisting      bool   `json:"wipe_existing"`
}

// AutoAssignRequest represents the request to run the rest-aware assignment engine
type AutoAssignRequest struct {
	ClearExisting     bool `json:"clear_existing"`
	HonorPreferredDay bool `json:"honor_preferred_day"`
}

// BuildRequest represents the request to run the full build pipeline
type BuildRequest struct {
	ClearExisting bool `json:"clear_existing"`
	DryRun        bool `json:"dry_run"`
}

// InjectTeamsRequest represents the request to inject teams into an event's matches
type InjectTeamsRequest struct {
	ScheduleVersionID string  `json:"schedule_version_id" binding:"required"`
	TeamOrderOverride []int64 `json:"team_order_override,omitempty"`
}
