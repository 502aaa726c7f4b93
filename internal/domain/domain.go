package domain

// Card statuses.
const (
	CardTodo       = "todo"
	CardInProgress = "in_progress"
	CardReview     = "review"
	CardDone       = "done"
)

// Subtask statuses.
const (
	SubtaskTodo       = "todo"
	SubtaskInProgress = "in_progress"
	SubtaskDone       = "done"
)

// Card assignment statuses.
const (
	AssignmentAssigned   = "assigned"
	AssignmentInProgress = "in_progress"
	AssignmentCompleted  = "completed"
)

// Member roles.
const (
	RoleDeveloper = "developer"
	RoleDesigner  = "designer"
	RoleTeamLead  = "team_lead"
)

var (
	CardStatuses    = []string{CardTodo, CardInProgress, CardReview, CardDone}
	SubtaskStatuses = []string{SubtaskTodo, SubtaskInProgress, SubtaskDone}
	MemberRoles     = []string{RoleDeveloper, RoleDesigner, RoleTeamLead}
	Priorities      = []string{"low", "medium", "high"}
)

// OneOf reports whether v is in set.
func OneOf(v string, set []string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role" enum:"admin,member"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Project struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedBy   string `json:"created_by"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type ProjectMember struct {
	ProjectID string `json:"project_id"`
	UserID    string `json:"user_id"`
	Role      string `json:"role" enum:"developer,designer,team_lead"`
	JoinedAt  string `json:"joined_at" format:"date-time"`
}

type Board struct {
	ID          string `json:"id"`
	ProjectID   string `json:"project_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type Card struct {
	ID             string  `json:"id"`
	BoardID        string  `json:"board_id"`
	Title          string  `json:"title"`
	Description    string  `json:"description,omitempty"`
	Status         string  `json:"status" enum:"todo,in_progress,review,done"`
	Priority       string  `json:"priority" enum:"low,medium,high"`
	DueDate        *string `json:"due_date,omitempty"`
	EstimatedHours float64 `json:"estimated_hours"`
	ActualHours    float64 `json:"actual_hours"`
	CreatedBy      string  `json:"created_by"`
	CreatedAt      string  `json:"created_at" format:"date-time"`
	UpdatedAt      string  `json:"updated_at" format:"date-time"`
}

// CardRef is a card joined with the names the timer endpoints display.
type CardRef struct {
	Card
	BoardName string `json:"board_name"`
	ProjectID string `json:"project_id"`
}

type Subtask struct {
	ID             string  `json:"id"`
	CardID         string  `json:"card_id"`
	Name           string  `json:"name"`
	Description    string  `json:"description,omitempty"`
	Status         string  `json:"status" enum:"todo,in_progress,done"`
	EstimatedHours float64 `json:"estimated_hours"`
	ActualHours    float64 `json:"actual_hours"`
	CreatedAt      string  `json:"created_at" format:"date-time"`
	UpdatedAt      string  `json:"updated_at" format:"date-time"`
}

type TimeLog struct {
	ID              string  `json:"id"`
	CardID          string  `json:"card_id"`
	SubtaskID       *string `json:"subtask_id,omitempty"`
	UserID          string  `json:"user_id"`
	StartTime       string  `json:"start_time" format:"date-time"`
	EndTime         *string `json:"end_time,omitempty" format:"date-time"`
	DurationMinutes int     `json:"duration_minutes"`
	Description     string  `json:"description,omitempty"`
	CreatedAt       string  `json:"created_at" format:"date-time"`
	UpdatedAt       string  `json:"updated_at" format:"date-time"`
}

// Ongoing reports whether the log has not been stopped yet.
func (l TimeLog) Ongoing() bool { return l.EndTime == nil }

// TimeLogEntry is a time log with the names list views display.
type TimeLogEntry struct {
	TimeLog
	CardTitle   string `json:"card_title"`
	SubtaskName string `json:"subtask_name,omitempty"`
	Formatted   string `json:"formatted_duration"`
}

type CardAssignment struct {
	CardID           string  `json:"card_id"`
	UserID           string  `json:"user_id"`
	AssignmentStatus string  `json:"assignment_status" enum:"assigned,in_progress,completed"`
	AssignedAt       string  `json:"assigned_at" format:"date-time"`
	StartedAt        *string `json:"started_at,omitempty" format:"date-time"`
	CompletedAt      *string `json:"completed_at,omitempty" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	ProjectID  string `json:"project_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// Totals aggregates completed time logs for a card or subtask.
type Totals struct {
	TotalMinutes int     `json:"total_minutes"`
	TotalHours   float64 `json:"total_hours"`
	Formatted    string  `json:"formatted"`
	LogCount     int     `json:"log_count"`
}

// CardHours is one row of the per-card hours report.
type CardHours struct {
	CardID         string  `json:"card_id"`
	Title          string  `json:"title"`
	Status         string  `json:"status"`
	EstimatedHours float64 `json:"estimated_hours"`
	ActualHours    float64 `json:"actual_hours"`
	Totals
}

// UserHours is one row of the per-user hours report.
type UserHours struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Totals
}

// HoursReport aggregates completed logs of a project.
type HoursReport struct {
	ProjectID string      `json:"project_id"`
	From      string      `json:"from,omitempty"`
	To        string      `json:"to,omitempty"`
	Cards     []CardHours `json:"cards"`
	Users     []UserHours `json:"users"`
	Totals
}

// CardDetail is a card with everything the card view shows.
type CardDetail struct {
	CardRef
	Subtasks    []Subtask        `json:"subtasks"`
	Assignments []CardAssignment `json:"assignments"`
	Totals      Totals           `json:"time_totals"`
}
