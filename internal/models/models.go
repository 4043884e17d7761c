package models

import "time"

// Role classifies a user for coarse-grained authorization.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleTeamLead  Role = "team_lead"
	RoleDeveloper Role = "developer"
)

var roleRank = map[Role]int{
	RoleDeveloper: 1,
	RoleTeamLead:  2,
	RoleAdmin:     3,
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether r ranks at or above other in admin > team_lead > developer.
func (r Role) AtLeast(other Role) bool {
	return r.Valid() && roleRank[r] >= roleRank[other]
}

// Promoted returns the next role up the hierarchy.
func (r Role) Promoted() (Role, bool) {
	switch r {
	case RoleDeveloper:
		return RoleTeamLead, true
	case RoleTeamLead:
		return RoleAdmin, true
	}
	return r, false
}

// Demoted returns the next role down the hierarchy.
func (r Role) Demoted() (Role, bool) {
	switch r {
	case RoleAdmin:
		return RoleTeamLead, true
	case RoleTeamLead:
		return RoleDeveloper, true
	}
	return r, false
}

// User is an authenticated account.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Role         Role      `json:"role"`
	AvatarURL    *string   `json:"avatar_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Organization is the root of the hierarchy.
type Organization struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Team belongs to an organization.
type Team struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	Description    *string   `json:"description,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// MemberRole is the role a user holds inside one team.
type MemberRole string

const (
	MemberTeamLead  MemberRole = "team_lead"
	MemberDeveloper MemberRole = "developer"
)

// Valid reports whether m is a known member role.
func (m MemberRole) Valid() bool {
	return m == MemberTeamLead || m == MemberDeveloper
}

// TeamMember joins a user to a team. Name, Email and AvatarURL are filled on listing.
type TeamMember struct {
	TeamID    string     `json:"team_id"`
	UserID    string     `json:"user_id"`
	Role      MemberRole `json:"role"`
	JoinedAt  time.Time  `json:"joined_at"`
	Name      string     `json:"name,omitempty"`
	Email     string     `json:"email,omitempty"`
	AvatarURL *string    `json:"avatar_url,omitempty"`
}

// Project belongs to a team.
type Project struct {
	ID            string    `json:"id"`
	TeamID        string    `json:"team_id"`
	Name          string    `json:"name"`
	Description   *string   `json:"description,omitempty"`
	GithubRepoURL *string   `json:"github_repo_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Sprint is a time-boxed container of tasks. Status is derived on read.
type Sprint struct {
	ID        string       `json:"id"`
	ProjectID string       `json:"project_id"`
	Name      string       `json:"name"`
	Goal      *string      `json:"goal,omitempty"`
	StartDate Date         `json:"start_date"`
	EndDate   Date         `json:"end_date"`
	Status    SprintStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
}

// SprintProgress summarizes the tasks of a sprint.
type SprintProgress struct {
	SprintID           string  `json:"sprint_id"`
	TotalTasks         int     `json:"totalTasks"`
	CompletedTasks     int     `json:"completedTasks"`
	ProgressPercentage float64 `json:"progressPercentage"`
}

// Task represents a single card on a sprint board.
type Task struct {
	ID             string     `json:"id"`
	SprintID       string     `json:"sprint_id"`
	Title          string     `json:"title"`
	Description    *string    `json:"description,omitempty"`
	Status         TaskStatus `json:"status"`
	Priority       Priority   `json:"priority"`
	StoryPoints    *int       `json:"story_points,omitempty"`
	AssigneeID     *string    `json:"assignee_id,omitempty"`
	CreatorID      string     `json:"creator_id"`
	GithubPRURL    *string    `json:"github_pr_url,omitempty"`
	GithubPRStatus *PRStatus  `json:"github_pr_status,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TaskStatusHistory is an append-only audit record of a status change.
// FromStatus is nil only for the entry written at task creation.
type TaskStatusHistory struct {
	ID         string      `json:"id"`
	TaskID     string      `json:"task_id"`
	FromStatus *TaskStatus `json:"from_status"`
	ToStatus   TaskStatus  `json:"to_status"`
	ChangedBy  string      `json:"changed_by"`
	ChangedAt  time.Time   `json:"changed_at"`
}

// Comment is a message on a task. Deleted comments are kept with IsDeleted set.
type Comment struct {
	ID         string    `json:"id"`
	TaskID     string    `json:"task_id"`
	UserID     string    `json:"user_id"`
	Content    string    `json:"content"`
	IsEdited   bool      `json:"is_edited"`
	IsDeleted  bool      `json:"is_deleted"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	UserName   string    `json:"user_name,omitempty"`
	UserAvatar *string   `json:"user_avatar,omitempty"`
}

// NotificationType enumerates the events a user can be notified about.
type NotificationType string

const (
	NotificationTaskAssigned  NotificationType = "task_assigned"
	NotificationTaskUpdated   NotificationType = "task_updated"
	NotificationCommentAdded  NotificationType = "comment_added"
	NotificationSprintStarted NotificationType = "sprint_started"
)

// Valid reports whether t is a known notification type.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationTaskAssigned, NotificationTaskUpdated, NotificationCommentAdded, NotificationSprintStarted:
		return true
	}
	return false
}

// Notification is a persisted message for one recipient.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Link      *string          `json:"link,omitempty"`
	IsRead    bool             `json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
}
