package team

import (
	"fmt"
	"sort"
	"time"

	"github.com/codemate/codemate/internal/api"
	"github.com/codemate/codemate/internal/tier"
)

// Role is a member's role within a team.
type Role string

const (
	RoleLeader Role = "LEADER"
	RoleMember Role = "MEMBER"
)

// DayOfWeek is a recommendation weekday in the backend's wire form.
type DayOfWeek string

const (
	Monday    DayOfWeek = "MONDAY"
	Tuesday   DayOfWeek = "TUESDAY"
	Wednesday DayOfWeek = "WEDNESDAY"
	Thursday  DayOfWeek = "THURSDAY"
	Friday    DayOfWeek = "FRIDAY"
	Saturday  DayOfWeek = "SATURDAY"
	Sunday    DayOfWeek = "SUNDAY"
)

var dayOrder = map[DayOfWeek]int{
	Monday: 0, Tuesday: 1, Wednesday: 2, Thursday: 3,
	Friday: 4, Saturday: 5, Sunday: 6,
}

// SortDays orders days Monday-first, in place. Unknown values sort last.
func SortDays(days []DayOfWeek) {
	sort.SliceStable(days, func(i, j int) bool {
		oi, ok := dayOrder[days[i]]
		if !ok {
			oi = len(dayOrder)
		}
		oj, ok := dayOrder[days[j]]
		if !ok {
			oj = len(dayOrder)
		}
		return oi < oj
	})
}

// ParseDay parses a weekday in the backend's wire form.
func ParseDay(s string) (DayOfWeek, error) {
	d := DayOfWeek(s)
	if _, ok := dayOrder[d]; !ok {
		return "", fmt.Errorf("unknown day %q", s)
	}
	return d, nil
}

// TeamSummary is one entry of the user's team list.
type TeamSummary struct {
	TeamID                 int64     `json:"teamId"`
	TeamName               string    `json:"teamName"`
	TeamDescription        string    `json:"teamDescription"`
	MyRole                 Role      `json:"myRole"`
	MemberCount            int       `json:"memberCount"`
	IsRecommendationActive bool      `json:"isRecommendationActive"`
	CreatedAt              time.Time `json:"createdAt"`
}

// TeamMember is one member of a team's roster.
type TeamMember struct {
	MemberID int64  `json:"memberId"`
	Handle   string `json:"handle"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
	IsMe     bool   `json:"isMe"`
}

// RecommendationSettings configures which weekdays and difficulty band the
// backend uses when it mails suggested problems to a team.
type RecommendationSettings struct {
	Days           []DayOfWeek `json:"recommendationDays"`
	Preset         tier.Preset `json:"problemDifficultyPreset"`
	CustomMinLevel int         `json:"customMinLevel,omitempty"`
	CustomMaxLevel int         `json:"customMaxLevel,omitempty"`
	IsActive       bool        `json:"isActive"`
	TeamName       string      `json:"teamName,omitempty"`
}

// Validate checks the invariants the backend enforces: active settings need
// at least one day, and a custom preset needs a valid tier range.
func (s RecommendationSettings) Validate() error {
	if s.IsActive && len(s.Days) == 0 {
		return fmt.Errorf("active recommendation needs at least one day")
	}
	for _, d := range s.Days {
		if _, ok := dayOrder[d]; !ok {
			return fmt.Errorf("unknown day %q", d)
		}
	}
	if _, err := tier.ParsePreset(string(s.Preset)); err != nil {
		return err
	}
	if s.Preset == tier.PresetCustom {
		if err := tier.ValidateRange(s.CustomMinLevel, s.CustomMaxLevel); err != nil {
			return err
		}
	}
	return nil
}

// TeamDetail is the resident detail for the current team. Settings is nil
// when the team has no recommendation configured (or the settings fetch
// failed, which is treated the same way).
type TeamDetail struct {
	Members  []TeamMember
	Settings *RecommendationSettings
}

// DetailError is a classified team-detail load failure, kept for display.
type DetailError struct {
	Kind    api.Kind
	Message string
}

func (e *DetailError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// CreateTeamRequest creates a team; the creator becomes its leader.
type CreateTeamRequest struct {
	TeamName        string `json:"teamName" validate:"required,max=30"`
	TeamDescription string `json:"teamDescription" validate:"max=200"`
}

// CreateTeamResponse is the backend's creation reply. It does not carry the
// list-display fields, so the list is refetched rather than patched locally.
type CreateTeamResponse struct {
	TeamID    int64     `json:"teamId"`
	TeamName  string    `json:"teamName"`
	LeaderID  int64     `json:"leaderId"`
	CreatedAt time.Time `json:"createdAt"`
}

type inviteRequest struct {
	Handle string `json:"handle"`
}
