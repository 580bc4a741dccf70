// Package team caches the user's team list and one resident team detail,
// backed by the CodeMate API with a 5-minute freshness window.
package team

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/codemate/codemate/internal/api"
	"github.com/codemate/codemate/internal/storage"
)

// freshFor is the list-cache freshness window.
const freshFor = 5 * time.Minute

// CacheMetrics records list-cache lookup outcomes.
type CacheMetrics interface {
	IncCacheLookup(outcome string)
}

// Store caches team state between commands. Only one team's detail is
// resident at a time; switching teams discards the previous detail.
type Store struct {
	client   *api.Client
	bucket   *storage.Bucket
	validate *validator.Validate
	metrics  CacheMetrics
	now      func() time.Time

	mu            sync.Mutex
	teams         []TeamSummary
	lastFetch     time.Time
	currentTeamID int64
	detail        *TeamDetail
	detailErr     *DetailError
}

// snapshot is the persisted shape: the summary list and bookkeeping, never
// the detail payload (always refetched).
type snapshot struct {
	Teams         []TeamSummary `json:"teams"`
	LastFetch     time.Time     `json:"lastFetch"`
	CurrentTeamID int64         `json:"currentTeamId"`
}

// Option configures a Store.
type Option func(*Store)

// WithMetrics attaches a cache-metrics recorder.
func WithMetrics(m CacheMetrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithClock replaces the freshness clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a Store backed by the given bucket, restoring the persisted
// summary list. A corrupt record is discarded, not fatal.
func New(client *api.Client, bucket *storage.Bucket, opts ...Option) *Store {
	s := &Store{
		client:   client,
		bucket:   bucket,
		validate: validator.New(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	var snap snapshot
	if ok, err := bucket.Load(&snap); err != nil {
		slog.Warn("discarding corrupt team cache", "error", err)
	} else if ok {
		s.teams = snap.Teams
		s.lastFetch = snap.LastFetch
		s.currentTeamID = snap.CurrentTeamID
	}
	return s
}

// FetchTeams returns the user's teams, serving the cached list when it is
// younger than five minutes and non-empty, unless forced.
func (s *Store) FetchTeams(ctx context.Context, force bool) ([]TeamSummary, error) {
	s.mu.Lock()
	if !force && len(s.teams) > 0 && s.now().Sub(s.lastFetch) < freshFor {
		teams := copyTeams(s.teams)
		s.mu.Unlock()
		s.recordLookup("hit")
		return teams, nil
	}
	s.mu.Unlock()
	if force {
		s.recordLookup("forced")
	} else {
		s.recordLookup("miss")
	}

	teams, err := api.Get[[]TeamSummary](ctx, s.client, "/teams/my")
	if err != nil {
		return nil, fmt.Errorf("fetching teams: %w", err)
	}

	s.mu.Lock()
	s.teams = teams
	s.lastFetch = s.now()
	s.persistLocked()
	teams = copyTeams(s.teams)
	s.mu.Unlock()
	return teams, nil
}

// CreateTeam creates a team, forces a list refresh (the creation response
// lacks the list-display fields), and loads the new team's detail. The new
// team is the list entry matching the creation response id, falling back to
// the newest createdAt when the list does not carry it yet.
func (s *Store) CreateTeam(ctx context.Context, req CreateTeamRequest) (TeamSummary, error) {
	if err := s.validate.Struct(req); err != nil {
		return TeamSummary{}, fmt.Errorf("invalid team: %w", err)
	}

	created, err := api.Post[CreateTeamResponse](ctx, s.client, "/teams", req)
	if err != nil {
		return TeamSummary{}, fmt.Errorf("creating team: %w", err)
	}

	teams, err := s.FetchTeams(ctx, true)
	if err != nil {
		return TeamSummary{}, err
	}
	if len(teams) == 0 {
		return TeamSummary{}, fmt.Errorf("created team missing from team list")
	}

	target := -1
	for i, t := range teams {
		if created.TeamID != 0 && t.TeamID == created.TeamID {
			target = i
			break
		}
	}
	if target < 0 {
		target = 0
		for i, t := range teams {
			if t.CreatedAt.After(teams[target].CreatedAt) {
				target = i
			}
		}
	}

	// Detail load failures are recorded on the store, not fatal for creation.
	if _, err := s.FetchTeamDetails(ctx, teams[target].TeamID); err != nil {
		slog.Warn("loading detail for created team", "teamId", teams[target].TeamID, "error", err)
	}
	return teams[target], nil
}

// FetchTeamDetails makes the given team current and loads its members and
// recommendation settings in parallel. A settings failure is tolerated and
// treated as "no settings configured"; a member failure is classified into a
// DetailError and leaves the detail unset.
func (s *Store) FetchTeamDetails(ctx context.Context, teamID int64) (TeamDetail, error) {
	s.mu.Lock()
	s.currentTeamID = teamID
	s.detail = nil
	s.detailErr = nil
	s.persistLocked()
	s.mu.Unlock()

	var (
		members  []TeamMember
		settings *RecommendationSettings
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		members, err = api.Get[[]TeamMember](gctx, s.client, fmt.Sprintf("/teams/%d/members", teamID))
		return err
	})
	g.Go(func() error {
		got, err := api.Get[*RecommendationSettings](gctx, s.client, fmt.Sprintf("/teams/%d/recommendation-settings", teamID))
		if err != nil {
			return nil
		}
		settings = got
		return nil
	})

	if err := g.Wait(); err != nil {
		derr := &DetailError{Kind: api.Classify(err), Message: detailMessage(api.Classify(err))}
		s.mu.Lock()
		s.detailErr = derr
		s.mu.Unlock()
		return TeamDetail{}, fmt.Errorf("fetching team %d detail: %w", teamID, err)
	}

	detail := TeamDetail{Members: members, Settings: settings}
	s.mu.Lock()
	s.detail = &detail
	s.mu.Unlock()
	return detail, nil
}

func detailMessage(kind api.Kind) string {
	switch kind {
	case api.KindNotFound:
		return "team not found"
	case api.KindForbidden:
		return "this team is private"
	case api.KindNetwork:
		return "network error, please retry"
	default:
		return "failed to load team details"
	}
}

// RefreshTeamSettings re-fetches only the settings sub-resource and merges
// it into the resident detail without disturbing the member list.
func (s *Store) RefreshTeamSettings(ctx context.Context, teamID int64) (*RecommendationSettings, error) {
	settings, err := api.Get[*RecommendationSettings](ctx, s.client, fmt.Sprintf("/teams/%d/recommendation-settings", teamID))
	if err != nil {
		return nil, fmt.Errorf("refreshing team %d settings: %w", teamID, err)
	}

	s.mu.Lock()
	if s.detail != nil && s.currentTeamID == teamID {
		s.detail.Settings = settings
	}
	s.mu.Unlock()
	return settings, nil
}

// InviteMember invites a user by judge handle. Invalidates the list cache
// because member counts change.
func (s *Store) InviteMember(ctx context.Context, teamID int64, handle string) error {
	if handle == "" {
		return fmt.Errorf("handle is required")
	}
	err := s.client.Exec(ctx, http.MethodPost, fmt.Sprintf("/teams/%d/invite", teamID), inviteRequest{Handle: handle})
	if err != nil {
		return fmt.Errorf("inviting %q to team %d: %w", handle, teamID, err)
	}
	s.invalidate()
	return nil
}

// RemoveMember removes a member from the team (leader only).
func (s *Store) RemoveMember(ctx context.Context, teamID, memberID int64) error {
	err := s.client.Exec(ctx, http.MethodDelete, fmt.Sprintf("/teams/%d/members/%d", teamID, memberID), nil)
	if err != nil {
		return fmt.Errorf("removing member %d from team %d: %w", memberID, teamID, err)
	}
	s.invalidate()
	return nil
}

// LeaveTeam leaves the team and drops its resident detail.
func (s *Store) LeaveTeam(ctx context.Context, teamID int64) error {
	err := s.client.Exec(ctx, http.MethodPost, fmt.Sprintf("/teams/%d/leave", teamID), nil)
	if err != nil {
		return fmt.Errorf("leaving team %d: %w", teamID, err)
	}

	s.mu.Lock()
	if s.currentTeamID == teamID {
		s.currentTeamID = 0
		s.detail = nil
		s.detailErr = nil
	}
	s.lastFetch = time.Time{}
	s.persistLocked()
	s.mu.Unlock()
	return nil
}

// UpdateRecommendationSettings replaces the team's recommendation settings
// (leader only) and merges the accepted values into the resident detail.
func (s *Store) UpdateRecommendationSettings(ctx context.Context, teamID int64, settings RecommendationSettings) error {
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	SortDays(settings.Days)

	err := s.client.Exec(ctx, http.MethodPut, fmt.Sprintf("/teams/%d/recommendation-settings", teamID), settings)
	if err != nil {
		return fmt.Errorf("updating team %d settings: %w", teamID, err)
	}

	s.mu.Lock()
	if s.detail != nil && s.currentTeamID == teamID {
		merged := settings
		s.detail.Settings = &merged
	}
	s.lastFetch = time.Time{}
	s.persistLocked()
	s.mu.Unlock()
	return nil
}

// DisableRecommendation turns off the team's recommendation mailing.
func (s *Store) DisableRecommendation(ctx context.Context, teamID int64) error {
	err := s.client.Exec(ctx, http.MethodDelete, fmt.Sprintf("/teams/%d/recommendation-settings", teamID), nil)
	if err != nil {
		return fmt.Errorf("disabling team %d recommendation: %w", teamID, err)
	}

	s.mu.Lock()
	if s.detail != nil && s.currentTeamID == teamID && s.detail.Settings != nil {
		s.detail.Settings.IsActive = false
	}
	s.lastFetch = time.Time{}
	s.persistLocked()
	s.mu.Unlock()
	return nil
}

// Reset returns the store to empty and persists, so no team data survives a
// logout. Registered as the session store's on-logout hook at wiring time.
func (s *Store) Reset() {
	s.mu.Lock()
	s.teams = nil
	s.lastFetch = time.Time{}
	s.currentTeamID = 0
	s.detail = nil
	s.detailErr = nil
	s.persistLocked()
	s.mu.Unlock()
}

// Teams returns the cached summary list without touching the network.
func (s *Store) Teams() []TeamSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyTeams(s.teams)
}

// CurrentTeamID returns the id of the resident detail's team, or 0.
func (s *Store) CurrentTeamID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentTeamID
}

// CurrentDetail returns the resident detail and the classified load error;
// at most one of them is set.
func (s *Store) CurrentDetail() (*TeamDetail, *DetailError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.detail == nil {
		return nil, s.detailErr
	}
	detail := *s.detail
	detail.Members = append([]TeamMember(nil), s.detail.Members...)
	if s.detail.Settings != nil {
		settings := *s.detail.Settings
		detail.Settings = &settings
	}
	return &detail, s.detailErr
}

// invalidate expires the list cache after a mutation; the next FetchTeams
// hits the network.
func (s *Store) invalidate() {
	s.mu.Lock()
	s.lastFetch = time.Time{}
	s.persistLocked()
	s.mu.Unlock()
}

// persistLocked writes the summary snapshot; failures are logged, never
// surfaced, the in-memory cache stays correct either way.
func (s *Store) persistLocked() {
	snap := snapshot{Teams: s.teams, LastFetch: s.lastFetch, CurrentTeamID: s.currentTeamID}
	if err := s.bucket.Save(snap); err != nil {
		slog.Warn("persisting team cache", "error", err)
	}
}

func (s *Store) recordLookup(outcome string) {
	if s.metrics != nil {
		s.metrics.IncCacheLookup(outcome)
	}
}

func copyTeams(teams []TeamSummary) []TeamSummary {
	return append([]TeamSummary(nil), teams...)
}
