package team

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codemate/codemate/internal/api"
	"github.com/codemate/codemate/internal/storage"
	"github.com/codemate/codemate/internal/tier"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// teamBackend is a mock CodeMate backend serving the team endpoints.
type teamBackend struct {
	srv *httptest.Server

	mu             sync.Mutex
	listCalls      int
	membersCalls   int
	settingsCalls  int
	teams          []TeamSummary
	members        []TeamMember
	settings       *RecommendationSettings
	membersStatus  int
	settingsStatus int
	nextID         int64
	nextCreatedAt  time.Time
	bareCreateResp bool // creation response without the new team's id
}

func newTeamBackend(t *testing.T) *teamBackend {
	t.Helper()
	b := &teamBackend{
		membersStatus:  http.StatusOK,
		settingsStatus: http.StatusOK,
		nextID:         2,
		nextCreatedAt:  time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
		members: []TeamMember{
			{MemberID: 10, Handle: "gopher123", Email: "gopher@codemate.kr", Role: RoleLeader, IsMe: true},
			{MemberID: 11, Handle: "rustacean", Email: "crab@codemate.kr", Role: RoleMember},
		},
	}

	writeData := func(w http.ResponseWriter, v interface{}) {
		data, err := json.Marshal(v)
		require.NoError(t, err)
		fmt.Fprintf(w, `{"data":%s,"message":"","status":"OK"}`, data)
	}
	writeError := func(w http.ResponseWriter, status int, msg string) {
		w.WriteHeader(status)
		fmt.Fprintf(w, `{"data":null,"message":%q,"status":"ERROR"}`, msg)
	}

	r := chi.NewRouter()
	r.Get("/api/teams/my", func(w http.ResponseWriter, req *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.listCalls++
		writeData(w, b.teams)
	})
	r.Post("/api/teams", func(w http.ResponseWriter, req *http.Request) {
		var body CreateTeamRequest
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))

		b.mu.Lock()
		defer b.mu.Unlock()
		created := TeamSummary{
			TeamID:      b.nextID,
			TeamName:    body.TeamName,
			MyRole:      RoleLeader,
			MemberCount: 1,
			CreatedAt:   b.nextCreatedAt,
		}
		b.teams = append(b.teams, created)
		resp := CreateTeamResponse{TeamID: created.TeamID, TeamName: created.TeamName, CreatedAt: created.CreatedAt}
		if b.bareCreateResp {
			resp.TeamID = 0
		}
		writeData(w, resp)
	})
	r.Get("/api/teams/{id}/members", func(w http.ResponseWriter, req *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.membersCalls++
		if b.membersStatus != http.StatusOK {
			writeError(w, b.membersStatus, "members unavailable")
			return
		}
		writeData(w, b.members)
	})
	r.Get("/api/teams/{id}/recommendation-settings", func(w http.ResponseWriter, req *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.settingsCalls++
		if b.settingsStatus != http.StatusOK {
			writeError(w, b.settingsStatus, "no settings")
			return
		}
		writeData(w, b.settings)
	})
	r.Post("/api/teams/{id}/invite", func(w http.ResponseWriter, req *http.Request) {
		writeData(w, nil)
	})
	r.Delete("/api/teams/{id}/members/{memberId}", func(w http.ResponseWriter, req *http.Request) {
		writeData(w, nil)
	})
	r.Post("/api/teams/{id}/leave", func(w http.ResponseWriter, req *http.Request) {
		writeData(w, nil)
	})
	r.Put("/api/teams/{id}/recommendation-settings", func(w http.ResponseWriter, req *http.Request) {
		var body RecommendationSettings
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		b.mu.Lock()
		b.settings = &body
		b.mu.Unlock()
		writeData(w, nil)
	})
	r.Delete("/api/teams/{id}/recommendation-settings", func(w http.ResponseWriter, req *http.Request) {
		b.mu.Lock()
		if b.settings != nil {
			b.settings.IsActive = false
		}
		b.mu.Unlock()
		writeData(w, nil)
	})

	b.srv = httptest.NewServer(r)
	t.Cleanup(b.srv.Close)
	return b
}

func (b *teamBackend) listCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.listCalls
}

func summaryA() TeamSummary {
	return TeamSummary{
		TeamID:      1,
		TeamName:    "A",
		MyRole:      RoleLeader,
		MemberCount: 2,
		CreatedAt:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func newTestStore(t *testing.T, backend *teamBackend, clock *fakeClock) *Store {
	t.Helper()
	c, err := api.New(backend.srv.URL+"/api", api.WithHTTPClient(backend.srv.Client()))
	require.NoError(t, err)
	st, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	return New(c, st.Bucket("team-storage"), WithClock(clock.Now))
}

func TestFetchTeamsCachesWithinWindow(t *testing.T) {
	backend := newTeamBackend(t)
	backend.teams = []TeamSummary{summaryA()}
	clock := newFakeClock()
	s := newTestStore(t, backend, clock)

	first, err := s.FetchTeams(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, first, 1)

	clock.Advance(4 * time.Minute)
	second, err := s.FetchTeams(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, backend.listCount(), "fresh cache must not hit the network")

	clock.Advance(2 * time.Minute)
	_, err = s.FetchTeams(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, backend.listCount(), "stale cache must refetch")
}

func TestForceRefreshBypassesCache(t *testing.T) {
	backend := newTeamBackend(t)
	backend.teams = []TeamSummary{summaryA()}
	clock := newFakeClock()
	s := newTestStore(t, backend, clock)

	_, err := s.FetchTeams(context.Background(), false)
	require.NoError(t, err)
	_, err = s.FetchTeams(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 2, backend.listCount())
}

func TestEmptyListIsNotServedFromCache(t *testing.T) {
	backend := newTeamBackend(t)
	clock := newFakeClock()
	s := newTestStore(t, backend, clock)

	_, err := s.FetchTeams(context.Background(), false)
	require.NoError(t, err)
	_, err = s.FetchTeams(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, backend.listCount(), "an empty cached list is always refetched")
}

func TestCreateTeamLoadsCreatedDetail(t *testing.T) {
	backend := newTeamBackend(t)
	backend.teams = []TeamSummary{summaryA()}
	clock := newFakeClock()
	s := newTestStore(t, backend, clock)

	created, err := s.CreateTeam(context.Background(), CreateTeamRequest{TeamName: "B"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), created.TeamID)

	teams := s.Teams()
	require.Len(t, teams, 2)
	assert.Equal(t, "A", teams[0].TeamName)
	assert.Equal(t, "B", teams[1].TeamName)

	assert.Equal(t, int64(2), s.CurrentTeamID(), "detail must belong to the created team")
	detail, derr := s.CurrentDetail()
	require.Nil(t, derr)
	require.NotNil(t, detail)
	assert.Len(t, detail.Members, 2)
}

func TestCreateTeamFallsBackToNewestCreatedAt(t *testing.T) {
	backend := newTeamBackend(t)
	backend.teams = []TeamSummary{summaryA()}
	// The creation response carries no id, so the store scans the refreshed
	// list for the newest createdAt.
	backend.bareCreateResp = true
	clock := newFakeClock()
	s := newTestStore(t, backend, clock)

	created, err := s.CreateTeam(context.Background(), CreateTeamRequest{TeamName: "B"})
	require.NoError(t, err)
	assert.Equal(t, "B", created.TeamName)
	assert.Equal(t, int64(2), created.TeamID)
	assert.Equal(t, int64(2), s.CurrentTeamID())
}

func TestCreateTeamRejectsEmptyName(t *testing.T) {
	backend := newTeamBackend(t)
	s := newTestStore(t, backend, newFakeClock())

	_, err := s.CreateTeam(context.Background(), CreateTeamRequest{})
	require.Error(t, err)
	assert.Equal(t, 0, backend.listCount(), "validation failures must stay off the network")
}

func TestFetchTeamDetailsForbidden(t *testing.T) {
	backend := newTeamBackend(t)
	backend.membersStatus = http.StatusForbidden
	s := newTestStore(t, backend, newFakeClock())

	_, err := s.FetchTeamDetails(context.Background(), 99)
	require.Error(t, err)

	detail, derr := s.CurrentDetail()
	assert.Nil(t, detail, "detail must stay unset on member failure")
	require.NotNil(t, derr)
	assert.Equal(t, api.KindForbidden, derr.Kind)
	assert.NotEmpty(t, derr.Message)
}

func TestFetchTeamDetailsToleratesSettingsFailure(t *testing.T) {
	backend := newTeamBackend(t)
	backend.settingsStatus = http.StatusNotFound
	s := newTestStore(t, backend, newFakeClock())

	detail, err := s.FetchTeamDetails(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, detail.Members, 2)
	assert.Nil(t, detail.Settings, "settings failure means no settings configured")

	got, derr := s.CurrentDetail()
	require.NotNil(t, got)
	assert.Nil(t, derr)
}

func TestSwitchingTeamsDiscardsPreviousDetail(t *testing.T) {
	backend := newTeamBackend(t)
	backend.membersStatus = http.StatusForbidden
	s := newTestStore(t, backend, newFakeClock())

	_, err := s.FetchTeamDetails(context.Background(), 1)
	require.Error(t, err)

	backend.mu.Lock()
	backend.membersStatus = http.StatusOK
	backend.mu.Unlock()

	_, err = s.FetchTeamDetails(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), s.CurrentTeamID())
	detail, derr := s.CurrentDetail()
	require.NotNil(t, detail)
	assert.Nil(t, derr, "a successful switch clears the previous detail error")
}

func TestRefreshTeamSettingsMergesOnly(t *testing.T) {
	backend := newTeamBackend(t)
	s := newTestStore(t, backend, newFakeClock())

	_, err := s.FetchTeamDetails(context.Background(), 1)
	require.NoError(t, err)

	backend.mu.Lock()
	backend.settings = &RecommendationSettings{
		Days:     []DayOfWeek{Monday, Thursday},
		Preset:   tier.PresetNormal,
		IsActive: true,
	}
	backend.mu.Unlock()

	settings, err := s.RefreshTeamSettings(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, settings)

	detail, _ := s.CurrentDetail()
	require.NotNil(t, detail)
	assert.Len(t, detail.Members, 2, "member list must not be disturbed")
	require.NotNil(t, detail.Settings)
	assert.Equal(t, []DayOfWeek{Monday, Thursday}, detail.Settings.Days)
}

func TestMutationsInvalidateListCache(t *testing.T) {
	backend := newTeamBackend(t)
	backend.teams = []TeamSummary{summaryA()}
	clock := newFakeClock()
	s := newTestStore(t, backend, clock)

	_, err := s.FetchTeams(context.Background(), false)
	require.NoError(t, err)

	require.NoError(t, s.InviteMember(context.Background(), 1, "rustacean"))

	_, err = s.FetchTeams(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, backend.listCount(), "a mutation must expire the list cache")
}

func TestUpdateSettingsValidation(t *testing.T) {
	backend := newTeamBackend(t)
	s := newTestStore(t, backend, newFakeClock())

	tests := []struct {
		name     string
		settings RecommendationSettings
	}{
		{"active without days", RecommendationSettings{Preset: tier.PresetEasy, IsActive: true}},
		{"unknown preset", RecommendationSettings{Days: []DayOfWeek{Monday}, Preset: "BRUTAL", IsActive: true}},
		{"custom range inverted", RecommendationSettings{
			Days: []DayOfWeek{Monday}, Preset: tier.PresetCustom,
			CustomMinLevel: 15, CustomMaxLevel: 3, IsActive: true,
		}},
		{"custom range out of bounds", RecommendationSettings{
			Days: []DayOfWeek{Monday}, Preset: tier.PresetCustom,
			CustomMinLevel: 1, CustomMaxLevel: 25, IsActive: true,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.UpdateRecommendationSettings(context.Background(), 1, tt.settings)
			assert.Error(t, err)
		})
	}
}

func TestUpdateSettingsSortsDaysAndMerges(t *testing.T) {
	backend := newTeamBackend(t)
	s := newTestStore(t, backend, newFakeClock())

	_, err := s.FetchTeamDetails(context.Background(), 1)
	require.NoError(t, err)

	err = s.UpdateRecommendationSettings(context.Background(), 1, RecommendationSettings{
		Days:     []DayOfWeek{Sunday, Wednesday, Monday},
		Preset:   tier.PresetHard,
		IsActive: true,
	})
	require.NoError(t, err)

	detail, _ := s.CurrentDetail()
	require.NotNil(t, detail)
	require.NotNil(t, detail.Settings)
	assert.Equal(t, []DayOfWeek{Monday, Wednesday, Sunday}, detail.Settings.Days)
}

func TestLeaveTeamDropsDetail(t *testing.T) {
	backend := newTeamBackend(t)
	backend.teams = []TeamSummary{summaryA()}
	s := newTestStore(t, backend, newFakeClock())

	_, err := s.FetchTeamDetails(context.Background(), 1)
	require.NoError(t, err)

	require.NoError(t, s.LeaveTeam(context.Background(), 1))

	assert.Zero(t, s.CurrentTeamID())
	detail, derr := s.CurrentDetail()
	assert.Nil(t, detail)
	assert.Nil(t, derr)
}

func TestResetReturnsStoreToEmpty(t *testing.T) {
	backend := newTeamBackend(t)
	backend.teams = []TeamSummary{summaryA()}
	s := newTestStore(t, backend, newFakeClock())

	_, err := s.FetchTeams(context.Background(), false)
	require.NoError(t, err)
	_, err = s.FetchTeamDetails(context.Background(), 1)
	require.NoError(t, err)

	s.Reset()

	assert.Empty(t, s.Teams())
	assert.Zero(t, s.CurrentTeamID())
	detail, derr := s.CurrentDetail()
	assert.Nil(t, detail)
	assert.Nil(t, derr)
}

func TestPersistsSummariesNeverDetail(t *testing.T) {
	backend := newTeamBackend(t)
	backend.teams = []TeamSummary{summaryA()}
	clock := newFakeClock()

	c, err := api.New(backend.srv.URL+"/api", api.WithHTTPClient(backend.srv.Client()))
	require.NoError(t, err)
	st, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	bucket := st.Bucket("team-storage")

	s := New(c, bucket, WithClock(clock.Now))
	_, err = s.FetchTeams(context.Background(), false)
	require.NoError(t, err)
	_, err = s.FetchTeamDetails(context.Background(), 1)
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	ok, err := bucket.Load(&raw)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, raw, "teams")
	assert.Contains(t, raw, "lastFetch")
	assert.Contains(t, raw, "currentTeamId")
	assert.NotContains(t, raw, "members", "the detail payload is never persisted")

	// A new store restores the list and the current team id, but not the
	// detail, which is always refetched.
	s2 := New(c, bucket, WithClock(clock.Now))
	assert.Len(t, s2.Teams(), 1)
	assert.Equal(t, int64(1), s2.CurrentTeamID())
	detail, _ := s2.CurrentDetail()
	assert.Nil(t, detail)

	// The restored list is still fresh, so no network call is needed.
	calls := backend.listCount()
	_, err = s2.FetchTeams(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, calls, backend.listCount())
}

func TestSortDays(t *testing.T) {
	days := []DayOfWeek{Sunday, Friday, Monday, Wednesday}
	SortDays(days)
	assert.Equal(t, []DayOfWeek{Monday, Wednesday, Friday, Sunday}, days)
}

func TestParseDay(t *testing.T) {
	d, err := ParseDay("FRIDAY")
	require.NoError(t, err)
	assert.Equal(t, Friday, d)

	_, err = ParseDay("friday")
	assert.Error(t, err)
}

func TestRemoveMemberInvalidates(t *testing.T) {
	backend := newTeamBackend(t)
	backend.teams = []TeamSummary{summaryA()}
	s := newTestStore(t, backend, newFakeClock())

	_, err := s.FetchTeams(context.Background(), false)
	require.NoError(t, err)

	require.NoError(t, s.RemoveMember(context.Background(), 1, 11))

	_, err = s.FetchTeams(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, backend.listCount())
}
