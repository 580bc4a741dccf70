// Package problem wraps the problem-browsing endpoints: search, tags, and
// the per-team daily recommendations.
package problem

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/codemate/codemate/internal/api"
)

// Problem is one solved.ac problem as the backend mirrors it.
type Problem struct {
	ProblemID         int64    `json:"problemId"`
	Title             string   `json:"title"`
	Level             int      `json:"level"`
	Tags              []string `json:"tags"`
	AcceptedUserCount int64    `json:"acceptedUserCount"`
	AverageTries      float64  `json:"averageTries"`
}

// Tag is one problem category with its localized display name.
type Tag struct {
	Key         string `json:"key"`
	DisplayName string `json:"displayName"`
	Count       int64  `json:"count"`
}

// SearchRequest filters a problem search. Zero values are omitted from the
// query string.
type SearchRequest struct {
	Query    string
	Tags     []string
	MinLevel int
	MaxLevel int
	Page     int
	Size     int
}

func (r SearchRequest) values() url.Values {
	v := url.Values{}
	if r.Query != "" {
		v.Set("query", r.Query)
	}
	for _, tag := range r.Tags {
		v.Add("tags", tag)
	}
	if r.MinLevel > 0 {
		v.Set("minLevel", strconv.Itoa(r.MinLevel))
	}
	if r.MaxLevel > 0 {
		v.Set("maxLevel", strconv.Itoa(r.MaxLevel))
	}
	if r.Page > 0 {
		v.Set("page", strconv.Itoa(r.Page))
	}
	if r.Size > 0 {
		v.Set("size", strconv.Itoa(r.Size))
	}
	return v
}

// SearchResult is one page of search hits.
type SearchResult struct {
	Problems      []Problem `json:"problems"`
	Page          int       `json:"page"`
	TotalPages    int       `json:"totalPages"`
	TotalElements int64     `json:"totalElements"`
}

// TodayProblems is a team's recommendation batch for one day.
type TodayProblems struct {
	TeamID   int64     `json:"teamId"`
	Date     time.Time `json:"date"`
	Problems []Problem `json:"problems"`
}

// Service calls the problem endpoints.
type Service struct {
	client *api.Client
}

// NewService creates a problem Service on the given client.
func NewService(client *api.Client) *Service {
	return &Service{client: client}
}

// Search runs a filtered problem search.
func (s *Service) Search(ctx context.Context, req SearchRequest) (SearchResult, error) {
	path := "/problems/search"
	if q := req.values().Encode(); q != "" {
		path += "?" + q
	}
	result, err := api.Get[SearchResult](ctx, s.client, path)
	if err != nil {
		return SearchResult{}, fmt.Errorf("searching problems: %w", err)
	}
	return result, nil
}

// Get fetches one problem by id.
func (s *Service) Get(ctx context.Context, id int64) (Problem, error) {
	p, err := api.Get[Problem](ctx, s.client, fmt.Sprintf("/problems/%d", id))
	if err != nil {
		return Problem{}, fmt.Errorf("fetching problem %d: %w", id, err)
	}
	return p, nil
}

// Tags lists the searchable problem tags.
func (s *Service) Tags(ctx context.Context) ([]Tag, error) {
	tags, err := api.Get[[]Tag](ctx, s.client, "/problems/tags")
	if err != nil {
		return nil, fmt.Errorf("fetching tags: %w", err)
	}
	return tags, nil
}

// Today fetches a team's problem recommendations for today.
func (s *Service) Today(ctx context.Context, teamID int64) (TodayProblems, error) {
	tp, err := api.Get[TodayProblems](ctx, s.client, fmt.Sprintf("/teams/%d/today-problems", teamID))
	if err != nil {
		return TodayProblems{}, fmt.Errorf("fetching today's problems for team %d: %w", teamID, err)
	}
	return tp, nil
}

// RefreshToday regenerates a team's recommendations (leader only).
func (s *Service) RefreshToday(ctx context.Context, teamID int64) (TodayProblems, error) {
	tp, err := api.Post[TodayProblems](ctx, s.client, fmt.Sprintf("/teams/%d/today-problems/refresh", teamID), nil)
	if err != nil {
		return TodayProblems{}, fmt.Errorf("refreshing today's problems for team %d: %w", teamID, err)
	}
	return tp, nil
}
