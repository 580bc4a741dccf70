// Package member wraps the profile endpoints: the authenticated user's own
// profile, public lookups, and solved.ac handle verification.
package member

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/codemate/codemate/internal/api"
)

// Profile is the authenticated user's own profile.
type Profile struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Handle    string    `json:"handle,omitempty"`
	Avatar    string    `json:"avatar,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Verified reports whether the profile carries a solved.ac handle. Users
// without one are routed to verification before protected commands.
func (p Profile) Verified() bool {
	return p.Handle != ""
}

// PublicProfile is another member's profile as visible to teammates.
type PublicProfile struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Handle string `json:"handle,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

// SearchResult is one hit of a handle search, used when inviting members.
type SearchResult struct {
	MemberID int64  `json:"memberId"`
	Handle   string `json:"handle"`
	Name     string `json:"name"`
}

type verifyRequest struct {
	Handle string `json:"handle"`
}

// Service calls the member endpoints.
type Service struct {
	client *api.Client
}

// NewService creates a member Service on the given client.
func NewService(client *api.Client) *Service {
	return &Service{client: client}
}

// GetMe fetches the authenticated user's profile.
func (s *Service) GetMe(ctx context.Context) (Profile, error) {
	p, err := api.Get[Profile](ctx, s.client, "/member/me")
	if err != nil {
		return Profile{}, fmt.Errorf("fetching profile: %w", err)
	}
	return p, nil
}

// GetByID fetches another member's public profile.
func (s *Service) GetByID(ctx context.Context, id int64) (PublicProfile, error) {
	p, err := api.Get[PublicProfile](ctx, s.client, fmt.Sprintf("/member/%d", id))
	if err != nil {
		return PublicProfile{}, fmt.Errorf("fetching member %d: %w", id, err)
	}
	return p, nil
}

// SearchByHandle searches members by solved.ac handle prefix.
func (s *Service) SearchByHandle(ctx context.Context, handle string) ([]SearchResult, error) {
	if handle == "" {
		return nil, fmt.Errorf("handle is required")
	}
	results, err := api.Get[[]SearchResult](ctx, s.client, "/member/search?handle="+url.QueryEscape(handle))
	if err != nil {
		return nil, fmt.Errorf("searching members by %q: %w", handle, err)
	}
	return results, nil
}

// VerifiedHandles lists the solved.ac handles already claimed on the platform.
func (s *Service) VerifiedHandles(ctx context.Context) ([]string, error) {
	handles, err := api.Get[[]string](ctx, s.client, "/member/handles")
	if err != nil {
		return nil, fmt.Errorf("fetching verified handles: %w", err)
	}
	return handles, nil
}

// VerifySolvedAc claims a solved.ac handle for the authenticated user and
// returns the updated profile.
func (s *Service) VerifySolvedAc(ctx context.Context, handle string) (Profile, error) {
	if handle == "" {
		return Profile{}, fmt.Errorf("handle is required")
	}
	p, err := api.Post[Profile](ctx, s.client, "/member/me/verify-solvedac", verifyRequest{Handle: handle})
	if err != nil {
		return Profile{}, fmt.Errorf("verifying handle %q: %w", handle, err)
	}
	return p, nil
}
