// Package auth implements the Google OAuth login flow. The backend owns the
// token exchange; the client only drives the browser to the backend's
// authorization endpoint and collects the result on a loopback callback.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/oauth2"

	"github.com/codemate/codemate/internal/api"
	"github.com/codemate/codemate/internal/member"
	"github.com/codemate/codemate/internal/session"
)

// loginTimeout bounds how long the loopback server waits for the browser.
const loginTimeout = 5 * time.Minute

// wireUser is the backend's user shape; ids are numeric on the wire.
type wireUser struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Handle    string    `json:"handle"`
	Avatar    string    `json:"avatar"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (u wireUser) session() session.User {
	return session.User{
		ID:        strconv.FormatInt(u.ID, 10),
		Email:     u.Email,
		Name:      u.Name,
		Handle:    u.Handle,
		Avatar:    u.Avatar,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

type googleLoginRequest struct {
	Code string `json:"code"`
}

type googleLoginResponse struct {
	User        wireUser `json:"user"`
	AccessToken string   `json:"accessToken"`
}

// Result is a completed login: the authenticated user and the access token
// to install into the session.
type Result struct {
	User        session.User
	AccessToken string
}

// Flow runs the OAuth login: it opens a loopback callback server, hands the
// authorization URL to the Notify hook, and waits for the browser redirect.
type Flow struct {
	client   *api.Client
	members  *member.Service
	clientID string

	// oauthBase is the backend origin owning /oauth2/authorization/google.
	oauthBase string
	// port for the loopback callback server; 0 lets the OS pick.
	port int

	// Notify receives the authorization URL once the callback server is
	// listening. The CLI prints it (and tries to open a browser).
	Notify func(authURL string)
}

// NewFlow creates a login flow against the given backend origin.
func NewFlow(client *api.Client, members *member.Service, oauthBase, clientID string, port int) *Flow {
	return &Flow{
		client:    client,
		members:   members,
		clientID:  clientID,
		oauthBase: oauthBase,
		port:      port,
	}
}

// newState returns a fresh random state parameter.
func newState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating oauth state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// callbackResult is what the browser redirect delivers: either an
// authorization code for the backend exchange, or an already-minted access
// token for the bootstrap path.
type callbackResult struct {
	code  string
	token string
	err   error
}

// Login runs the full flow and returns the authenticated user and token.
// The caller installs them into the session store.
func (f *Flow) Login(ctx context.Context) (Result, error) {
	state, err := newState()
	if err != nil {
		return Result{}, err
	}

	ln, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(f.port)))
	if err != nil {
		return Result{}, fmt.Errorf("starting callback server: %w", err)
	}
	defer ln.Close()

	redirectURL := fmt.Sprintf("http://%s/callback", ln.Addr().String())
	results := make(chan callbackResult, 1)

	r := chi.NewRouter()
	r.Get("/callback", func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			results <- callbackResult{err: fmt.Errorf("oauth state mismatch")}
			return
		}
		if errMsg := q.Get("error"); errMsg != "" {
			http.Error(w, "login failed", http.StatusBadRequest)
			results <- callbackResult{err: fmt.Errorf("oauth error: %s", errMsg)}
			return
		}
		code, token := q.Get("code"), q.Get("access_token")
		if code == "" && token == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			results <- callbackResult{err: fmt.Errorf("callback carried neither code nor token")}
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<html><body>Login complete. You can close this tab.</body></html>")
		results <- callbackResult{code: code, token: token}
	})

	srv := &http.Server{Handler: r}
	go srv.Serve(ln)
	defer srv.Close()

	if f.Notify != nil {
		f.Notify(f.authURL(redirectURL, state))
	}

	ctx, cancel := context.WithTimeout(ctx, loginTimeout)
	defer cancel()

	select {
	case res := <-results:
		if res.err != nil {
			return Result{}, res.err
		}
		if res.code != "" {
			return f.exchangeCode(ctx, res.code)
		}
		return f.bootstrapToken(ctx, res.token)
	case <-ctx.Done():
		return Result{}, fmt.Errorf("waiting for login callback: %w", ctx.Err())
	}
}

// authURL builds the backend's authorization URL. The backend performs the
// Google exchange itself, so only the client id, redirect and state travel.
func (f *Flow) authURL(redirectURL, state string) string {
	cfg := oauth2.Config{
		ClientID:    f.clientID,
		RedirectURL: redirectURL,
		Endpoint: oauth2.Endpoint{
			AuthURL: f.oauthBase + "/oauth2/authorization/google",
		},
	}
	return cfg.AuthCodeURL(state)
}

// exchangeCode trades the authorization code for a user and access token.
// A failure here must not trigger the session-expired cascade, so the call
// goes through the plain client path with no token attached.
func (f *Flow) exchangeCode(ctx context.Context, code string) (Result, error) {
	resp, err := api.Post[googleLoginResponse](ctx, f.client, "/auth/google", googleLoginRequest{Code: code})
	if err != nil {
		return Result{}, fmt.Errorf("exchanging authorization code: %w", err)
	}
	if resp.AccessToken == "" {
		return Result{}, fmt.Errorf("login response carried no access token")
	}
	return Result{User: resp.User.session(), AccessToken: resp.AccessToken}, nil
}

// bootstrapToken handles the redirect variant where the backend already
// minted an access token; the user is fetched with it.
func (f *Flow) bootstrapToken(ctx context.Context, token string) (Result, error) {
	f.client.SetAuthToken(token)
	profile, err := f.members.GetMe(ctx)
	if err != nil {
		f.client.RemoveAuthToken()
		return Result{}, fmt.Errorf("bootstrapping session: %w", err)
	}
	return Result{
		User: session.User{
			ID:        strconv.FormatInt(profile.ID, 10),
			Email:     profile.Email,
			Name:      profile.Name,
			Handle:    profile.Handle,
			Avatar:    profile.Avatar,
			CreatedAt: profile.CreatedAt,
			UpdatedAt: profile.UpdatedAt,
		},
		AccessToken: token,
	}, nil
}

// Logout tells the backend to drop the refresh cookie; failures are ignored,
// the local session is cleared regardless.
func Logout(ctx context.Context, client *api.Client) {
	_ = client.Exec(ctx, http.MethodPost, "/auth/logout", nil)
}
