package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/codemate/codemate/internal/api"
	"github.com/codemate/codemate/internal/config"
	"github.com/codemate/codemate/internal/crypto"
	"github.com/codemate/codemate/internal/member"
	"github.com/codemate/codemate/internal/metrics"
	"github.com/codemate/codemate/internal/problem"
	"github.com/codemate/codemate/internal/session"
	"github.com/codemate/codemate/internal/storage"
	"github.com/codemate/codemate/internal/team"
)

// app wires the client stack together for one command invocation.
type app struct {
	cfg      *config.Config
	metrics  *metrics.Metrics
	client   *api.Client
	session  *session.Store
	teams    *team.Store
	members  *member.Service
	problems *problem.Service
}

func newApp() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := storage.Open(cfg.State.Dir)
	if err != nil {
		return nil, err
	}

	cipher, err := sessionCipher(cfg)
	if err != nil {
		return nil, err
	}

	sess, err := session.New(store.Bucket("auth-storage"), cipher)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	client, err := api.New(cfg.API.BaseURL,
		api.WithTimeout(cfg.API.Timeout),
		api.WithSession(sess),
		api.WithMetrics(m),
		api.WithSessionExpiredHandler(func(error) {
			fmt.Fprintln(os.Stderr, "Your session has expired. Run `codemate login` to sign in again.")
		}),
	)
	if err != nil {
		return nil, err
	}

	teams := team.New(client, store.Bucket("team-storage"), team.WithMetrics(m))

	// Wiring: token changes flow into the client's default header, and a
	// logout resets the team cache so nothing leaks across accounts.
	sess.OnToken(func(tok string) {
		if tok == "" {
			client.RemoveAuthToken()
			return
		}
		client.SetAuthToken(tok)
	})
	sess.OnLogout(teams.Reset)
	if tok := sess.Token(); tok != "" {
		client.SetAuthToken(tok)
	}

	return &app{
		cfg:      cfg,
		metrics:  m,
		client:   client,
		session:  sess,
		teams:    teams,
		members:  member.NewService(client),
		problems: problem.NewService(client),
	}, nil
}

// sessionCipher builds the at-rest cipher for the persisted session: a hex
// key directly, or a key derived from the passphrase with a per-machine salt.
// With neither configured the session is stored in the clear.
func sessionCipher(cfg *config.Config) (*crypto.Cipher, error) {
	switch {
	case cfg.Encryption.Key != "":
		return crypto.NewCipher(cfg.Encryption.Key)
	case cfg.Encryption.Passphrase != "":
		salt, err := crypto.LoadOrCreateSalt(filepath.Join(cfg.State.Dir, "session.salt"))
		if err != nil {
			return nil, err
		}
		key, err := crypto.DeriveKey(cfg.Encryption.Passphrase, salt)
		if err != nil {
			return nil, err
		}
		return crypto.NewCipher(key)
	default:
		return nil, nil
	}
}

// close dumps gathered metrics when running with --debug.
func (a *app) close() {
	if debug {
		if err := a.metrics.DumpText(os.Stderr); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
}

// sessionPatch builds a user patch from a freshly fetched profile.
func sessionPatch(name, handle, avatar string) session.UserPatch {
	return session.UserPatch{Name: &name, Handle: &handle, Avatar: &avatar}
}

// requireAuth fails commands that need a logged-in user.
func (a *app) requireAuth() error {
	if !a.session.IsAuthenticated() {
		return fmt.Errorf("not logged in; run `codemate login` first")
	}
	return nil
}

// requireVerified additionally demands a verified solved.ac handle.
func (a *app) requireVerified() error {
	if err := a.requireAuth(); err != nil {
		return err
	}
	if u, ok := a.session.User(); !ok || u.Handle == "" {
		return fmt.Errorf("no verified solved.ac handle; run `codemate verify <handle>` first")
	}
	return nil
}
