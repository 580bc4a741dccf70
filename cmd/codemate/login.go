package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/codemate/codemate/internal/auth"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with Google",
	RunE:  runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	flow := auth.NewFlow(a.client, a.members,
		a.cfg.OAuthBaseURL(), a.cfg.OAuth.GoogleClientID, a.cfg.OAuth.CallbackPort)
	flow.Notify = func(authURL string) {
		fmt.Println("Open this URL in your browser to sign in:")
		fmt.Println("  " + authURL)
	}

	res, err := flow.Login(cmd.Context())
	if err != nil {
		return err
	}
	a.session.Login(res.User, res.AccessToken)

	fmt.Printf("Logged in as %s <%s>\n", res.User.Name, res.User.Email)
	if exp, err := auth.TokenExpiry(res.AccessToken); err == nil {
		fmt.Printf("Access token valid until %s\n", exp.Local().Format(time.RFC1123))
	}
	if res.User.Handle == "" {
		fmt.Println("No solved.ac handle verified yet; run `codemate verify <handle>`.")
	}
	return nil
}
