package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/codemate/codemate/internal/auth"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	RunE:  runWhoami,
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}

func runWhoami(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.requireAuth(); err != nil {
		return err
	}

	profile, err := a.members.GetMe(cmd.Context())
	if err != nil {
		return err
	}
	// Keep the local copy in sync with the backend.
	a.session.UpdateUser(sessionPatch(profile.Name, profile.Handle, profile.Avatar))

	fmt.Printf("Name:    %s\n", profile.Name)
	fmt.Printf("Email:   %s\n", profile.Email)
	if profile.Verified() {
		fmt.Printf("Handle:  %s\n", profile.Handle)
	} else {
		fmt.Println("Handle:  (not verified)")
	}
	if exp, err := auth.TokenExpiry(a.session.Token()); err == nil {
		fmt.Printf("Token:   valid until %s\n", exp.Local().Format(time.RFC1123))
	}
	return nil
}
