package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codemate/codemate/internal/auth"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and clear local state",
	RunE:  runLogout,
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}

func runLogout(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if !a.session.IsAuthenticated() {
		fmt.Println("Not logged in.")
		return nil
	}

	// Server-side logout is best effort; the local session goes either way.
	auth.Logout(cmd.Context(), a.client)
	a.session.Logout()

	fmt.Println("Logged out.")
	return nil
}
