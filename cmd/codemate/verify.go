package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <handle>",
	Short: "Verify your solved.ac handle",
	Args:  cobra.ExactArgs(1),
	RunE:  runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.requireAuth(); err != nil {
		return err
	}

	profile, err := a.members.VerifySolvedAc(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	a.session.UpdateUser(sessionPatch(profile.Name, profile.Handle, profile.Avatar))

	fmt.Printf("Verified solved.ac handle %s\n", profile.Handle)
	return nil
}
