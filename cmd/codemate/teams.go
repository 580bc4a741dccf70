package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/codemate/codemate/internal/team"
	"github.com/codemate/codemate/internal/tier"
)

var teamsCmd = &cobra.Command{
	Use:   "teams",
	Short: "Manage your study teams",
}

var teamsForce bool

var teamsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your teams",
	RunE:  runTeamsList,
}

var teamsCreateDescription string

var teamsCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a team (you become its leader)",
	Args:  cobra.ExactArgs(1),
	RunE:  runTeamsCreate,
}

var teamsShowCmd = &cobra.Command{
	Use:   "show <teamId>",
	Short: "Show a team's members and recommendation settings",
	Args:  cobra.ExactArgs(1),
	RunE:  runTeamsShow,
}

var teamsInviteCmd = &cobra.Command{
	Use:   "invite <teamId> <handle>",
	Short: "Invite a member by solved.ac handle",
	Args:  cobra.ExactArgs(2),
	RunE:  runTeamsInvite,
}

var teamsRemoveCmd = &cobra.Command{
	Use:   "remove <teamId> <memberId>",
	Short: "Remove a member (leader only)",
	Args:  cobra.ExactArgs(2),
	RunE:  runTeamsRemove,
}

var teamsLeaveCmd = &cobra.Command{
	Use:   "leave <teamId>",
	Short: "Leave a team",
	Args:  cobra.ExactArgs(1),
	RunE:  runTeamsLeave,
}

var (
	settingsDays   []string
	settingsPreset string
	settingsMin    int
	settingsMax    int
	settingsOff    bool
)

var teamsSettingsCmd = &cobra.Command{
	Use:   "settings <teamId>",
	Short: "Configure recommendation settings (leader only)",
	Args:  cobra.ExactArgs(1),
	RunE:  runTeamsSettings,
}

func init() {
	teamsListCmd.Flags().BoolVar(&teamsForce, "refresh", false, "bypass the 5-minute cache")
	teamsCreateCmd.Flags().StringVar(&teamsCreateDescription, "description", "", "team description")
	teamsSettingsCmd.Flags().StringSliceVar(&settingsDays, "days", nil, "recommendation days, e.g. MONDAY,THURSDAY")
	teamsSettingsCmd.Flags().StringVar(&settingsPreset, "preset", string(tier.PresetNormal), "difficulty preset: EASY, NORMAL, HARD or CUSTOM")
	teamsSettingsCmd.Flags().IntVar(&settingsMin, "min", 0, "custom minimum tier (1..20)")
	teamsSettingsCmd.Flags().IntVar(&settingsMax, "max", 0, "custom maximum tier (1..20)")
	teamsSettingsCmd.Flags().BoolVar(&settingsOff, "off", false, "disable recommendation mailing")

	teamsCmd.AddCommand(teamsListCmd, teamsCreateCmd, teamsShowCmd,
		teamsInviteCmd, teamsRemoveCmd, teamsLeaveCmd, teamsSettingsCmd)
	rootCmd.AddCommand(teamsCmd)
}

func parseTeamID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid team id %q", arg)
	}
	return id, nil
}

func runTeamsList(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.requireVerified(); err != nil {
		return err
	}

	teams, err := a.teams.FetchTeams(cmd.Context(), teamsForce)
	if err != nil {
		return err
	}
	if len(teams) == 0 {
		fmt.Println("You are not in any team yet. Create one with `codemate teams create`.")
		return nil
	}
	printTeams(teams)
	return nil
}

func printTeams(teams []team.TeamSummary) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tROLE\tMEMBERS\tRECOMMENDATION")
	for _, t := range teams {
		active := "off"
		if t.IsRecommendationActive {
			active = "on"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n", t.TeamID, t.TeamName, t.MyRole, t.MemberCount, active)
	}
	w.Flush()
}

func runTeamsCreate(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.requireVerified(); err != nil {
		return err
	}

	created, err := a.teams.CreateTeam(cmd.Context(), team.CreateTeamRequest{
		TeamName:        args[0],
		TeamDescription: teamsCreateDescription,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Created team %q (id %d)\n", created.TeamName, created.TeamID)
	return nil
}

func runTeamsShow(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.requireVerified(); err != nil {
		return err
	}

	id, err := parseTeamID(args[0])
	if err != nil {
		return err
	}

	detail, err := a.teams.FetchTeamDetails(cmd.Context(), id)
	if err != nil {
		if _, derr := a.teams.CurrentDetail(); derr != nil {
			return fmt.Errorf("%s", derr.Message)
		}
		return err
	}

	fmt.Printf("Team %d\n\nMembers:\n", id)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tHANDLE\tEMAIL\tROLE")
	for _, m := range detail.Members {
		handle := m.Handle
		if m.IsMe {
			handle += " (you)"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", m.MemberID, handle, m.Email, m.Role)
	}
	w.Flush()

	fmt.Println("\nRecommendation:")
	printSettings(detail.Settings)
	return nil
}

func printSettings(s *team.RecommendationSettings) {
	if s == nil {
		fmt.Println("  not configured")
		return
	}
	if !s.IsActive {
		fmt.Println("  disabled")
		return
	}
	fmt.Printf("  days:       %v\n", s.Days)
	if s.Preset == tier.PresetCustom {
		fmt.Printf("  difficulty: %s .. %s\n", tier.Name(s.CustomMinLevel), tier.Name(s.CustomMaxLevel))
	} else {
		fmt.Printf("  difficulty: %s\n", s.Preset)
	}
}

func runTeamsInvite(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.requireVerified(); err != nil {
		return err
	}

	id, err := parseTeamID(args[0])
	if err != nil {
		return err
	}
	if err := a.teams.InviteMember(cmd.Context(), id, args[1]); err != nil {
		return err
	}
	fmt.Printf("Invited %s to team %d\n", args[1], id)
	return nil
}

func runTeamsRemove(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.requireVerified(); err != nil {
		return err
	}

	id, err := parseTeamID(args[0])
	if err != nil {
		return err
	}
	memberID, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid member id %q", args[1])
	}
	if err := a.teams.RemoveMember(cmd.Context(), id, memberID); err != nil {
		return err
	}
	fmt.Printf("Removed member %d from team %d\n", memberID, id)
	return nil
}

func runTeamsLeave(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.requireVerified(); err != nil {
		return err
	}

	id, err := parseTeamID(args[0])
	if err != nil {
		return err
	}
	if err := a.teams.LeaveTeam(cmd.Context(), id); err != nil {
		return err
	}
	fmt.Printf("Left team %d\n", id)
	return nil
}

func runTeamsSettings(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.requireVerified(); err != nil {
		return err
	}

	id, err := parseTeamID(args[0])
	if err != nil {
		return err
	}

	if settingsOff {
		if err := a.teams.DisableRecommendation(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Printf("Disabled recommendation mailing for team %d\n", id)
		return nil
	}

	preset, err := tier.ParsePreset(settingsPreset)
	if err != nil {
		return err
	}
	days := make([]team.DayOfWeek, 0, len(settingsDays))
	for _, raw := range settingsDays {
		d, err := team.ParseDay(raw)
		if err != nil {
			return err
		}
		days = append(days, d)
	}

	settings := team.RecommendationSettings{
		Days:           days,
		Preset:         preset,
		CustomMinLevel: settingsMin,
		CustomMaxLevel: settingsMax,
		IsActive:       true,
	}
	if err := a.teams.UpdateRecommendationSettings(cmd.Context(), id, settings); err != nil {
		return err
	}
	fmt.Printf("Updated recommendation settings for team %d\n", id)
	return nil
}
