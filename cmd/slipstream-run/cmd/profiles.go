package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/VAHHABSY/SlipstreamApp/internal/profile"
)

var (
	saveDomain    string
	saveResolvers string
	savePort      int
	saveUse       bool
)

// profilesCmd represents the profiles command
var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Manage saved tunnel profiles",
}

var profilesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved profiles",
	Args:  cobra.NoArgs,
	RunE:  runProfilesList,
}

var profilesShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Print a profile as JSON (default: current)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runProfilesShow,
}

var profilesSaveCmd = &cobra.Command{
	Use:   "save <name>",
	Short: "Create or update a profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfilesSave,
}

var profilesUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Select the current profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfilesUse,
}

var profilesDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfilesDelete,
}

func init() {
	rootCmd.AddCommand(profilesCmd)
	profilesCmd.AddCommand(profilesListCmd, profilesShowCmd, profilesSaveCmd, profilesUseCmd, profilesDeleteCmd)

	profilesSaveCmd.Flags().StringVar(&saveDomain, "domain", "", "tunnel domain")
	profilesSaveCmd.Flags().StringVar(&saveResolvers, "resolvers", "", "comma separated resolvers")
	profilesSaveCmd.Flags().IntVar(&savePort, "port", profile.DefaultPort, "local SOCKS port")
	profilesSaveCmd.Flags().BoolVar(&saveUse, "use", false, "also select the profile")
}

// withStore opens the profile database for the duration of fn.
func withStore(fn func(*profile.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func runProfilesList(cmd *cobra.Command, args []string) error {
	return withStore(func(store *profile.Store) error {
		profiles, err := store.List()
		if err != nil {
			return err
		}
		current, err := store.CurrentName()
		if err != nil {
			return err
		}
		return printProfiles(cmd.OutOrStdout(), profiles, current)
	})
}

// printProfiles renders profiles as a table, marking the current one.
func printProfiles(w io.Writer, profiles []profile.Profile, current string) error {
	if len(profiles) == 0 {
		fmt.Fprintln(w, "No profiles saved")
		return nil
	}

	table := tablewriter.NewWriter(w)
	table.Header("", "Name", "Domain", "Resolvers", "Port")
	for _, p := range profiles {
		mark := ""
		if p.Name == current {
			mark = "*"
		}
		if err := table.Append(mark, p.Name, p.Domain, p.Resolvers, strconv.Itoa(p.Port)); err != nil {
			return err
		}
	}
	return table.Render()
}

func runProfilesShow(cmd *cobra.Command, args []string) error {
	return withStore(func(store *profile.Store) error {
		var (
			p   profile.Profile
			err error
		)
		if len(args) == 1 {
			p, err = store.Get(args[0])
		} else {
			p, err = store.Current()
		}
		if err != nil {
			return err
		}

		output, err := json.MarshalIndent(p, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(output))
		return nil
	})
}

func runProfilesSave(cmd *cobra.Command, args []string) error {
	return withStore(func(store *profile.Store) error {
		p, err := store.Get(args[0])
		if errors.Is(err, profile.ErrNotFound) {
			p = profile.New(args[0])
		} else if err != nil {
			return err
		}

		flags := cmd.Flags()
		if flags.Changed("domain") {
			p.Domain = saveDomain
		}
		if flags.Changed("resolvers") {
			p.Resolvers = saveResolvers
		}
		if flags.Changed("port") {
			p.Port = savePort
		}

		if err := store.Save(p); err != nil {
			return err
		}
		if saveUse {
			if err := store.SetCurrent(p.Name); err != nil {
				return err
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved profile %s\n", p.Name)
		return nil
	})
}

func runProfilesUse(cmd *cobra.Command, args []string) error {
	return withStore(func(store *profile.Store) error {
		if _, err := store.Get(args[0]); err != nil {
			return err
		}
		if err := store.SetCurrent(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Current profile: %s\n", args[0])
		return nil
	})
}

func runProfilesDelete(cmd *cobra.Command, args []string) error {
	return withStore(func(store *profile.Store) error {
		if err := store.Delete(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted profile %s\n", args[0])
		return nil
	})
}
