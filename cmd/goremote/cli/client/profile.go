package client

import (
	"fmt"
	"io"
	"slices"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/manifoldco/promptui"
	"github.com/mwantia/goremote/internal/agent"
	"github.com/mwantia/goremote/pkg/configmgr"
	"github.com/mwantia/goremote/pkg/remote"
	"github.com/spf13/cobra"
)

const labelKey = "label"

func NewProfileCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "profile",
		Aliases: []string{"profiles"},
		Short:   "Manage connection profiles",
		Long: `Manage the named connection profiles stored in the metadata database.

Passwords are stored rot13 encoded. This only keeps them from being read at
a glance and offers no protection.`,
	}

	cmd.AddCommand(newProfileListCommand())
	cmd.AddCommand(newProfileCreateCommand())
	cmd.AddCommand(newProfileDeleteCommand())
	cmd.AddCommand(newProfileUseCommand())
	cmd.AddCommand(newProfileSetCommand())
	cmd.AddCommand(newProfileShowCommand())

	return cmd
}

func newProfileListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAgent(cmd.Context(), func(gra *agent.GoRemoteAgent) error {
				manager := gra.Manager()
				current := manager.Current().Name()

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, headerStyle.Render("  NAME\tLABEL\tTYPE\tHOST\tSTATUS"))
				for _, p := range manager.Configurations() {
					if p.IsDefault() {
						continue
					}
					marker := " "
					if p.Name() == current {
						marker = currentStyle.Render("*")
					}
					status := "ok"
					if !p.IsValid() {
						status = invalidStyle.Render(p.ErrorMessage())
					}
					fmt.Fprintf(w, "%s %s\t%s\t%s\t%s\t%s\n", marker, p.Name(), p.DisplayName(),
						p.Value(remote.SettingType), p.Value(remote.SettingHost), status)
				}
				return w.Flush()
			})
		},
	}
}

func newProfileCreateCommand() *cobra.Command {
	var label string

	cmd := &cobra.Command{
		Use:   "create <name> [key=value...]",
		Short: "Create a profile and make it current",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAgent(cmd.Context(), func(gra *agent.GoRemoteAgent) error {
				name := args[0]
				if name == configmgr.DefaultName {
					return fmt.Errorf("profile name must not be empty")
				}

				profile, err := gra.Manager().CreateNew(name, label)
				if err != nil {
					return err
				}
				if err := applySettings(profile, args[1:]); err != nil {
					return err
				}
				if err := gra.Persist(cmd.Context()); err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Profile '%s' created and marked as current\n", name)
				if !profile.IsValid() {
					fmt.Fprintf(cmd.OutOrStdout(), "Profile is incomplete: %s\n", profile.ErrorMessage())
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&label, "label", "", "human readable label")

	return cmd
}

func newProfileDeleteCommand() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAgent(cmd.Context(), func(gra *agent.GoRemoteAgent) error {
				profile, err := gra.Profile(args[0])
				if err != nil {
					return err
				}

				if !yes {
					prompt := promptui.Prompt{
						Label:     fmt.Sprintf("Delete profile '%s'", profile.Name()),
						IsConfirm: true,
					}
					if _, err := prompt.Run(); err != nil {
						fmt.Fprintln(cmd.OutOrStdout(), "Deletion cancelled")
						return nil
					}
				}

				if err := profile.Delete(); err != nil {
					return err
				}
				if err := gra.Persist(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Profile '%s' deleted\n", profile.Name())
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")

	return cmd
}

func newProfileUseCommand() *cobra.Command {
	var useDefault bool

	cmd := &cobra.Command{
		Use:   "use <name>",
		Short: "Mark a profile as current",
		Args: func(cmd *cobra.Command, args []string) error {
			if useDefault {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAgent(cmd.Context(), func(gra *agent.GoRemoteAgent) error {
				name := configmgr.DefaultName
				if !useDefault {
					name = args[0]
				}
				if err := gra.Manager().MarkAsCurrentConfiguration(name); err != nil {
					return err
				}
				return gra.Persist(cmd.Context())
			})
		},
	}

	cmd.Flags().BoolVar(&useDefault, "default", false, "fall back to the default profile")

	return cmd
}

func newProfileSetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <name> <key=value|key>...",
		Short: "Change profile settings",
		Long: `Change profile settings. An empty value removes the setting. A key
without a value is prompted for, masked for passwords.

Known keys: ` + strings.Join(settingKeys(), ", "),
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAgent(cmd.Context(), func(gra *agent.GoRemoteAgent) error {
				profile, err := gra.Profile(args[0])
				if err != nil {
					return err
				}
				if err := applySettings(profile, args[1:]); err != nil {
					return err
				}
				if err := gra.Persist(cmd.Context()); err != nil {
					return err
				}
				if !profile.IsValid() {
					fmt.Fprintf(cmd.OutOrStdout(), "Profile is incomplete: %s\n", profile.ErrorMessage())
				}
				return nil
			})
		},
	}

	return cmd
}

func newProfileShowCommand() *cobra.Command {
	var reveal bool

	cmd := &cobra.Command{
		Use:   "show [name]",
		Short: "Show the settings of a profile",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAgent(cmd.Context(), func(gra *agent.GoRemoteAgent) error {
				name := ""
				if len(args) > 0 {
					name = args[0]
				}
				profile, err := gra.Profile(name)
				if err != nil {
					return err
				}
				printProfile(cmd.OutOrStdout(), profile, reveal)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&reveal, "reveal", false, "print the password in clear text")

	return cmd
}

func printProfile(out io.Writer, profile *configmgr.Configuration, reveal bool) {
	fmt.Fprintln(out, headerStyle.Render(profile.DisplayName()))
	if !profile.IsValid() {
		fmt.Fprintln(out, invalidStyle.Render(profile.ErrorMessage()))
	}

	values := profile.Values()
	keys := make([]string, 0, len(values))
	for key := range values {
		if key != configmgr.PropDisplayName {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, key := range keys {
		value := values[key]
		if key == remote.SettingPassword && !reveal {
			value = "********"
		}
		fmt.Fprintf(w, "  %s\t%s\n", key, value)
	}
	w.Flush()
}

func settingKeys() []string {
	return append([]string{labelKey}, remote.SettingKeys()...)
}

// applySettings handles "key=value" and bare "key" arguments, prompting for
// the value of the latter.
func applySettings(profile *configmgr.Configuration, args []string) error {
	for _, arg := range args {
		key, value, hasValue := strings.Cut(arg, "=")
		key = strings.ToLower(strings.TrimSpace(key))
		if !slices.Contains(settingKeys(), key) {
			return fmt.Errorf("unknown setting '%s'", key)
		}

		if !hasValue {
			prompt := promptui.Prompt{Label: key}
			if key == remote.SettingPassword {
				prompt.Mask = '*'
			}
			entered, err := prompt.Run()
			if err != nil {
				return err
			}
			value = entered
		}

		if key == labelKey {
			key = configmgr.PropDisplayName
		}
		if err := profile.SetValue(key, strings.TrimSpace(value)); err != nil {
			return err
		}
	}
	return nil
}
