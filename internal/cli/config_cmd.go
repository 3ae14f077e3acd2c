package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/evcraddock/visitor-kiosk/internal/auth"
	"github.com/evcraddock/visitor-kiosk/internal/config"
	"github.com/evcraddock/visitor-kiosk/internal/revision"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the kiosk configuration document",
		Long:  "Show, version and restore the kiosk configuration document. Every saved version is archived.",
	}

	cmd.AddCommand(
		newConfigShowCmd(),
		newConfigBumpCmd(),
		newConfigHistoryCmd(),
		newConfigUseCmd(),
		newConfigSetPathCmd(),
		newConfigTokenCmd(),
	)
	return cmd
}

// withManager opens the revision archive and runs fn with a manager for
// the configured document.
func withManager(fn func(*revision.Manager) error) error {
	database, err := openDB()
	if err != nil {
		return err
	}
	defer closeDB(database)
	return fn(revision.NewManager(getConfigPath(), revision.NewRepository(database)))
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the configuration document with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadDocument(getConfigPath())
			if err != nil {
				return err
			}
			redacted := cfg.Redacted()

			out := cmd.OutOrStdout()
			if isJSON() {
				return printJSON(out, redacted)
			}
			data, err := yaml.Marshal(&redacted)
			if err != nil {
				return fmt.Errorf("encoding config: %w", err)
			}
			_, err = out.Write(data)
			return err
		},
	}
}

func newConfigBumpCmd() *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:       "bump [major|minor|patch]",
		Short:     "Increment the configuration version",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{config.BumpMajor, config.BumpMinor, config.BumpPatch},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := config.BumpPatch
			if len(args) == 1 {
				kind = args[0]
			}
			return withManager(func(m *revision.Manager) error {
				var (
					cfg *config.Config
					err error
				)
				if message == "" {
					cfg, err = m.Increment(kind, revision.SourceCLI)
				} else {
					var current *config.Config
					if current, err = m.Current(); err == nil {
						cfg, err = m.Save(current, kind, message, revision.SourceCLI)
					}
				}
				if err != nil {
					return err
				}
				return printVersion(cmd, cfg)
			})
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "change description")
	return cmd
}

func newConfigHistoryCmd() *cobra.Command {
	var archived bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the configuration version history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if archived {
				return withManager(func(m *revision.Manager) error {
					revs, err := m.Revisions()
					if err != nil {
						return err
					}
					if isJSON() {
						if revs == nil {
							revs = []*revision.Revision{}
						}
						return printJSON(out, revs)
					}
					return printRevisions(out, revs)
				})
			}

			cfg, err := config.LoadDocument(getConfigPath())
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(out, map[string]interface{}{
					"currentVersion": cfg.Version,
					"history":        cfg.VersionHistory,
				})
			}
			return printHistory(out, cfg.Version, cfg.VersionHistory)
		},
	}

	cmd.Flags().BoolVar(&archived, "archived", false, "list archived revisions instead")
	return cmd
}

func newConfigUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <version>",
		Short: "Restore an archived configuration version",
		Long:  "Save the content of an archived version as a new patch version of the configuration document.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(m *revision.Manager) error {
				cfg, err := m.Restore(args[0], revision.SourceCLI)
				if err != nil {
					return err
				}
				return printVersion(cmd, cfg)
			})
		},
	}
}

func newConfigSetPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-path <file>",
		Short: "Remember the default configuration document path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			abs, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}
			prefs, err := loadConfig()
			if err != nil {
				return err
			}
			prefs.ConfigPath = abs
			if err := saveConfig(prefs); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Default config set to %s\n", abs)
			return nil
		},
	}
}

func newConfigTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Generate a new admin token",
		Long: "Generate a random admin bearer token, store it in the configuration document as a new patch " +
			"version and print it. A running kiosk picks it up on restart.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := auth.GenerateAdminToken()
			if err != nil {
				return err
			}
			return withManager(func(m *revision.Manager) error {
				current, err := m.Current()
				if err != nil {
					return err
				}
				current.Kiosk.AdminToken = token
				cfg, err := m.Save(current, config.BumpPatch, "Rotate admin token", revision.SourceCLI)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if isJSON() {
					return printJSON(out, map[string]string{"version": cfg.Version, "adminToken": token})
				}
				fmt.Fprintf(out, "Admin token: %s\n", token)
				fmt.Fprintf(out, "Configuration is now version %s\n", cfg.Version)
				return nil
			})
		},
	}
}

func printVersion(cmd *cobra.Command, cfg *config.Config) error {
	out := cmd.OutOrStdout()
	if isJSON() {
		return printJSON(out, map[string]string{"version": cfg.Version})
	}
	fmt.Fprintf(out, "Configuration is now version %s\n", cfg.Version)
	return nil
}
