package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/verdantlab/orchidnet-go/cmd/collect"
	"github.com/verdantlab/orchidnet-go/cmd/sources"
	"github.com/verdantlab/orchidnet-go/internal/conf"
	"github.com/verdantlab/orchidnet-go/internal/logging"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings, version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "orchidnet",
		Short:   "OrchidNET-Go orchid data collection CLI",
		Version: version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if settings.Debug {
				logging.SetLevel(slog.LevelDebug)
			}
		},
	}

	setupFlags(rootCmd, settings)

	subcommands := []*cobra.Command{
		collect.Command(settings, version),
		sources.Command(settings),
	}
	rootCmd.AddCommand(subcommands...)

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().DurationVar(&settings.Fetch.MinDomainDelay, "domain-delay", settings.Fetch.MinDomainDelay, "Minimum delay between requests to one domain")
	rootCmd.PersistentFlags().DurationVar(&settings.Fetch.AssetDelay, "asset-delay", settings.Fetch.AssetDelay, "Polite delay between per-asset fetches")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		fmt.Printf("error binding flags: %v\n", err)
	}
}
