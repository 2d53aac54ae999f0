// Package sources implements the sources subcommand listing registered
// adapters and recent runs.
package sources

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/verdantlab/orchidnet-go/internal/adapter"
	"github.com/verdantlab/orchidnet-go/internal/conf"
	"github.com/verdantlab/orchidnet-go/internal/datastore"
	"github.com/verdantlab/orchidnet-go/internal/fetcher"
)

// Command returns the sources subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	var showRuns bool

	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List configured data sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSources(settings, showRuns)
		},
	}

	cmd.Flags().BoolVar(&showRuns, "runs", false, "Also show recent collection runs")

	return cmd
}

func runSources(settings *conf.Settings, showRuns bool) error {
	f := fetcher.New(fetcher.Config{
		Name:           settings.Main.Name,
		MinDomainDelay: settings.Fetch.MinDomainDelay,
		Timeout:        settings.Fetch.Timeout,
		GlobalRate:     settings.Fetch.GlobalRate,
		ContactURL:     settings.Fetch.UserAgentContact,
	})
	defer f.Close()
	defer func() { _ = adapter.CloseLogger() }()

	registry := adapter.NewDefaultRegistry(settings, f)

	fmt.Printf("%-20s %-45s %s\n", "ID", "NAME", "LICENSE")
	for _, id := range registry.IDs() {
		a, _ := registry.Get(id)
		meta := a.SourceInfo()
		fmt.Printf("%-20s %-45s %s\n", meta.ID, meta.Name, meta.License)
	}

	if !showRuns {
		return nil
	}

	store := datastore.New(settings)
	if store == nil {
		return fmt.Errorf("no output database enabled")
	}
	if err := store.Open(); err != nil {
		return fmt.Errorf("failed to open datastore: %w", err)
	}
	defer func() { _ = store.Close() }()

	runs, err := store.GetRecentRuns(20)
	if err != nil {
		return err
	}

	fmt.Printf("\n%-20s %-10s %10s %10s %10s  %s\n",
		"SOURCE", "STATUS", "TAXA", "PROCESSED", "ERRORS", "STARTED")
	for i := range runs {
		r := &runs[i]
		fmt.Printf("%-20s %-10s %10d %10d %10d  %s\n",
			r.Source, r.Status, r.ItemsFound, r.ItemsProcessed, r.ErrorCount,
			r.StartedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}
