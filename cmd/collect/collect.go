// Package collect implements the collect subcommand, the CLI trigger for an
// ingestion run.
package collect

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/verdantlab/orchidnet-go/internal/adapter"
	"github.com/verdantlab/orchidnet-go/internal/conf"
	"github.com/verdantlab/orchidnet-go/internal/datastore"
	"github.com/verdantlab/orchidnet-go/internal/fetcher"
	"github.com/verdantlab/orchidnet-go/internal/ingest"
	"github.com/verdantlab/orchidnet-go/internal/observability/metrics"
)

// Command returns the collect subcommand.
func Command(settings *conf.Settings, version string) *cobra.Command {
	var sourceIDs []string
	var maxRecords int

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Run a collection against the configured sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollect(settings, version, sourceIDs, maxRecords)
		},
	}

	cmd.Flags().StringSliceVar(&sourceIDs, "sources", nil, "Source ids to collect from (default: all enabled)")
	cmd.Flags().IntVar(&maxRecords, "max-records", 25, "Maximum records to ingest per source")

	return cmd
}

func runCollect(settings *conf.Settings, version string, sourceIDs []string, maxRecords int) error {
	registry := prometheus.NewRegistry()
	fetcherMetrics, err := metrics.NewFetcherMetrics(registry)
	if err != nil {
		return fmt.Errorf("failed to create fetcher metrics: %w", err)
	}
	ingestionMetrics, err := metrics.NewIngestionMetrics(registry)
	if err != nil {
		return fmt.Errorf("failed to create ingestion metrics: %w", err)
	}

	f := fetcher.New(fetcher.Config{
		Name:           settings.Main.Name,
		MinDomainDelay: settings.Fetch.MinDomainDelay,
		Timeout:        settings.Fetch.Timeout,
		GlobalRate:     settings.Fetch.GlobalRate,
		ContactURL:     settings.Fetch.UserAgentContact,
		Version:        version,
		Metrics:        fetcherMetrics,
	})
	defer f.Close()
	defer func() { _ = adapter.CloseLogger() }()
	defer func() { _ = ingest.CloseLogger() }()

	store := datastore.New(settings)
	if store == nil {
		return fmt.Errorf("no output database enabled")
	}
	if err := store.Open(); err != nil {
		return fmt.Errorf("failed to open datastore: %w", err)
	}
	defer func() { _ = store.Close() }()

	adapters := adapter.NewDefaultRegistry(settings, f)
	if len(sourceIDs) == 0 {
		sourceIDs = adapters.IDs()
	}

	orchestrator := ingest.NewOrchestrator(ingest.Config{
		Registry:     adapters,
		Store:        store,
		Metrics:      ingestionMetrics,
		AssetDelay:   settings.Fetch.AssetDelay,
		SourceLimits: adapter.SourceLimits(settings),
	})

	// A stop signal requests a best-effort stop between taxa
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Println("Stop requested, finishing current taxon...")
		orchestrator.Stop()
		cancel()
	}()

	results := orchestrator.RunCollection(ctx, sourceIDs, maxRecords)
	printSummary(results)
	return nil
}

// printSummary prints the per-source run summary.
func printSummary(results map[string]ingest.RunResult) {
	ids := make([]string, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	fmt.Printf("\n%-20s %-10s %10s %10s %10s %10s\n",
		"SOURCE", "STATUS", "TAXA", "PROCESSED", "SKIPPED", "ERRORS")
	for _, id := range ids {
		r := results[id]
		fmt.Printf("%-20s %-10s %10d %10d %10d %10d\n",
			id, r.Status, r.TaxaDiscovered, r.Processed, r.Skipped, r.Errors)
		if r.Message != "" {
			fmt.Printf("  %s\n", r.Message)
		}
	}
}
