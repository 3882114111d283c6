package main

import (
	"context"
	"flag"
	"log"
	"os"

	"invezgo-pipeline/pkg/config"
	"invezgo-pipeline/pkg/endpoint"
	"invezgo-pipeline/pkg/fetch"
	"invezgo-pipeline/pkg/plan"
	"invezgo-pipeline/pkg/run"
	"invezgo-pipeline/pkg/secrets"
	"invezgo-pipeline/pkg/warehouse"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the pipeline config file")
	endpointsPath := flag.String("endpoints", "endpoints.yaml", "path to the endpoint definitions")
	mode := flag.String("mode", "all", "execution mode filter: onetime, batch, streaming or all")
	date := flag.String("date", "", "process a single date (YYYY-MM-DD)")
	startDate := flag.String("start-date", "", "start of a date range (YYYY-MM-DD)")
	endDate := flag.String("end-date", "", "end of a date range (YYYY-MM-DD)")
	flag.Parse()

	log.Println("[Pipeline] Starting Invezgo warehouse ingestion")

	modeFilter := ""
	switch *mode {
	case "all":
	case endpoint.ModeOnetime, endpoint.ModeBatch, endpoint.ModeStreaming:
		modeFilter = *mode
	default:
		log.Fatalf("Invalid -mode %q: use onetime, batch, streaming or all", *mode)
	}

	cfg := config.Load(*configPath)

	specs, err := endpoint.LoadFromFile(*endpointsPath)
	if err != nil {
		log.Fatalf("Failed to load endpoints: %v", err)
	}
	enabled := endpoint.Enabled(specs)
	if len(enabled) == 0 {
		log.Fatalf("No enabled endpoints found in %s", *endpointsPath)
	}
	logEndpointSummary(enabled, modeFilter)

	store, err := warehouse.OpenDuck(cfg.Warehouse.Path, cfg.Warehouse.Dataset)
	if err != nil {
		log.Fatalf("Failed to open warehouse: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	provider, err := secrets.NewManagerProvider(ctx)
	if err != nil {
		log.Fatalf("Failed to init secret store: %v", err)
	}

	orch := &run.Orchestrator{
		Store:   store,
		Secrets: provider,
		NewFetcher: func(token string) fetch.Fetcher {
			return fetch.NewClient(cfg.API.BaseURL, token)
		},
		SecretName:    cfg.Secret.Name,
		SecretVersion: cfg.Secret.Version,
		Workers:       cfg.Fetch.Workers,
	}

	args := plan.DateArgs{Date: *date, StartDate: *startDate, EndDate: *endDate}
	results, err := orch.Run(ctx, enabled, modeFilter, args)
	if err != nil {
		log.Fatalf("Pipeline failed: %v", err)
	}

	run.LogSummary(results)
	os.Exit(run.ExitCode(results))
}

// logEndpointSummary mirrors the startup report: per-mode counts, then each
// endpoint with its description.
func logEndpointSummary(specs []endpoint.Spec, modeFilter string) {
	modeCounts := map[string]int{}
	for _, s := range specs {
		modeCounts[s.Mode]++
	}

	log.Printf("[Pipeline] Found %d enabled endpoint(s)", len(specs))
	for mode, count := range modeCounts {
		log.Printf("[Pipeline]   %s: %d endpoint(s)", mode, count)
	}
	if modeFilter != "" {
		log.Printf("[Pipeline] Mode filter: %s", modeFilter)
	}

	for _, s := range specs {
		desc := s.Description
		if desc == "" {
			desc = "no description"
		}
		log.Printf("[Pipeline]   - [%s] %s: %s", s.Mode, s.Name, desc)
	}
}
