package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jjenkins/laborwatch/internal/config"
	"github.com/jjenkins/laborwatch/internal/model"
	"github.com/jjenkins/laborwatch/internal/service"
	"github.com/jjenkins/laborwatch/internal/store"
)

var checkCity string
var checkState string
var checkTopMetros bool
var checkDue bool

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run compliance checks from the command line",
	Long: `Run a compliance research check against one jurisdiction, the configured
top-metro list, or every location whose auto-check schedule is due.

Examples:
  # Check a single jurisdiction
  ./laborwatch check --city Austin --state TX

  # Check the configured top metros as one batch
  ./laborwatch check --top-metros

  # Check every location due for its scheduled auto-check
  ./laborwatch check --due`,
	Run: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVar(&checkCity, "city", "", "City of the jurisdiction to check")
	checkCmd.Flags().StringVar(&checkState, "state", "", "State of the jurisdiction to check")
	checkCmd.Flags().BoolVar(&checkTopMetros, "top-metros", false, "Run the configured top-metro batch")
	checkCmd.Flags().BoolVar(&checkDue, "due", false, "Check all locations due for an auto-check")
}

func runCheck(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("\nReceived interrupt signal, shutting down...")
		cancel()
	}()

	log.Println("Connecting to database...")
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := store.InitSchema(db); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	jurisdictionStore := store.NewJurisdictionStore(db)
	requirementStore := store.NewRequirementStore(db)
	legislationStore := store.NewLegislationStore(db)
	locationStore := store.NewLocationStore(db)

	research := service.NewResearchClient(cfg.Research.BaseURL, cfg.Research.PhaseTimeout, cfg.Research.RequestsPerSecond)
	gate := service.ConfidenceGate{Threshold: cfg.ConfidenceThreshold, MaxRetries: cfg.ConfidenceMaxRetries}
	coordinator := service.NewCoordinator(research, jurisdictionStore, requirementStore, legislationStore, gate, cfg.Research.PhaseTimeout)
	supervisor := service.NewSupervisor(coordinator, jurisdictionStore)

	logEvent := func(e service.Event) error {
		if e.Message != "" {
			log.Printf("  [%s] %s", e.Type, e.Message)
		} else {
			log.Printf("  [%s]", e.Type)
		}
		return nil
	}

	switch {
	case checkTopMetros:
		log.Printf("Starting batch check over %d metros...", len(cfg.TopMetros))
		summary, err := supervisor.RunBatch(ctx, cfg.TopMetros, logEvent)
		if err != nil {
			if ctx.Err() != nil {
				log.Println("Batch cancelled")
				os.Exit(1)
			}
			log.Fatalf("Batch failed: %v", err)
		}
		printBatchSummary(summary)
		if summary.Failed > 0 {
			os.Exit(1)
		}

	case checkDue:
		runDueChecks(ctx, coordinator, locationStore, jurisdictionStore, logEvent)

	default:
		if checkCity == "" || checkState == "" {
			log.Fatal("Either --city and --state, --top-metros, or --due is required")
		}
		j, err := jurisdictionStore.GetByCityState(ctx, checkCity, checkState)
		if err != nil {
			log.Fatalf("Failed to look up jurisdiction: %v", err)
		}
		if j == nil {
			log.Fatalf("No jurisdiction found for %s, %s", checkCity, checkState)
		}

		summary, err := coordinator.Run(ctx, j.ID, logEvent)
		if err != nil {
			if ctx.Err() != nil {
				log.Println("Check cancelled")
				os.Exit(1)
			}
			log.Fatalf("Check failed: %v", err)
		}
		printCheckSummary(summary)
	}
}

// runDueChecks checks every location whose auto-check schedule has arrived,
// sequentially, marking each location checked as its jurisdiction completes
func runDueChecks(ctx context.Context, coordinator *service.Coordinator, locations *store.LocationStore, jurisdictions *store.JurisdictionStore, logEvent service.EmitFunc) {
	due, err := locations.DueForAutoCheck(ctx, time.Now())
	if err != nil {
		log.Fatalf("Failed to list due locations: %v", err)
	}
	if len(due) == 0 {
		log.Println("No locations due for auto-check")
		return
	}

	log.Printf("Found %d locations due for auto-check", len(due))

	// One check per jurisdiction even when several locations share it.
	checked := map[int]bool{}
	failed := 0
	for idx, loc := range due {
		if ctx.Err() != nil {
			log.Println("Cancelled")
			os.Exit(1)
		}

		if !checked[loc.JurisdictionID] {
			j, err := jurisdictions.GetByID(ctx, loc.JurisdictionID)
			if err != nil || j == nil {
				log.Printf("[%d/%d] Skipping location %s: jurisdiction %d missing", idx+1, len(due), loc.Name, loc.JurisdictionID)
				failed++
				continue
			}

			log.Printf("[%d/%d] Checking %s for location %s...", idx+1, len(due), j.Label(), loc.Name)
			if _, err := coordinator.Run(ctx, j.ID, logEvent); err != nil {
				if ctx.Err() != nil {
					log.Println("Cancelled")
					os.Exit(1)
				}
				log.Printf("Check failed for %s: %v", j.Label(), err)
				failed++
				continue
			}
			checked[loc.JurisdictionID] = true
		}

		if err := locations.MarkChecked(ctx, loc.ID, time.Now()); err != nil {
			log.Printf("Failed to update schedule for location %s: %v", loc.Name, err)
		}
	}

	log.Printf("Auto-check pass complete: %d locations, %d failures", len(due), failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func printCheckSummary(summary model.CheckSummary) {
	log.Println("")
	log.Println("=== Check Summary ===")
	log.Printf("New:            %d", summary.New)
	log.Printf("Updated:        %d", summary.Updated)
	log.Printf("Alerts:         %d", summary.Alerts)
	log.Printf("Low confidence: %d", summary.LowConfidence)
}

func printBatchSummary(summary model.BatchSummary) {
	log.Println("")
	log.Println("=== Batch Summary ===")
	log.Printf("Total metros:         %d", summary.Total)
	log.Printf("Succeeded:            %d", summary.Succeeded)
	log.Printf("Failed:               %d", summary.Failed)
	log.Printf("Low confidence total: %d", summary.LowConfidenceTotal)
}
