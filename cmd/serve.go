package cmd

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/spf13/cobra"

	"github.com/jjenkins/laborwatch/internal/config"
	"github.com/jjenkins/laborwatch/internal/handlers"
	"github.com/jjenkins/laborwatch/internal/service"
	"github.com/jjenkins/laborwatch/internal/store"
)

var port string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the compliance research web server",
	Long:  `Start the web server that exposes jurisdiction CRUD and the streaming compliance check endpoints.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		if port != "8080" {
			cfg.Port = port
		}

		db, err := store.NewDB(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		if err := store.InitSchema(db); err != nil {
			log.Fatalf("Failed to initialize schema: %v", err)
		}

		// Initialize stores
		jurisdictionStore := store.NewJurisdictionStore(db)
		requirementStore := store.NewRequirementStore(db)
		legislationStore := store.NewLegislationStore(db)
		locationStore := store.NewLocationStore(db)

		// Initialize services
		research := service.NewResearchClient(cfg.Research.BaseURL, cfg.Research.PhaseTimeout, cfg.Research.RequestsPerSecond)
		gate := service.ConfidenceGate{Threshold: cfg.ConfidenceThreshold, MaxRetries: cfg.ConfidenceMaxRetries}
		graph := service.NewGraphService(jurisdictionStore, requirementStore, legislationStore)
		coordinator := service.NewCoordinator(research, jurisdictionStore, requirementStore, legislationStore, gate, cfg.Research.PhaseTimeout)
		supervisor := service.NewSupervisor(coordinator, jurisdictionStore)

		app := fiber.New(fiber.Config{
			AppName: "LaborWatch",
		})

		app.Use(logger.New())

		// Check routes
		app.Post("/check/:id", handlers.CheckHandler(coordinator))
		app.Post("/check-top-metros", handlers.BatchCheckHandler(supervisor, cfg.TopMetros))

		// Jurisdiction routes
		app.Get("/jurisdictions", handlers.ListJurisdictionsHandler(jurisdictionStore))
		app.Get("/jurisdictions/:id", handlers.JurisdictionDetailHandler(jurisdictionStore, graph, locationStore))
		app.Post("/jurisdictions", handlers.CreateJurisdictionHandler(jurisdictionStore))
		app.Delete("/jurisdictions/:id", handlers.DeleteJurisdictionHandler(jurisdictionStore))

		log.Printf("Starting server on :%s", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&port, "port", "p", "8080", "Port to run the server on")
}
