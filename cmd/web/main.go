package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/clearview/reportline/pkg/export"
	"github.com/clearview/reportline/pkg/mail"
	"github.com/clearview/reportline/pkg/models/domain"
	"github.com/clearview/reportline/pkg/server"
	"github.com/clearview/reportline/pkg/services/access"
	"github.com/clearview/reportline/pkg/services/catalog"
	"github.com/clearview/reportline/pkg/services/config"
	"github.com/clearview/reportline/pkg/services/delivery"
	"github.com/clearview/reportline/pkg/services/metrics"
	"github.com/clearview/reportline/pkg/services/report"
	"github.com/clearview/reportline/pkg/services/schedule"
	"github.com/clearview/reportline/pkg/store/artifact"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

var cfgPath string

func main() {
	var rootCmd = &cobra.Command{
		Use:   "web",
		Short: "Start the Reportline web server",
		RunE:  runServer,
	}

	rootCmd.Flags().StringVarP(&cfgPath, "config", "c", "reportline.yaml",
		"Path to the application config file")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Error loading .env file: %v\n", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	ctx := logger.WithContext(cmd.Context())

	appCfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	registry, err := buildRegistry(appCfg)
	if err != nil {
		return fmt.Errorf("failed to build source registry: %w", err)
	}
	logger.Info().Strs("domains", registry.ListDomains()).Msg("metric sources registered")

	artifacts, err := buildArtifactStore(ctx, appCfg.Artifacts)
	if err != nil {
		return fmt.Errorf("failed to build artifact store: %w", err)
	}

	aggregator := metrics.NewAggregator(registry, appCfg.AggregateDeadline)
	resolver := access.NewResolver()
	cat := catalog.NewCatalog()
	store := report.NewConfigStore()
	builder := report.NewBuilder(cat, resolver, report.StaticDirectory(appCfg.Groups))

	pipeline := report.NewPipeline(aggregator, export.NewRenderer(), artifacts)
	manager := report.NewManager(store, builder, pipeline)

	mailer := mail.NewGatewayMailer(mail.GatewaySettings{
		URL:    appCfg.Mail.GatewayURL,
		APIKey: appCfg.Mail.APIKey,
		From:   appCfg.Mail.From,
	})
	dispatcher := delivery.NewDispatcher(mailer, artifacts)
	manager.SetOnComplete(func(cfg domain.ReportConfig, job domain.GenerationJob) {
		dispatcher.Dispatch(ctx, cfg, job, builder.Recipients(cfg))
	})

	scheduler := schedule.NewScheduler(manager, appCfg.Scheduler.Tick)
	schedulerCtx, stopScheduler := context.WithCancel(ctx)
	defer stopScheduler()
	go scheduler.Run(schedulerCtx)

	addr := net.JoinHostPort(appCfg.Server.Host, appCfg.Server.Port)
	api := server.NewWebAPI(logger, server.Config{
		Addr:            addr,
		AuthSecret:      appCfg.Server.AuthSecret,
		RateLimit:       rate.Limit(appCfg.Server.RateLimit),
		RateBurst:       appCfg.Server.RateBurst,
		ShutdownTimeout: 10 * time.Second,
		Dependencies: server.Dependencies{
			Aggregator:  aggregator,
			Resolver:    resolver,
			ConfigStore: store,
			Builder:     builder,
			Manager:     manager,
			Scheduler:   scheduler,
			Artifacts:   artifacts,
			Dispatcher:  dispatcher,
		},
	})

	return api.Start()
}

func buildRegistry(appCfg *config.AppConfig) (metrics.Registry, error) {
	client := &http.Client{}
	var sources []metrics.Source
	for name, src := range appCfg.Sources {
		switch name {
		case "sales":
			sources = append(sources, metrics.NewSalesSource(client, src.URL, src.Timeout))
		case "inventory":
			sources = append(sources, metrics.NewInventorySource(client, src.URL, src.Timeout))
		case "performance":
			sources = append(sources, metrics.NewPerformanceSource(client, src.URL, src.Timeout))
		default:
			return nil, fmt.Errorf("unknown metric domain in config: %s", name)
		}
	}
	return metrics.NewRegistry(sources...)
}

func buildArtifactStore(ctx context.Context, cfg config.ArtifactConfig) (artifact.Store, error) {
	switch cfg.Backend {
	case "", "fs":
		return artifact.NewFSStore(cfg.Dir)
	case "s3":
		return artifact.NewS3Store(ctx, artifact.S3Settings{
			Region:    cfg.Region,
			Bucket:    cfg.Bucket,
			Prefix:    cfg.Prefix,
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
		})
	default:
		return nil, fmt.Errorf("unknown artifact backend: %s", cfg.Backend)
	}
}
