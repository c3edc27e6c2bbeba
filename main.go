// T-Mobile Gateway Monitor
//
// This service talks to T-Mobile 5G/LTE home internet gateways, normalizes
// their vendor-specific APIs, and exposes the gateway state as Prometheus
// metrics, a JSON API with a live websocket feed, and optionally MQTT.
//
// Usage:
//
//	gateway-monitor [flags]
//
// Flags:
//
//	-config string    Path to config file (default: no config file)
//	-port int         Port to serve on (default: 9100)
//	-gateway string   Gateway URL (default: http://192.168.12.1)
//	-model string     Gateway API: unified, legacy, mock, auto (default: auto)
//	-interval string  Poll interval (default: 5s)
//	-test             Serve canned data instead of a real gateway
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tmobile-dashboard/gateway-monitor/api"
	"github.com/tmobile-dashboard/gateway-monitor/config"
	"github.com/tmobile-dashboard/gateway-monitor/diagnostics"
	"github.com/tmobile-dashboard/gateway-monitor/gateway"
	"github.com/tmobile-dashboard/gateway-monitor/logging"
	"github.com/tmobile-dashboard/gateway-monitor/metrics"
	"github.com/tmobile-dashboard/gateway-monitor/monitor"
	"github.com/tmobile-dashboard/gateway-monitor/mqtt"
	"github.com/tmobile-dashboard/gateway-monitor/readings"
	"github.com/tmobile-dashboard/gateway-monitor/settings"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to config file")
	port := flag.Int("port", 0, "Port to serve on (default: 9100)")
	gatewayURL := flag.String("gateway", "", "Gateway URL (default: http://192.168.12.1)")
	model := flag.String("model", "", "Gateway API: unified, legacy, mock, auto (default: auto)")
	interval := flag.String("interval", "", "Poll interval (default: 5s)")
	testMode := flag.Bool("test", false, "Serve canned data instead of a real gateway")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("gateway-monitor %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Load environment variables
	config.LoadConfigFromEnv(cfg)

	// Override with command line flags
	if *port != 0 {
		cfg.Metrics.Port = *port
	}
	if *gatewayURL != "" {
		cfg.Gateway.URL = *gatewayURL
	}
	if *model != "" {
		cfg.Gateway.Model = *model
	}
	if *interval != "" {
		if d, err := time.ParseDuration(*interval); err == nil {
			cfg.Gateway.PollInterval = d
		}
	}
	if *testMode {
		cfg.Gateway.TestMode = true
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration:\n%v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("gateway monitor failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Starting T-Mobile Gateway Monitor",
		zap.String("version", version),
		zap.String("gateway", cfg.Gateway.URL),
		zap.String("model", cfg.Gateway.Model),
		zap.Duration("interval", cfg.Gateway.PollInterval),
		zap.Int("port", cfg.Metrics.Port),
	)

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Background failures go to the log and to the error counter.
	errorCounter := metrics.NewErrorCounter()
	if err := errorCounter.Register(registry); err != nil {
		return fmt.Errorf("register error metrics: %w", err)
	}
	diag := diagnostics.Multi{
		diagnostics.NewLogSink(logger.Named("diagnostics"), cfg.Diagnostics.Breadcrumbs),
		errorCounter,
	}
	errs := gateway.NewErrorChannel(logger.Named("errors"))

	creds, err := settings.NewFileStore(cfg.Settings.Path, cfg.Settings.Passphrase)
	if err != nil {
		return fmt.Errorf("open settings: %w", err)
	}

	// Create gateway client
	activity := &gateway.Activity{}
	gwClient, err := gateway.NewClient(ctx, cfg.ToGatewayConfig(), gateway.Dependencies{
		Errors:      errs,
		Diagnostics: diag,
		Activity:    activity,
		Credentials: creds,
		Logger:      logger.Named("gateway"),
	})
	if err != nil {
		return fmt.Errorf("create gateway client: %w", err)
	}
	defer gwClient.Close()

	logger.Info("Detected gateway", zap.String("model", string(gwClient.Model())), zap.String("test_url", gwClient.TestURL()))

	// Configured credentials win over remembered ones.
	store := monitor.NewStore()
	mon := monitor.New(gwClient, store, cfg.Gateway.PollInterval, logger.Named("monitor"),
		monitor.StaticCredentials{Username: cfg.Gateway.Username, Password: cfg.Gateway.Password},
		creds,
	)

	// Create metrics collector
	registry.MustRegister(metrics.NewCollector(store))

	saved, err := readings.NewBoltStore(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open readings store: %w", err)
	}
	defer saved.Close()

	if cfg.MQTT.Enabled {
		publisher, err := mqtt.NewPublisher(mqtt.Config{
			Broker:      cfg.MQTT.Broker,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			TopicPrefix: cfg.MQTT.TopicPrefix,
		}, logger)
		if err != nil {
			return fmt.Errorf("start mqtt: %w", err)
		}
		publisher.Start(store)
		defer publisher.Stop()
	}

	// Create HTTP server
	apiServer := api.NewServer(gwClient, store, logger,
		api.WithReadings(saved),
		api.WithRefresher(mon),
		api.WithErrors(errs),
		api.WithActivity(activity),
		api.WithRemembered(creds),
		api.WithAllowedOrigins(cfg.Metrics.AllowedOrigins),
		api.WithHandler("GET "+cfg.Metrics.Path, promhttp.HandlerFor(registry, promhttp.HandlerOpts{})),
		api.WithHandler("GET /{$}", indexHandler(cfg, gwClient)),
	)
	defer apiServer.Stop()

	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler:     apiServer,
		ReadTimeout: 10 * time.Second,
	}

	go mon.Run(ctx)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Serving", zap.String("metrics", fmt.Sprintf("http://localhost:%d%s", cfg.Metrics.Port, cfg.Metrics.Path)))
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Shutting down...")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown error", zap.Error(err))
	}

	logger.Info("Monitor stopped")
	return nil
}

func indexHandler(cfg *config.Config, client gateway.Client) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html>
<head><title>T-Mobile Gateway Monitor</title></head>
<body>
<h1>T-Mobile Gateway Monitor</h1>
<p>Version: ` + version + `</p>
<p>Gateway: ` + cfg.Gateway.URL + `</p>
<p>Model: ` + string(client.Model()) + `</p>
<p><a href="` + cfg.Metrics.Path + `">Metrics</a> | <a href="/api/state">State</a> | <a href="/api/readings">Readings</a></p>
</body>
</html>`))
	})
}
