package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/dipeo/eventplane/pkg/eventbus"
	"github.com/dipeo/eventplane/pkg/events"
	"github.com/dipeo/eventplane/pkg/log"
	"github.com/dipeo/eventplane/pkg/metrics"
	"github.com/dipeo/eventplane/pkg/observers"
	"github.com/dipeo/eventplane/pkg/repository"
	"github.com/dipeo/eventplane/pkg/router"
	"github.com/dipeo/eventplane/pkg/transport"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "eventd",
	Short: "eventd - diagram execution event plane",
	Long: `eventd runs the execution event bus, message router, metrics and
result observers, and event forwarder that together broadcast a running
diagram's node/execution lifecycle to subscribed clients.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"eventd version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(emitCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the event plane (bus, router, observers, forwarder, gRPC and metrics servers)",
	RunE: func(cmd *cobra.Command, args []string) error {
		grpcAddr, _ := cmd.Flags().GetString("grpc-addr")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
		dataDir, _ := cmd.Flags().GetString("data-dir")
		redisAddr, _ := cmd.Flags().GetString("redis-addr")

		fmt.Println("Starting eventd...")
		fmt.Printf("  gRPC address:    %s\n", grpcAddr)
		fmt.Printf("  Metrics address: %s\n", metricsAddr)
		fmt.Printf("  Data directory:  %s\n", dataDir)

		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}

		bus := eventbus.New(eventbus.Config{})

		var rtr router.EventRouter
		routerCfg := router.Config{}
		if redisAddr != "" {
			fmt.Printf("  Router:          redis (%s)\n", redisAddr)
			client := redis.NewClient(&redis.Options{Addr: redisAddr})
			rtr = router.NewRedisRouter(routerCfg, client)
		} else {
			fmt.Println("  Router:          in-process")
			rtr = router.New(routerCfg)
		}

		repo, err := repository.NewBoltStore(dataDir)
		if err != nil {
			return fmt.Errorf("failed to open repository: %w", err)
		}
		defer repo.Close()

		metricsObserver := observers.NewMetricsObserver(bus, repo)
		resultObserver := observers.NewResultObserver(repo)
		forwarders := newForwarderManager(bus, &logClient{logger: log.WithComponent("forwarder")}, log.WithComponent("forwarder_manager"))

		lifecycleTypes := []events.EventType{
			events.ExecutionStarted, events.ExecutionCompleted, events.ExecutionError,
			events.NodeStarted, events.NodeCompleted, events.NodeError, events.NodeOutput,
		}

		if _, err := bus.Subscribe([]events.EventType{events.ExecutionStarted, events.ExecutionCompleted, events.ExecutionError,
			events.NodeStarted, events.NodeCompleted, events.NodeError}, metricsObserver.Handle); err != nil {
			return fmt.Errorf("failed to subscribe metrics observer: %w", err)
		}
		if _, err := bus.Subscribe([]events.EventType{events.ExecutionStarted, events.ExecutionCompleted, events.ExecutionError}, resultObserver.Handle); err != nil {
			return fmt.Errorf("failed to subscribe result observer: %w", err)
		}
		if _, err := bus.Subscribe([]events.EventType{events.ExecutionStarted, events.ExecutionCompleted, events.ExecutionError}, forwarders.Handle); err != nil {
			return fmt.Errorf("failed to subscribe forwarder manager: %w", err)
		}
		if _, err := bus.Subscribe(lifecycleTypes, rtr.Handle); err != nil {
			return fmt.Errorf("failed to subscribe router: %w", err)
		}

		metricsObserver.Start()
		resultObserver.Start()

		metricsCollector := metrics.NewCollector(rtr, metricsObserver)
		metricsCollector.Start()
		fmt.Println("✓ Observers and metrics collector started")

		metrics.SetVersion(Version)
		metrics.RegisterComponent("eventbus", true, "ready")
		metrics.RegisterComponent("router", true, "ready")
		metrics.RegisterComponent("repository", true, "ready")

		go func() {
			http.Handle("/metrics", metrics.Handler())
			http.Handle("/health", metrics.HealthHandler())
			http.Handle("/ready", metrics.ReadyHandler())
			http.Handle("/live", metrics.LivenessHandler())
			if err := http.ListenAndServe(metricsAddr, nil); err != nil {
				fmt.Printf("Metrics server error: %v\n", err)
			}
		}()
		fmt.Printf("✓ Metrics endpoint: http://%s/metrics\n", metricsAddr)
		fmt.Printf("✓ Health endpoints: http://%s/{health,ready,live}\n", metricsAddr)

		transportServer := transport.NewServer(rtr)
		errCh := make(chan error, 1)
		go func() {
			if err := transportServer.Serve(grpcAddr); err != nil {
				errCh <- fmt.Errorf("gRPC server error: %w", err)
			}
		}()
		fmt.Printf("✓ gRPC event stream listening on %s\n", grpcAddr)
		fmt.Println()
		fmt.Println("eventd is running. Press Ctrl+C to stop.")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case <-sigCh:
			fmt.Println("\nShutting down...")
		case err := <-errCh:
			fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		forwarders.StopAll()
		transportServer.Stop()
		metricsCollector.Stop()
		metricsObserver.Stop()
		resultObserver.Stop()
		rtr.Stop(shutdownCtx)
		if err := bus.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("failed to stop bus: %w", err)
		}

		fmt.Println("✓ Shutdown complete")
		return nil
	},
}

func init() {
	serveCmd.Flags().String("grpc-addr", "127.0.0.1:7760", "Address for the gRPC event stream")
	serveCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address for the metrics/health HTTP server")
	serveCmd.Flags().String("data-dir", "./eventd-data", "Data directory for the execution state repository")
	serveCmd.Flags().String("redis-addr", "", "Redis address for the cross-process router variant (in-process router if empty)")
}
