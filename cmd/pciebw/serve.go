package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"pcie-bw/internal/metrics"
	"pcie-bw/internal/server"
	"pcie-bw/pkg"
	"pcie-bw/pkg/sweep"
)

var (
	// Serve command flags
	serveListen  string
	serveMetrics string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the bandwidth model over gRPC and export Prometheus metrics",
	Long: `Start a gRPC server answering Evaluate and Sweep requests for the profile,
and an HTTP endpoint exporting the sampled sweep as Prometheus gauges.

The server will:
  • Reload the profile when --config changes on disk
  • Keep serving the previous profile when a reload fails
  • Report SERVING on the standard gRPC health service

Examples:
  pciebw serve
  pciebw serve --config profile.yaml --listen :50051 --metrics :9095
  pciebw serve --gen 5 --lanes 16 --metrics ""`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addProfileFlags(serveCmd.Flags())

	serveCmd.Flags().StringVar(&serveListen, "listen", "", "gRPC listen address (default from profile)")
	serveCmd.Flags().StringVar(&serveMetrics, "metrics", "", "Metrics listen address, empty disables (default from profile)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadProfile(cmd)
	if err != nil {
		return err
	}
	listen := cfg.Server.Listen
	if cmd.Flags().Changed("listen") {
		listen = serveListen
	}
	metricsAddr := cfg.Server.Metrics
	if cmd.Flags().Changed("metrics") {
		metricsAddr = serveMetrics
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	model, sweepCfg, err := cfg.Build()
	if err != nil {
		return err
	}
	exporter := metrics.NewExporter()
	if err := publish(ctx, exporter, model, sweepCfg, cfg.Sweep.Sample); err != nil {
		return err
	}

	svc := server.NewService(model, sweepCfg, cfg.Sweep.Sample, exporter)
	grpcServer, healthServer := server.NewGRPCServer(svc, grpc.UnaryInterceptor(logRequests))

	lis, err := net.Listen("tcp", listen)
	if err != nil {
		return fmt.Errorf("failed to listen: %v", err)
	}
	pkg.WithFields(map[string]interface{}{
		"listen": lis.Addr().String(),
		"link":   model.Link.String(),
		"basis":  model.Basis.String(),
	}).Info("starting bandwidth model server")

	serveErr := make(chan error, 2)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			serveErr <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	var metricsServer *http.Server
	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", exporter.Handler())
		metricsServer = &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			pkg.WithField("listen", metricsAddr).Info("serving metrics")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	if configPath != "" {
		monitor, err := newFSMonitor(configPath, func() {
			reload(ctx, cmd, svc, exporter)
		})
		if err != nil {
			return fmt.Errorf("failed to create file system monitor: %w", err)
		}
		if err := monitor.start(); err != nil {
			return fmt.Errorf("failed to watch %s: %w", configPath, err)
		}
		defer monitor.stop()
	}

	select {
	case <-ctx.Done():
		err = nil
	case err = <-serveErr:
	}

	pkg.Info("Shutting down server...")
	healthServer.Shutdown()
	grpcServer.GracefulStop()
	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if serr := metricsServer.Shutdown(shutdownCtx); serr != nil {
			pkg.WithError(serr).Warn("metrics server shutdown")
		}
	}
	return err
}

// reload re-reads the profile and swaps it into the running service. The
// previous profile stays active when the new one is invalid.
func reload(ctx context.Context, cmd *cobra.Command, svc *server.Service, exporter *metrics.Exporter) {
	cfg, err := loadProfile(cmd)
	if err != nil {
		pkg.WithError(err).Warn("ignoring invalid profile")
		return
	}
	model, sweepCfg, err := cfg.Build()
	if err != nil {
		pkg.WithError(err).Warn("ignoring invalid profile")
		return
	}
	if err := publish(ctx, exporter, model, sweepCfg, cfg.Sweep.Sample); err != nil {
		pkg.WithError(err).Error("failed to publish metrics")
		return
	}
	svc.Update(model, sweepCfg, cfg.Sweep.Sample)
}

// publish runs the sweep and exports its sampled rows
func publish(ctx context.Context, exporter *metrics.Exporter, model sweep.Model, cfg sweep.Config, sample int) error {
	rows, err := sweep.Run(ctx, model, cfg)
	if err != nil {
		return err
	}
	exporter.Publish(model, sweep.Sample(rows, sample))
	return nil
}

func logRequests(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	pkg.WithFields(map[string]interface{}{
		"method":   info.FullMethod,
		"code":     status.Code(err).String(),
		"duration": time.Since(start),
	}).Debug("handled request")
	return resp, err
}

