package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/hanpama/olapcore/internal/admin"
	"github.com/hanpama/olapcore/internal/catalogrpc"
	"github.com/hanpama/olapcore/internal/ctxlog"
	"github.com/hanpama/olapcore/internal/engine"
	"github.com/hanpama/olapcore/internal/eventbus"
	"github.com/hanpama/olapcore/internal/metrics"
	"github.com/hanpama/olapcore/internal/otel"
)

func cmdServe(ctx context.Context, args []string, stderr io.Writer) error {
	var common commonFlags
	pretty := false
	var metadataHeaders stringListFlag

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	common.register(fs)
	common.bind(fs, "grpc.addr", "server.grpc_addr")
	common.bind(fs, "admin.addr", "server.admin_addr")
	common.bind(fs, "otel.endpoint", "telemetry.otel_endpoint")
	fs.BoolVar(&pretty, "admin.pretty", pretty, "Pretty-print JSON responses")
	fs.Var(&metadataHeaders, "admin.metadata-header", "Forward HTTP header to gRPC metadata")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(stderr, serveUsage)
		return err
	}
	cfg, err := common.load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, stderr)
	ctx = ctxlog.WithLogger(ctx, logger)

	cat, err := loadCatalog(ctx, cfg)
	if err != nil {
		return err
	}
	reader, closeReader, err := openReader(ctx, cfg, cat)
	if err != nil {
		return err
	}
	defer closeReader()

	bus := eventbus.New()
	eventbus.Use(bus)
	defer eventbus.Use(nil)
	shutdown, err := otel.Setup(cfg.Telemetry.OTelEndpoint, cfg.Telemetry.Service)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	defer metrics.New(reg).Attach(bus)()

	eng, err := engine.New(cfg, cat, reader)
	if err != nil {
		return err
	}
	timeout, _ := cfg.Timeout()
	aopts := []admin.Option{admin.WithMetrics(metrics.Handler(reg)), admin.WithTimeout(timeout)}
	if pretty {
		aopts = append(aopts, admin.WithPretty())
	}
	if len(metadataHeaders) > 0 {
		aopts = append(aopts, admin.WithMetadataHeaders(metadataHeaders...))
	}
	httpSrv := &http.Server{
		Addr:              cfg.Server.AdminAddr,
		Handler:           admin.New(eng, aopts...),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	catSrv, err := catalogrpc.NewServer(cat)
	if err != nil {
		return err
	}
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(
		func(c context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
			return handler(ctxlog.WithLogger(c, logger.With("method", info.FullMethod)), req)
		},
	))
	catSrv.Register(gs)
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("catalog gRPC service listening", "addr", lis.Addr().String())
		return gs.Serve(lis)
	})
	g.Go(func() error {
		logger.Info("admin HTTP listening", "addr", cfg.Server.AdminAddr, "reader", cfg.Reader)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		gs.GracefulStop()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(sctx)
	})
	return g.Wait()
}
