// Command rpcserver serves the calculator and chain methods over JSON-RPC.
//
// Settings are read from the environment and from a .env file in the working
// directory; see package config for the variables.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/mnehpets/rpcserve/calc"
	"github.com/mnehpets/rpcserve/chain"
	"github.com/mnehpets/rpcserve/config"
	"github.com/mnehpets/rpcserve/endpoint"
	"github.com/mnehpets/rpcserve/jsonrpc"
	"github.com/mnehpets/rpcserve/metrics"
	"github.com/mnehpets/rpcserve/middleware"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		logrus.WithError(err).Fatal("rpcserver: invalid configuration")
	}
	logger := config.NewLogger(cfg)

	handler, err := newServer(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("rpcserver: setup failed")
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.Addr).Info("rpcserver: listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("rpcserver: serve failed")
		}
	case <-ctx.Done():
		logger.Info("rpcserver: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("rpcserver: shutdown incomplete")
		}
	}
}

// newServer builds the method registry, dispatcher, and routes for cfg.
func newServer(cfg config.Config, logger *logrus.Logger) (http.Handler, error) {
	state := chain.DefaultState()
	if cfg.ChainState != "" {
		var err error
		if state, err = chain.LoadState(cfg.ChainState); err != nil {
			return nil, err
		}
	}
	chainService, err := chain.NewService(state)
	if err != nil {
		return nil, err
	}

	registry := jsonrpc.NewRegistry()
	if err := calc.Register(registry); err != nil {
		return nil, err
	}
	if err := chainService.Register(registry); err != nil {
		return nil, err
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector, err := metrics.ForRegistry(promRegistry, registry)
	if err != nil {
		return nil, err
	}

	opts := []jsonrpc.Option{
		jsonrpc.WithLogger(logger),
		jsonrpc.WithObserver(collector),
		jsonrpc.WithMaxBatchSize(cfg.MaxBatch),
	}
	if cfg.BatchConcurrency != 0 {
		opts = append(opts, jsonrpc.WithBatchConcurrency(cfg.BatchConcurrency))
	}
	if cfg.DiscoveryFile != "" {
		provider, err := jsonrpc.LoadStaticProvider(cfg.DiscoveryFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, jsonrpc.WithDiscovery(provider))
	} else {
		opts = append(opts, jsonrpc.WithDiscovery(jsonrpc.RegistryProvider(registry, jsonrpc.Info{
			Title:       "rpcserve",
			Version:     "1.0.0",
			Description: "Calculator and chain state methods",
		})))
	}
	rpc := jsonrpc.NewEndpoint(jsonrpc.NewDispatcher(registry, opts...))

	requestID := middleware.NewRequestIDProcessor(logger)
	accessLog := &middleware.AccessLogProcessor{Logger: logger}
	security := middleware.NewSecurityHeadersProcessor(
		middleware.WithoutHSTS(),
		middleware.WithCORS(middleware.CORSConfig{AllowedOrigins: []string{"*"}}),
	)

	mux := http.NewServeMux()
	mux.Handle(cfg.Path, endpoint.Handler(rpc.Endpoint,
		requestID,
		accessLog,
		security,
		&middleware.BodyLimitProcessor{Limit: cfg.MaxBodyBytes},
	))
	if cfg.DiscoveryPath != "" {
		mux.Handle(cfg.DiscoveryPath, endpoint.Handler(rpc.Discovery, requestID, accessLog, security))
	}
	if cfg.MetricsPath != "" {
		mux.Handle(cfg.MetricsPath, collector.Handler())
	}
	methodCount := len(registry.Methods())
	mux.Handle(config.HealthPath, endpoint.Handler(func(_ http.ResponseWriter, _ *http.Request, _ struct{}) (endpoint.Renderer, error) {
		return &endpoint.JSONRenderer{Value: map[string]interface{}{"status": "ok", "methods": methodCount}}, nil
	}))

	logger.WithFields(logrus.Fields{
		"methods":   methodCount,
		"path":      cfg.Path,
		"discovery": cfg.DiscoveryPath,
		"metrics":   cfg.MetricsPath,
	}).Info("rpcserver: methods registered")
	return mux, nil
}
