package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/drone/envsubst"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	ver "github.com/prometheus/client_golang/prometheus/collectors/version"
	"github.com/prometheus/common/version"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v2"

	"github.com/williewheeler/depviz/internal/aggregator"
	"github.com/williewheeler/depviz/internal/api"
	"github.com/williewheeler/depviz/internal/receiver"
)

const appName = "depviz"

// Version is set via build flag -ldflags -X main.Version
var (
	Version  string
	Branch   string
	Revision string
)

func init() {
	version.Version = Version
	version.Branch = Branch
	version.Revision = Revision

	prometheus.MustRegister(ver.NewCollector(appName))
}

func main() {
	printVersion := flag.Bool("version", false, "Print version and exit")

	for _, arg := range os.Args[1:] {
		if arg == "-config.example" || arg == "--config.example" {
			fmt.Print(ExampleConfig())
			os.Exit(0)
		}
	}

	cfg, configVerify, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed parsing config: %v\n", err)
		os.Exit(1)
	}
	if *printVersion {
		fmt.Println(version.Print(appName))
		os.Exit(0)
	}

	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stdout))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)
	logger = level.NewFilter(logger, level.AllowInfo())

	configValid := true
	if warnings := cfg.CheckConfig(); len(warnings) != 0 {
		level.Warn(logger).Log("msg", "-- CONFIGURATION WARNINGS --")
		for _, w := range warnings {
			output := []any{"msg", w.Message}
			if w.Explain != "" {
				output = append(output, "explain", w.Explain)
			}
			level.Warn(logger).Log(output...)
		}
		configValid = false
	}

	if configVerify {
		if err := cfg.Validate(); err != nil {
			level.Error(logger).Log("msg", "invalid configuration", "err", err)
			os.Exit(1)
		}
		if !configValid {
			os.Exit(1)
		}
		level.Info(logger).Log("msg", "configuration is valid")
		os.Exit(0)
	}

	if err := cfg.Validate(); err != nil {
		level.Error(logger).Log("msg", "invalid configuration", "err", err)
		os.Exit(1)
	}

	level.Info(logger).Log(
		"msg", "starting depviz",
		"version", Version,
		"http_addr", fmt.Sprintf("%s:%d", cfg.HTTPListenAddress, cfg.HTTPListenPort),
		"grpc_addr", fmt.Sprintf("%s:%d", cfg.GRPCListenAddress, cfg.GRPCListenPort),
	)

	agg := aggregator.New(aggregator.Config{
		WindowSeconds:       cfg.WindowSeconds,
		RetentionBuckets:    cfg.RetentionBuckets,
		MaxSamplesPerBucket: cfg.MaxSamplesPerBucket,
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(agg.Collectors()...)

	otlpServer := receiver.NewServer(agg, logger, cfg.IngestWorkers)
	registry.MustRegister(otlpServer.Collectors()...)

	apiHandler := api.NewHandler(agg, logger)
	router := mux.NewRouter()
	apiHandler.RegisterRoutes(router, registry)

	httpAddr := fmt.Sprintf("%s:%d", cfg.HTTPListenAddress, cfg.HTTPListenPort)
	grpcAddr := fmt.Sprintf("%s:%d", cfg.GRPCListenAddress, cfg.GRPCListenPort)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-quit
		level.Info(logger).Log("msg", "received signal, shutting down", "signal", sig)
		cancel()
	}()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return receiver.Serve(gctx, grpcAddr, otlpServer, logger)
	})

	g.Go(func() error {
		return serveHTTP(gctx, httpAddr, router, logger)
	})

	if err := g.Wait(); err != nil {
		level.Error(logger).Log("msg", "server exited with error", "err", err)
		os.Exit(1)
	}

	level.Info(logger).Log("msg", "depviz stopped")
}

func loadConfig() (*Config, bool, error) {
	const (
		configFileOption      = "config.file"
		configExpandEnvOption = "config.expand-env"
		configVerifyOption    = "config.verify"
	)

	var (
		configFile      string
		configExpandEnv bool
		configVerify    bool
	)

	args := os.Args[1:]
	config := &Config{}

	fs := flag.NewFlagSet("", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&configFile, configFileOption, "", "")
	fs.BoolVar(&configExpandEnv, configExpandEnvOption, false, "")
	fs.BoolVar(&configVerify, configVerifyOption, false, "")

	for len(args) > 0 {
		_ = fs.Parse(args)
		args = args[1:]
	}

	config.RegisterFlagsAndApplyDefaults("", flag.CommandLine)

	if configFile != "" {
		buff, err := os.ReadFile(configFile)
		if err != nil {
			return nil, false, fmt.Errorf("failed to read configFile %s: %w", configFile, err)
		}

		if configExpandEnv {
			s, err := envsubst.EvalEnv(string(buff))
			if err != nil {
				return nil, false, fmt.Errorf("failed to expand env vars from configFile %s: %w", configFile, err)
			}
			buff = []byte(s)
		}

		if err := yaml.UnmarshalStrict(buff, config); err != nil {
			return nil, false, fmt.Errorf("failed to parse configFile %s: %w", configFile, err)
		}
	}

	// Re-register the pre-scanned flags on the real flag set so the final
	// Parse call below doesn't reject them as unknown.
	flag.String(configFileOption, "", "Configuration file to load")
	flag.Bool(configExpandEnvOption, false, "Whether to expand environment variables in config file")
	flag.Bool(configVerifyOption, false, "Verify configuration and exit")
	flag.Parse()

	return config, configVerify, nil
}
