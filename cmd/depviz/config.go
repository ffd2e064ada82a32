package main

import (
	"flag"
	"fmt"

	"github.com/williewheeler/depviz/internal/aggregator"
	"github.com/williewheeler/depviz/internal/receiver"
)

// Config is the root config for the depviz service: a combined OTLP
// trace-ingest receiver and service-dependency-graph API.
type Config struct {
	// HTTP API (pull + push endpoints, /ready, /metrics).
	HTTPListenAddress string `yaml:"http_listen_address"`
	HTTPListenPort    int    `yaml:"http_listen_port"`

	// gRPC OTLP ingest endpoint.
	GRPCListenAddress string `yaml:"grpc_listen_address"`
	GRPCListenPort    int    `yaml:"grpc_listen_port"`

	// IngestWorkers bounds the number of Export RPCs handled concurrently.
	IngestWorkers int `yaml:"ingest_workers"`

	// WindowSeconds is the bucket width for the streaming aggregator.
	WindowSeconds int `yaml:"window_seconds"`
	// RetentionBuckets bounds how many buckets stay resident at once.
	RetentionBuckets int `yaml:"retention_buckets"`
	// MaxSamplesPerBucket bounds per-edge duration samples via reservoir
	// sampling. Zero retains every sample.
	MaxSamplesPerBucket int `yaml:"max_samples_per_bucket"`
}

// NewDefaultConfig creates a new Config with default values applied.
func NewDefaultConfig() *Config {
	defaultConfig := &Config{}
	defaultFS := flag.NewFlagSet("", flag.PanicOnError)
	defaultConfig.RegisterFlagsAndApplyDefaults("", defaultFS)
	return defaultConfig
}

// RegisterFlagsAndApplyDefaults registers flags and sets default values.
func (c *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.StringVar(&c.HTTPListenAddress, prefix+"server.http-listen-address", "0.0.0.0", "HTTP API listen address.")
	f.IntVar(&c.HTTPListenPort, prefix+"server.http-listen-port", 8000, "HTTP API listen port.")

	f.StringVar(&c.GRPCListenAddress, prefix+"server.grpc-listen-address", "[::]", "OTLP gRPC ingest listen address.")
	f.IntVar(&c.GRPCListenPort, prefix+"server.grpc-listen-port", 4317, "OTLP gRPC ingest listen port.")

	f.IntVar(&c.IngestWorkers, prefix+"ingest.workers", receiver.DefaultWorkers, "Concurrent Export RPC worker pool size.")

	f.IntVar(&c.WindowSeconds, prefix+"aggregator.window-seconds", aggregator.DefaultWindowSeconds, "Width in seconds of each aggregation bucket.")
	f.IntVar(&c.RetentionBuckets, prefix+"aggregator.retention-buckets", aggregator.DefaultRetentionBuckets, "Maximum number of simultaneously resident buckets.")
	f.IntVar(&c.MaxSamplesPerBucket, prefix+"aggregator.max-samples-per-bucket", 0, "Maximum duration samples retained per edge per bucket via reservoir sampling (0 = unbounded).")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.HTTPListenPort <= 0 {
		return errInvalidPort("server.http-listen-port", c.HTTPListenPort)
	}
	if c.GRPCListenPort <= 0 {
		return errInvalidPort("server.grpc-listen-port", c.GRPCListenPort)
	}
	if c.IngestWorkers <= 0 {
		return errIngestWorkers
	}
	if c.WindowSeconds <= 0 {
		return errWindowSeconds
	}
	if c.RetentionBuckets <= 0 {
		return errRetentionBuckets
	}
	if c.MaxSamplesPerBucket < 0 {
		return errMaxSamples
	}
	return nil
}

// CheckConfig checks if config values are suspect and returns a bundled list of warnings and explanation.
func (c *Config) CheckConfig() []ConfigWarning {
	var warnings []ConfigWarning

	if c.RetentionBuckets < 6 {
		warnings = append(warnings, ConfigWarning{
			Message: fmt.Sprintf("aggregator.retention-buckets is %d", c.RetentionBuckets),
			Explain: "a small retention horizon makes window_sec queries past a few bucket widths return incomplete data",
		})
	}
	if c.IngestWorkers > 256 {
		warnings = append(warnings, ConfigWarning{
			Message: fmt.Sprintf("ingest.workers is %d", c.IngestWorkers),
			Explain: "an unusually large worker pool may not improve throughput beyond available CPU",
		})
	}

	return warnings
}

// ConfigWarning bundles message and explanation strings in one structure.
type ConfigWarning struct {
	Message string
	Explain string
}

// ExampleConfig returns an example configuration YAML.
func ExampleConfig() string {
	return `# depviz configuration

http_listen_address: "0.0.0.0"
http_listen_port: 8000

grpc_listen_address: "[::]"
grpc_listen_port: 4317

ingest_workers: 10

window_seconds: 10
retention_buckets: 360
max_samples_per_bucket: 0
`
}
