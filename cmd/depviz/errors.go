package main

import "fmt"

var (
	errIngestWorkers    = fmt.Errorf("ingest.workers must be greater than zero")
	errWindowSeconds    = fmt.Errorf("aggregator.window-seconds must be greater than zero")
	errRetentionBuckets = fmt.Errorf("aggregator.retention-buckets must be greater than zero")
	errMaxSamples       = fmt.Errorf("aggregator.max-samples-per-bucket must not be negative")
)

func errInvalidPort(flagName string, port int) error {
	return fmt.Errorf("%s: %d is not a valid port", flagName, port)
}
