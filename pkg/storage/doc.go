// Package storage holds the backend configuration shared by the insights
// binaries and the report archive abstraction used by the exporter.
//
// Statistics are always read from the platform's relational store through
// the statistics.Store interface, implemented by the postgres subpackage and,
// for demos and tests, by the memory subpackage. Computed reports can be
// archived as immutable daily snapshots through a ReportArchive:
//
//   - FileSystemArchive writes snapshots below a local directory
//   - blob.S3Archive writes snapshots to an S3 compatible bucket
//
// Archived snapshots are write-once history for downstream consumers. The
// API never reads them back to answer a request.
//
// RedisClient wraps the shared Redis connection used for distributed rate
// limiting and for the exporter lock that keeps concurrent exporter replicas
// from writing the same day twice.
package storage
