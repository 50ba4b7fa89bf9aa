// Package config loads the service configuration.
//
// Values are layered, later sources winning: built-in defaults, the YAML file
// named by INSIGHTS_CONFIG_FILE, then INSIGHTS_* environment variables. A
// .env file is loaded into the environment first.
//
//	server:
//	  port: "8080"
//	  health_port: "9090"
//	storage:
//	  type: postgres
//	  postgres_url: postgres://insights@db/fitness
//	  archive_type: s3
//	  s3_bucket: insights-reports
//	statistics:
//	  concurrency: 4
//	  locked_rule: any
//	rate_limit:
//	  requests_per_minute: 30
//	  burst: 10
//	export:
//	  schedule: "15 0 * * *"
//	  format: json
//	observability:
//	  log_level: info
//
// WatchLogLevel applies log level edits to the YAML file without a restart.
package config
