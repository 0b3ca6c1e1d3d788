package config

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

func LoadConfig() {
	viper.SetConfigName("config")           // name of config file (without extension)
	viper.SetConfigType("yaml")             // REQUIRED if the config file does not have the extension in the name
	viper.AddConfigPath("/etc/sitewarden/") // path to look for the config file in
	viper.AddConfigPath(".")                // optionally look for config in the working directory

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Warn().Msg("Config file not found, using defaults")
		} else {
			log.Panic().Err(err).Msg("Fatal error reading config file")
		}
	}
	SetDefaultConfig()
}

func SetDefaultConfig() {

	// Logging
	viper.SetDefault("logging.console.level", "info")
	viper.SetDefault("logging.console.format", "pretty") // if it's not pretty, just outputs json
	viper.SetDefault("logging.file.enabled", true)
	viper.SetDefault("logging.file.path", "sitewarden.log")
	viper.SetDefault("logging.file.level", "info")

	// Database
	viper.SetDefault("database.type", "sqlite")
	viper.SetDefault("database.path", "sitewarden.db")
	viper.SetDefault("db.max_idle_conns", 5)
	viper.SetDefault("db.max_open_conns", 50)
	viper.SetDefault("db.conn_max_lifetime", "1h")

	// Scheduler
	viper.SetDefault("scheduler.max_concurrent_scans", 5)
	viper.SetDefault("scheduler.scan_timeout_default", 180)
	viper.SetDefault("scheduler.retry_delay_minutes", 15)
	viper.SetDefault("scheduler.max_retries_per_day", 10)
	viper.SetDefault("scheduler.load_balancing", true)
	viper.SetDefault("scheduler.adaptive_frequency", true)
	viper.SetDefault("scheduler.adaptive.window_days", 7)
	viper.SetDefault("scheduler.adaptive.min_samples", 5)
	viper.SetDefault("scheduler.batch_size", 10)
	viper.SetDefault("scheduler.poll_interval", "5s")
	viper.SetDefault("scheduler.claim_lease_minutes", 15)

	// Connection pools. Additional backends can be declared under pools.<name>.
	viper.SetDefault("pools.store.min_connections", 2)
	viper.SetDefault("pools.store.max_connections", 10)
	viper.SetDefault("pools.store.connect_timeout", 5)
	viper.SetDefault("pools.store.idle_timeout", 300)

	// Execution monitoring
	viper.SetDefault("monitoring.memory_warn_percent", 85.0)
	viper.SetDefault("monitoring.max_execution_seconds", 3600)
	viper.SetDefault("monitoring.significant_checkpoints", []string{
		"scan_started", "connection_acquired", "response_received", "analysis_complete", "scan_finished",
	})
	viper.SetDefault("monitoring.retention_days", 30)

	// Alert thresholds
	viper.SetDefault("alerts.failure_rate.threshold", 0.5)
	viper.SetDefault("alerts.failure_rate.severity", "critical")
	viper.SetDefault("alerts.avg_execution_seconds.threshold", 300.0)
	viper.SetDefault("alerts.avg_execution_seconds.severity", "warning")
	viper.SetDefault("alerts.avg_memory_bytes.threshold", 512*1024*1024)
	viper.SetDefault("alerts.avg_memory_bytes.severity", "warning")

	// Maintenance schedules
	viper.SetDefault("maintenance.idle_sweep", "*/5 * * * *")
	viper.SetDefault("maintenance.stale_claims", "*/10 * * * *")
	viper.SetDefault("maintenance.alerts", "*/15 * * * *")
	viper.SetDefault("maintenance.retention", "30 3 * * *")

	// Probe executor
	viper.SetDefault("probe.user_agent", "sitewarden/1.0")
	viper.SetDefault("probe.max_redirects", 10)
}
