package common

const (
	// RedisStreamAlertEvents carries every position lifecycle event for
	// external consumers (dashboards, archival).
	RedisStreamAlertEvents = "trade.alert.events"

	// RedisKeyMarketSnapshot caches enrichment snapshots per symbol.
	RedisKeyMarketSnapshot = "market.snapshot:%s"
)
