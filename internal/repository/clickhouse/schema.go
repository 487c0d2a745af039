package clickhouse

// Retention is enforced by the table TTL using the tier snapshotted on each row.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id String,
		channel_id String,
		project_id String,
		organization_id String,
		retention_tier LowCardinality(String),
		title String,
		description String,
		icon String,
		tags Array(String),
		metadata String,
		user_id String,
		notify Bool,
		display_as LowCardinality(String),
		source LowCardinality(String),
		created_at DateTime64(3, 'UTC')
	) ENGINE = MergeTree
	PARTITION BY toYYYYMM(created_at)
	ORDER BY (organization_id, channel_id, created_at, id)
	TTL toDateTime(created_at) + INTERVAL 90 DAY DELETE WHERE retention_tier = 'basic',
		toDateTime(created_at) + INTERVAL 365 DAY DELETE WHERE retention_tier = 'premium'
	SETTINGS index_granularity = 8192`,

	`CREATE TABLE IF NOT EXISTS events_quarantine (
		id String,
		channel_id String,
		organization_id String,
		reason String,
		payload String,
		quarantined_at DateTime64(3, 'UTC') DEFAULT now64(3)
	) ENGINE = MergeTree
	ORDER BY (organization_id, quarantined_at)
	TTL toDateTime(quarantined_at) + INTERVAL 30 DAY`,

	`CREATE TABLE IF NOT EXISTS user_identities (
		id String,
		organization_id String,
		user_id String,
		email String,
		name String,
		properties String,
		aliases Array(String),
		created_at DateTime64(3, 'UTC'),
		updated_at DateTime64(3, 'UTC')
	) ENGINE = ReplacingMergeTree(updated_at)
	ORDER BY (organization_id, user_id)`,
}
