package clickhouse

const (
	pipeGetEventsPaginated = "get_events_paginated"
	pipeCountEvents        = "count_events"
	pipeStreamEvents       = "stream_events"
	pipeGetEventByID       = "get_event_by_id"
	pipeGetEventsStats     = "get_events_stats"
	pipeGetTagsStats       = "get_tags_stats"
	pipeResolveUserAlias   = "resolve_user_alias"
	pipeGetUserIdentity    = "get_user_identity"
)

const eventColumns = `id, channel_id, project_id, organization_id, retention_tier, title, description,
	icon, tags, metadata, user_id, notify, display_as, source, created_at`

// Optional string filters are passed as '' to match everything.
var pipes = map[string]string{
	pipeGetEventsPaginated: `
		SELECT ` + eventColumns + `
		FROM events
		WHERE organization_id = @organization_id
			AND (@channel_id = '' OR channel_id = @channel_id)
			AND (@project_id = '' OR project_id = @project_id)
		ORDER BY created_at DESC, id DESC
		LIMIT @limit OFFSET @offset`,

	pipeCountEvents: `
		SELECT count()
		FROM events
		WHERE organization_id = @organization_id
			AND (@channel_id = '' OR channel_id = @channel_id)
			AND (@project_id = '' OR project_id = @project_id)`,

	pipeStreamEvents: `
		SELECT ` + eventColumns + `
		FROM events
		WHERE organization_id = @organization_id
			AND channel_id = @channel_id
			AND created_at > @since
		ORDER BY created_at ASC, id ASC
		LIMIT @limit`,

	pipeGetEventByID: `
		SELECT ` + eventColumns + `
		FROM events
		WHERE id = @event_id
		LIMIT 1`,

	pipeGetEventsStats: `
		SELECT count(), uniqExactIf(user_id, user_id != '')
		FROM events
		WHERE organization_id = @organization_id
			AND (@channel_id = '' OR channel_id = @channel_id)
			AND created_at >= @date_from
			AND created_at <= @date_to`,

	pipeGetTagsStats: `
		SELECT tag, count()
		FROM events
		ARRAY JOIN tags AS tag
		WHERE organization_id = @organization_id
			AND (@channel_id = '' OR channel_id = @channel_id)
			AND created_at >= @date_from
			AND created_at <= @date_to
		GROUP BY tag`,

	pipeResolveUserAlias: `
		SELECT user_id
		FROM user_identities FINAL
		WHERE organization_id = @organization_id
			AND (user_id = @alias OR has(aliases, @alias))
		ORDER BY updated_at DESC
		LIMIT 1`,

	pipeGetUserIdentity: `
		SELECT id, organization_id, user_id, email, name, properties, aliases, created_at, updated_at
		FROM user_identities FINAL
		WHERE organization_id = @organization_id AND user_id = @user_id
		ORDER BY updated_at DESC
		LIMIT 1`,
}
