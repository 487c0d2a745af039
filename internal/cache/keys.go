package cache

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	ListTTL     = 60 * time.Second
	RealtimeTTL = 3 * time.Second
	StatsTTL    = 300 * time.Second

	// RealtimeBucket is the width of the since-timestamp buckets in realtime
	// keys, so polls within one bucket share an entry.
	RealtimeBucket = 3 * time.Second
)

// GenerateKey builds a deterministic key: params are sorted by name and
// rendered as name:value pairs after the prefix.
func GenerateKey(prefix string, params map[string]any) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names)+1)
	parts = append(parts, prefix)
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s:%v", name, params[name]))
	}
	return strings.Join(parts, ":")
}

func ChannelListKey(channelID string) string {
	return "events:channel:" + channelID + ":list"
}

func ChannelStatsKey(channelID string) string {
	return "events:channel:" + channelID + ":stats"
}

func OrganizationListKey(organizationID string) string {
	return "events:org:" + organizationID + ":list"
}

func OrganizationStatsKey(organizationID string) string {
	return "events:org:" + organizationID + ":stats"
}

// RealtimeSince floors since to its bucket, in unix milliseconds.
func RealtimeSince(since time.Time) int64 {
	width := RealtimeBucket.Milliseconds()
	return since.UnixMilli() / width * width
}

// ChannelTopic is the pub/sub channel that carries new events for channelID.
func ChannelTopic(channelID string) string {
	return "events:channel:" + channelID
}
