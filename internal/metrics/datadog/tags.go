package datadog

import "strings"

// ParseTagsCSV parses a comma-separated "k:v" tag list from config or
// environment (e.g. "team:data,tier:batch"). Empty entries are dropped.
func ParseTagsCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
