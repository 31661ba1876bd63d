package backends

import "strings"

// Option fetches an option value by key, matching case-insensitively so
// hosts can configure SID/sid/Sid interchangeably.
func Option(options map[string]string, key string) string {
	if v, ok := options[key]; ok {
		return v
	}
	for k, v := range options {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}
