// Package utils holds tiny helpers with no domain knowledge.
package utils

import "strconv"

// AtoiDefault parses query parameters like ?limit=20 on the schedule
// endpoints. Empty or unparseable input yields def; no trimming is done, so
// " 20" falls back too.
//
//	n := utils.AtoiDefault(c.Query("limit"), 0) // 0 means no limit
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}
