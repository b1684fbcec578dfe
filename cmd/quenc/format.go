package main

import (
	"fmt"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var headerCaser = cases.Title(language.Und)

// headerRow title-cases column names for table headers.
func headerRow(names ...string) []string {
	headers := make([]string, 0, len(names))
	for _, name := range names {
		headers = append(headers, headerCaser.String(name))
	}
	return headers
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
