// Package templates renders the HTML pages of the web server.
//
// Components are written in .templ files; run `templ generate` after
// editing them.
package templates

import (
	"strconv"
	"time"

	"github.com/JonMunkholm/jsonlcopy/internal/core"
)

// StatusParams is the data behind the status page.
type StatusParams struct {
	Limiter  core.CopyLimiterStatus
	Sessions []core.Session
	Formats  []string
	Now      time.Time
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatCount(n int64) string {
	return strconv.FormatInt(n, 10)
}

func sessionError(s core.Session) string {
	if s.ErrorCode == "" {
		return s.Error
	}
	return s.ErrorCode + ": " + s.Error
}
