package common

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var version string

// Version returns the release version of gridsim.
func Version() string {
	return strings.TrimSpace(version)
}

// ServerName returns the name reported in the Server header, preferring the
// Cloud Run revision when one is set.
func ServerName(revision string) string {
	if revision != "" {
		return revision
	}
	return "gridsim/" + Version()
}
