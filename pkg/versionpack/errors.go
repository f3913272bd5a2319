package versionpack

import (
	"errors"
	"fmt"

	"github.com/aidaddydog/huandan.server/pkg/align"
)

// ErrPackNotFound is returned by Get and Rollback for unknown versions.
var ErrPackNotFound = errors.New("version pack not found")

// ErrNoActiveVersion is returned when no pack has ever been built or
// promoted.
var ErrNoActiveVersion = errors.New("no active version")

// BuildError is returned when a build is refused. The store and active
// pointer are left unchanged.
type BuildError struct {
	Reason string
	Report *align.Report
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build refused: %s", e.Reason)
}
