package ports

import (
	"context"
)

// GitInfo is the repository context attached to a session record.
type GitInfo struct {
	Branch     string
	Commit     string
	Repository string
}

// GitDetector defines the interface for git context detection.
// This is a driven port (implemented by adapters).
type GitDetector interface {
	// Detect scans workingDir (or the process cwd) for git context.
	Detect(ctx context.Context, workingDir string) (*GitInfo, error)
}
