package app

import (
	"context"
	"fmt"

	"callsheet/internal/repo"
)

// ResolveProject picks the active project for a CLI invocation: explicit
// override first, then the workspace's single project. Workspaces holding
// several projects require the override.
func ResolveProject(ctx context.Context, projectOverride string, r repo.Repo) (string, error) {
	if projectOverride != "" {
		return projectOverride, nil
	}
	p, err := r.SingleProject(ctx)
	if err != nil {
		return "", fmt.Errorf("project not specified; use --project")
	}
	return p.ID, nil
}
