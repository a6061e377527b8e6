package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jbweber/dragon/internal/imageref"
)

// DefaultRegistryTimeout bounds registry tag queries. These are small
// network calls; anything slower is treated as a normal failure.
const DefaultRegistryTimeout = 45 * time.Second

// Registry queries a container registry's tag list through the cloud
// CLI. Authentication is delegated entirely to the CLI's own session
// state.
type Registry struct {
	bin     string
	timeout time.Duration
	run     runner
}

// NewRegistry creates a registry client using the cloud CLI at bin.
// An empty bin defaults to "az"; a zero timeout defaults to
// DefaultRegistryTimeout.
func NewRegistry(bin string, timeout time.Duration) *Registry {
	if bin == "" {
		bin = "az"
	}
	if timeout <= 0 {
		timeout = DefaultRegistryTimeout
	}
	return &Registry{bin: bin, timeout: timeout, run: execRunner{}}
}

// ListTags returns the repository's tags ordered newest-push first, as
// reported by the registry. The ordering is the registry's recency
// signal, not lexicographic.
func (r *Registry) ListTags(ctx context.Context, ref imageref.Reference) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	out, err := r.run.run(ctx, r.bin,
		"acr", "repository", "show-tags",
		"--name", ref.Registry(),
		"--repository", ref.Repository,
		"--orderby", "time_desc",
		"--output", "tsv",
	)
	if err != nil {
		return nil, classifyRegistryError(ref, err)
	}

	tags := splitLines(decodeConsoleOutput(out))
	if len(tags) == 0 {
		return nil, fmt.Errorf("%w: repository %s has no tags", ErrImageNotFound, ref.Repo())
	}
	return tags, nil
}

// LatestTag returns the most recently pushed tag for the repository.
//
// Tie-break: when several tags share a push timestamp the registry's
// own ordering decides and the first reported tag wins, matching the
// cloud CLI's manifest ordering.
func (r *Registry) LatestTag(ctx context.Context, ref imageref.Reference) (string, error) {
	tags, err := r.ListTags(ctx, ref)
	if err != nil {
		return "", err
	}
	return tags[0], nil
}

// classifyRegistryError maps cloud CLI failures onto the adapter's
// error taxonomy.
func classifyRegistryError(ref imageref.Reference, err error) error {
	stderr := strings.ToLower(stderrOf(err))
	if strings.Contains(stderr, "not found") || strings.Contains(stderr, "does not exist") {
		return fmt.Errorf("%w: %s: %v", ErrImageNotFound, ref.Repo(), err)
	}
	return fmt.Errorf("%w: %s: %v", ErrRegistryUnavailable, ref.Repo(), err)
}
