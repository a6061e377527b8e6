// Package imageref parses and validates container image references of
// the form registry/repository[:tag].
package imageref

import (
	"fmt"
	"strings"

	"github.com/distribution/reference"
)

// azureRegistrySuffix is the hosted registry domain suffix. The cloud
// CLI addresses a registry by its short name, without this suffix.
const azureRegistrySuffix = ".azurecr.io"

// Reference is a parsed image reference. Tag is empty when the source
// string carried none.
type Reference struct {
	// Domain is the registry host, e.g. "myregistry.azurecr.io".
	Domain string
	// Repository is the path within the registry, e.g. "team/app".
	Repository string
	// Tag is the tag portion, if present.
	Tag string
}

// Parse parses an image reference. Digest references are rejected:
// records track tags, and a pinned digest can never be upgraded.
func Parse(s string) (Reference, error) {
	named, err := reference.ParseNamed(s)
	if err != nil {
		return Reference{}, fmt.Errorf("invalid image reference %q: %w", s, err)
	}
	if _, ok := named.(reference.Digested); ok {
		return Reference{}, fmt.Errorf("invalid image reference %q: digest references are not supported", s)
	}

	ref := Reference{
		Domain:     reference.Domain(named),
		Repository: reference.Path(named),
	}
	if tagged, ok := named.(reference.Tagged); ok {
		ref.Tag = tagged.Tag()
	}
	return ref, nil
}

// Registry returns the short registry name the cloud CLI expects:
// "myregistry" for "myregistry.azurecr.io". For other domains the full
// host is returned.
func (r Reference) Registry() string {
	return strings.TrimSuffix(r.Domain, azureRegistrySuffix)
}

// Repo returns the domain-qualified repository without a tag.
func (r Reference) Repo() string {
	return r.Domain + "/" + r.Repository
}

// WithTag returns the full pullable reference for the given tag.
func (r Reference) WithTag(tag string) string {
	return r.Repo() + ":" + tag
}

// String returns the reference in its original form.
func (r Reference) String() string {
	if r.Tag == "" {
		return r.Repo()
	}
	return r.WithTag(r.Tag)
}
