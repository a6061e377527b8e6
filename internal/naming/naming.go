// Package naming provides naming conventions for dragon-managed WSL
// resources: the deterministic distribution name derived from a record
// name and tag, and the paths used for install directories and export
// archives.
//
// These rules are deterministic so a re-run for the same (name, tag)
// pair always targets the same WSL distribution.
package naming

import (
	"fmt"
	"path/filepath"
	"strings"
)

// VMIdentifier returns the WSL distribution name for a record name and
// tag. Format: {name}-{tag}, with characters WSL rejects in
// distribution names replaced by hyphens.
//
// Example: ("devbox", "v1.2") → "devbox-v1.2"
func VMIdentifier(name, tag string) string {
	return sanitize(name) + "-" + sanitize(tag)
}

// InstallDir returns the directory a distribution's virtual disk is
// imported into. Format: {root}/{vmIdentifier}
func InstallDir(root, vmIdentifier string) string {
	return filepath.Join(root, vmIdentifier)
}

// ExportArchive returns the path of the rootfs tar exported for a
// distribution. Format: {dir}/{vmIdentifier}.tar
func ExportArchive(dir, vmIdentifier string) string {
	return filepath.Join(dir, fmt.Sprintf("%s.tar", vmIdentifier))
}

// ContainerName returns the name of the scratch container created to
// export an image's filesystem. Format: dragon-export-{vmIdentifier}
func ContainerName(vmIdentifier string) string {
	return "dragon-export-" + vmIdentifier
}

// sanitize replaces characters outside the WSL distribution name
// alphabet (alphanumerics, dots, hyphens, underscores) with hyphens.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, s)
}
