// Package terminal registers Windows Terminal connection profiles for
// materialized VMs. It is a collaborator of the reconciliation engine,
// not part of it: the engine only exposes the VM identifier and
// connect command, and this package owns the settings file format.
package terminal

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// ProfileWriter reads and rewrites a Windows Terminal settings file.
// The file is JSONC; comments are stripped on read and not preserved
// on write, matching how Windows Terminal itself rewrites the file.
type ProfileWriter struct {
	path string
}

// NewProfileWriter creates a writer for the settings file at path.
func NewProfileWriter(path string) *ProfileWriter {
	return &ProfileWriter{path: path}
}

// Register inserts or updates the profile with the given GUID.
//
// An existing profile keeps its position and any user-added fields;
// only name and commandline are rewritten. A new profile is inserted
// at the front of profiles.list so it shows up first in the terminal's
// dropdown.
func (w *ProfileWriter) Register(profileID, name, connectCommand string) error {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return fmt.Errorf("failed to read terminal settings %s: %w", w.path, err)
	}

	var settings map[string]any
	if err := json.Unmarshal(stripComments(data), &settings); err != nil {
		return fmt.Errorf("failed to parse terminal settings %s: %w", w.path, err)
	}

	profiles, ok := settings["profiles"].(map[string]any)
	if !ok {
		return fmt.Errorf("terminal settings %s has no profiles object", w.path)
	}
	list, ok := profiles["list"].([]any)
	if !ok {
		return fmt.Errorf("terminal settings %s has no profiles.list array", w.path)
	}

	guid := "{" + profileID + "}"
	updated := false
	for _, entry := range list {
		profile, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		if profile["guid"] == guid {
			profile["name"] = name
			profile["commandline"] = connectCommand
			updated = true
			break
		}
	}
	if !updated {
		profile := map[string]any{
			"guid":        guid,
			"hidden":      false,
			"name":        name,
			"commandline": connectCommand,
		}
		list = append([]any{profile}, list...)
		profiles["list"] = list
	}

	out, err := json.MarshalIndent(settings, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal terminal settings: %w", err)
	}
	if err := os.WriteFile(w.path, append(out, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write terminal settings %s: %w", w.path, err)
	}

	if updated {
		logrus.Infof("Updated terminal profile %s for %s", guid, name)
	} else {
		logrus.Infof("Registered terminal profile %s for %s", guid, name)
	}
	return nil
}
