// Package migrate upgrades versioned on-disk data (the TOML config and the
// swatch document) one schema version at a time.
package migrate

import (
	"fmt"
	"log/slog"
	"sort"
)

// ///////////////////////////////////////////////
// Types
// ///////////////////////////////////////////////

// Migration upgrades raw data from the previous schema version to Version.
type Migration struct {
	// Version is the schema version this migration produces.
	Version int
	// Description is a short label for log output.
	Description string
	// Upgrade transforms data from the prior version to [Migration.Version].
	Upgrade func(data []byte) ([]byte, error)
}

// Registry holds the current version and known migrations for one schema
// target. Version numbers of different registries are independent.
type Registry struct {
	// Name identifies the target in logs and errors.
	Name string
	// CurrentVersion is the schema version this build reads and writes.
	CurrentVersion int
	// Migrations is the list of versioned upgrades, in any order.
	Migrations []Migration
}

// Config is the registry for config.toml.
var Config = &Registry{Name: "config", CurrentVersion: 1}

// Document is the registry for the swatch document.
var Document = &Registry{Name: "document", CurrentVersion: 2}

// ///////////////////////////////////////////////
// Registry
// ///////////////////////////////////////////////

// Register adds m to the registry. It panics when a migration for the same
// version already exists.
func (r *Registry) Register(m Migration) {
	for _, existing := range r.Migrations {
		if existing.Version == m.Version {
			panic(fmt.Sprintf("migrate: %s: duplicate migration version %d (%q)", r.Name, m.Version, m.Description))
		}
	}
	r.Migrations = append(r.Migrations, m)
}

// NeedsMigration reports whether data at fileVersion differs from the
// current version or has pending migrations.
func (r *Registry) NeedsMigration(fileVersion int) bool {
	if fileVersion != r.CurrentVersion {
		return true
	}
	for _, m := range r.Migrations {
		if fileVersion < m.Version {
			return true
		}
	}
	return false
}

// Run applies every migration newer than fromVersion in ascending order and
// returns the upgraded data with the version reached. On failure the version
// of the last successful step is returned with the error.
func (r *Registry) Run(data []byte, fromVersion int) ([]byte, int, error) {
	if fromVersion > r.CurrentVersion {
		return nil, fromVersion, fmt.Errorf("%s version %d is newer than supported version %d", r.Name, fromVersion, r.CurrentVersion)
	}

	pending := make([]Migration, 0, len(r.Migrations))
	for _, m := range r.Migrations {
		if m.Version > fromVersion {
			pending = append(pending, m)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].Version < pending[j].Version })

	version := fromVersion
	for _, m := range pending {
		slog.Info("applying migration", "target", r.Name, "version", m.Version, "description", m.Description)
		out, err := m.Upgrade(data)
		if err != nil {
			return nil, version, fmt.Errorf("%s migration to v%d failed: %w", r.Name, m.Version, err)
		}
		data = out
		version = m.Version
	}
	return data, version, nil
}
