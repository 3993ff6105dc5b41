// Package catalog reads and writes the YAML files used to seed badge
// definitions and import the roster.
package catalog

import (
	"embed"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/multierr"
	"go.yaml.in/yaml/v3"

	"github.com/alem-hub/alem-gamification/internal/domain/badge"
	"github.com/alem-hub/alem-gamification/internal/domain/student"
)

//go:embed defaults/badges.yaml
var defaults embed.FS

// ErrDuplicateID is returned when a file lists the same ID twice.
var ErrDuplicateID = errors.New("catalog: duplicate id")

// ══════════════════════════════════════════════════════════════════════════════
// BADGES
// ══════════════════════════════════════════════════════════════════════════════

type badgeFile struct {
	Badges []badgeDoc `yaml:"badges"`
}

// badgeDoc mirrors badge.Definition with an optional is_active (default true).
type badgeDoc struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Icon        string         `yaml:"icon"`
	Category    string         `yaml:"category"`
	XPReward    int            `yaml:"xp_reward"`
	IsActive    *bool          `yaml:"is_active"`
	Criteria    badge.Criteria `yaml:"criteria"`
}

func (d badgeDoc) definition() badge.Definition {
	active := true
	if d.IsActive != nil {
		active = *d.IsActive
	}
	return badge.Definition{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Icon:        d.Icon,
		Category:    d.Category,
		XPReward:    d.XPReward,
		IsActive:    active,
		Criteria:    d.Criteria,
	}
}

// ReadBadges decodes and validates a badge catalog. Every invalid entry is
// reported, not just the first.
func ReadBadges(r io.Reader) ([]badge.Definition, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file badgeFile
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode badge catalog: %w", err)
	}

	defs := make([]badge.Definition, 0, len(file.Badges))
	seen := make(map[string]struct{}, len(file.Badges))
	var errs error
	for i, doc := range file.Badges {
		def := doc.definition()
		if err := def.Validate(); err != nil {
			multierr.AppendInto(&errs, fmt.Errorf("badge #%d (%q): %w", i+1, def.ID, err))
			continue
		}
		if _, dup := seen[def.ID]; dup {
			multierr.AppendInto(&errs, fmt.Errorf("%w: badge %q", ErrDuplicateID, def.ID))
			continue
		}
		seen[def.ID] = struct{}{}
		defs = append(defs, def)
	}
	if errs != nil {
		return nil, errs
	}
	return defs, nil
}

// LoadBadgesFile reads a badge catalog from disk.
func LoadBadgesFile(path string) ([]badge.Definition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open badge catalog: %w", err)
	}
	defer f.Close()
	return ReadBadges(f)
}

// DefaultBadges returns the built-in catalog.
func DefaultBadges() ([]badge.Definition, error) {
	f, err := defaults.Open("defaults/badges.yaml")
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadBadges(f)
}

// WriteBadges encodes definitions in the same format ReadBadges accepts.
func WriteBadges(w io.Writer, defs []badge.Definition) error {
	file := badgeFile{Badges: make([]badgeDoc, len(defs))}
	for i, d := range defs {
		active := d.IsActive
		file.Badges[i] = badgeDoc{
			ID:          d.ID,
			Name:        d.Name,
			Description: d.Description,
			Icon:        d.Icon,
			Category:    d.Category,
			XPReward:    d.XPReward,
			IsActive:    &active,
			Criteria:    d.Criteria,
		}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(file); err != nil {
		return fmt.Errorf("encode badge catalog: %w", err)
	}
	return enc.Close()
}

// ══════════════════════════════════════════════════════════════════════════════
// ROSTER
// ══════════════════════════════════════════════════════════════════════════════

type rosterFile struct {
	Students []student.Student `yaml:"students"`
}

// ReadRoster decodes and validates a roster file.
func ReadRoster(r io.Reader) ([]student.Student, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file rosterFile
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode roster: %w", err)
	}

	seen := make(map[string]struct{}, len(file.Students))
	var errs error
	for i, s := range file.Students {
		if err := s.Validate(); err != nil {
			multierr.AppendInto(&errs, fmt.Errorf("student #%d (%q): %w", i+1, s.ID, err))
			continue
		}
		if _, dup := seen[s.ID.String()]; dup {
			multierr.AppendInto(&errs, fmt.Errorf("%w: student %q", ErrDuplicateID, s.ID))
		}
		seen[s.ID.String()] = struct{}{}
	}
	if errs != nil {
		return nil, errs
	}
	return file.Students, nil
}

// LoadRosterFile reads a roster from disk.
func LoadRosterFile(path string) ([]student.Student, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open roster: %w", err)
	}
	defer f.Close()
	return ReadRoster(f)
}
