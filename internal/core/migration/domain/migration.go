package domain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// VersionLayout is the time layout of migration versions.
const VersionLayout = "20060102150405"

// MigrationRecord is one migration file.
type MigrationRecord struct {
	Version   string     `json:"version" yaml:"version"`
	Slug      string     `json:"slug" yaml:"slug"`
	Body      string     `json:"-" yaml:"-"`
	Checksum  string     `json:"checksum" yaml:"checksum"`
	AppliedAt *time.Time `json:"applied_at,omitempty" yaml:"applied_at,omitempty"`
}

// NewMigrationRecord builds a record and computes its checksum.
func NewMigrationRecord(version, slug, body string) MigrationRecord {
	return MigrationRecord{
		Version:  version,
		Slug:     slug,
		Body:     body,
		Checksum: CalculateChecksum(body),
	}
}

// Filename returns <version>.<slug>.sql.
func (m MigrationRecord) Filename() string {
	return m.Version + "." + m.Slug + ".sql"
}

// AppliedVersion is one row of the ledger.
type AppliedVersion struct {
	Version     string    `json:"version" yaml:"version"`
	Description string    `json:"description" yaml:"description"`
	Checksum    string    `json:"checksum" yaml:"checksum"`
	AppliedAt   time.Time `json:"applied_at" yaml:"applied_at"`
}

// CalculateChecksum returns the hex sha256 of a migration body.
func CalculateChecksum(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}

// FormatVersion renders t as a migration version in UTC.
func FormatVersion(t time.Time) string {
	return t.UTC().Format(VersionLayout)
}

// ParseVersion validates a version string.
func ParseVersion(version string) (time.Time, error) {
	if len(version) != len(VersionLayout) {
		return time.Time{}, fmt.Errorf("version %q must have exactly %d digits", version, len(VersionLayout))
	}
	t, err := time.Parse(VersionLayout, version)
	if err != nil {
		return time.Time{}, fmt.Errorf("version %q is not a valid timestamp: %w", version, err)
	}
	return t, nil
}

var whitespace = regexp.MustCompile(`\s+`)

// Slugify turns a description into a filename label by replacing whitespace runs with underscores.
func Slugify(description string) (string, error) {
	slug := whitespace.ReplaceAllString(strings.TrimSpace(description), "_")
	if slug == "" {
		return "", fmt.Errorf("migration description must not be empty")
	}
	if strings.ContainsAny(slug, `/\`) {
		return "", fmt.Errorf("migration description %q must not contain path separators", description)
	}
	return slug, nil
}

// StatementGroup is a unit of emitted statements. Groups with more than one member form a dependency cycle.
type StatementGroup struct {
	Members    []ObjectRef `json:"members" yaml:"members"`
	Statements []Statement `json:"statements" yaml:"statements"`
}

// Cyclic reports whether the group collapses a dependency cycle.
func (g StatementGroup) Cyclic() bool {
	return len(g.Members) > 1
}

// WithheldEntry is a change the safety policy kept out of the emitted sequence.
type WithheldEntry struct {
	Entry  ChangeEntry `json:"entry" yaml:"entry"`
	Reason string      `json:"reason" yaml:"reason"`
}

// Plan is the ordered, rendered output of the emitter.
type Plan struct {
	Dialect  SQLDialect       `json:"dialect" yaml:"dialect"`
	Unsafe   bool             `json:"unsafe" yaml:"unsafe"`
	Groups   []StatementGroup `json:"groups" yaml:"groups"`
	Withheld []WithheldEntry  `json:"withheld,omitempty" yaml:"withheld,omitempty"`
	Warnings []string         `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Statements flattens every emitted statement in order.
func (p *Plan) Statements() []Statement {
	var out []Statement
	for _, g := range p.Groups {
		out = append(out, g.Statements...)
	}
	return out
}

// Empty reports whether nothing would be emitted.
func (p *Plan) Empty() bool {
	return len(p.Statements()) == 0
}

// SQL renders the plan as a migration body. Withheld entries are appended as comments.
func (p *Plan) SQL() string {
	var b strings.Builder
	for _, w := range p.Warnings {
		b.WriteString("-- WARNING: " + w + "\n")
	}
	if len(p.Warnings) > 0 {
		b.WriteString("\n")
	}
	for _, g := range p.Groups {
		names := make([]string, len(g.Members))
		for i, m := range g.Members {
			names[i] = m.String()
		}
		if g.Cyclic() {
			b.WriteString("-- cycle: " + strings.Join(names, ", ") + "\n")
		} else {
			b.WriteString("-- " + names[0] + "\n")
		}
		for _, stmt := range g.Statements {
			b.WriteString(Terminate(stmt.SQL) + "\n")
		}
		b.WriteString("\n")
	}
	for _, w := range p.Withheld {
		b.WriteString(fmt.Sprintf("-- WITHHELD (%s): %s %s\n", w.Reason, w.Entry.Ref, w.Entry.Status))
		for _, stmt := range w.Entry.Statements {
			for _, line := range strings.Split(Terminate(stmt.SQL), "\n") {
				b.WriteString("-- " + line + "\n")
			}
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

// Introspector builds a snapshot of a live database.
type Introspector interface {
	Introspect(ctx context.Context, scope Scope) (*Snapshot, error)
}

// ProgressFunc receives comparison progress: done of total top-level objects and the type being compared.
type ProgressFunc func(done, total int, current ObjectType)

// DiffOptions tunes a comparison.
type DiffOptions struct {
	Filter   ObjectFilter
	Progress ProgressFunc
}

// Differ compares two snapshots.
type Differ interface {
	Compare(ctx context.Context, source, target *Snapshot, opts DiffOptions) (*ChangeSet, error)
}

// PlanOptions tunes emission.
type PlanOptions struct {
	// Unsafe includes destructive entries instead of withholding them.
	Unsafe bool
}

// Planner orders a change set into statement groups.
type Planner interface {
	Plan(cs *ChangeSet, opts PlanOptions) (*Plan, error)
}
