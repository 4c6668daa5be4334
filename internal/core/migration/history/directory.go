package history

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/satishbabariya/dbdelta/internal/adapters/storage"
	"github.com/satishbabariya/dbdelta/internal/core/migration/domain"
	"github.com/satishbabariya/dbdelta/internal/debug"
)

var migrationFilename = regexp.MustCompile(`^([0-9]+)\.([^/\\]+)\.sql$`)

// ParseFilename splits <version>.<slug>.sql into its parts.
func ParseFilename(name string) (version, slug string, err error) {
	m := migrationFilename.FindStringSubmatch(name)
	if m == nil {
		return "", "", fmt.Errorf("%w: %q (expected <version>.<slug>.sql)", domain.ErrMalformedFilename, name)
	}
	if _, err := domain.ParseVersion(m[1]); err != nil {
		return "", "", fmt.Errorf("%w: %q: %v", domain.ErrMalformedFilename, name, err)
	}
	return m[1], m[2], nil
}

// Directory is the migration file store: one immutable file per version, sorted by version.
type Directory struct {
	store storage.Storage
	path  string
	now   func() time.Time
}

// NewDirectory creates a directory view over path within store.
func NewDirectory(store storage.Storage, path string) *Directory {
	return &Directory{store: store, path: path, now: time.Now}
}

// Path returns the directory path relative to the store root.
func (d *Directory) Path() string {
	return d.path
}

func (d *Directory) file(name string) string {
	return path.Join(d.path, name)
}

// names returns the migration filenames keyed by version, validating every visible entry.
func (d *Directory) names(ctx context.Context) ([]string, error) {
	entries, err := d.store.List(ctx, d.path)
	if err != nil {
		return nil, fmt.Errorf("failed to list migrations in %s: %w", d.path, err)
	}
	seen := make(map[string]string)
	var names []string
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name, ".") {
			continue
		}
		if entry.IsDir {
			debug.Debug("skipping directory in migrations", "name", entry.Name)
			continue
		}
		version, _, err := ParseFilename(entry.Name)
		if err != nil {
			return nil, err
		}
		if other, dup := seen[version]; dup {
			return nil, fmt.Errorf("%w: %s and %s", domain.ErrDuplicateVersion, other, entry.Name)
		}
		seen[version] = entry.Name
		names = append(names, entry.Name)
	}
	sort.Strings(names)
	return names, nil
}

// List returns every migration with its body, sorted ascending by version.
func (d *Directory) List(ctx context.Context) ([]domain.MigrationRecord, error) {
	names, err := d.names(ctx)
	if err != nil {
		return nil, err
	}
	records := make([]domain.MigrationRecord, 0, len(names))
	for _, name := range names {
		rec, err := d.load(ctx, name)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (d *Directory) load(ctx context.Context, name string) (domain.MigrationRecord, error) {
	version, slug, err := ParseFilename(name)
	if err != nil {
		return domain.MigrationRecord{}, err
	}
	body, err := d.store.Read(ctx, d.file(name))
	if err != nil {
		return domain.MigrationRecord{}, fmt.Errorf("failed to read migration %s: %w", name, err)
	}
	return domain.NewMigrationRecord(version, slug, string(body)), nil
}

// Get returns the migration with the given version.
func (d *Directory) Get(ctx context.Context, version string) (domain.MigrationRecord, error) {
	names, err := d.names(ctx)
	if err != nil {
		return domain.MigrationRecord{}, err
	}
	for _, name := range names {
		if strings.HasPrefix(name, version+".") {
			return d.load(ctx, name)
		}
	}
	return domain.MigrationRecord{}, fmt.Errorf("%w: %s", domain.ErrMigrationNotFound, version)
}

// Latest returns the newest version on disk, or "" when the directory is empty.
func (d *Directory) Latest(ctx context.Context) (string, error) {
	names, err := d.names(ctx)
	if err != nil || len(names) == 0 {
		return "", err
	}
	version, _, _ := ParseFilename(names[len(names)-1])
	return version, nil
}

// Create writes a new migration. Its version is the current time, bumped by one second until it
// is strictly greater than every existing version.
func (d *Directory) Create(ctx context.Context, description, body string) (domain.MigrationRecord, error) {
	slug, err := domain.Slugify(description)
	if err != nil {
		return domain.MigrationRecord{}, err
	}
	latest, err := d.Latest(ctx)
	if err != nil {
		return domain.MigrationRecord{}, err
	}
	at := d.now().UTC().Truncate(time.Second)
	if latest != "" {
		newest, err := domain.ParseVersion(latest)
		if err != nil {
			return domain.MigrationRecord{}, err
		}
		if !at.After(newest) {
			at = newest.Add(time.Second)
		}
	}
	rec := domain.NewMigrationRecord(domain.FormatVersion(at), slug, body)
	if err := d.write(ctx, rec); err != nil {
		return domain.MigrationRecord{}, err
	}
	debug.Info("created migration", "file", rec.Filename())
	return rec, nil
}

func (d *Directory) write(ctx context.Context, rec domain.MigrationRecord) error {
	if err := d.store.MkdirAll(ctx, d.path); err != nil {
		return fmt.Errorf("failed to create migrations directory: %w", err)
	}
	if err := d.store.Write(ctx, d.file(rec.Filename()), []byte(rec.Body)); err != nil {
		return fmt.Errorf("failed to write migration %s: %w", rec.Filename(), err)
	}
	return nil
}

// Replace swaps every migration for baseline. The returned undo restores the previous files and
// is used when the ledger half of a compaction fails after the store was replaced.
func (d *Directory) Replace(ctx context.Context, baseline domain.MigrationRecord) (undo func(context.Context) error, err error) {
	names, err := d.names(ctx)
	if err != nil {
		return nil, err
	}
	backup := make(map[string][]byte, len(names))
	for _, name := range names {
		body, err := d.store.Read(ctx, d.file(name))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		backup[name] = body
	}

	undo = func(ctx context.Context) error {
		if _, existed := backup[baseline.Filename()]; !existed {
			if err := d.store.Delete(ctx, d.file(baseline.Filename())); err != nil {
				return fmt.Errorf("failed to remove baseline %s: %w", baseline.Filename(), err)
			}
		}
		for _, name := range names {
			if err := d.store.Write(ctx, d.file(name), backup[name]); err != nil {
				return fmt.Errorf("failed to restore migration %s: %w", name, err)
			}
		}
		return nil
	}

	if err := d.write(ctx, baseline); err != nil {
		return nil, err
	}
	for _, name := range names {
		if name == baseline.Filename() {
			continue
		}
		if err := d.store.Delete(ctx, d.file(name)); err != nil {
			if rerr := undo(ctx); rerr != nil {
				debug.Error("failed to restore migrations", "error", rerr)
			}
			return nil, fmt.Errorf("failed to remove migration %s: %w", name, err)
		}
	}
	return undo, nil
}
