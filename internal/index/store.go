package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/mvp-joe/phpintel/internal/symbols"
)

// DBFile is the name of the sqlite database inside the storage directory.
const DBFile = "index.db"

// store persists the class→paths map and the per-file record lists.
type store struct {
	db *sql.DB
}

// snapshot is the complete persisted state of one project.
type snapshot struct {
	locations map[string]map[string]struct{}
	files     map[string][]symbols.Record
	scanID    string
	lastScan  time.Time
}

func openStore(ctx context.Context, dir string) (*store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	// foreign keys must be enabled per connection, so they go in the DSN
	db, err := sql.Open("sqlite3", filepath.Join(dir, DBFile)+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	version, err := storedSchemaVersion(ctx, db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to check schema version: %w", err)
	}
	if version != "0" && version != schemaVersion {
		if err := dropSchema(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
	}
	if err := createSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &store{db: db}, nil
}

// currentScanID returns the id of the last saved scan, or ErrNoIndex.
func (s *store) currentScanID(ctx context.Context) (string, error) {
	var id string
	err := sq.Select("value").From("index_metadata").
		Where(sq.Eq{"key": metaScanID}).
		RunWith(s.db).QueryRowContext(ctx).Scan(&id)
	if err == sql.ErrNoRows {
		return "", ErrNoIndex
	}
	if err != nil {
		return "", fmt.Errorf("failed to query scan id: %w", err)
	}
	return id, nil
}

// read loads the full snapshot. A store that has never been saved reports
// ErrNoIndex.
func (s *store) read(ctx context.Context) (*snapshot, error) {
	snap := &snapshot{
		locations: make(map[string]map[string]struct{}),
		files:     make(map[string][]symbols.Record),
	}

	var err error
	if snap.scanID, err = s.currentScanID(ctx); err != nil {
		return nil, err
	}

	var lastScan string
	err = sq.Select("value").From("index_metadata").
		Where(sq.Eq{"key": metaLastScan}).
		RunWith(s.db).QueryRowContext(ctx).Scan(&lastScan)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to query last scan: %w", err)
	}
	snap.lastScan, _ = time.Parse(time.RFC3339, lastScan)

	rows, err := sq.Select("class", "path").From("class_locations").
		RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query class locations: %w", err)
	}
	for rows.Next() {
		var class, path string
		if err := rows.Scan(&class, &path); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan class location: %w", err)
		}
		if snap.locations[class] == nil {
			snap.locations[class] = make(map[string]struct{})
		}
		snap.locations[class][path] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate class locations: %w", err)
	}
	rows.Close()

	rows, err = sq.Select("path").From("files").RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query files: %w", err)
	}
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		snap.files[path] = nil
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate files: %w", err)
	}
	rows.Close()

	rows, err = sq.Select(
		"path", "kind", "name", "class", "flavor", "extends", "implements", "traits",
		"args", "returns", "visibility", "is_static", "start_pos", "end_pos",
	).
		From("symbols").
		OrderBy("path", "seq").
		RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r                                    symbols.Record
			kind, visibility                     string
			extends, implements, traits, argsRaw string
		)
		if err := rows.Scan(
			&r.Path, &kind, &r.Name, &r.Class, &r.Flavor, &extends, &implements, &traits,
			&argsRaw, &r.Returns, &visibility, &r.Static, &r.Offset, &r.End,
		); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		r.Kind = symbols.Kind(kind)
		r.Visibility = symbols.Visibility(visibility)
		if err := decodeList(extends, &r.Extends); err != nil {
			return nil, err
		}
		if err := decodeList(implements, &r.Implements); err != nil {
			return nil, err
		}
		if err := decodeList(traits, &r.Traits); err != nil {
			return nil, err
		}
		if err := decodeList(argsRaw, &r.Args); err != nil {
			return nil, err
		}
		snap.files[r.Path] = append(snap.files[r.Path], r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate symbols: %w", err)
	}

	return snap, nil
}

// write persists one save in a single transaction. The class locations are
// rewritten wholesale; only the files in dirty are rewritten, and dirty files
// absent from current are deleted. With prune set, every file absent from
// current is deleted.
func (s *store) write(ctx context.Context, locations map[string]map[string]struct{}, current map[string][]symbols.Record, dirty map[string]bool, prune bool) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := sq.Delete("class_locations").RunWith(tx).ExecContext(ctx); err != nil {
		return "", fmt.Errorf("failed to clear class locations: %w", err)
	}
	for _, class := range sortedKeys(locations) {
		for _, path := range sortedKeys(locations[class]) {
			_, err := sq.Insert("class_locations").
				Columns("class", "path").
				Values(class, path).
				RunWith(tx).ExecContext(ctx)
			if err != nil {
				return "", fmt.Errorf("failed to insert location %s: %w", class, err)
			}
		}
	}

	if prune {
		rows, err := sq.Select("path").From("files").RunWith(tx).QueryContext(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to query files: %w", err)
		}
		var stale []string
		for rows.Next() {
			var path string
			if err := rows.Scan(&path); err != nil {
				rows.Close()
				return "", fmt.Errorf("failed to scan file: %w", err)
			}
			if _, ok := current[path]; !ok {
				stale = append(stale, path)
			}
		}
		rows.Close()
		if len(stale) > 0 {
			if _, err := sq.Delete("symbols").Where(sq.Eq{"path": stale}).RunWith(tx).ExecContext(ctx); err != nil {
				return "", fmt.Errorf("failed to prune symbols: %w", err)
			}
			if _, err := sq.Delete("files").Where(sq.Eq{"path": stale}).RunWith(tx).ExecContext(ctx); err != nil {
				return "", fmt.Errorf("failed to prune files: %w", err)
			}
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for _, path := range sortedKeys(dirty) {
		records, ok := current[path]
		if !ok {
			if err := deleteFile(ctx, tx, path); err != nil {
				return "", err
			}
			continue
		}
		if err := writeFile(ctx, tx, path, records, now); err != nil {
			return "", err
		}
	}

	scanID := uuid.New().String()
	for key, value := range map[string]string{metaScanID: scanID, metaLastScan: now} {
		_, err := sq.Insert("index_metadata").
			Options("OR REPLACE").
			Columns("key", "value", "updated_at").
			Values(key, value, now).
			RunWith(tx).ExecContext(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to update %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}
	return scanID, nil
}

func deleteFile(ctx context.Context, tx *sql.Tx, path string) error {
	if _, err := sq.Delete("symbols").Where(sq.Eq{"path": path}).RunWith(tx).ExecContext(ctx); err != nil {
		return fmt.Errorf("failed to delete symbols of %s: %w", path, err)
	}
	if _, err := sq.Delete("files").Where(sq.Eq{"path": path}).RunWith(tx).ExecContext(ctx); err != nil {
		return fmt.Errorf("failed to delete file %s: %w", path, err)
	}
	return nil
}

func writeFile(ctx context.Context, tx *sql.Tx, path string, records []symbols.Record, now string) error {
	if err := deleteFile(ctx, tx, path); err != nil {
		return err
	}
	if _, err := sq.Insert("files").Columns("path", "scanned_at").Values(path, now).RunWith(tx).ExecContext(ctx); err != nil {
		return fmt.Errorf("failed to insert file %s: %w", path, err)
	}

	for seq, r := range records {
		_, err := sq.Insert("symbols").
			Columns(
				"path", "seq", "kind", "name", "class", "flavor", "extends", "implements", "traits",
				"args", "returns", "visibility", "is_static", "start_pos", "end_pos",
			).
			Values(
				path, seq, string(r.Kind), r.Name, r.Class, r.Flavor,
				encodeList(r.Extends), encodeList(r.Implements), encodeList(r.Traits), encodeList(r.Args),
				r.Returns, string(r.Visibility), r.Static, r.Offset, r.End,
			).
			RunWith(tx).ExecContext(ctx)
		if err != nil {
			return fmt.Errorf("failed to insert symbol %s in %s: %w", r.Name, path, err)
		}
	}
	return nil
}

func (s *store) close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

func encodeList[T any](list []T) string {
	if len(list) == 0 {
		return "[]"
	}
	data, err := json.Marshal(list)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func decodeList[T any](raw string, out *[]T) error {
	if raw == "" || raw == "[]" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("failed to decode symbol list: %w", err)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
