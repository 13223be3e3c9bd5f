// Package state persists download and resolution history in SQLite.
package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/modelink/modelink/pkg/core"
)

// Store is the SQLite-backed history store.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens the database at path, ":memory:" included, and runs any
// pending migrations.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite database: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DownloadRecord is one row of download history.
type DownloadRecord struct {
	ID              string
	URL             string
	Filename        string
	Category        string
	TargetPath      string
	State           core.JobState
	BytesDownloaded int64
	BytesTotal      int64
	Error           string
	StartedAt       time.Time
	FinishedAt      time.Time
}

// RecordDownload persists a terminal download job snapshot.
func (s *Store) RecordDownload(job core.DownloadJob) error {
	if !job.State.Terminal() {
		return fmt.Errorf("refusing to record non-terminal job %s in state %s", job.ID, job.State)
	}
	var errMsg *string
	if job.Error != "" {
		errMsg = &job.Error
	}
	_, err := s.db.Exec(
		`INSERT INTO downloads (id, url, filename, category, target_path, state,
		   bytes_downloaded, bytes_total, error, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.URL, job.Filename, job.Category, job.TargetPath, job.State,
		job.BytesDownloaded, job.BytesTotal, errMsg, job.StartedAt.UTC(), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording download: %w", err)
	}
	return nil
}

// ListRecentDownloads returns history rows, newest first.
func (s *Store) ListRecentDownloads(limit int) ([]DownloadRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, url, filename, category, target_path, state,
		   bytes_downloaded, bytes_total, error, started_at, finished_at
		 FROM downloads ORDER BY finished_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing downloads: %w", err)
	}
	defer rows.Close()

	var out []DownloadRecord
	for rows.Next() {
		var r DownloadRecord
		var errMsg sql.NullString
		if err := rows.Scan(&r.ID, &r.URL, &r.Filename, &r.Category, &r.TargetPath,
			&r.State, &r.BytesDownloaded, &r.BytesTotal, &errMsg, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("scanning download row: %w", err)
		}
		if errMsg.Valid {
			r.Error = errMsg.String
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ResolutionRecord is one row of resolution history.
type ResolutionRecord struct {
	ID           string
	OriginalPath string
	Category     string
	ResolvedPath string
	NodeID       int
	WidgetIndex  int
	SubgraphID   string
	ResolvedAt   time.Time
}

// RecordResolution persists one applied graph patch.
func (s *Store) RecordResolution(ref core.ModelReference, resolvedPath string) error {
	var sg *string
	if ref.SubgraphID != "" {
		sg = &ref.SubgraphID
	}
	_, err := s.db.Exec(
		`INSERT INTO resolutions (id, original_path, category, resolved_path,
		   node_id, widget_index, subgraph_id, resolved_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), ref.OriginalPath, ref.Category, resolvedPath,
		ref.NodeID, ref.WidgetIndex, sg, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording resolution: %w", err)
	}
	return nil
}

// ListRecentResolutions returns resolution history, newest first.
func (s *Store) ListRecentResolutions(limit int) ([]ResolutionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, original_path, category, resolved_path, node_id, widget_index,
		   subgraph_id, resolved_at
		 FROM resolutions ORDER BY resolved_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing resolutions: %w", err)
	}
	defer rows.Close()

	var out []ResolutionRecord
	for rows.Next() {
		var r ResolutionRecord
		var sg sql.NullString
		if err := rows.Scan(&r.ID, &r.OriginalPath, &r.Category, &r.ResolvedPath,
			&r.NodeID, &r.WidgetIndex, &sg, &r.ResolvedAt); err != nil {
			return nil, fmt.Errorf("scanning resolution row: %w", err)
		}
		if sg.Valid {
			r.SubgraphID = sg.String
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
