package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"feed_screener/internal/model"
	"feed_screener/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// LoadSources returns all persisted sources.
func (s *SQLite) LoadSources(ctx context.Context) ([]model.Source, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, url, kind, enabled, check_interval_minutes, use_guid_dedup,
		        last_checked, next_check_at, etag, last_modified, failure_count,
		        retry_after, scrape_config, created_at
		 FROM sources ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sources []model.Source
	for rows.Next() {
		var src model.Source
		var enabled, useGUID int
		var lastChecked, nextCheck, retryAfter, scrapeJSON sql.NullString
		var created string
		err := rows.Scan(&src.ID, &src.Name, &src.URL, &src.Kind, &enabled,
			&src.CheckIntervalMinutes, &useGUID, &lastChecked, &nextCheck,
			&src.ETag, &src.LastModified, &src.FailureCount, &retryAfter,
			&scrapeJSON, &created)
		if err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		src.Enabled = enabled == 1
		src.UseGUIDDedup = useGUID == 1
		src.LastChecked = parseNullTime(lastChecked)
		src.NextCheckAt = parseNullTime(nextCheck)
		src.RetryAfter = parseNullTime(retryAfter)
		src.CreatedAt, _ = time.Parse(timeLayout, created)
		if scrapeJSON.Valid && scrapeJSON.String != "" {
			var cfg model.ScrapeConfig
			if err := json.Unmarshal([]byte(scrapeJSON.String), &cfg); err != nil {
				return nil, fmt.Errorf("decode scrape config for %s: %w", src.ID, err)
			}
			src.Scrape = &cfg
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// SaveSources replaces the persisted source list with a snapshot.
func (s *SQLite) SaveSources(ctx context.Context, sources []model.Source) error {
	return s.replaceAll(ctx, "sources", func(tx *sql.Tx) error {
		for _, src := range sources {
			var scrapeJSON sql.NullString
			if src.Scrape != nil {
				raw, err := json.Marshal(src.Scrape)
				if err != nil {
					return fmt.Errorf("encode scrape config for %s: %w", src.ID, err)
				}
				scrapeJSON = sql.NullString{String: string(raw), Valid: true}
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO sources (id, name, url, kind, enabled, check_interval_minutes,
				                      use_guid_dedup, last_checked, next_check_at, etag,
				                      last_modified, failure_count, retry_after, scrape_config, created_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				src.ID, src.Name, src.URL, string(src.Kind), boolToInt(src.Enabled),
				src.CheckIntervalMinutes, boolToInt(src.UseGUIDDedup),
				formatNullTime(src.LastChecked), formatNullTime(src.NextCheckAt),
				src.ETag, src.LastModified, src.FailureCount,
				formatNullTime(src.RetryAfter), scrapeJSON,
				src.CreatedAt.UTC().Format(timeLayout))
			if err != nil {
				return fmt.Errorf("insert source %s: %w", src.ID, err)
			}
		}
		return nil
	})
}

// LoadInterests returns all persisted interests.
func (s *SQLite) LoadInterests(ctx context.Context) ([]model.Interest, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, enabled, filters, filter_logic, search_term,
		        smart_episode_filter, download_path, created_at
		 FROM interests ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query interests: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var interests []model.Interest
	for rows.Next() {
		var in model.Interest
		var enabled, smart int
		var filtersJSON, created string
		err := rows.Scan(&in.ID, &in.Name, &enabled, &filtersJSON, &in.FilterLogic,
			&in.SearchTerm, &smart, &in.DownloadPath, &created)
		if err != nil {
			return nil, fmt.Errorf("scan interest: %w", err)
		}
		in.Enabled = enabled == 1
		in.SmartEpisodeFilter = smart == 1
		in.CreatedAt, _ = time.Parse(timeLayout, created)
		if err := json.Unmarshal([]byte(filtersJSON), &in.Filters); err != nil {
			return nil, fmt.Errorf("decode filters for %s: %w", in.ID, err)
		}
		interests = append(interests, in)
	}
	return interests, rows.Err()
}

// SaveInterests replaces the persisted interest list with a snapshot.
func (s *SQLite) SaveInterests(ctx context.Context, interests []model.Interest) error {
	return s.replaceAll(ctx, "interests", func(tx *sql.Tx) error {
		for _, in := range interests {
			filters := in.Filters
			if filters == nil {
				filters = []model.FeedFilter{}
			}
			raw, err := json.Marshal(filters)
			if err != nil {
				return fmt.Errorf("encode filters for %s: %w", in.ID, err)
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO interests (id, name, enabled, filters, filter_logic, search_term,
				                        smart_episode_filter, download_path, created_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				in.ID, in.Name, boolToInt(in.Enabled), string(raw), string(in.FilterLogic),
				in.SearchTerm, boolToInt(in.SmartEpisodeFilter), in.DownloadPath,
				in.CreatedAt.UTC().Format(timeLayout))
			if err != nil {
				return fmt.Errorf("insert interest %s: %w", in.ID, err)
			}
		}
		return nil
	})
}

// LoadSeenItems returns the persisted seen-item ledger.
func (s *SQLite) LoadSeenItems(ctx context.Context) (map[string]time.Time, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, seen_at FROM seen_items`)
	if err != nil {
		return nil, fmt.Errorf("query seen items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := make(map[string]time.Time)
	for rows.Next() {
		var key, seenAt string
		if err := rows.Scan(&key, &seenAt); err != nil {
			return nil, fmt.Errorf("scan seen item: %w", err)
		}
		t, err := time.Parse(timeLayout, seenAt)
		if err != nil {
			continue
		}
		items[key] = t
	}
	return items, rows.Err()
}

// SaveSeenItems replaces the persisted seen-item ledger with a snapshot.
func (s *SQLite) SaveSeenItems(ctx context.Context, items map[string]time.Time) error {
	return s.replaceAll(ctx, "seen_items", func(tx *sql.Tx) error {
		for key, seenAt := range items {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO seen_items (key, seen_at) VALUES (?, ?)`,
				key, seenAt.UTC().Format(timeLayout))
			if err != nil {
				return fmt.Errorf("insert seen item: %w", err)
			}
		}
		return nil
	})
}

// LoadSeenEpisodes returns the persisted seen-episode ledger.
func (s *SQLite) LoadSeenEpisodes(ctx context.Context) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT interest_id, episode_id FROM seen_episodes`)
	if err != nil {
		return nil, fmt.Errorf("query seen episodes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	episodes := make(map[string][]string)
	for rows.Next() {
		var interestID, episodeID string
		if err := rows.Scan(&interestID, &episodeID); err != nil {
			return nil, fmt.Errorf("scan seen episode: %w", err)
		}
		episodes[interestID] = append(episodes[interestID], episodeID)
	}
	return episodes, rows.Err()
}

// SaveSeenEpisodes replaces the persisted seen-episode ledger with a snapshot.
func (s *SQLite) SaveSeenEpisodes(ctx context.Context, episodes map[string][]string) error {
	return s.replaceAll(ctx, "seen_episodes", func(tx *sql.Tx) error {
		for interestID, ids := range episodes {
			for _, episodeID := range ids {
				_, err := tx.ExecContext(ctx,
					`INSERT INTO seen_episodes (interest_id, episode_id) VALUES (?, ?)`,
					interestID, episodeID)
				if err != nil {
					return fmt.Errorf("insert seen episode: %w", err)
				}
			}
		}
		return nil
	})
}

// LoadBadItems returns all persisted bad items.
func (s *SQLite) LoadBadItems(ctx context.Context) ([]model.BadItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT info_hash, title, interest_id, interest_name, marked_at, reason
		 FROM bad_items ORDER BY marked_at`)
	if err != nil {
		return nil, fmt.Errorf("query bad items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []model.BadItem
	for rows.Next() {
		var item model.BadItem
		var markedAt string
		err := rows.Scan(&item.InfoHash, &item.Title, &item.InterestID,
			&item.InterestName, &markedAt, &item.Reason)
		if err != nil {
			return nil, fmt.Errorf("scan bad item: %w", err)
		}
		item.MarkedAt, _ = time.Parse(timeLayout, markedAt)
		items = append(items, item)
	}
	return items, rows.Err()
}

// SaveBadItems replaces the persisted bad-item list with a snapshot.
func (s *SQLite) SaveBadItems(ctx context.Context, items []model.BadItem) error {
	return s.replaceAll(ctx, "bad_items", func(tx *sql.Tx) error {
		for _, item := range items {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO bad_items (info_hash, title, interest_id, interest_name, marked_at, reason)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				item.InfoHash, item.Title, item.InterestID, item.InterestName,
				item.MarkedAt.UTC().Format(timeLayout), item.Reason)
			if err != nil {
				return fmt.Errorf("insert bad item: %w", err)
			}
		}
		return nil
	})
}

// replaceAll clears a table and repopulates it inside one transaction.
func (s *SQLite) replaceAll(ctx context.Context, table string, insert func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}
	if err := insert(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func parseNullTime(v sql.NullString) *time.Time {
	if !v.Valid || v.String == "" {
		return nil
	}
	t, err := time.Parse(timeLayout, v.String)
	if err != nil {
		return nil
	}
	return &t
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timeLayout), Valid: true}
}
