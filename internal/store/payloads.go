package store

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// Get returns the cached payload for key if it has not expired.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	hash := keyHash(key)

	var compressed []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT payload_compressed FROM payload_cache
		WHERE key_hash = ? AND expires_at > ?
	`, hash, s.clock.Now().UnixMilli()).Scan(&compressed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("select payload: %w", err)
	}

	payload, err := decompress(compressed)
	if err != nil {
		return nil, false, err
	}

	if _, err := s.db.ExecContext(ctx, `
		UPDATE payload_cache SET hits = hits + 1, last_hit_at = ? WHERE key_hash = ?
	`, s.clock.Now().UTC(), hash); err != nil {
		return nil, false, fmt.Errorf("record hit: %w", err)
	}

	return payload, true, nil
}

// Set stores a gzip-compressed payload under key for ttl.
func (s *Store) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(payload); err != nil {
		return fmt.Errorf("compress payload: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("close gzip: %w", err)
	}

	now := s.clock.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payload_cache (key_hash, cache_key, endpoint, payload_compressed, payload_size, fetched_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key_hash) DO UPDATE SET
			payload_compressed = excluded.payload_compressed,
			payload_size = excluded.payload_size,
			fetched_at = excluded.fetched_at,
			expires_at = excluded.expires_at,
			hits = 0
	`, keyHash(key), key, endpointOf(key), buf.Bytes(), len(payload), now.UTC(), now.Add(ttl).UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert payload: %w", err)
	}
	return nil
}

// PurgeExpired deletes expired payloads and returns how many were removed.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM payload_cache WHERE expires_at <= ?`, s.clock.Now().UnixMilli())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// PayloadStats contains storage statistics for cached payloads.
type PayloadStats struct {
	TotalCount          int
	TotalSizeBytes      int64
	TotalCompressedSize int64
	TotalHits           int64
	CountByEndpoint     map[string]int
}

func (s *Store) Stats(ctx context.Context) (*PayloadStats, error) {
	stats := &PayloadStats{CountByEndpoint: make(map[string]int)}

	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(payload_size), 0),
		       COALESCE(SUM(LENGTH(payload_compressed)), 0), COALESCE(SUM(hits), 0)
		FROM payload_cache
	`)
	if err := row.Scan(&stats.TotalCount, &stats.TotalSizeBytes, &stats.TotalCompressedSize, &stats.TotalHits); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT endpoint, COUNT(*) FROM payload_cache GROUP BY endpoint`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var endpoint string
		var count int
		if err := rows.Scan(&endpoint, &count); err != nil {
			return nil, err
		}
		stats.CountByEndpoint[endpoint] = count
	}
	return stats, rows.Err()
}

func keyHash(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// endpointOf returns the prefix of keys shaped like "archive:https://...".
func endpointOf(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return "unknown"
}

func decompress(compressed []byte) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("create gzip reader: %w", err)
	}
	defer gz.Close()

	return io.ReadAll(gz)
}
