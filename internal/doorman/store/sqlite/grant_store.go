package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "github.com/doorman-labs/doorman/internal/db"
	"github.com/doorman-labs/doorman/internal/doorman/types"
)

type GrantStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewGrantStore(db *sql.DB, writer *dbpkg.Worker) *GrantStore {
	return &GrantStore{db: db, writer: writer}
}

func (s *GrantStore) UpsertGrant(ctx context.Context, channelID, userID string, kind types.GrantKind, ttl time.Duration) error {
	now := time.Now().UTC()
	grantedMs := now.UnixMilli()

	var expiresMs any
	if ttl > 0 {
		expiresMs = now.Add(ttl).UnixMilli()
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO channel_grants(channel_id, user_id, kind, granted_at_ms, expires_at_ms)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(channel_id, user_id, kind) DO UPDATE SET
  granted_at_ms = excluded.granted_at_ms,
  expires_at_ms = excluded.expires_at_ms;
`, channelID, userID, string(kind), grantedMs, expiresMs); err != nil {
			return fmt.Errorf("UpsertGrant: %w", err)
		}
		return nil
	})
}

func (s *GrantStore) GetGrant(ctx context.Context, channelID, userID string, kind types.GrantKind) (*types.PermissionGrant, error) {
	var (
		grantedMs int64
		expiresMs sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
SELECT granted_at_ms, expires_at_ms
FROM channel_grants
WHERE channel_id = ? AND user_id = ? AND kind = ?;
`, channelID, userID, string(kind)).Scan(&grantedMs, &expiresMs)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetGrant: %w", err)
	}

	g := &types.PermissionGrant{
		ChannelID: channelID,
		UserID:    userID,
		Kind:      kind,
		GrantedAt: time.UnixMilli(grantedMs).UTC(),
	}
	if expiresMs.Valid {
		t := time.UnixMilli(expiresMs.Int64).UTC()
		g.ExpiresAt = &t
	}
	return g, nil
}

func (s *GrantStore) DeleteGrant(ctx context.Context, channelID, userID string, kind types.GrantKind) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
DELETE FROM channel_grants
WHERE channel_id = ? AND user_id = ? AND kind = ?;
`, channelID, userID, string(kind)); err != nil {
			return fmt.Errorf("DeleteGrant: %w", err)
		}
		return nil
	})
}

func (s *GrantStore) ListByChannel(ctx context.Context, channelID string) ([]types.PermissionGrant, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT user_id, kind, granted_at_ms, expires_at_ms
FROM channel_grants
WHERE channel_id = ?
ORDER BY granted_at_ms DESC;
`, channelID)
	if err != nil {
		return nil, fmt.Errorf("ListByChannel: %w", err)
	}
	defer rows.Close()

	var out []types.PermissionGrant
	for rows.Next() {
		var (
			g         types.PermissionGrant
			kind      string
			grantedMs int64
			expiresMs sql.NullInt64
		)
		if err := rows.Scan(&g.UserID, &kind, &grantedMs, &expiresMs); err != nil {
			return nil, fmt.Errorf("ListByChannel scan: %w", err)
		}
		g.ChannelID = channelID
		g.Kind = types.GrantKind(kind)
		g.GrantedAt = time.UnixMilli(grantedMs).UTC()
		if expiresMs.Valid {
			t := time.UnixMilli(expiresMs.Int64).UTC()
			g.ExpiresAt = &t
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
