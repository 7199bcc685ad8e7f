package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "github.com/doorman-labs/doorman/internal/db"
	"github.com/doorman-labs/doorman/internal/doorman/store"
	"github.com/doorman-labs/doorman/internal/doorman/types"
)

type RequestStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewRequestStore(db *sql.DB, writer *dbpkg.Worker) *RequestStore {
	return &RequestStore{db: db, writer: writer}
}

const requestColumns = `
id, token, requester_id, requester_name, channel_id, guild_id, status,
created_at_ms, expires_at_ms, approved_by, approved_at_ms,
denied_by, denied_at_ms, notice_id`

func (s *RequestStore) CreateRequest(ctx context.Context, req store.NewKnockRequest) (int64, error) {
	now := time.Now().UTC()
	createdMs := now.UnixMilli()
	expiresMs := now.Add(req.TTL).UnixMilli()

	var id int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
INSERT INTO knock_requests(
  token, requester_id, requester_name, channel_id, guild_id,
  status, created_at_ms, expires_at_ms
) VALUES (?, ?, ?, ?, ?, 'pending', ?, ?);
`, req.Token, req.RequesterID, req.RequesterName, req.ChannelID, req.GuildID,
			createdMs, expiresMs)
		if err != nil {
			return fmt.Errorf("CreateRequest insert: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("CreateRequest last id: %w", err)
		}
		return nil
	})
	return id, err
}

func (s *RequestStore) GetPending(ctx context.Context, channelID, requesterID string) (*types.KnockRequest, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT `+requestColumns+`
FROM knock_requests
WHERE channel_id = ? AND requester_id = ? AND status = 'pending'
ORDER BY created_at_ms DESC, id DESC
LIMIT 1;
`, channelID, requesterID)
	return scanRequest(row)
}

func (s *RequestStore) GetByID(ctx context.Context, id int64) (*types.KnockRequest, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT `+requestColumns+`
FROM knock_requests
WHERE id = ? AND status = 'pending';
`, id)
	return scanRequest(row)
}

func (s *RequestStore) GetByToken(ctx context.Context, token string) (*types.KnockRequest, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT `+requestColumns+`
FROM knock_requests
WHERE token = ? AND status = 'pending';
`, token)
	return scanRequest(row)
}

func (s *RequestStore) SetNoticeID(ctx context.Context, id int64, noticeID string) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
UPDATE knock_requests SET notice_id = ? WHERE id = ?;
`, noticeID, id); err != nil {
			return fmt.Errorf("SetNoticeID: %w", err)
		}
		return nil
	})
}

// Approve is the conditional update that resolves the two-approver race:
// the WHERE status = 'pending' clause lets exactly one caller win.
func (s *RequestStore) Approve(ctx context.Context, id int64, approverID string) (bool, error) {
	nowMs := time.Now().UTC().UnixMilli()

	var changed bool
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE knock_requests
SET status = 'approved', approved_by = ?, approved_at_ms = ?
WHERE id = ? AND status = 'pending';
`, approverID, nowMs, id)
		if err != nil {
			return fmt.Errorf("Approve: %w", err)
		}
		n, _ := res.RowsAffected()
		changed = n > 0
		return nil
	})
	return changed, err
}

func (s *RequestStore) Deny(ctx context.Context, id int64, denierID string) (bool, error) {
	nowMs := time.Now().UTC().UnixMilli()

	var changed bool
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE knock_requests
SET status = 'denied', denied_by = ?, denied_at_ms = ?
WHERE id = ? AND status = 'pending';
`, denierID, nowMs, id)
		if err != nil {
			return fmt.Errorf("Deny: %w", err)
		}
		n, _ := res.RowsAffected()
		changed = n > 0
		return nil
	})
	return changed, err
}

func (s *RequestStore) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	nowMs := now.UTC().UnixMilli()

	var swept int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE knock_requests
SET status = 'expired'
WHERE status = 'pending' AND expires_at_ms < ?;
`, nowMs)
		if err != nil {
			return fmt.Errorf("SweepExpired: %w", err)
		}
		swept, _ = res.RowsAffected()
		return nil
	})
	return swept, err
}

func (s *RequestStore) ListPending(ctx context.Context) ([]types.KnockRequest, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+requestColumns+`
FROM knock_requests
WHERE status = 'pending'
ORDER BY created_at_ms DESC, id DESC;
`)
	if err != nil {
		return nil, fmt.Errorf("ListPending: %w", err)
	}
	defer rows.Close()

	var out []types.KnockRequest
	for rows.Next() {
		req, err := scanRequestRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequestRow(r rowScanner) (types.KnockRequest, error) {
	var (
		req        types.KnockRequest
		status     string
		createdMs  int64
		expiresMs  int64
		approvedBy sql.NullString
		approvedMs sql.NullInt64
		deniedBy   sql.NullString
		deniedMs   sql.NullInt64
		noticeID   sql.NullString
	)
	err := r.Scan(
		&req.ID, &req.Token, &req.RequesterID, &req.RequesterName,
		&req.ChannelID, &req.GuildID, &status,
		&createdMs, &expiresMs, &approvedBy, &approvedMs,
		&deniedBy, &deniedMs, &noticeID,
	)
	if err != nil {
		return types.KnockRequest{}, err
	}

	req.Status = types.RequestStatus(status)
	req.CreatedAt = time.UnixMilli(createdMs).UTC()
	req.ExpiresAt = time.UnixMilli(expiresMs).UTC()
	req.ApprovedBy = approvedBy.String
	if approvedMs.Valid {
		t := time.UnixMilli(approvedMs.Int64).UTC()
		req.ApprovedAt = &t
	}
	req.DeniedBy = deniedBy.String
	if deniedMs.Valid {
		t := time.UnixMilli(deniedMs.Int64).UTC()
		req.DeniedAt = &t
	}
	req.NoticeID = noticeID.String
	return req, nil
}

func scanRequest(row *sql.Row) (*types.KnockRequest, error) {
	req, err := scanRequestRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan knock request: %w", err)
	}
	return &req, nil
}
