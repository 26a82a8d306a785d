package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"blip/internal/app/chat"
	"blip/internal/app/db"
	"blip/internal/app/registry"
	"blip/internal/pkg/logx"
)

const (
	selectRecord  = `SELECT user_id, display_name, name_style FROM registered_users`
	selectMessage = `SELECT id::text, author_name, user_id, message, created_at FROM public_chat`

	selectSeqMessage = `SELECT seq, id::text, author_name, user_id, message, created_at FROM public_chat`
)

// Postgres implements the store views over a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool

	// cursor carries the change feed position across Listen restarts.
	cursor feedCursor

	logger zerolog.Logger
}

// NewPostgres wraps pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool, logger: logx.Component("PostgresStore")}
}

// Close closes the underlying pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

func scanRecord(row pgx.Row) (registry.Record, error) {
	var (
		rec   registry.Record
		style []byte
	)

	if err := row.Scan(&rec.UserID, &rec.DisplayName, &style); err != nil {
		return registry.Record{}, err
	}

	if len(style) > 0 {
		var ns registry.NameStyle
		if err := json.Unmarshal(style, &ns); err != nil {
			return registry.Record{}, fmt.Errorf("decode name_style of %s: %w", rec.UserID, err)
		}
		rec.NameStyle = &ns
	}

	return rec, nil
}

func (p *Postgres) lookupOne(ctx context.Context, query string, arg any) (*registry.Record, error) {
	rec, err := scanRecord(p.pool.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// LookupByName returns the record whose display name matches case-insensitively.
func (p *Postgres) LookupByName(ctx context.Context, displayName string) (*registry.Record, error) {
	rec, err := p.lookupOne(ctx, selectRecord+` WHERE lower(display_name) = lower($1)`, displayName)
	if err != nil {
		return nil, fmt.Errorf("lookup display name: %w", err)
	}
	return rec, nil
}

// LookupByUserID returns the record of userID, or nil.
func (p *Postgres) LookupByUserID(ctx context.Context, userID string) (*registry.Record, error) {
	rec, err := p.lookupOne(ctx, selectRecord+` WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("lookup user id: %w", err)
	}
	return rec, nil
}

// LookupByUserIDs returns the records of the given identities that exist.
func (p *Postgres) LookupByUserIDs(ctx context.Context, userIDs []string) (map[string]registry.Record, error) {
	rows, err := p.pool.Query(ctx, selectRecord+` WHERE user_id = ANY($1)`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("lookup user ids: %w", err)
	}
	defer rows.Close()

	out := make(map[string]registry.Record, len(userIDs))
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registered user: %w", err)
		}
		out[rec.UserID] = rec
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate registered users: %w", err)
	}
	return out, nil
}

// UpsertClaim inserts or renames the record keyed by rec.UserID. The unique index on
// lower(display_name) turns a lost race into registry.ErrNameConflict.
func (p *Postgres) UpsertClaim(ctx context.Context, rec registry.Record) (registry.Record, error) {
	var style []byte
	if rec.NameStyle != nil {
		encoded, err := json.Marshal(rec.NameStyle)
		if err != nil {
			return registry.Record{}, fmt.Errorf("encode name_style: %w", err)
		}
		style = encoded
	}

	row := p.pool.QueryRow(ctx, `
		INSERT INTO registered_users (user_id, display_name, name_style)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET display_name = EXCLUDED.display_name,
		    name_style   = EXCLUDED.name_style,
		    updated_at   = now()
		RETURNING user_id, display_name, name_style`,
		rec.UserID, rec.DisplayName, style,
	)

	saved, err := scanRecord(row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return registry.Record{}, registry.ErrNameConflict
		}
		return registry.Record{}, fmt.Errorf("upsert registered user: %w", err)
	}
	return saved, nil
}

func scanMessage(row pgx.Row) (chat.Message, error) {
	var m chat.Message
	err := row.Scan(&m.ID, &m.AuthorName, &m.UserID, &m.Message, &m.CreatedAt)
	return m, err
}

func scanSeqMessage(row pgx.Row) (seqMessage, error) {
	var r seqMessage
	err := row.Scan(&r.seq, &r.msg.ID, &r.msg.AuthorName, &r.msg.UserID, &r.msg.Message, &r.msg.CreatedAt)
	return r, err
}

// Append inserts msg. A zero CreatedAt takes the database clock.
func (p *Postgres) Append(ctx context.Context, msg chat.Message) (chat.Message, error) {
	var createdAt *time.Time
	if !msg.CreatedAt.IsZero() {
		createdAt = &msg.CreatedAt
	}

	row := p.pool.QueryRow(ctx, `
		INSERT INTO public_chat (id, author_name, user_id, message, created_at)
		VALUES ($1::uuid, $2, $3, $4, COALESCE($5::timestamptz, now()))
		RETURNING id::text, author_name, user_id, message, created_at`,
		msg.ID, msg.AuthorName, msg.UserID, msg.Message, createdAt,
	)

	saved, err := scanMessage(row)
	if err != nil {
		return chat.Message{}, fmt.Errorf("insert chat message: %w", err)
	}
	return saved, nil
}

// History returns every message ordered by created_at, then insertion order.
func (p *Postgres) History(ctx context.Context) ([]chat.Message, error) {
	rows, err := p.pool.Query(ctx, selectMessage+` ORDER BY created_at ASC, seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("query chat history: %w", err)
	}
	defer rows.Close()

	messages := make([]chat.Message, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		messages = append(messages, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat history: %w", err)
	}
	return messages, nil
}

// AuthorNameUsed reports whether any message was sent under exactly authorName.
func (p *Postgres) AuthorNameUsed(ctx context.Context, authorName string) (bool, error) {
	var used bool
	err := p.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM public_chat WHERE author_name = $1)`, authorName,
	).Scan(&used)
	if err != nil {
		return false, fmt.Errorf("check author name: %w", err)
	}
	return used, nil
}

// Listen holds one pooled connection in LISTEN mode and calls fn with every inserted row
// until ctx ends or the connection fails. A restarted Listen first replays the rows inserted
// since the last one it delivered.
func (p *Postgres) Listen(ctx context.Context, fn func(chat.Message)) error {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+db.ChatInsertChannel); err != nil {
		return fmt.Errorf("listen %s: %w", db.ChatInsertChannel, err)
	}

	defer func() {
		unlistenCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if _, err := conn.Exec(unlistenCtx, "UNLISTEN *"); err != nil {
			p.logger.Debug().Err(err).Msg("UNLISTEN failed, closing listen connection.")
			_ = conn.Conn().Close(unlistenCtx)
		}
	}()

	p.logger.Info().Str("channel", db.ChatInsertChannel).Msg("Listening for chat inserts.")

	missed, err := p.catchUp(ctx)
	if err != nil {
		return err
	}
	for _, m := range missed {
		fn(m)
	}

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("wait for notification: %w", err)
		}

		row, err := scanSeqMessage(p.pool.QueryRow(ctx, selectSeqMessage+` WHERE id = $1::uuid`, notification.Payload))
		if err != nil {
			p.logger.Error().Err(err).Str("message_id", notification.Payload).Msg("Failed to load notified message.")
			continue
		}

		if p.cursor.accept(row) {
			fn(row.msg)
		}
	}
}

// catchUp primes the feed cursor on the first listen and otherwise returns the rows inserted
// after the last delivered one. It runs after LISTEN, so a row is either replayed here or
// notified, possibly both.
func (p *Postgres) catchUp(ctx context.Context) ([]chat.Message, error) {
	last, primed := p.cursor.position()
	if !primed {
		var head int64
		if err := p.pool.QueryRow(ctx, `SELECT COALESCE(MAX(seq), 0) FROM public_chat`).Scan(&head); err != nil {
			return nil, fmt.Errorf("read chat feed position: %w", err)
		}
		p.cursor.prime(head)
		return nil, nil
	}

	rows, err := p.pool.Query(ctx, selectSeqMessage+` WHERE seq > $1 ORDER BY seq ASC`, last)
	if err != nil {
		return nil, fmt.Errorf("query missed chat messages: %w", err)
	}
	defer rows.Close()

	var missed []seqMessage
	for rows.Next() {
		row, err := scanSeqMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan missed chat message: %w", err)
		}
		missed = append(missed, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate missed chat messages: %w", err)
	}

	if len(missed) > 0 {
		p.logger.Info().Int("count", len(missed)).Int64("after_seq", last).Msg("Replaying chat inserts missed while not listening.")
	}
	return p.cursor.replay(missed), nil
}

// RecordVisit appends an entry to user_logs.
func (p *Postgres) RecordVisit(ctx context.Context, userID, ip string, at time.Time) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO user_logs (user_id, ip, created_at) VALUES ($1, $2, $3)`,
		userID, ip, at,
	)
	if err != nil {
		return fmt.Errorf("insert user log: %w", err)
	}
	return nil
}
