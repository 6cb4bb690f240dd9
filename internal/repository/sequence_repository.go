package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
)

// TicketSequenceKey names the counter that feeds ticket numbers.
const TicketSequenceKey = "tickets"

// SequenceRepo allocates numbers from the ticket_sequences table. Each
// allocation is one upsert that increments the row and hands the new
// value back through LAST_INSERT_ID, so MySQL serializes concurrent
// callers on the counter row and no two callers can observe the same
// value. Values consumed by a creation that later fails are simply
// skipped.
type SequenceRepo struct {
	db *sql.DB
}

// NewSequenceRepo returns a SequenceRepo bound to db.
func NewSequenceRepo(db *sql.DB) *SequenceRepo { return &SequenceRepo{db: db} }

const nextSequenceQuery = `INSERT INTO ticket_sequences (name, value) VALUES (?, LAST_INSERT_ID(1))
        ON DUPLICATE KEY UPDATE value = LAST_INSERT_ID(value + 1)`

// Next increments the named counter and returns its new value.
func (r *SequenceRepo) Next(ctx context.Context, key string) (uint64, error) {
	res, err := r.db.ExecContext(ctx, nextSequenceQuery, key)
	if err != nil {
		if retryable(err) {
			return 0, fmt.Errorf("%w: %v", ErrSequenceConflict, err)
		}
		return 0, unavailable("next sequence", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, unavailable("next sequence", err)
	}
	if id <= 0 {
		return 0, fmt.Errorf("%w: counter %q returned %d", ErrSequenceConflict, key, id)
	}
	return uint64(id), nil
}

// Current returns the stored value of the named counter, 0 when the
// counter has never been used.
func (r *SequenceRepo) Current(ctx context.Context, key string) (uint64, error) {
	var v uint64
	err := r.db.QueryRowContext(ctx, `SELECT value FROM ticket_sequences WHERE name = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, unavailable("read sequence", err)
	}
	return v, nil
}

const raiseSequenceQuery = `INSERT INTO ticket_sequences (name, value) VALUES (?, ?)
	ON DUPLICATE KEY UPDATE value = GREATEST(value, ?)`

// Raise moves the named counter up to v. A counter already at or above v
// is left alone.
func (r *SequenceRepo) Raise(ctx context.Context, key string, v uint64) error {
	if _, err := r.db.ExecContext(ctx, raiseSequenceQuery, key, v, v); err != nil {
		return unavailable("raise sequence", err)
	}
	return nil
}

// retryable reports MySQL deadlock and lock wait timeout errors.
func retryable(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1213 || me.Number == 1205
	}
	return false
}

// HighWater is a durable copy of a counter that only moves up.
// SequenceRepo and MemTicketRepo implement it.
type HighWater interface {
	Current(ctx context.Context, key string) (uint64, error)
	Raise(ctx context.Context, key string, v uint64) error
}

// IssuedNumbers reports the highest ticket number still stored.
type IssuedNumbers interface {
	MaxSequence(ctx context.Context) (uint64, error)
}

// RedisSequence allocates numbers with INCR, which Redis executes
// atomically for every client of the same server. Every allocated value
// is also recorded in mark, so the counter survives a Redis restart even
// when the tickets that used the highest numbers have been deleted.
type RedisSequence struct {
	rdb    *redis.Client
	prefix string
	mark   HighWater
}

// NewRedisSequence returns a Redis backed allocator. Keys are stored as
// prefix + ":" + counter name.
func NewRedisSequence(rdb *redis.Client, prefix string, mark HighWater) *RedisSequence {
	if prefix == "" {
		prefix = "seq"
	}
	return &RedisSequence{rdb: rdb, prefix: prefix, mark: mark}
}

func (s *RedisSequence) key(name string) string { return s.prefix + ":" + name }

// Next increments the named counter and returns its new value.
func (s *RedisSequence) Next(ctx context.Context, key string) (uint64, error) {
	n, err := s.rdb.Incr(ctx, s.key(key)).Result()
	if err != nil {
		return 0, unavailable("redis incr", err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%w: counter %q returned %d", ErrSequenceConflict, key, n)
	}
	// A value that did not reach the mark is dropped, never handed out.
	if err := s.mark.Raise(ctx, key, uint64(n)); err != nil {
		return 0, err
	}
	return uint64(n), nil
}

const raiseFloorScript = `
local cur = tonumber(redis.call('GET', KEYS[1]) or '0')
local floor = tonumber(ARGV[1])
if cur < floor then
    redis.call('SET', KEYS[1], floor)
    return floor
end
return cur
`

// EnsureAtLeast raises the counter to floor if it is currently lower and
// returns the resulting value.
func (s *RedisSequence) EnsureAtLeast(ctx context.Context, key string, floor uint64) (uint64, error) {
	v, err := s.rdb.Eval(ctx, raiseFloorScript, []string{s.key(key)}, floor).Int64()
	if err != nil {
		return 0, unavailable("redis raise floor", err)
	}
	return uint64(v), nil
}

// Restore brings the Redis counter up to the highest value ever handed
// out: the durable mark or the highest stored ticket number, whichever is
// larger. The mark is then raised to the Redis value in case Redis was
// ahead of it. Run once at startup before serving.
func (s *RedisSequence) Restore(ctx context.Context, key string, issued IssuedNumbers) (uint64, error) {
	floor, err := s.mark.Current(ctx, key)
	if err != nil {
		return 0, err
	}
	top, err := issued.MaxSequence(ctx)
	if err != nil {
		return 0, err
	}
	v, err := s.EnsureAtLeast(ctx, key, max(floor, top))
	if err != nil {
		return 0, err
	}
	if err := s.mark.Raise(ctx, key, v); err != nil {
		return 0, err
	}
	return v, nil
}
