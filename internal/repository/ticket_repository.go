package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/ticket-gate/internal/model"
)

// TicketRepo provides data access to the tickets table. Uniqueness of
// ticket_number and of (id_card_number, event) is enforced by unique
// indexes; the check-in transition is a single conditional UPDATE so
// concurrent scanners from any number of processes are serialized by
// MySQL row locking. All timestamps are stored in UTC.
type TicketRepo struct {
	db *sql.DB
}

// NewTicketRepo returns a new TicketRepo bound to the given database.
func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

// DB exposes the underlying database handle.
func (r *TicketRepo) DB() *sql.DB { return r.db }

const ticketColumns = `ticket_id, ticket_number, name, id_card_number, date_of_birth, phone_number,
        event, used, scanned_at, scanned_by, created_at, updated_at`

// Unique index names from the schema; used to tell duplicate keys apart.
const (
	idxTicketNumber   = "uq_tickets_number"
	idxTicketIdentity = "uq_tickets_identity_event"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(s rowScanner) (*model.Ticket, error) {
	var (
		t         model.Ticket
		scannedAt sql.NullTime
		scannedBy sql.NullInt64
	)
	if err := s.Scan(&t.TicketID, &t.TicketNumber, &t.Name, &t.IDCardNumber, &t.DateOfBirth,
		&t.PhoneNumber, &t.Event, &t.Used, &scannedAt, &scannedBy, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	if scannedAt.Valid {
		at := scannedAt.Time.UTC()
		t.ScannedAt = &at
	}
	if scannedBy.Valid {
		by := uint64(scannedBy.Int64)
		t.ScannedBy = &by
	}
	return &t, nil
}

// duplicateKey maps a MySQL 1062 error to ErrDuplicateNumber or
// ErrConflict depending on the violated index. Other errors pass through.
func duplicateKey(err error) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == 1062 {
		if strings.Contains(me.Message, idxTicketNumber) {
			return ErrDuplicateNumber
		}
		return ErrConflict
	}
	return err
}

// Insert stores a new ticket. CreatedAt and UpdatedAt are set when zero.
// The row is committed by the single INSERT statement, so a failure
// leaves nothing behind.
func (r *TicketRepo) Insert(ctx context.Context, t *model.Ticket) error {
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}
	const q = `INSERT INTO tickets (ticket_id, ticket_number, name, id_card_number, date_of_birth,
        phone_number, event, used, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, FALSE, ?, ?)`
	_, err := r.db.ExecContext(ctx, q, t.TicketID, t.TicketNumber, t.Name, t.IDCardNumber,
		t.DateOfBirth, t.PhoneNumber, t.Event, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return unavailable("insert ticket", duplicateKey(err))
	}
	return nil
}

// Get fetches a ticket by id. Returns ErrNotFound when absent.
func (r *TicketRepo) Get(ctx context.Context, ticketID string) (*model.Ticket, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE ticket_id = ? LIMIT 1`, ticketID)
	t, err := scanTicket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, unavailable("get ticket", err)
	}
	return t, nil
}

// IdentityExists reports whether a ticket other than excludeID already
// holds the (idCard, event) pair.
func (r *TicketRepo) IdentityExists(ctx context.Context, idCard, event, excludeID string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tickets WHERE id_card_number = ? AND event = ? AND ticket_id <> ?`,
		idCard, event, excludeID).Scan(&n)
	if err != nil {
		return false, unavailable("identity lookup", err)
	}
	return n > 0, nil
}

// MarkUsed performs the check-in compare-and-set: it sets used,
// scanned_at and scanned_by in one statement that only matches while
// used is still false. It returns false when another caller won, or
// when the ticket no longer exists; callers re-read to tell them apart.
func (r *TicketRepo) MarkUsed(ctx context.Context, ticketID string, at time.Time, by uint64) (bool, error) {
	const q = `UPDATE tickets SET used = TRUE, scanned_at = ?, scanned_by = ?, updated_at = ?
        WHERE ticket_id = ? AND used = FALSE`
	res, err := r.db.ExecContext(ctx, q, at.UTC(), by, at.UTC(), ticketID)
	if err != nil {
		return false, unavailable("mark used", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, unavailable("mark used", err)
	}
	return n == 1, nil
}

// Query returns tickets matching f ordered by ticket number.
func (r *TicketRepo) Query(ctx context.Context, f model.TicketFilter) ([]model.Ticket, error) {
	var (
		where []string
		args  []any
	)
	if f.Used != nil {
		where = append(where, "used = ?")
		args = append(args, *f.Used)
	}
	if f.Event != "" {
		where = append(where, "event = ?")
		args = append(args, f.Event)
	}
	if f.ScannedBy != nil {
		where = append(where, "scanned_by = ?")
		args = append(args, *f.ScannedBy)
	}
	if f.ScannedFrom != nil {
		where = append(where, "scanned_at >= ?")
		args = append(args, f.ScannedFrom.UTC())
	}
	if f.ScannedTo != nil {
		where = append(where, "scanned_at < ?")
		args = append(args, f.ScannedTo.UTC())
	}
	q := `SELECT ` + ticketColumns + ` FROM tickets`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY LENGTH(ticket_number), ticket_number"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, unavailable("query tickets", err)
	}
	defer rows.Close()
	out := []model.Ticket{}
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, unavailable("scan ticket", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("query tickets", err)
	}
	return out, nil
}

// Update applies a constrained administrative patch inside a transaction
// that locks the row. Check-in columns are never written here.
func (r *TicketRepo) Update(ctx context.Context, ticketID string, p model.TicketPatch) (*model.Ticket, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, unavailable("begin update", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	row := tx.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE ticket_id = ? FOR UPDATE`, ticketID)
	t, err := scanTicket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, unavailable("lock ticket", err)
	}
	p.Apply(t)
	t.UpdatedAt = time.Now().UTC()

	const q = `UPDATE tickets SET name = ?, id_card_number = ?, date_of_birth = ?, phone_number = ?,
        event = ?, updated_at = ? WHERE ticket_id = ?`
	if _, err := tx.ExecContext(ctx, q, t.Name, t.IDCardNumber, t.DateOfBirth, t.PhoneNumber,
		t.Event, t.UpdatedAt, ticketID); err != nil {
		return nil, unavailable("update ticket", duplicateKey(err))
	}
	if err := tx.Commit(); err != nil {
		return nil, unavailable("commit update", err)
	}
	committed = true
	return t, nil
}

// Delete removes a single ticket. Returns ErrNotFound when absent.
func (r *TicketRepo) Delete(ctx context.Context, ticketID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tickets WHERE ticket_id = ?`, ticketID)
	if err != nil {
		return unavailable("delete ticket", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("delete ticket", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAll removes every ticket and returns how many rows were deleted.
// The ticket sequence is untouched so numbers are never reissued.
func (r *TicketRepo) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tickets`)
	if err != nil {
		return 0, unavailable("delete all tickets", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, unavailable("delete all tickets", err)
	}
	return n, nil
}

// MaxSequence returns the highest numeric ticket_number, or 0 when the
// table is empty. Used to seed external counters.
func (r *TicketRepo) MaxSequence(ctx context.Context) (uint64, error) {
	var n sql.NullInt64
	err := r.db.QueryRowContext(ctx, `SELECT MAX(CAST(ticket_number AS UNSIGNED)) FROM tickets`).Scan(&n)
	if err != nil {
		return 0, unavailable("max ticket number", err)
	}
	if !n.Valid {
		return 0, nil
	}
	return uint64(n.Int64), nil
}
