package contact

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"contact-service/internal/metrics"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

const tableName = "contacts"

var uniqueColumns = []string{"nickname", "phone", "email"}

type Repository interface {
	Create(ctx context.Context, contact *Contact) (int64, error)
	GetByID(ctx context.Context, id int64) (*Contact, error)
	// FindConflicts returns the records sharing nickname, phone or email.
	FindConflicts(ctx context.Context, nickname, phone, email string) ([]Contact, error)
}

type repository struct {
	db      *bun.DB
	metrics *metrics.Metrics
}

func NewRepository(db *bun.DB, m *metrics.Metrics) Repository {
	return &repository{
		db:      db,
		metrics: m,
	}
}

func (r *repository) Create(ctx context.Context, contact *Contact) (int64, error) {
	if contact.CreatedAt.IsZero() {
		contact.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	}

	start := time.Now()
	_, err := r.db.NewInsert().Model(contact).Returning("id").Exec(ctx)

	r.metrics.Database.RecordQuery(ctx, "insert", tableName, time.Since(start), err)

	if err != nil {
		if field, ok := uniqueViolation(err); ok {
			return 0, &duplicateError{Field: field, Err: err}
		}
		return 0, &StoreError{Op: "insert", Err: err}
	}
	return contact.ID, nil
}

func (r *repository) GetByID(ctx context.Context, id int64) (*Contact, error) {
	start := time.Now()
	contact := new(Contact)
	err := r.db.NewSelect().Model(contact).Where("id = ?", id).Scan(ctx)

	r.metrics.Database.RecordQuery(ctx, "select", tableName, time.Since(start), err)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, &StoreError{Op: "select", Err: err}
	}
	return contact, nil
}

func (r *repository) FindConflicts(ctx context.Context, nickname, phone, email string) ([]Contact, error) {
	start := time.Now()
	var contacts []Contact
	err := r.db.NewSelect().
		Model(&contacts).
		WhereOr("nickname = ?", nickname).
		WhereOr("phone = ?", phone).
		WhereOr("email = ?", email).
		Limit(len(uniqueColumns)).
		Scan(ctx)

	r.metrics.Database.RecordQuery(ctx, "select", tableName, time.Since(start), err)

	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, &StoreError{Op: "select", Err: err}
	}
	return contacts, nil
}

// uniqueViolation reports whether err is a unique-constraint failure and,
// when the driver says so, on which column.
func uniqueViolation(err error) (string, bool) {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		if pgErr.Field('C') != "23505" {
			return "", false
		}
		// constraint names look like contacts_nickname_key
		if col := columnIn(pgErr.Field('n')); col != "" {
			return col, true
		}
		return columnIn(pgErr.Field('D')), true
	}

	// SQLite: "UNIQUE constraint failed: contacts.nickname"
	msg := err.Error()
	idx := strings.Index(msg, "UNIQUE constraint failed")
	if idx < 0 {
		return "", false
	}
	return columnIn(msg[idx:]), true
}

func columnIn(s string) string {
	for _, col := range uniqueColumns {
		if strings.Contains(s, col) {
			return col
		}
	}
	return ""
}
