package storage

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MarkoPoloResearchLab/portfolio/internal/model"
	"github.com/MarkoPoloResearchLab/portfolio/internal/submission"
)

const (
	errorMessageParsePgxConfig = "storage: parse pgx dsn"
	errorMessageOpenPgxPool    = "storage: open pgx pool"
	errorMessageAcquire        = "storage: acquire connection"
	errorMessageEnsureSchema   = "storage: ensure schema"

	insertContactStatement = `INSERT INTO contact (name, email, subject, message)
		VALUES ($1, $2, $3, $4)
		RETURNING id, name, email, subject, message, created_at`

	listContactsStatement = `SELECT id, name, email, subject, message, created_at
		FROM contact
		ORDER BY created_at DESC, id DESC`
)

// PgxContactStore is a ContactStore on a pgx connection pool.
type PgxContactStore struct {
	pool   *pgxpool.Pool
	closed atomic.Bool
}

var _ ContactStore = (*PgxContactStore)(nil)

// OpenPgxContactStore builds a pool from a PostgreSQL connection string.
// Connections are established lazily on first use.
func OpenPgxContactStore(ctx context.Context, dataSourceName string) (*PgxContactStore, error) {
	if dataSourceName == "" {
		return nil, ErrMissingDataSourceName
	}
	poolConfig, parseErr := pgxpool.ParseConfig(dataSourceName)
	if parseErr != nil {
		return nil, fmt.Errorf("%s: %w", errorMessageParsePgxConfig, parseErr)
	}
	pool, poolErr := pgxpool.NewWithConfig(ctx, poolConfig)
	if poolErr != nil {
		return nil, fmt.Errorf("%s: %w", errorMessageOpenPgxPool, poolErr)
	}
	return &PgxContactStore{pool: pool}, nil
}

// EnsureSchema creates the contact table when it does not exist.
func (store *PgxContactStore) EnsureSchema(ctx context.Context) error {
	return store.withConnection(ctx, func(connection *pgxpool.Conn) error {
		if _, execErr := connection.Exec(ctx, contactTableDDL); execErr != nil {
			return fmt.Errorf("%s: %w", errorMessageEnsureSchema, execErr)
		}
		return nil
	})
}

// CreateContact inserts one row with a parameterized statement.
func (store *PgxContactStore) CreateContact(ctx context.Context, record submission.Record) (model.ContactSubmission, error) {
	var contact model.ContactSubmission
	connectionErr := store.withConnection(ctx, func(connection *pgxpool.Conn) error {
		scanErr := connection.QueryRow(ctx, insertContactStatement,
			record.Name, record.Email, record.Subject, record.Message,
		).Scan(&contact.ID, &contact.Name, &contact.Email, &contact.Subject, &contact.Message, &contact.CreatedAt)
		if scanErr != nil {
			return fmt.Errorf("%s: %w", errorMessageCreateContact, scanErr)
		}
		return nil
	})
	if connectionErr != nil {
		return model.ContactSubmission{}, connectionErr
	}
	contact.CreatedAt = contact.CreatedAt.UTC()
	return contact, nil
}

// ListContacts returns every stored row, most recent first.
func (store *PgxContactStore) ListContacts(ctx context.Context) ([]model.ContactSubmission, error) {
	var contacts []model.ContactSubmission
	connectionErr := store.withConnection(ctx, func(connection *pgxpool.Conn) error {
		rows, queryErr := connection.Query(ctx, listContactsStatement)
		if queryErr != nil {
			return fmt.Errorf("%s: %w", errorMessageListContacts, queryErr)
		}
		collected, collectErr := pgx.CollectRows(rows, scanContactRow)
		if collectErr != nil {
			return fmt.Errorf("%s: %w", errorMessageListContacts, collectErr)
		}
		contacts = collected
		return nil
	})
	if connectionErr != nil {
		return nil, connectionErr
	}
	if contacts == nil {
		contacts = make([]model.ContactSubmission, 0)
	}
	return contacts, nil
}

// Ping verifies a pooled connection can reach the database.
func (store *PgxContactStore) Ping(ctx context.Context) error {
	return store.withConnection(ctx, func(connection *pgxpool.Conn) error {
		if pingErr := connection.Ping(ctx); pingErr != nil {
			return fmt.Errorf("%s: %w", errorMessagePing, pingErr)
		}
		return nil
	})
}

// Stat reports pool usage, including connections currently acquired.
func (store *PgxContactStore) Stat() *pgxpool.Stat {
	return store.pool.Stat()
}

// Close releases every pooled connection. Later calls fail with ErrStoreClosed.
func (store *PgxContactStore) Close() error {
	if store.closed.CompareAndSwap(false, true) {
		store.pool.Close()
	}
	return nil
}

// withConnection borrows one connection for the duration of operation and
// returns it to the pool on every exit path.
func (store *PgxContactStore) withConnection(ctx context.Context, operation func(*pgxpool.Conn) error) error {
	if store.closed.Load() {
		return ErrStoreClosed
	}
	connection, acquireErr := store.pool.Acquire(ctx)
	if acquireErr != nil {
		return fmt.Errorf("%s: %w", errorMessageAcquire, acquireErr)
	}
	defer connection.Release()
	return operation(connection)
}

func scanContactRow(row pgx.CollectableRow) (model.ContactSubmission, error) {
	var contact model.ContactSubmission
	scanErr := row.Scan(&contact.ID, &contact.Name, &contact.Email, &contact.Subject, &contact.Message, &contact.CreatedAt)
	contact.CreatedAt = contact.CreatedAt.UTC()
	return contact, scanErr
}
