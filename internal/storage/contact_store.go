package storage

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/portfolio/internal/model"
	"github.com/MarkoPoloResearchLab/portfolio/internal/submission"
)

const (
	errorMessageCreateContact = "storage: create contact"
	errorMessageListContacts  = "storage: list contacts"
	errorMessagePing          = "storage: ping"

	contactListOrder = "created_at desc, id desc"
)

// ErrStoreClosed indicates an operation on a store whose pool was released.
var ErrStoreClosed = errors.New("storage: store closed")

// ContactStore persists contact submissions. Implementations are safe for
// concurrent use; each call borrows a pooled connection and returns it
// before the call completes.
type ContactStore interface {
	CreateContact(ctx context.Context, record submission.Record) (model.ContactSubmission, error)
	ListContacts(ctx context.Context) ([]model.ContactSubmission, error)
	Ping(ctx context.Context) error
	Close() error
}

// GormContactStore is the GORM-backed ContactStore used for SQLite and PostgreSQL.
type GormContactStore struct {
	database *gorm.DB
}

var _ ContactStore = (*GormContactStore)(nil)

// NewGormContactStore wraps an opened and migrated GORM database.
func NewGormContactStore(database *gorm.DB) *GormContactStore {
	return &GormContactStore{database: database}
}

// Database exposes the underlying GORM handle.
func (store *GormContactStore) Database() *gorm.DB {
	return store.database
}

// CreateContact inserts one row in a single statement and returns it with the
// generated id and creation time.
func (store *GormContactStore) CreateContact(ctx context.Context, record submission.Record) (model.ContactSubmission, error) {
	contact := model.ContactSubmission{
		Name:    record.Name,
		Email:   record.Email,
		Subject: record.Subject,
		Message: record.Message,
	}
	if createErr := store.database.WithContext(ctx).Create(&contact).Error; createErr != nil {
		return model.ContactSubmission{}, fmt.Errorf("%s: %w", errorMessageCreateContact, createErr)
	}
	return contact, nil
}

// ListContacts returns every stored row, most recent first.
func (store *GormContactStore) ListContacts(ctx context.Context) ([]model.ContactSubmission, error) {
	contacts := make([]model.ContactSubmission, 0)
	if findErr := store.database.WithContext(ctx).Order(contactListOrder).Find(&contacts).Error; findErr != nil {
		return nil, fmt.Errorf("%s: %w", errorMessageListContacts, findErr)
	}
	return contacts, nil
}

// Ping verifies the pool can reach the database.
func (store *GormContactStore) Ping(ctx context.Context) error {
	sqlDatabase, sqlErr := store.database.DB()
	if sqlErr != nil {
		return fmt.Errorf("%s: %w", errorMessagePing, sqlErr)
	}
	if pingErr := sqlDatabase.PingContext(ctx); pingErr != nil {
		return fmt.Errorf("%s: %w", errorMessagePing, pingErr)
	}
	return nil
}

// Close releases the connection pool.
func (store *GormContactStore) Close() error {
	sqlDatabase, sqlErr := store.database.DB()
	if sqlErr != nil {
		return sqlErr
	}
	return sqlDatabase.Close()
}
