package storage

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/portfolio/internal/model"
)

// contactTableDDL creates the contact table for stores that bypass GORM.
const contactTableDDL = `CREATE TABLE IF NOT EXISTS contact (
	id BIGSERIAL PRIMARY KEY,
	name VARCHAR(200) NOT NULL,
	email VARCHAR(320) NOT NULL,
	subject VARCHAR(300) NOT NULL,
	message VARCHAR(5000) NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_contact_created_at ON contact (created_at)`

// AutoMigrate runs database migrations for the storage layer models.
func AutoMigrate(database *gorm.DB) error {
	if migrateErr := database.AutoMigrate(&model.ContactSubmission{}); migrateErr != nil {
		return fmt.Errorf("%s: %w", errorMessageMigrateDatabase, migrateErr)
	}
	return nil
}
