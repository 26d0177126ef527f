package model

import "time"

// ContactTableName is the relational table holding contact submissions.
const ContactTableName = "contact"

// ContactSubmission is one message captured by the contact form.
// Rows are append-only: the application never updates or deletes them.
type ContactSubmission struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"not null;size:200" json:"name"`
	Email     string    `gorm:"not null;size:320" json:"email"`
	Subject   string    `gorm:"not null;size:300" json:"subject"`
	Message   string    `gorm:"not null;size:5000" json:"message"`
	CreatedAt time.Time `gorm:"autoCreateTime;not null;index" json:"created_at"`
}

// TableName pins the table name for GORM.
func (ContactSubmission) TableName() string {
	return ContactTableName
}

// FieldError mirrors a rejected form field in response envelopes.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ContactEnvelope is the JSON body returned by the contact endpoint.
type ContactEnvelope struct {
	Success bool               `json:"success"`
	Message string             `json:"message"`
	Data    *ContactSubmission `json:"data,omitempty"`
	Errors  []FieldError       `json:"errors,omitempty"`
}
