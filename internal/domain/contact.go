package domain

import "time"

type Contact struct {
	ID             string    `json:"id" db:"id"`
	FirstName      string    `json:"first_name" db:"first_name"`
	LastName       string    `json:"last_name" db:"last_name"`
	Email          string    `json:"email" db:"email"`
	Phone          *string   `json:"phone,omitempty" db:"phone"`
	Title          *string   `json:"title,omitempty" db:"title"`
	EmailType      *string   `json:"email_type,omitempty" db:"email_type"`
	ContactFormURL *string   `json:"contact_form_url,omitempty" db:"contact_form_url"`
	Department     *string   `json:"department,omitempty" db:"department"`
	FirmID         *string   `json:"firm_id,omitempty" db:"firm_id"`
	AgencyID       string    `json:"agency_id" db:"agency_id"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`

	// Название агентства, заполняется при выборке страницы контактов
	AgencyName *string `json:"agency_name,omitempty" db:"agency_name"`
}

// ContactPage представляет страницу контактов вместе со снимком квоты
type ContactPage struct {
	Contacts   []Contact `json:"contacts"`
	Total      int64     `json:"total"`
	ViewCount  int       `json:"viewCount"`
	Remaining  int       `json:"remaining"`
	Limit      int       `json:"limit"`
	Page       int       `json:"page"`
	TotalPages int       `json:"totalPages"`
}
