package domain

import "time"

type Agency struct {
	ID         string    `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	State      *string   `json:"state,omitempty" db:"state"`
	StateCode  *string   `json:"state_code,omitempty" db:"state_code"`
	Type       *string   `json:"type,omitempty" db:"type"`
	Population *string   `json:"population,omitempty" db:"population"`
	Website    *string   `json:"website,omitempty" db:"website"`
	Phone      *string   `json:"phone,omitempty" db:"phone"`
	County     *string   `json:"county,omitempty" db:"county"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`

	// Количество контактов агентства, заполняется при выборке списка
	ContactCount int64 `json:"contact_count" db:"contact_count"`
}

// AgencyPage представляет страницу списка агентств
type AgencyPage struct {
	Agencies   []Agency `json:"agencies"`
	Total      int64    `json:"total"`
	Page       int      `json:"page"`
	TotalPages int      `json:"totalPages"`
}
