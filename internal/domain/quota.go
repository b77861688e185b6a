package domain

import (
	"fmt"
	"time"
)

// ContactView фиксирует факт просмотра контакта пользователем.
// На пару (user_id, contact_id) существует не более одной записи,
// повторный просмотр только обновляет viewed_at.
type ContactView struct {
	UserID    string    `json:"user_id" db:"user_id"`
	ContactID string    `json:"contact_id" db:"contact_id"`
	ViewedAt  time.Time `json:"viewed_at" db:"viewed_at"`
}

// QuotaSession отмечает начало текущего окна квоты пользователя.
// Создаётся лениво — в момент, когда пользователь впервые исчерпал лимит.
type QuotaSession struct {
	UserID      string    `json:"user_id" db:"user_id"`
	WindowStart time.Time `json:"window_start" db:"window_start"`
}

// QuotaStatus — производный снимок квоты, нигде не хранится
type QuotaStatus struct {
	ViewCount int   `json:"viewCount"`
	Remaining int   `json:"remaining"`
	CanView   bool  `json:"canView"`
	Limit     int   `json:"limit"`
	Total     int64 `json:"total"`
}

// ResetResult возвращает количество удалённых записей при сбросе квоты
type ResetResult struct {
	Views    int64 `json:"views"`
	Sessions int64 `json:"sessions"`
}

// QuotaExceededError возвращается, когда пользователь исчерпал лимит
// просмотров в текущем окне. Не является ошибкой хранилища: повтор
// запроса бесполезен до истечения окна или явного сброса.
type QuotaExceededError struct {
	Used  int
	Limit int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("contact view limit reached: %d of %d used", e.Used, e.Limit)
}
