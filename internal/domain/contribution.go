package domain

import "time"

// StyleContribution фиксирует, что вещь уже учтена в style-векторе пользователя.
// Seq — версия вектора, которую дала запись этого вклада; задаёт порядок при пересборке.
type StyleContribution struct {
	UserID    string
	Item      ItemRef
	Seq       int64
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewStyleContribution(userID string, item ItemRef, seq int64) *StyleContribution {
	return &StyleContribution{
		UserID: userID,
		Item:   item,
		Seq:    seq,
		Active: true,
	}
}
