package converter

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// ListingModel представляет запись таблицы listings в PostgreSQL.
type ListingModel struct {
	ID             string              `db:"id"`
	Title          string              `db:"title"`
	Condition      string              `db:"condition"`
	Price          decimal.NullDecimal `db:"price"`
	Currency       string              `db:"currency"`
	Image          string              `db:"image"`
	Platform       string              `db:"platform"`
	URL            string              `db:"url"`
	SellerUsername pgtype.Text         `db:"seller_username"`
	SellerFeedback pgtype.Text         `db:"seller_feedback"`
	EmbeddedAt     *time.Time          `db:"embedded_at"`
	CreatedAt      time.Time           `db:"created_at"`
}

// ClothingItemModel представляет запись таблицы clothing_items.
type ClothingItemModel struct {
	ID          uuid.UUID  `db:"id"`
	WardrobeID  uuid.UUID  `db:"wardrobe_id"`
	UserID      string     `db:"user_id"`
	ImageKey    string     `db:"image_key"`
	Type        string     `db:"type"`
	Description string     `db:"description"`
	EmbeddedAt  *time.Time `db:"embedded_at"`
	CreatedAt   time.Time  `db:"created_at"`
}

// StyleContributionModel представляет запись таблицы style_contributions.
type StyleContributionModel struct {
	UserID    string    `db:"user_id"`
	ItemKind  string    `db:"item_kind"`
	ItemID    string    `db:"item_id"`
	Seq       int64     `db:"seq"`
	Active    bool      `db:"active"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// OutboxEventModel представляет запись таблицы outbox_events.
type OutboxEventModel struct {
	ID          int64       `db:"id"`
	EventID     uuid.UUID   `db:"event_id"`
	EventType   string      `db:"event_type"`
	UserID      string      `db:"user_id"`
	Payload     []byte      `db:"payload"`
	Status      string      `db:"status"`
	Attempts    int         `db:"attempts"`
	AvailableAt time.Time   `db:"available_at"`
	LastError   pgtype.Text `db:"last_error"`
	CreatedAt   time.Time   `db:"created_at"`
	ProcessedAt *time.Time  `db:"processed_at"`
}
