// Package converter переводит записи PostgreSQL в сущности domain и usecase и обратно.
package converter

import (
	"github.com/DRSN-tech/thrift-backend/internal/domain"
	"github.com/DRSN-tech/thrift-backend/internal/usecase"
	"github.com/jackc/pgx/v5/pgtype"
)

func ListingToModel(l *domain.Listing) *ListingModel {
	return &ListingModel{
		ID:             l.ID,
		Title:          l.Title,
		Condition:      l.Condition,
		Price:          l.Price,
		Currency:       l.Currency,
		Image:          l.Image,
		Platform:       string(l.Platform),
		URL:            l.URL,
		SellerUsername: optionalText(l.SellerUsername),
		SellerFeedback: optionalText(l.SellerFeedback),
		EmbeddedAt:     l.EmbeddedAt,
		CreatedAt:      l.CreatedAt,
	}
}

func ListingToEntity(m *ListingModel) *domain.Listing {
	return &domain.Listing{
		ID:             m.ID,
		Title:          m.Title,
		Condition:      m.Condition,
		Price:          m.Price,
		Currency:       m.Currency,
		Image:          m.Image,
		Platform:       domain.Platform(m.Platform),
		URL:            m.URL,
		SellerUsername: m.SellerUsername.String,
		SellerFeedback: m.SellerFeedback.String,
		EmbeddedAt:     m.EmbeddedAt,
		CreatedAt:      m.CreatedAt,
	}
}

func ClothingItemToEntity(m *ClothingItemModel) *domain.ClothingItem {
	return &domain.ClothingItem{
		ID:          m.ID,
		WardrobeID:  m.WardrobeID,
		UserID:      m.UserID,
		ImageKey:    m.ImageKey,
		Type:        domain.ParseClothingType(m.Type),
		Description: m.Description,
		EmbeddedAt:  m.EmbeddedAt,
		CreatedAt:   m.CreatedAt,
	}
}

func StyleContributionToEntity(m *StyleContributionModel) *domain.StyleContribution {
	return &domain.StyleContribution{
		UserID:    m.UserID,
		Item:      domain.ItemRef{Kind: domain.ItemKind(m.ItemKind), ID: m.ItemID},
		Seq:       m.Seq,
		Active:    m.Active,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func OutboxEventToModel(ev *usecase.OutboxEvent) *OutboxEventModel {
	return &OutboxEventModel{
		ID:          ev.ID,
		EventID:     ev.EventID,
		EventType:   string(ev.EventType),
		UserID:      ev.UserID,
		Payload:     ev.Payload,
		Status:      string(ev.Status),
		Attempts:    ev.Attempts,
		AvailableAt: ev.AvailableAt,
		LastError:   optionalText(ev.LastError),
		CreatedAt:   ev.CreatedAt,
		ProcessedAt: ev.ProcessedAt,
	}
}

func OutboxEventToEntity(m *OutboxEventModel) *usecase.OutboxEvent {
	return &usecase.OutboxEvent{
		ID:          m.ID,
		EventID:     m.EventID,
		EventType:   usecase.EventType(m.EventType),
		UserID:      m.UserID,
		Payload:     m.Payload,
		Status:      usecase.OutboxStatus(m.Status),
		Attempts:    m.Attempts,
		AvailableAt: m.AvailableAt,
		LastError:   m.LastError.String,
		CreatedAt:   m.CreatedAt,
		ProcessedAt: m.ProcessedAt,
	}
}

func OutboxEventsToEntity(models []*OutboxEventModel) []*usecase.OutboxEvent {
	out := make([]*usecase.OutboxEvent, 0, len(models))
	for _, m := range models {
		out = append(out, OutboxEventToEntity(m))
	}
	return out
}

func optionalText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}
