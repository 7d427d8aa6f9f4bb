package server

import (
	"time"

	"stockwatch/internal/cache"
	"stockwatch/internal/model"
)

// StockDTO is the REST and WebSocket representation of one tracked ticker.
// Snapshot is null while the first refresh is pending; stale marks data that
// survived a failed refresh.
type StockDTO struct {
	Ticker      string                   `json:"ticker"`
	Pending     bool                     `json:"pending"`
	Stale       bool                     `json:"stale"`
	LastError   string                   `json:"last_error,omitempty"`
	LastErrorAt string                   `json:"last_error_at,omitempty"`
	UpdatedAt   string                   `json:"updated_at,omitempty"`
	Snapshot    *model.IndicatorSnapshot `json:"snapshot"`
}

func entryDTO(e cache.Entry) StockDTO {
	dto := StockDTO{
		Ticker:    e.Ticker,
		Pending:   e.Pending(),
		Stale:     e.Stale(),
		LastError: e.LastErr,
		Snapshot:  e.Snapshot,
	}
	if !e.LastErrAt.IsZero() {
		dto.LastErrorAt = e.LastErrAt.UTC().Format(time.RFC3339)
	}
	if !e.LastSuccess.IsZero() {
		dto.UpdatedAt = e.LastSuccess.UTC().Format(time.RFC3339)
	}
	return dto
}
