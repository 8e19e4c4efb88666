package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"time"
)

// QuoteLogService persists raw quote request payloads for debugging and
// audit. Logging is strictly fire-and-forget: a storage failure must never
// block or fail the pricing request it belongs to.
type QuoteLogService struct {
	DB *sql.DB
}

func NewQuoteLogService(db *sql.DB) *QuoteLogService {
	return &QuoteLogService{DB: db}
}

// LogQuoteRequest records a request payload asynchronously.
func (s *QuoteLogService) LogQuoteRequest(customerKey string, payload interface{}) {
	if s == nil || s.DB == nil {
		return
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[QuoteLog] failed to encode payload: %v", err)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var key sql.NullString
		if customerKey != "" {
			key = sql.NullString{String: customerKey, Valid: true}
		}

		_, err := s.DB.ExecContext(ctx,
			`INSERT INTO quote_requests (customer_key, payload) VALUES ($1, $2)`,
			key, encoded,
		)
		if err != nil {
			log.Printf("[QuoteLog] failed to log quote request: %v", err)
		}
	}()
}
