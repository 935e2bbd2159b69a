package domain

import "time"

type OutboxMessageStatus string

const (
	OutboxStatusPending OutboxMessageStatus = "PENDING"
	OutboxStatusSent    OutboxMessageStatus = "SENT"
)

// OutboxMessage is an event awaiting publication to Kafka, written in
// the same transaction as the ledger change it reports.
type OutboxMessage struct {
	ID        string
	Topic     string
	Key       string
	Payload   []byte
	Status    OutboxMessageStatus
	CreatedAt time.Time
	SentAt    *time.Time
}
