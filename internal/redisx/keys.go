package redisx

import "time"

const (
	// Idempotency of order submission: idem:order:submit:{telegram_id}:{key} -> record JSON
	KeyIdemOrderSubmit = "idem:order:submit:%d:%s"

	// Dedup of consumed events: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLPending     = 30 * time.Second
	TTLDedup       = 48 * time.Hour
)
