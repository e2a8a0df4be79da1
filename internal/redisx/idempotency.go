package redisx

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

var (
	ErrInFlight  = errors.New("request with this idempotency key is still in flight")
	ErrKeyReused = errors.New("idempotency key was already used with a different request")
)

// record is what a key holds: a pending claim or the stored confirmation,
// always alongside the fingerprint of the request that claimed it.
type record struct {
	Fingerprint string          `json:"fp"`
	Pending     bool            `json:"pending,omitempty"`
	Response    json.RawMessage `json:"response,omitempty"`
}

// Idempotency remembers the confirmation returned for a client-supplied key
// so a retried submission does not place a second order. Keys are scoped to
// the submitter.
type Idempotency struct {
	RDB redis.Cmdable
}

// Fingerprint hashes a canonical encoding of a request.
func Fingerprint(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func idemKey(owner int64, key string) string {
	return fmt.Sprintf(KeyIdemOrderSubmit, owner, key)
}

// Claim reserves key for a new submission by owner. When the key already holds
// a stored confirmation for the same fingerprint it is returned with
// claimed=false; a different fingerprint yields ErrKeyReused.
func (i *Idempotency) Claim(ctx context.Context, owner int64, key, fingerprint string) (stored []byte, claimed bool, err error) {
	k := idemKey(owner, key)
	pending, _ := json.Marshal(record{Fingerprint: fingerprint, Pending: true})
	ok, err := i.RDB.SetNX(ctx, k, pending, TTLPending).Result()
	if err != nil {
		return nil, false, err
	}
	if ok {
		return nil, true, nil
	}
	val, err := i.RDB.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET; let the caller retry
		return nil, false, ErrInFlight
	}
	if err != nil {
		return nil, false, err
	}
	var rec record
	if err := json.Unmarshal(val, &rec); err != nil {
		return nil, false, fmt.Errorf("decode idempotency record: %w", err)
	}
	switch {
	case rec.Fingerprint != fingerprint:
		return nil, false, ErrKeyReused
	case rec.Pending:
		return nil, false, ErrInFlight
	}
	return rec.Response, false, nil
}

// Complete stores the confirmation for key.
func (i *Idempotency) Complete(ctx context.Context, owner int64, key, fingerprint string, confirmation []byte) error {
	b, err := json.Marshal(record{Fingerprint: fingerprint, Response: confirmation})
	if err != nil {
		return err
	}
	return i.RDB.Set(ctx, idemKey(owner, key), b, TTLIdempotency).Err()
}

// Release drops a pending claim so the client can retry after a failure.
func (i *Idempotency) Release(ctx context.Context, owner int64, key string) error {
	return i.RDB.Del(ctx, idemKey(owner, key)).Err()
}
