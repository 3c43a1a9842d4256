package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gracepoint/registration-gateway/internal/model"
)

const (
	// capturedDone is the terminal lock value. Once written it is never
	// rolled back; every waiter treats it as "the capture happened".
	capturedDone = "1"

	// lockPrefix starts every in-flight lock value: LOCK:<token>:<epoch_ms>.
	lockPrefix = "LOCK:"

	// LockStaleAfter is how old a lock may grow before another acquirer may
	// steal it. Raising it lengthens how long a crashed owner blocks retries.
	LockStaleAfter = 5 * time.Minute

	// Bounded waits for non-owners: first for the lock to flip to done, then
	// for the owner's details map to become readable.
	CaptureWait = 5 * time.Second
	CapturePoll = 150 * time.Millisecond
	DetailsWait = 3 * time.Second
	DetailsPoll = 120 * time.Millisecond
)

// CaptureState describes the capture lock for one (instance, order) pair.
type CaptureState int

const (
	CaptureFree CaptureState = iota // no lock written yet
	CaptureHeld                     // a live owner is capturing
	CaptureDone                     // capture finished; terminal
)

// Bus is the typed view over the session KV. Keys follow the documented
// write orderings: pending is written before any redirect, the details map
// is written before the lock flips to done, and pending is deleted only
// after a successful capture.
type Bus struct {
	kv  KV
	now func() time.Time
}

// NewBus wraps a KV. The clock defaults to time.Now and is injectable for
// staleness tests.
func NewBus(kv KV) *Bus {
	return &Bus{kv: kv, now: time.Now}
}

// WithClock swaps the clock used for lock timestamps and staleness checks.
func (b *Bus) WithClock(now func() time.Time) *Bus {
	b.now = now
	return b
}

func pendingKey(instanceID, orderID string) string {
	return fmt.Sprintf("pending:%s:%s", instanceID, orderID)
}

func capturedKey(instanceID, orderID string) string {
	return fmt.Sprintf("captured:%s:%s", instanceID, orderID)
}

func detailsKey(instanceID, orderID string) string {
	return fmt.Sprintf("detailsmap:%s:%s", instanceID, orderID)
}

// SavePending persists the registration intent before the redirect to the
// provider. The single writer is the flow that created the order.
func (b *Bus) SavePending(ctx context.Context, instanceID, orderID string, d model.RegistrationDetails) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal pending intent: %w", err)
	}
	return b.kv.Set(ctx, pendingKey(instanceID, orderID), string(raw))
}

// LoadPending returns the pending intent, if any.
func (b *Bus) LoadPending(ctx context.Context, instanceID, orderID string) (model.RegistrationDetails, bool, error) {
	var d model.RegistrationDetails
	raw, ok, err := b.kv.Get(ctx, pendingKey(instanceID, orderID))
	if err != nil || !ok {
		return d, false, err
	}
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return d, false, fmt.Errorf("unmarshal pending intent: %w", err)
	}
	return d, true, nil
}

// DeletePending removes the consumed intent after a successful capture.
func (b *Bus) DeletePending(ctx context.Context, instanceID, orderID string) error {
	return b.kv.Del(ctx, pendingKey(instanceID, orderID))
}

// CaptureLockState inspects the lock without mutating it.
func (b *Bus) CaptureLockState(ctx context.Context, instanceID, orderID string) (CaptureState, error) {
	raw, ok, err := b.kv.Get(ctx, capturedKey(instanceID, orderID))
	if err != nil {
		return CaptureFree, err
	}
	if !ok {
		return CaptureFree, nil
	}
	if raw == capturedDone {
		return CaptureDone, nil
	}
	if _, ts, parsed := parseLock(raw); parsed && b.now().Sub(ts) >= LockStaleAfter {
		// A stale lock counts as free: its owner is presumed dead.
		return CaptureFree, nil
	}
	return CaptureHeld, nil
}

// AcquireCapture attempts to take ownership of the capture for one
// (instance, order) pair. It returns the owner token when acquired. done
// reports that the capture already finished, in which case nobody may
// acquire. A lock older than LockStaleAfter is stolen.
func (b *Bus) AcquireCapture(ctx context.Context, instanceID, orderID string) (token string, acquired, done bool, err error) {
	key := capturedKey(instanceID, orderID)
	token = uuid.NewString()
	value := lockPrefix + token + ":" + strconv.FormatInt(b.now().UnixMilli(), 10)

	raw, ok, err := b.kv.Get(ctx, key)
	if err != nil {
		return "", false, false, err
	}
	if !ok {
		set, err := b.kv.SetNX(ctx, key, value)
		if err != nil {
			return "", false, false, err
		}
		if !set {
			// Lost the race; someone else just wrote the key.
			return "", false, false, nil
		}
		return token, true, false, nil
	}
	if raw == capturedDone {
		return "", false, true, nil
	}
	if _, ts, parsed := parseLock(raw); parsed && b.now().Sub(ts) >= LockStaleAfter {
		// Steal only while the key still holds the exact stale value: a
		// concurrent thief, a fresh owner or a terminal "1" written since the
		// read must all win over this acquirer.
		swapped, err := b.kv.CompareAndSwap(ctx, key, raw, value)
		if err != nil {
			return "", false, false, err
		}
		if !swapped {
			return "", false, false, nil
		}
		return token, true, false, nil
	}
	return "", false, false, nil
}

// ReleaseCapture drops the lock after a failed capture so another attempt
// can proceed. Only the owner identified by token may release; a lock that
// moved on (done, or re-acquired by a thief) is left alone.
func (b *Bus) ReleaseCapture(ctx context.Context, instanceID, orderID, token string) error {
	key := capturedKey(instanceID, orderID)
	raw, ok, err := b.kv.Get(ctx, key)
	if err != nil || !ok {
		return err
	}
	if tok, _, parsed := parseLock(raw); parsed && tok == token {
		return b.kv.Del(ctx, key)
	}
	return nil
}

// MarkCaptured flips the lock to its terminal done state. Callers must have
// written the details map first so waiters observing done can read names.
func (b *Bus) MarkCaptured(ctx context.Context, instanceID, orderID string) error {
	return b.kv.Set(ctx, capturedKey(instanceID, orderID), capturedDone)
}

// AwaitCaptured polls until the lock reads done or the bounded wait ends.
func (b *Bus) AwaitCaptured(ctx context.Context, instanceID, orderID string) (bool, error) {
	deadline := b.now().Add(CaptureWait)
	for {
		raw, ok, err := b.kv.Get(ctx, capturedKey(instanceID, orderID))
		if err != nil {
			return false, err
		}
		if ok && raw == capturedDone {
			return true, nil
		}
		if b.now().After(deadline) {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(CapturePoll):
		}
	}
}

// SaveDetailsMap shares person names with waiting tabs. Written by the
// capture owner before MarkCaptured.
func (b *Bus) SaveDetailsMap(ctx context.Context, instanceID, orderID string, names map[string]model.PersonName) error {
	raw, err := json.Marshal(names)
	if err != nil {
		return fmt.Errorf("marshal details map: %w", err)
	}
	return b.kv.Set(ctx, detailsKey(instanceID, orderID), string(raw))
}

// LoadDetailsMap returns the shared names, if present.
func (b *Bus) LoadDetailsMap(ctx context.Context, instanceID, orderID string) (map[string]model.PersonName, bool, error) {
	raw, ok, err := b.kv.Get(ctx, detailsKey(instanceID, orderID))
	if err != nil || !ok {
		return nil, false, err
	}
	var names map[string]model.PersonName
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return nil, false, fmt.Errorf("unmarshal details map: %w", err)
	}
	return names, true, nil
}

// AwaitDetailsMap polls for the shared names with a bounded wait. Callers
// should only wait after observing the done lock state; the write ordering
// guarantees the map is readable by then, so the bound is insurance against
// torn sessions, not a correctness mechanism.
func (b *Bus) AwaitDetailsMap(ctx context.Context, instanceID, orderID string) (map[string]model.PersonName, bool, error) {
	deadline := b.now().Add(DetailsWait)
	for {
		names, ok, err := b.LoadDetailsMap(ctx, instanceID, orderID)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return names, true, nil
		}
		if b.now().After(deadline) {
			return nil, false, nil
		}
		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-time.After(DetailsPoll):
		}
	}
}

// parseLock splits a LOCK:<token>:<epoch_ms> value.
func parseLock(raw string) (token string, ts time.Time, ok bool) {
	if !strings.HasPrefix(raw, lockPrefix) {
		return "", time.Time{}, false
	}
	rest := raw[len(lockPrefix):]
	idx := strings.LastIndexByte(rest, ':')
	if idx <= 0 {
		return "", time.Time{}, false
	}
	ms, err := strconv.ParseInt(rest[idx+1:], 10, 64)
	if err != nil {
		return "", time.Time{}, false
	}
	return rest[:idx], time.UnixMilli(ms), true
}
