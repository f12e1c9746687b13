// Package store declares the contract the queue engine requires from its
// backing store, together with the key naming shared by every consumer.
//
// The contract is deliberately thin: single atomic primitives only. All
// correctness-critical coordination (identifier collision avoidance, queue
// transitions, topic locks) must map onto exactly one Conn call — the
// engine never holds a client-side lock across two store round-trips.
package store

import (
	"context"
	"time"
)

// Conn is the set of atomic primitives the engine runs on. store/redis
// provides the production implementation.
type Conn interface {
	// SetNX stores value under key only if the key is absent. It reports
	// whether the value was stored.
	SetNX(ctx context.Context, key string, value []byte) (bool, error)

	// SetNXGet stores value under key only if the key is absent and
	// returns the previous value in one atomic operation. ok reports
	// whether the value was stored; on ok=false prev holds the current
	// value that blocked the set.
	SetNXGet(ctx context.Context, key, value string) (prev string, ok bool, err error)

	// Get fetches the value under key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set stores value under key unconditionally.
	Set(ctx context.Context, key string, value []byte) error

	// Del removes key. Deleting an absent key is not an error.
	Del(ctx context.Context, key string) error

	// RPush appends value to the tail of the list at key.
	RPush(ctx context.Context, key, value string) error

	// BLMoveHeadTail atomically moves the head of src to the tail of dst,
	// blocking up to timeout for an element. It returns ok=false on
	// timeout.
	BLMoveHeadTail(ctx context.Context, src, dst string, timeout time.Duration) (value string, ok bool, err error)

	// LMoveTailHead atomically moves the tail of src to the head of dst.
	// It returns ok=false when src is empty.
	LMoveTailHead(ctx context.Context, src, dst string) (value string, ok bool, err error)

	// LLen returns the length of the list at key.
	LLen(ctx context.Context, key string) (int64, error)

	// LRemTail removes one occurrence of value from the list at key,
	// searching from the tail. It returns the number of removed elements
	// (zero or one).
	LRemTail(ctx context.Context, key, value string) (int64, error)

	// LRemTailPush removes one occurrence of value from the list at rem
	// (tail-side search) and appends it to the list at push, as one
	// atomic transfer. The value is never observable in both lists, nor
	// in neither, from another client's perspective.
	LRemTailPush(ctx context.Context, rem, push, value string) error

	// LIndex returns the element at index of the list at key. ok is false
	// when the index is out of range.
	LIndex(ctx context.Context, key string, index int64) (value string, ok bool, err error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
}
