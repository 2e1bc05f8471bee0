//go:build !deadlock_test

// Package lock provides the mutex types used across git-push-mirror.
// Building with the `deadlock_test` tag swaps them for go-deadlock
// implementations which report potential deadlocks.
package lock

import "sync"

// Mutex is a mutual exclusion lock, the zero value is unlocked.
type Mutex struct {
	sync.Mutex
}

// RWMutex is a reader/writer mutual exclusion lock, the zero value is unlocked.
type RWMutex struct {
	sync.RWMutex
}
