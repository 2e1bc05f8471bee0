//go:build deadlock_test

package lock

import "github.com/sasha-s/go-deadlock"

// Mutex is a mutual exclusion lock, the zero value is unlocked.
type Mutex struct {
	deadlock.Mutex
}

// RWMutex is a reader/writer mutual exclusion lock, the zero value is unlocked.
type RWMutex struct {
	deadlock.RWMutex
}
