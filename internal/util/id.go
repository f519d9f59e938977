// Package util provides utility functions for CivicFlow.
package util

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/civicflow/civicflow/internal/models"
)

// IDGenerator provides thread-safe UUIDv7 generation with monotonic timestamps.
type IDGenerator struct {
	mu       sync.Mutex
	lastTime int64
	counter  uint16
}

// NewIDGenerator creates a new ID generator.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

// NewID generates a new UUIDv7 identifier from this generator.
func (g *IDGenerator) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now().UnixMilli()

	if now == g.lastTime {
		g.counter++
		if g.counter == 0 {
			// Counter overflow, wait for next millisecond
			for now == g.lastTime {
				time.Sleep(time.Microsecond * 100)
				now = time.Now().UnixMilli()
			}
			g.lastTime = now
		}
	} else {
		g.lastTime = now
		g.counter = 0
	}

	return generateUUIDv7(now, g.counter)
}

var generator = NewIDGenerator()

// NewID generates a new UUIDv7 identifier.
// UUIDv7 provides time-ordered identifiers for better database index locality.
func NewID() string {
	return generator.NewID()
}

// generateUUIDv7 creates a UUIDv7 from a timestamp and counter.
func generateUUIDv7(unixMilli int64, counter uint16) string {
	var id [16]byte

	// First 48 bits: Unix timestamp in milliseconds (big endian)
	binary.BigEndian.PutUint32(id[0:4], uint32(unixMilli>>16))
	binary.BigEndian.PutUint16(id[4:6], uint16(unixMilli))

	id[6] = 0x70 | (byte(counter>>8) & 0x0F)
	id[7] = byte(counter)

	_, _ = rand.Read(id[8:])
	id[8] = (id[8] & 0x3F) | 0x80 // RFC 4122 variant

	return uuid.UUID(id).String()
}

// ParseID validates and parses a UUID string.
func ParseID(s string) (string, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid ID format: %w", err)
	}
	return id.String(), nil
}

// IsValidID checks if a string is a valid UUID format.
func IsValidID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

const (
	trackingAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	trackingLength   = 8
)

// NewTrackingCode returns a random public tracking code such as
// CIV-7K2M9QXA. Uniqueness is checked by the caller against storage.
func NewTrackingCode() string {
	var buf [trackingLength]byte
	_, _ = rand.Read(buf[:])

	var b strings.Builder
	b.Grow(len(models.TrackingCodePrefix) + trackingLength)
	b.WriteString(models.TrackingCodePrefix)
	for _, v := range buf {
		// 256 is not a multiple of 36; the bias is irrelevant for codes
		// that are collision-checked anyway.
		b.WriteByte(trackingAlphabet[int(v)%len(trackingAlphabet)])
	}
	return b.String()
}

// IsTrackingCode reports whether s has the shape of a tracking code.
func IsTrackingCode(s string) bool {
	rest, ok := strings.CutPrefix(strings.ToUpper(s), models.TrackingCodePrefix)
	if !ok || len(rest) != trackingLength {
		return false
	}
	for _, r := range rest {
		if !strings.ContainsRune(trackingAlphabet, r) {
			return false
		}
	}
	return true
}

// DeterministicID generates a deterministic ID for testing purposes.
// DO NOT use in production - use NewID() instead.
func DeterministicID(seed int64) string {
	var id [16]byte

	binary.BigEndian.PutUint64(id[0:8], uint64(seed))
	binary.BigEndian.PutUint64(id[8:16], uint64(seed*31))

	// Set version 4 and variant
	id[6] = (id[6] & 0x0F) | 0x40
	id[8] = (id[8] & 0x3F) | 0x80

	return uuid.UUID(id).String()
}
