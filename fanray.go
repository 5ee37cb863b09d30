// Package fanray provides the core engines behind the Fanray blogging
// platform that are independent of any particular web frontend:
//
//   - auth: OAuth2-style token pairs (signed access token + opaque refresh
//     token) persisted as SHA-256 digests, with serial-number based
//     server-side revocation.
//   - widget: theme-aware widget area composition over a generic metadata
//     store, with cache-aside reads and bounded-retry instance creation.
//   - meta: the (Key, Value, Type) metadata repository both engines build on.
//   - cache: the TTL cache port the widget composer depends on.
//
// The root package only carries the pieces shared by every subpackage: the
// Logger contract and a couple of small hashing/random helpers.
package fanray

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Logger is the minimal logging contract consumed by the services in this
// module. Any structured logger can be adapted to it.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// DefaultLogger returns the stdout fallback logger used when callers pass nil.
func DefaultLogger() Logger {
	return defLogger{}
}

type defLogger struct{}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] FANRAY "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] FANRAY "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] FANRAY "+newline(format), args...)
}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] FANRAY "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

// Sha256Hex returns the lowercase hex SHA-256 digest of s. Raw token values
// are never persisted, only digests produced by this helper.
func Sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

const randomAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// RandomString returns n random characters drawn from a lowercase
// alphanumeric alphabet. Used for widget meta key suffixes.
func RandomString(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic("fanray: crypto/rand unavailable: " + err.Error())
	}
	for i, b := range buf {
		buf[i] = randomAlphabet[int(b)%len(randomAlphabet)]
	}
	return string(buf)
}
