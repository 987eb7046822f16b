// Package xid generates prefixed string ids, e.g.
// "sale-1756370000123456789-9f2c01ab7d4e6308". Ids only need to be
// unique within one shop's dataset, so a nanosecond timestamp plus
// eight random bytes is plenty; there is no coordination across
// processes.
package xid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// New returns "<prefix>-<unixnano>-<hex suffix>". An empty prefix gets
// the generic "id". When the random source fails, the timestamp alone
// still separates sequential writes.
func New(prefix string) string {
	if prefix == "" {
		prefix = "id"
	}
	suffix := make([]byte, 8)
	if _, err := rand.Read(suffix); err != nil {
		return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixNano(), hex.EncodeToString(suffix))
}
