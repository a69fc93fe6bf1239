package cache

import "time"

// Cache defines the byte-level caching contract shared by the memory and
// Redis backends.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key builds a namespaced cache key from a claim fingerprint.
func Key(fingerprint string) string {
	return "veriscore:v1:" + fingerprint
}
