package redis

import "strings"

// keyFamilies lists every key prefix this package writes.
var keyFamilies = []string{
	rideCachePrefix,
	driverCachePrefix,
	idempotencyPrefix,
	idempotencyLockPrefix,
}

// KeyFamily names the family a key belongs to, such as "cache:ride".
// Keys outside the known families report "other".
func KeyFamily(key string) string {
	for _, prefix := range keyFamilies {
		if strings.HasPrefix(key, prefix) {
			return strings.TrimSuffix(prefix, ":")
		}
	}
	return "other"
}
