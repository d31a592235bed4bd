package redis

import "ridecore/internal/service"

// Ensure concrete types implement the interfaces the services consume.
var (
	_ service.RideCache   = (*CacheStore)(nil)
	_ service.DriverCache = (*CacheStore)(nil)
)
