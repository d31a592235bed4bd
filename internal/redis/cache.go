package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"ridecore/internal/domain"
)

// CacheStore handles entity caching in Redis.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// Cache TTL constants
const (
	DriverCacheTTL = 30 * time.Second // Availability can change frequently
	RideCacheTTL   = 10 * time.Second // Rides move quickly through the lifecycle
)

// Key prefixes
const (
	driverCachePrefix = "cache:driver:"
	rideCachePrefix   = "cache:ride:"
)

// CachedRide is the JSON form of a cached ride.
type CachedRide struct {
	ID                   string               `json:"id"`
	RiderID              string               `json:"rider_id"`
	DriverID             *string              `json:"driver_id"`
	Pickup               string               `json:"pickup"`
	Destination          string               `json:"destination"`
	Distance             float64              `json:"distance"`
	Fare                 float64              `json:"fare"`
	PaymentMethod        string               `json:"payment_method"`
	Status               string               `json:"status"`
	TransitionTimestamps map[string]time.Time `json:"transition_timestamps"`
	CreatedAt            time.Time            `json:"created_at"`
	UpdatedAt            time.Time            `json:"updated_at"`
	Version              int64                `json:"version"`
}

// CachedDriver is the JSON form of a cached driver profile.
type CachedDriver struct {
	ID                string    `json:"id"`
	LicenseNumber     string    `json:"license_number"`
	VehicleType       string    `json:"vehicle_type"`
	VehicleModel      string    `json:"vehicle_model"`
	PlateNumber       string    `json:"plate_number"`
	ApplicationStatus string    `json:"application_status"`
	AccountStatus     string    `json:"account_status"`
	Availability      string    `json:"availability"`
	CompletedRides    []string  `json:"completed_rides"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func newCachedRide(ride *domain.Ride) *CachedRide {
	cached := &CachedRide{
		ID:                   ride.ID,
		RiderID:              ride.RiderID,
		Pickup:               ride.Pickup,
		Destination:          ride.Destination,
		Distance:             ride.Distance,
		Fare:                 ride.Fare,
		PaymentMethod:        string(ride.PaymentMethod),
		Status:               string(ride.Status),
		TransitionTimestamps: make(map[string]time.Time, len(ride.Timestamps)),
		CreatedAt:            ride.CreatedAt,
		UpdatedAt:            ride.UpdatedAt,
		Version:              version(ride.UpdatedAt),
	}
	if id, ok := ride.Driver.DriverID(); ok {
		cached.DriverID = &id
	}
	for name, at := range ride.Timestamps {
		cached.TransitionTimestamps[string(name)] = at
	}
	return cached
}

func (c *CachedRide) toDomain() *domain.Ride {
	ride := &domain.Ride{
		ID:            c.ID,
		RiderID:       c.RiderID,
		Driver:        domain.Unassigned(),
		Pickup:        c.Pickup,
		Destination:   c.Destination,
		Distance:      c.Distance,
		Fare:          c.Fare,
		PaymentMethod: domain.PaymentMethod(c.PaymentMethod),
		Status:        domain.RideStatus(c.Status),
		Timestamps:    make(domain.TransitionTimestamps, len(c.TransitionTimestamps)),
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
	if c.DriverID != nil {
		ride.Driver = domain.AssignedTo(*c.DriverID)
	}
	for name, at := range c.TransitionTimestamps {
		ride.Timestamps[domain.Transition(name)] = at
	}
	return ride
}

func newCachedDriver(driver *domain.Driver) *CachedDriver {
	return &CachedDriver{
		ID:                driver.ID,
		LicenseNumber:     driver.LicenseNumber,
		VehicleType:       string(driver.Vehicle.Type),
		VehicleModel:      driver.Vehicle.Model,
		PlateNumber:       driver.Vehicle.PlateNumber,
		ApplicationStatus: string(driver.ApplicationStatus),
		AccountStatus:     string(driver.AccountStatus),
		Availability:      string(driver.Availability),
		CompletedRides:    append([]string{}, driver.CompletedRides...),
		CreatedAt:         driver.CreatedAt,
		UpdatedAt:         driver.UpdatedAt,
	}
}

func (c *CachedDriver) toDomain() *domain.Driver {
	return &domain.Driver{
		ID:            c.ID,
		LicenseNumber: c.LicenseNumber,
		Vehicle: domain.Vehicle{
			Type:        domain.VehicleType(c.VehicleType),
			Model:       c.VehicleModel,
			PlateNumber: c.PlateNumber,
		},
		ApplicationStatus: domain.ApplicationStatus(c.ApplicationStatus),
		AccountStatus:     domain.AccountStatus(c.AccountStatus),
		Availability:      domain.Availability(c.Availability),
		CompletedRides:    append([]string{}, c.CompletedRides...),
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
	}
}

// GetDriver retrieves a driver from cache.
func (s *CacheStore) GetDriver(ctx context.Context, driverID string) (*domain.Driver, error) {
	var cached CachedDriver
	found, err := s.get(ctx, driverCachePrefix+driverID, &cached)
	if err != nil || !found {
		return nil, err // nil, nil on cache miss
	}
	return cached.toDomain(), nil
}

// SetDriver stores a driver in cache.
func (s *CacheStore) SetDriver(ctx context.Context, driver *domain.Driver) error {
	return s.set(ctx, driverCachePrefix+driver.ID, newCachedDriver(driver), DriverCacheTTL)
}

// InvalidateDriver removes a driver from cache.
func (s *CacheStore) InvalidateDriver(ctx context.Context, driverID string) error {
	return s.client.Del(ctx, driverCachePrefix+driverID).Err()
}

// GetRide retrieves a ride from cache.
func (s *CacheStore) GetRide(ctx context.Context, rideID string) (*domain.Ride, error) {
	var cached CachedRide
	found, err := s.get(ctx, rideCachePrefix+rideID, &cached)
	if err != nil || !found {
		return nil, err // nil, nil on cache miss
	}
	return cached.toDomain(), nil
}

// SetRide stores a ride in cache unless the cached copy is newer.
func (s *CacheStore) SetRide(ctx context.Context, ride *domain.Ride) error {
	cached := newCachedRide(ride)
	data, err := json.Marshal(cached)
	if err != nil {
		return err
	}
	_, err = setIfNewer.Run(ctx, s.client,
		[]string{rideCachePrefix + ride.ID},
		data, cached.Version, RideCacheTTL.Milliseconds(),
	).Result()
	return err
}

// InvalidateRide removes a ride from cache.
func (s *CacheStore) InvalidateRide(ctx context.Context, rideID string) error {
	return s.client.Del(ctx, rideCachePrefix+rideID).Err()
}

// setIfNewer writes ARGV[1] with a PX of ARGV[3] unless the stored
// document has a version above ARGV[2]. Returns 1 when written.
var setIfNewer = redis.NewScript(`
local current = redis.call("GET", KEYS[1])
if current then
	local ok, doc = pcall(cjson.decode, current)
	if ok and type(doc) == "table" and tonumber(doc.version) and tonumber(doc.version) > tonumber(ARGV[2]) then
		return 0
	end
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[3])
return 1
`)

// version orders cached snapshots. Microseconds stay exact in a Lua number.
func version(updatedAt time.Time) int64 {
	return updatedAt.UnixMicro()
}

func (s *CacheStore) get(ctx context.Context, key string, dst any) (bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (s *CacheStore) set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}
