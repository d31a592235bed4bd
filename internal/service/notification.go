package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"ridecore/internal/domain"
)

// EventType is the routing key of a ride lifecycle event.
type EventType string

const (
	EventRideRequested EventType = "ride.requested"
	EventRideAccepted  EventType = "ride.accepted"
	EventRideRejected  EventType = "ride.rejected"
	EventRideCancelled EventType = "ride.cancelled"
	EventRidePickedUp  EventType = "ride.picked_up"
	EventRideInTransit EventType = "ride.in_transit"
	EventRideCompleted EventType = "ride.completed"
)

// RideEvent is the payload published after a committed transition.
type RideEvent struct {
	Type         EventType         `json:"type"`
	RideID       string            `json:"rideId"`
	RiderID      string            `json:"riderId"`
	DriverID     string            `json:"driverId,omitempty"`
	Status       domain.RideStatus `json:"status"`
	Fare         float64           `json:"fare"`
	RecipientIDs []string          `json:"recipientIds"`
	OccurredAt   time.Time         `json:"occurredAt"`
}

// Publisher delivers an encoded event under a routing key.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// NotificationService fans ride lifecycle events out to a message broker.
// Delivery is best-effort: failures are logged and never fail the caller.
type NotificationService struct {
	publisher Publisher
	logger    *zap.Logger
}

// NewNotificationService creates a new NotificationService. A nil publisher
// only logs events.
func NewNotificationService(publisher Publisher, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		publisher: publisher,
		logger:    logger,
	}
}

// NotifyRideChanged publishes eventType for ride.
func (s *NotificationService) NotifyRideChanged(ctx context.Context, eventType EventType, ride *domain.Ride) {
	event := RideEvent{
		Type:         eventType,
		RideID:       ride.ID,
		RiderID:      ride.RiderID,
		Status:       ride.Status,
		Fare:         ride.Fare,
		RecipientIDs: []string{ride.RiderID},
		OccurredAt:   ride.UpdatedAt,
	}
	if driverID, ok := ride.Driver.DriverID(); ok {
		event.DriverID = driverID
		event.RecipientIDs = append(event.RecipientIDs, driverID)
	}

	log := s.logger.With(zap.String("event", string(eventType)), zap.String("ride_id", ride.ID))
	if s.publisher == nil {
		log.Debug("ride event not published, no broker configured")
		return
	}

	body, err := json.Marshal(event)
	if err != nil {
		log.Warn("failed to encode ride event", zap.Error(err))
		return
	}
	if err := s.publisher.Publish(ctx, string(eventType), body); err != nil {
		log.Warn("failed to publish ride event", zap.Error(err))
	}
}
