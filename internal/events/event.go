package events

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/linkedin/goavro/v2"

	"github.com/DrGermanius/orderingest/internal/model"
)

const EventOrderCreated = "order.created"

type Event struct {
	EventType  string
	EventID    string
	Payload    map[string]string
	OccurredAt time.Time
	UserID     *string
}

func OrderCreated(o model.Order) Event {
	return Event{
		EventType: EventOrderCreated,
		EventID:   uuid.NewString(),
		Payload: map[string]string{
			"order_id":       o.OrderID,
			"customer_id":    o.CustomerID,
			"product_id":     o.ProductID,
			"quantity":       strconv.Itoa(o.Quantity),
			"price_per_unit": o.PricePerUnit.StringFixed(2),
			"total_amount":   o.TotalAmount.StringFixed(2),
			"status":         o.Status,
			"order_date":     o.OrderDate.UTC().Format(time.RFC3339),
		},
		OccurredAt: o.CreatedAt,
	}
}

// Codec encodes events as Avro binary.
type Codec struct {
	codec *goavro.Codec
	mu    sync.Mutex
}

func NewCodec() (*Codec, error) {
	c, err := goavro.NewCodec(OrderEventSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to create avro codec: %w", err)
	}
	return &Codec{codec: c}, nil
}

func (c *Codec) Encode(e Event) ([]byte, error) {
	payload := make(map[string]interface{}, len(e.Payload))
	for k, v := range e.Payload {
		payload[k] = v
	}

	var userID interface{}
	if e.UserID != nil {
		userID = goavro.Union("string", *e.UserID)
	}

	native := map[string]interface{}{
		"event_type":  e.EventType,
		"event_id":    e.EventID,
		"payload":     payload,
		"occurred_at": e.OccurredAt.UTC(),
		"user_id":     userID,
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	b, err := c.codec.BinaryFromNative(nil, native)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event to avro: %w", err)
	}
	return b, nil
}

func (c *Codec) Decode(b []byte) (Event, error) {
	c.mu.Lock()
	native, _, err := c.codec.NativeFromBinary(b)
	c.mu.Unlock()
	if err != nil {
		return Event{}, fmt.Errorf("failed to decode avro event: %w", err)
	}

	m, ok := native.(map[string]interface{})
	if !ok {
		return Event{}, fmt.Errorf("unexpected avro native type %T", native)
	}

	e := Event{
		EventType: m["event_type"].(string),
		EventID:   m["event_id"].(string),
		Payload:   map[string]string{},
	}
	if ts, ok := m["occurred_at"].(time.Time); ok {
		e.OccurredAt = ts.UTC()
	}
	if p, ok := m["payload"].(map[string]interface{}); ok {
		for k, v := range p {
			e.Payload[k], _ = v.(string)
		}
	}
	if u, ok := m["user_id"].(map[string]interface{}); ok {
		if s, ok := u["string"].(string); ok {
			e.UserID = &s
		}
	}
	return e, nil
}
