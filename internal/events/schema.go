package events

// OrderEventSchema describes one order lifecycle event. payload carries the order fields as
// strings so decimals keep their exact representation.
const OrderEventSchema = `{
	"type": "record",
	"name": "OrderEvent",
	"namespace": "orderingest.events",
	"fields": [
		{"name": "event_type", "type": "string"},
		{"name": "event_id", "type": "string"},
		{"name": "payload", "type": {"type": "map", "values": "string"}},
		{"name": "occurred_at", "type": {"type": "long", "logicalType": "timestamp-millis"}},
		{"name": "user_id", "type": ["null", "string"], "default": null}
	]
}`
