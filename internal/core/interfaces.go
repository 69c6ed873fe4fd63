package core

// ConnectionID identifies one logical channel to a participant's client,
// independent of the underlying media transport.
type ConnectionID string

// DeliveryHandle is the outbound path to one participant's client.
// Owned by the adapter; the adapter must Close() it.
//
// TrySend carries low-frequency text/status events and may block briefly
// under backpressure. TrySendAudio carries latency-sensitive binary frames
// and must drop rather than queue when the client is slow.
type DeliveryHandle interface {
	TrySend(Event) error
	TrySendAudio([]byte) error
	Close()
}
