package bus

import "errors"

// Envelope is the unit placed on the wire: the application payload plus
// optional correlation metadata for request/reply traffic. The JSON
// shape is a stable contract shared by every NeuraLux service:
//
//	{"payload": {...}, "correlation_id": "...", "reply_to": "..."}
//
// correlation_id and reply_to are omitted for plain events. A request
// envelope carries both; a reply envelope carries correlation_id only.
type Envelope struct {
	// Topic the envelope was received on or is destined for.
	// Carried by the transport, not serialized.
	Topic string `json:"-"`

	// Payload is the application data.
	Payload Payload `json:"payload"`

	// CorrelationID links a request to its reply.
	CorrelationID string `json:"correlation_id,omitempty"`

	// ReplyTo names the topic a reply must be published to.
	ReplyTo string `json:"reply_to,omitempty"`
}

// errOrphanReplyTo flags an envelope naming a reply destination without
// a correlation id to tag the reply with.
var errOrphanReplyTo = errors.New("envelope has reply_to without correlation_id")

// validate enforces the routing invariant before an envelope is encoded.
func (e *Envelope) validate() error {
	if err := ValidateTopic(e.Topic); err != nil {
		return err
	}
	if e.ReplyTo != "" {
		if e.CorrelationID == "" {
			return errOrphanReplyTo
		}
		if err := ValidateTopic(e.ReplyTo); err != nil {
			return err
		}
	}
	return nil
}

// isRequest reports whether the envelope expects a reply.
func (e *Envelope) isRequest() bool {
	return e.ReplyTo != "" && e.CorrelationID != ""
}
