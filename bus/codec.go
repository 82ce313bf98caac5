package bus

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DecodeError indicates bytes received from the transport could not be
// decoded. It signals a protocol or version mismatch between services
// and is distinguishable from ErrTimeout so callers can decide between
// retrying (timeout) and treating the response as corrupt (decode).
type DecodeError struct {
	// Topic the malformed bytes arrived on.
	Topic string

	// Err is the underlying unmarshal failure.
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode message on %q: %v", e.Topic, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// EncodePayload serializes a payload to its wire bytes. The encoding
// is deterministic for a given payload (object keys are sorted) and
// lossless for JSON-representable values; integers within 53 bits
// survive the float64 round trip exactly.
func EncodePayload(p Payload) ([]byte, error) {
	if p == nil {
		p = Payload{}
	}
	return json.Marshal(p)
}

// DecodePayload deserializes wire bytes into a payload. Malformed
// bytes, or bytes whose top level is not a JSON object, yield a
// *DecodeError.
func DecodePayload(data []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, &DecodeError{Err: err}
	}
	if p == nil {
		return nil, &DecodeError{Err: fmt.Errorf("payload is not a JSON object")}
	}
	return p, nil
}

// encodeEnvelope serializes an envelope after validating its routing
// invariant.
func encodeEnvelope(env *Envelope) ([]byte, error) {
	if err := env.validate(); err != nil {
		return nil, err
	}
	if env.Payload == nil {
		env.Payload = Payload{}
	}
	return json.Marshal(env)
}

// decodeEnvelope deserializes wire bytes received on topic. Failure
// yields a *DecodeError carrying the topic.
func decodeEnvelope(topic string, data []byte) (*Envelope, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	var env Envelope
	if err := dec.Decode(&env); err != nil {
		return nil, &DecodeError{Topic: topic, Err: err}
	}
	if env.Payload == nil {
		env.Payload = Payload{}
	}
	env.Topic = topic
	return &env, nil
}
