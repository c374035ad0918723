package outbox

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/bluehorizon/skydesk/pkg/enums"
	"github.com/bluehorizon/skydesk/pkg/gateway"
)

// DecoderFunc turns the envelope data into the body handed to the gateway.
type DecoderFunc func(payload json.RawMessage) (any, error)

type registryKey struct {
	kind    enums.MutationKind
	version int
}

type DecoderRegistry struct {
	mtx      sync.RWMutex
	registry map[registryKey]DecoderFunc
}

func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{registry: make(map[registryKey]DecoderFunc)}
}

func (r *DecoderRegistry) Register(kind enums.MutationKind, version int, decoder DecoderFunc) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.registry[registryKey{kind: kind, version: version}] = decoder
}

func (r *DecoderRegistry) Decode(kind enums.MutationKind, version int, payload json.RawMessage) (any, error) {
	r.mtx.RLock()
	decoder, ok := r.registry[registryKey{kind: kind, version: version}]
	r.mtx.RUnlock()
	if !ok {
		return nil, fmt.Errorf("decoder not registered for %s@v%d", kind, version)
	}
	return decoder(payload)
}

// Resolve decodes a stored payload into a deliverable mutation. Any error
// means the payload is malformed and will never succeed.
func (r *DecoderRegistry) Resolve(payload json.RawMessage) (gateway.Mutation, error) {
	var envelope PayloadEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return gateway.Mutation{}, fmt.Errorf("decode envelope: %w", err)
	}
	if len(envelope.Data) == 0 {
		return gateway.Mutation{}, fmt.Errorf("envelope for %s has no data", envelope.Kind)
	}
	body, err := r.Decode(envelope.Kind, envelope.Version, envelope.Data)
	if err != nil {
		return gateway.Mutation{}, err
	}
	return gateway.Mutation{Kind: envelope.Kind, Body: body}, nil
}

// JSONDecoder builds a DecoderFunc that unmarshals into T and runs validate
// when it is non-nil.
func JSONDecoder[T any](validate func(T) error) DecoderFunc {
	return func(payload json.RawMessage) (any, error) {
		var out T
		if err := json.Unmarshal(payload, &out); err != nil {
			return nil, err
		}
		if validate != nil {
			if err := validate(out); err != nil {
				return nil, err
			}
		}
		return out, nil
	}
}
