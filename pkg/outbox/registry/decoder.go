package registry

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/angelmondragon/sitestock-backend/pkg/enums"
)

type versionedType struct {
	eventType enums.OutboxEventType
	version   int
}

// DecoderRegistry maps (event type, envelope version) to a payload decoder
// for consumers.
type DecoderRegistry struct {
	mu       sync.RWMutex
	decoders map[versionedType]decoderFunc
}

func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{decoders: map[versionedType]decoderFunc{}}
}

// NewDefaultDecoderRegistry knows the v1 payload of every event.
func NewDefaultDecoderRegistry() *DecoderRegistry {
	r := NewDecoderRegistry()
	for _, s := range v1Events {
		r.Register(s.eventType, 1, s.decode)
	}
	return r
}

func (r *DecoderRegistry) Register(eventType enums.OutboxEventType, version int, decoder decoderFunc) {
	r.mu.Lock()
	r.decoders[versionedType{eventType, version}] = decoder
	r.mu.Unlock()
}

func (r *DecoderRegistry) Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (any, error) {
	r.mu.RLock()
	decode, ok := r.decoders[versionedType{eventType, version}]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no decoder for %s@v%d", eventType, version)
	}
	return decode(payload)
}
