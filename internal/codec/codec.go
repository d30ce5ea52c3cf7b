// Package codec encodes message payloads carried in actor envelopes.
// Envelopes record the content type they were encoded with, so the
// receiving side always decodes with the codec the sender picked.
package codec

import (
	"encoding/json"
	"fmt"
	"sync"

	cbor "github.com/fxamacker/cbor/v2"
)

const (
	ContentTypeJSON = "application/json"
	ContentTypeCBOR = "application/cbor"
)

type Codec interface {
	ContentType() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

type JSONCodec struct{}

func (JSONCodec) ContentType() string             { return ContentTypeJSON }
func (JSONCodec) Marshal(v any) ([]byte, error)   { return json.Marshal(v) }
func (JSONCodec) Unmarshal(b []byte, v any) error { return json.Unmarshal(b, v) }

type cborCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// CBOR returns a deterministic CBOR codec (RFC 8949, canonical encoding).
func CBOR() (Codec, error) {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	dm, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		return nil, err
	}
	return cborCodec{enc: em, dec: dm}, nil
}

func (c cborCodec) ContentType() string                { return ContentTypeCBOR }
func (c cborCodec) Marshal(v any) ([]byte, error)      { return c.enc.Marshal(v) }
func (c cborCodec) Unmarshal(data []byte, v any) error { return c.dec.Unmarshal(data, v) }

var (
	mu       sync.RWMutex
	registry = map[string]Codec{ContentTypeJSON: JSONCodec{}}
)

func init() {
	c, err := CBOR()
	if err != nil {
		panic(fmt.Sprintf("codec: init cbor: %v", err))
	}
	Register(c)
}

// Register adds or replaces the codec for its content type.
func Register(c Codec) {
	mu.Lock()
	defer mu.Unlock()
	registry[c.ContentType()] = c
}

// Lookup returns the codec registered for contentType. The empty content
// type selects JSON.
func Lookup(contentType string) (Codec, error) {
	if contentType == "" {
		contentType = ContentTypeJSON
	}
	mu.RLock()
	c, ok := registry[contentType]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("codec: unknown content type %q", contentType)
	}
	return c, nil
}

// Marshal encodes v with the codec for contentType.
func Marshal(contentType string, v any) ([]byte, error) {
	c, err := Lookup(contentType)
	if err != nil {
		return nil, err
	}
	return c.Marshal(v)
}

// Unmarshal decodes data into v with the codec for contentType.
func Unmarshal(contentType string, data []byte, v any) error {
	c, err := Lookup(contentType)
	if err != nil {
		return err
	}
	return c.Unmarshal(data, v)
}
