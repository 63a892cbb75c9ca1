// Package codec converts consumer values to websocket frames and back.
package codec

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/mickaelvieira/persistent-websocket/transport"
)

// Codec is the wire format used on both directions of a connection
type Codec interface {
	// Marshal encodes a value into a frame ready to be sent
	Marshal(v any) (transport.Message, error)

	// Unmarshal decodes an inbound frame
	Unmarshal(m transport.Message) (any, error)
}

var (
	// JSON encodes values as text frames, objects decode to map[string]any
	JSON Codec = jsonCodec{}

	// CBOR encodes values as binary frames, maps decode to map[string]any
	CBOR Codec = newCBORCodec()
)

// ByName returns the codec registered under the given name
func ByName(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "", "json":
		return JSON, nil
	case "cbor":
		return CBOR, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) (transport.Message, error) {
	d, err := json.Marshal(v)
	if err != nil {
		return transport.Message{}, err
	}

	return transport.Message{Type: transport.TextMessage, Data: d}, nil
}

func (jsonCodec) Unmarshal(m transport.Message) (any, error) {
	var v any
	if err := json.Unmarshal(m.Data, &v); err != nil {
		return nil, err
	}

	return v, nil
}

type cborCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

func newCBORCodec() cborCodec {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}

	dec, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic(err)
	}

	return cborCodec{enc: enc, dec: dec}
}

func (c cborCodec) Marshal(v any) (transport.Message, error) {
	d, err := c.enc.Marshal(v)
	if err != nil {
		return transport.Message{}, err
	}

	return transport.Message{Type: transport.BinaryMessage, Data: d}, nil
}

func (c cborCodec) Unmarshal(m transport.Message) (any, error) {
	var v any
	if err := c.dec.Unmarshal(m.Data, &v); err != nil {
		return nil, err
	}

	return v, nil
}
