package lode

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Summary formats.
const (
	FormatJSON    = "json"
	FormatMsgpack = "msgpack"
)

// Codec encodes summaries.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Extension() string
}

// CodecFor returns the codec for format. Empty means JSON.
func CodecFor(format string) (Codec, error) {
	switch format {
	case "", FormatJSON:
		return jsonCodec{}, nil
	case FormatMsgpack:
		return msgpackCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown summary format %q (must be json or msgpack)", format)
	}
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (jsonCodec) Extension() string { return FormatJSON }

// msgpackCodec reads `json` struct tags so both formats share field names.
type msgpackCodec struct{}

func (msgpackCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (msgpackCodec) Unmarshal(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}

func (msgpackCodec) Extension() string { return FormatMsgpack }
