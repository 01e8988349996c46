// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package rpc

import (
	"encoding/json"

	"github.com/fxamacker/cbor/v2"
	"github.com/samber/oops"
	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// Codec names, used as gRPC content-subtypes.
const (
	CodecJSON = "json"
	CodecCBOR = "cbor"
)

func init() {
	encoding.RegisterCodec(jsonCodec{})
	encoding.RegisterCodec(newCBORCodec())
}

// jsonCodec encodes plain Go messages with encoding/json and protobuf
// messages with protojson.
type jsonCodec struct{}

func (jsonCodec) Name() string { return CodecJSON }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	if m, ok := v.(proto.Message); ok {
		data, err := protojson.Marshal(m)
		return data, oops.Wrap(err)
	}
	data, err := json.Marshal(v)
	return data, oops.Wrap(err)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if m, ok := v.(proto.Message); ok {
		return oops.Wrap(protojson.Unmarshal(data, m))
	}
	return oops.Wrap(json.Unmarshal(data, v))
}

// cborCodec encodes plain Go messages as deterministic CBOR and protobuf
// messages in their binary wire format.
type cborCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

func newCBORCodec() cborCodec {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	dec, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(err)
	}
	return cborCodec{enc: enc, dec: dec}
}

func (cborCodec) Name() string { return CodecCBOR }

func (c cborCodec) Marshal(v any) ([]byte, error) {
	if m, ok := v.(proto.Message); ok {
		data, err := proto.Marshal(m)
		return data, oops.Wrap(err)
	}
	data, err := c.enc.Marshal(v)
	return data, oops.Wrap(err)
}

func (c cborCodec) Unmarshal(data []byte, v any) error {
	if m, ok := v.(proto.Message); ok {
		return oops.Wrap(proto.Unmarshal(data, m))
	}
	return oops.Wrap(c.dec.Unmarshal(data, v))
}
