package dmcache

import (
	"bytes"
	"encoding/gob"
)

// encodeValue gob-encodes v into a byte slice. gob is the one (de)serializer
// the retrieval pack's examples reach for anywhere they need a
// type-preserving wire format without a schema (there is no protobuf,
// msgpack, or json-iterator in any example's go.mod), so SetValue/GetValue
// use it rather than hand-rolling a tag-length-value format.
func encodeValue(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeValue(data []byte, out interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(out)
}
