package common

import (
	"bytes"

	"github.com/ugorji/go/codec"
)

// Marshal encodes v with MessagePack. This is the binary format of every record
// that is hashed, signed or stored.
func Marshal(v interface{}) ([]byte, error) {
	var b bytes.Buffer

	mh := new(codec.MsgpackHandle)
	mh.WriteExt = true

	enc := codec.NewEncoder(&b, mh)

	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Unmarshal decodes MessagePack data into v.
func Unmarshal(data []byte, v interface{}) error {
	mh := new(codec.MsgpackHandle)
	mh.RawToString = true

	dec := codec.NewDecoder(bytes.NewBuffer(data), mh)

	if err := dec.Decode(v); err != nil {
		return NewChainErr(MalformedData, "%v", err)
	}

	return nil
}

// UnmarshalExact is Unmarshal for data that must hold exactly one value:
// trailing bytes are malformed.
func UnmarshalExact(data []byte, v interface{}) error {
	mh := new(codec.MsgpackHandle)
	mh.RawToString = true

	dec := codec.NewDecoderBytes(data, mh)

	if err := dec.Decode(v); err != nil {
		return NewChainErr(MalformedData, "%v", err)
	}

	if n := dec.NumBytesRead(); n != len(data) {
		return NewChainErr(MalformedData, "%d trailing bytes", len(data)-n)
	}

	return nil
}
