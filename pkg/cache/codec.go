package cache

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"

	bulkerr "github.com/matzehuels/bulkstat/pkg/errors"
)

// Codec serialises the entry envelope for byte-oriented backends.
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// Msgpack encodes envelopes with vmihailenco/msgpack. The zero value is ready to use.
type Msgpack struct{}

func (Msgpack) Name() string                       { return "msgpack" }
func (Msgpack) Marshal(v any) ([]byte, error)      { return msgpack.Marshal(v) }
func (Msgpack) Unmarshal(data []byte, v any) error { return msgpack.Unmarshal(data, v) }

// CBOR encodes envelopes with fxamacker/cbor using core deterministic
// encoding, so equal entries produce equal bytes.
type CBOR struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// NewCBOR builds a CBOR codec.
func NewCBOR() (*CBOR, error) {
	eo := cbor.CoreDetEncOptions()
	eo.Time = cbor.TimeRFC3339Nano
	em, err := eo.EncMode()
	if err != nil {
		return nil, err
	}
	dm, err := (cbor.DecOptions{}).DecMode()
	if err != nil {
		return nil, err
	}
	return &CBOR{enc: em, dec: dm}, nil
}

func (c *CBOR) Name() string                       { return "cbor" }
func (c *CBOR) Marshal(v any) ([]byte, error)      { return c.enc.Marshal(v) }
func (c *CBOR) Unmarshal(data []byte, v any) error { return c.dec.Unmarshal(data, v) }

// CodecByName returns the codec registered under name. An empty name selects msgpack.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "msgpack":
		return Msgpack{}, nil
	case "cbor":
		return NewCBOR()
	}
	return nil, bulkerr.New(bulkerr.ErrCodeConfig, "unknown cache codec %q (want msgpack or cbor)", name)
}

// envelope is what byte-oriented backends actually store.
type envelope struct {
	StoredAt time.Time `msgpack:"t" cbor:"1,keyasint"`
	Payload  []byte    `msgpack:"p" cbor:"2,keyasint"`
}

const envelopeVersion byte = 1

var (
	errCorrupt    = errors.New("cache: corrupt envelope")
	envelopeMagic = [...]byte{'B', 'K', 'S', 'T'}
)

// Frame: magic(4) | version(1) | codec name length(1) | codec name | body
func encodeEnvelope(c Codec, e envelope) ([]byte, error) {
	body, err := c.Marshal(e)
	if err != nil {
		return nil, err
	}
	name := c.Name()
	var buf bytes.Buffer
	buf.Grow(len(envelopeMagic) + 2 + len(name) + len(body))
	buf.Write(envelopeMagic[:])
	buf.WriteByte(envelopeVersion)
	buf.WriteByte(byte(len(name)))
	buf.WriteString(name)
	buf.Write(body)
	return buf.Bytes(), nil
}

func decodeEnvelope(c Codec, b []byte) (envelope, error) {
	var e envelope
	hdr := len(envelopeMagic) + 2
	if len(b) < hdr || !bytes.Equal(b[:4], envelopeMagic[:]) || b[4] != envelopeVersion {
		return e, errCorrupt
	}
	n := int(b[5])
	if len(b) < hdr+n || string(b[hdr:hdr+n]) != c.Name() {
		return e, errCorrupt
	}
	if err := c.Unmarshal(b[hdr+n:], &e); err != nil {
		return e, fmt.Errorf("%w: %v", errCorrupt, err)
	}
	return e, nil
}
