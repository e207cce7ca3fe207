package spl

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

var errMetadataTruncated = errors.New("metadata truncated")

// Metadata is the part of a Metaplex metadata account the filters inspect.
type Metadata struct {
	Name      string
	Symbol    string
	URI       string
	IsMutable bool
}

// metadataV1Key is the account discriminator of Metaplex MetadataV1.
const metadataV1Key = 4

// DecodeMetadata parses Metaplex Token Metadata account data.
// Layout:
// - key: u8 (4 for MetadataV1)
// - updateAuthority: Pubkey (32 bytes)
// - mint: Pubkey (32 bytes)
// - name, symbol, uri: borsh strings (4-byte length + data)
// - sellerFeeBasisPoints: u16
// - creators: Option<Vec<Creator>> (Creator is 34 bytes)
// - primarySaleHappened: bool
// - isMutable: bool
func DecodeMetadata(data []byte) (*Metadata, error) {
	if len(data) < 65 {
		return nil, fmt.Errorf("metadata data too short: %d", len(data))
	}
	if data[0] != metadataV1Key {
		return nil, fmt.Errorf("unexpected metadata key %d", data[0])
	}

	r := &borshReader{data: data, offset: 65}
	meta := &Metadata{}

	meta.Name = r.readString()
	meta.Symbol = r.readString()
	meta.URI = r.readString()
	r.skip(2) // seller fee basis points

	if r.readByte() == 1 {
		creators := r.readU32()
		r.skip(int(creators) * 34)
	}

	r.skip(1) // primary sale happened
	meta.IsMutable = r.readByte() == 1

	if r.err != nil {
		return nil, r.err
	}
	return meta, nil
}

// borshReader walks borsh encoded data, remembering the first overrun.
type borshReader struct {
	data   []byte
	offset int
	err    error
}

func (r *borshReader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if n < 0 || r.offset+n > len(r.data) {
		r.err = errMetadataTruncated
		return false
	}
	return true
}

func (r *borshReader) skip(n int) {
	if r.need(n) {
		r.offset += n
	}
}

func (r *borshReader) readByte() byte {
	if !r.need(1) {
		return 0
	}
	b := r.data[r.offset]
	r.offset++
	return b
}

func (r *borshReader) readU32() uint32 {
	if !r.need(4) {
		return 0
	}
	v := binary.LittleEndian.Uint32(r.data[r.offset:])
	r.offset += 4
	return v
}

func (r *borshReader) readString() string {
	n := r.readU32()
	if n > 256 {
		r.err = fmt.Errorf("metadata string length %d", n)
		return ""
	}
	if !r.need(int(n)) {
		return ""
	}
	s := strings.TrimRight(string(r.data[r.offset:r.offset+int(n)]), "\x00")
	r.offset += int(n)
	return s
}
