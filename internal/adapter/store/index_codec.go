package store

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"perspective/internal/domain"
)

// Index file layout, little endian:
//
//	magic "PVIX" | version u32 | dim u32 | model length u32 | model bytes | count u32 | count*dim float32
var indexMagic = []byte("PVIX")

const indexFormatVersion = 1

// indexHeader describes the vectors that follow it in an index file.
type indexHeader struct {
	Model     string
	Dimension int
	Count     int
}

// encodeIndex serializes vectors in insertion order.
func encodeIndex(model string, dim int, vectors [][]float32) ([]byte, error) {
	size := len(indexMagic) + 16 + len(model) + len(vectors)*dim*4
	buf := bytes.NewBuffer(make([]byte, 0, size))

	putU32 := func(v uint32) {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], v)
		buf.Write(b[:])
	}

	buf.Write(indexMagic)
	putU32(indexFormatVersion)
	putU32(uint32(dim))
	putU32(uint32(len(model)))
	buf.WriteString(model)
	putU32(uint32(len(vectors)))

	for i, vec := range vectors {
		if len(vec) != dim {
			return nil, fmt.Errorf("vector %d has %d dimensions, expected %d: %w", i, len(vec), dim, domain.ErrDimensionMismatch)
		}
		for _, f := range vec {
			putU32(math.Float32bits(f))
		}
	}

	return buf.Bytes(), nil
}

// decodeIndex parses an index file. Any structural problem is ErrCorruptStore.
func decodeIndex(data []byte) (indexHeader, [][]float32, error) {
	var hdr indexHeader
	off := 0

	corrupt := func(reason string) error {
		return fmt.Errorf("index file %s: %w", reason, domain.ErrCorruptStore)
	}
	getU32 := func() (uint32, bool) {
		if off+4 > len(data) {
			return 0, false
		}
		v := binary.LittleEndian.Uint32(data[off : off+4])
		off += 4
		return v, true
	}

	if len(data) < len(indexMagic) || !bytes.Equal(data[:len(indexMagic)], indexMagic) {
		return hdr, nil, corrupt("has bad magic")
	}
	off = len(indexMagic)

	version, ok := getU32()
	if !ok {
		return hdr, nil, corrupt("is truncated")
	}
	if version != indexFormatVersion {
		return hdr, nil, corrupt(fmt.Sprintf("has unsupported version %d", version))
	}

	dim, ok := getU32()
	if !ok {
		return hdr, nil, corrupt("is truncated")
	}
	modelLen, ok := getU32()
	if !ok || off+int(modelLen) > len(data) {
		return hdr, nil, corrupt("is truncated")
	}
	hdr.Model = string(data[off : off+int(modelLen)])
	off += int(modelLen)

	count, ok := getU32()
	if !ok {
		return hdr, nil, corrupt("is truncated")
	}
	if dim == 0 && count > 0 {
		return hdr, nil, corrupt(fmt.Sprintf("has %d vectors of zero dimension", count))
	}
	hdr.Dimension = int(dim)
	hdr.Count = int(count)

	want := uint64(count) * uint64(dim) * 4
	if uint64(len(data)-off) != want {
		return hdr, nil, corrupt(fmt.Sprintf("holds %d payload bytes, expected %d", len(data)-off, want))
	}

	vectors := make([][]float32, count)
	for i := range vectors {
		vec := make([]float32, dim)
		for j := range vec {
			bits, _ := getU32()
			vec[j] = math.Float32frombits(bits)
		}
		vectors[i] = vec
	}

	return hdr, vectors, nil
}
