package meshopt

import (
	"errors"
	"fmt"
)

const (
	indexHeader byte = 0xE1 // triangle stream, version 1

	fifoSize = 16
)

// ErrIndexCount reports an index stream that is not a triangle list.
var ErrIndexCount = errors.New("meshopt: index count is not a multiple of 3")

type edge struct {
	a, b uint32
}

// EncodeIndexBuffer compresses a u32 triangle list (logical stride 4).
// Triangles sharing an edge with a recently emitted triangle encode as a
// one-byte FIFO reference plus the third vertex; cold triangles escape
// to explicit vertex encoding. Vertices are delta-coded against the most
// recently seen vertex with a zigzag varint.
func (c *Codec) EncodeIndexBuffer(indices []uint32) ([]byte, error) {
	if len(indices)%3 != 0 {
		return nil, fmt.Errorf("%w: %d", ErrIndexCount, len(indices))
	}
	if len(indices) == 0 {
		return nil, ErrEmpty
	}

	out := []byte{indexHeader}

	var edgeFifo [fifoSize]edge
	edgeCursor := 0
	pushEdge := func(a, b uint32) {
		edgeFifo[edgeCursor%fifoSize] = edge{a, b}
		edgeCursor++
	}
	findEdge := func(a, b uint32) int {
		depth := edgeCursor
		if depth > fifoSize {
			depth = fifoSize
		}
		// Most recent first.
		for i := 1; i <= depth; i++ {
			e := edgeFifo[(edgeCursor-i)%fifoSize]
			if e.a == a && e.b == b {
				return i - 1
			}
		}
		return -1
	}

	last := uint32(0)
	emitVertex := func(v uint32) {
		out = appendZigzagVarint(out, int64(v)-int64(last))
		last = v
	}

	for t := 0; t < len(indices); t += 3 {
		a, b, c3 := indices[t], indices[t+1], indices[t+2]

		// Try each rotation against the reversed shared edge.
		emitted := false
		rot := [3][3]uint32{{a, b, c3}, {b, c3, a}, {c3, a, b}}
		for _, r := range rot {
			if slot := findEdge(r[0], r[1]); slot >= 0 {
				// 0x00..0x0F: edge FIFO slot; third vertex follows.
				out = append(out, byte(slot))
				emitVertex(r[2])
				pushEdge(r[2], r[1])
				pushEdge(r[0], r[2])
				emitted = true
				break
			}
		}
		if emitted {
			continue
		}

		// 0xFF: cold triangle, three explicit vertices.
		out = append(out, 0xFF)
		emitVertex(a)
		emitVertex(b)
		emitVertex(c3)
		pushEdge(b, a)
		pushEdge(c3, b)
		pushEdge(a, c3)
	}

	return out, nil
}

func appendZigzagVarint(out []byte, v int64) []byte {
	u := uint64((v << 1) ^ (v >> 63))
	for u >= 0x80 {
		out = append(out, byte(u)|0x80)
		u >>= 7
	}
	return append(out, byte(u))
}
