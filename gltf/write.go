package gltf

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// Pad returns the number of bytes needed to round length up to the
// container's 4-byte alignment.
func Pad(length int) int {
	if rem := length % chunkAlign; rem != 0 {
		return chunkAlign - rem
	}
	return 0
}

// EncodeGLB frames a document and its binary blob as a glTF-Binary file.
// The JSON chunk is padded with ASCII spaces, the BIN chunk with zeros,
// and the header length equals the total file length.
func EncodeGLB(doc *Document, bin []byte) ([]byte, error) {
	jsonBytes, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("gltf: encoding JSON chunk: %w", err)
	}
	jsonPad := Pad(len(jsonBytes))
	binPad := Pad(len(bin))

	total := headerSize + 8 + len(jsonBytes) + jsonPad
	if len(bin) > 0 {
		total += 8 + len(bin) + binPad
	}

	var buf bytes.Buffer
	buf.Grow(total)

	writeU32 := func(v uint32) {
		var tmp [4]byte
		binary.LittleEndian.PutUint32(tmp[:], v)
		buf.Write(tmp[:])
	}

	writeU32(MagicGLB)
	writeU32(2)
	writeU32(uint32(total))

	writeU32(uint32(len(jsonBytes) + jsonPad))
	writeU32(ChunkJSON)
	buf.Write(jsonBytes)
	for i := 0; i < jsonPad; i++ {
		buf.WriteByte(0x20)
	}

	if len(bin) > 0 {
		writeU32(uint32(len(bin) + binPad))
		writeU32(ChunkBIN)
		buf.Write(bin)
		for i := 0; i < binPad; i++ {
			buf.WriteByte(0x00)
		}
	}

	return buf.Bytes(), nil
}
