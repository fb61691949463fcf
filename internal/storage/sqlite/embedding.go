package sqlite

import (
	"encoding/binary"
	"math"
)

// serializeEmbedding encodes a vector as a little-endian float32 BLOB.
// Returns nil for an empty vector so the column stores NULL and the row is
// excluded from similarity scans.
func serializeEmbedding(embedding []float32) []byte {
	if len(embedding) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(embedding))
	for i, v := range embedding {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// deserializeEmbedding decodes a little-endian float32 BLOB produced by
// serializeEmbedding. dim is the stored dimension and must match the blob.
func deserializeEmbedding(blob []byte, dim int) ([]float32, error) {
	if len(blob) == 0 || dim <= 0 {
		return nil, nil
	}
	if len(blob) != 4*dim {
		return nil, errDimensionMismatch
	}
	embedding := make([]float32, dim)
	for i := range embedding {
		embedding[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return embedding, nil
}
