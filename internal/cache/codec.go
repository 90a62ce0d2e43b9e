package cache

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
)

// Cache file layout. Embeddings are serialized as base64-encoded
// little-endian float32 blobs: one numeric width at every boundary, so a
// save/load round trip reproduces vectors bit for bit. The dimension is
// recorded once and every blob is validated against it on load.
const formatVersion = 1

type fileEnvelope struct {
	Version   int                  `json:"version"`
	Dimension int                  `json:"dimension"`
	Entries   map[string]fileEntry `json:"entries"`
}

type fileEntry struct {
	ModTimeNanos int64    `json:"mtime_unix_ns"`
	Chunks       []string `json:"chunks"`
	Vectors      []string `json:"vectors"`
}

func encodeEntries(entries map[string]*Entry) ([]byte, error) {
	env := fileEnvelope{
		Version: formatVersion,
		Entries: make(map[string]fileEntry, len(entries)),
	}

	for name, entry := range entries {
		if len(entry.Chunks) != len(entry.Vectors) {
			return nil, fmt.Errorf("entry %s: %d chunks but %d vectors", name, len(entry.Chunks), len(entry.Vectors))
		}

		fe := fileEntry{
			ModTimeNanos: entry.ModTimeNanos,
			Chunks:       entry.Chunks,
			Vectors:      make([]string, len(entry.Vectors)),
		}
		for i, vec := range entry.Vectors {
			if env.Dimension == 0 {
				env.Dimension = len(vec)
			} else if len(vec) != env.Dimension {
				return nil, fmt.Errorf("entry %s: vector dimension %d, expected %d", name, len(vec), env.Dimension)
			}
			fe.Vectors[i] = base64.StdEncoding.EncodeToString(serializeVector(vec))
		}
		env.Entries[name] = fe
	}

	return json.MarshalIndent(env, "", " ")
}

func decodeEntries(data []byte) (map[string]*Entry, error) {
	var env fileEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}

	if env.Version != formatVersion {
		return nil, fmt.Errorf("unsupported cache version %d", env.Version)
	}

	entries := make(map[string]*Entry, len(env.Entries))
	for name, fe := range env.Entries {
		if len(fe.Chunks) != len(fe.Vectors) {
			return nil, fmt.Errorf("entry %s: %d chunks but %d vectors", name, len(fe.Chunks), len(fe.Vectors))
		}

		entry := &Entry{
			ModTimeNanos: fe.ModTimeNanos,
			Chunks:       fe.Chunks,
			Vectors:      make([][]float32, len(fe.Vectors)),
		}
		for i, enc := range fe.Vectors {
			blob, err := base64.StdEncoding.DecodeString(enc)
			if err != nil {
				return nil, fmt.Errorf("entry %s: vector %d: %v", name, i, err)
			}
			if len(blob) != env.Dimension*4 {
				return nil, fmt.Errorf("entry %s: vector %d has %d bytes, expected %d", name, i, len(blob), env.Dimension*4)
			}
			entry.Vectors[i] = deserializeVector(blob)
		}
		entries[name] = entry
	}

	return entries, nil
}

// serializeVector converts a float32 slice to a little-endian byte blob.
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice.
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}
