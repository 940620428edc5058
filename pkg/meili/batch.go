package meili

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const (
	DefaultBatchSize = 1000

	// DefaultMaxPayloadSize matches the server's default http payload limit (100 MiB).
	DefaultMaxPayloadSize = 104857600
)

// Batch splits items into contiguous chunks of at most size items.
func Batch[T any](items []T, size int) ([][]T, error) {
	if size <= 0 {
		return nil, ErrInvalidBatchSize
	}

	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end])
	}
	return chunks, nil
}

// BatchBySize splits items into contiguous chunks whose JSON array encoding
// fits in maxBytes. A chunk only exceeds the bound when it holds a single item
// whose own encoding fits but whose array wrapper does not. An item whose own
// encoding exceeds maxBytes fails with ErrPayloadTooLarge.
func BatchBySize[T any](items []T, maxBytes int) ([][]T, error) {
	sizes := make([]int, len(items))
	for i, item := range items {
		encoded, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("failed to encode item %d: %w", i, err)
		}
		sizes[i] = len(encoded)
	}

	ends, err := sizeBoundaries(sizes, maxBytes)
	if err != nil {
		return nil, err
	}

	chunks := make([][]T, 0, len(ends))
	start := 0
	for _, end := range ends {
		chunks = append(chunks, items[start:end])
		start = end
	}
	return chunks, nil
}

// sizeBoundaries greedily groups encoded item sizes and returns the exclusive
// end index of every chunk. A chunk of n items costs 2 + sum(sizes) + (n-1).
func sizeBoundaries(sizes []int, maxBytes int) ([]int, error) {
	if maxBytes <= 0 {
		return nil, ErrInvalidPayloadSize
	}

	var ends []int
	current, count := 0, 0
	for i, size := range sizes {
		if size > maxBytes {
			return nil, fmt.Errorf("document %d is %d bytes, limit is %d: %w", i, size, maxBytes, ErrPayloadTooLarge)
		}

		switch {
		case count == 0:
			current, count = size+2, 1
		case current+1+size > maxBytes:
			ends = append(ends, i)
			current, count = size+2, 1
		default:
			current += 1 + size
			count++
		}
	}
	if count > 0 {
		ends = append(ends, len(sizes))
	}

	return ends, nil
}

// encodeDocuments encodes every document once so chunk sizes and request
// bodies come from the same bytes.
func encodeDocuments(documents []Document) ([]json.RawMessage, error) {
	encoded := make([]json.RawMessage, len(documents))
	for i, doc := range documents {
		raw, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("%w: document %d: %v", ErrInvalidDocument, i, err)
		}
		encoded[i] = raw
	}
	return encoded, nil
}

// payloadChunks splits encoded documents by payload size and renders each chunk
// as a JSON array body.
func payloadChunks(encoded []json.RawMessage, maxBytes int) ([][]byte, error) {
	sizes := make([]int, len(encoded))
	for i, raw := range encoded {
		sizes[i] = len(raw)
	}

	ends, err := sizeBoundaries(sizes, maxBytes)
	if err != nil {
		return nil, err
	}

	bodies := make([][]byte, 0, len(ends))
	start := 0
	for _, end := range ends {
		bodies = append(bodies, joinArray(encoded[start:end]))
		start = end
	}
	return bodies, nil
}

func joinArray(items []json.RawMessage) []byte {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, item := range items {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(item)
	}
	buf.WriteByte(']')
	return buf.Bytes()
}
