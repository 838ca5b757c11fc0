// Package replay stores confirmed batches as compressed archives so a
// session can be inspected or re-applied after the fact.
package replay

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"

	"github.com/cbodonnell/lockstep/pkg/messages"
	"github.com/cbodonnell/lockstep/pkg/network"
	"github.com/cbodonnell/lockstep/pkg/types"
)

// ErrEmptyArchive is returned when encoding no batches.
var ErrEmptyArchive = errors.New("archive has no batches")

// maxArchiveFrame bounds a single batch frame inside an archive.
const maxArchiveFrame = 16 << 20

// EncodeArchive writes batches as length-prefixed BATCH frames and
// compresses the result.
func EncodeArchive(batches []types.Batch) ([]byte, error) {
	if len(batches) == 0 {
		return nil, ErrEmptyArchive
	}

	var buf bytes.Buffer
	encoder, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd writer: %v", err)
	}

	for _, b := range batches {
		if err := network.WriteFrame(encoder, messages.SerializeBatch(b), maxArchiveFrame); err != nil {
			encoder.Close()
			return nil, fmt.Errorf("failed to write batch %d: %v", b.Tick, err)
		}
	}

	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("failed to close zstd writer: %v", err)
	}

	return buf.Bytes(), nil
}

// DecodeArchive reverses EncodeArchive.
func DecodeArchive(data []byte) ([]types.Batch, error) {
	decoder, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd reader: %v", err)
	}
	defer decoder.Close()

	batches := make([]types.Batch, 0)
	for {
		body, err := network.ReadFrame(decoder, maxArchiveFrame)
		if errors.Is(err, network.ErrConnectionClosed) {
			return batches, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read archive: %v", err)
		}

		m, err := messages.DeserializeMessage(body)
		if err != nil {
			return nil, err
		}
		if m.Kind != messages.KindBatch {
			return nil, fmt.Errorf("unexpected %s frame in archive", m.Kind)
		}
		b, err := messages.DeserializeBatch(m.Payload)
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
}

// Dump writes one line per batch, followed by an indented line for every
// command that carries a payload.
func Dump(w io.Writer, batches []types.Batch) error {
	for _, b := range batches {
		if _, err := fmt.Fprintln(w, b.String()); err != nil {
			return err
		}
		for _, c := range b.Commands {
			if c.IsSystem() || len(c.Payload) == 0 {
				continue
			}
			if _, err := fmt.Fprintf(w, "  %s payload=%x\n", c, c.Payload); err != nil {
				return err
			}
		}
	}
	return nil
}
