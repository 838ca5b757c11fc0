package network

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
)

const (
	// FrameHeaderSize is the size of the big-endian length prefix of every frame
	FrameHeaderSize = 4
	// DefaultMaxFrameSize bounds the body of a frame when no limit is configured
	DefaultMaxFrameSize = 1 << 20
)

var (
	// ErrConnectionClosed is returned once the connection has been closed
	// by either side.
	ErrConnectionClosed = errors.New("connection closed")
	// ErrWouldBlock is returned by TryReceive when no frame is buffered.
	ErrWouldBlock = errors.New("no frame available")
	// ErrSendQueueFull is returned by Send when the outbound queue is full.
	ErrSendQueueFull = errors.New("send queue is full")
)

// ErrFrameTooLarge is returned for frames whose body exceeds the limit.
type ErrFrameTooLarge struct {
	Size int
	Max  int
}

func (e *ErrFrameTooLarge) Error() string {
	return fmt.Sprintf("frame of %d bytes exceeds the maximum of %d bytes", e.Size, e.Max)
}

func IsFrameTooLarge(err error) bool {
	var target *ErrFrameTooLarge
	return errors.As(err, &target)
}

// WriteFrame writes body prefixed with its length in a single write.
func WriteFrame(w io.Writer, body []byte, max int) error {
	if max <= 0 {
		max = DefaultMaxFrameSize
	}
	if len(body) > max {
		return &ErrFrameTooLarge{Size: len(body), Max: max}
	}
	buf := make([]byte, FrameHeaderSize+len(body))
	binary.BigEndian.PutUint32(buf, uint32(len(body)))
	copy(buf[FrameHeaderSize:], body)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// ReadFrame reads one frame, reassembling partial reads.
func ReadFrame(r io.Reader, max int) ([]byte, error) {
	if max <= 0 {
		max = DefaultMaxFrameSize
	}
	var header [FrameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, translateReadError(err)
	}
	size := binary.BigEndian.Uint32(header[:])
	if uint64(size) > uint64(max) {
		return nil, &ErrFrameTooLarge{Size: int(size), Max: max}
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, translateReadError(err)
	}
	return body, nil
}

func translateReadError(err error) error {
	if isClosedError(err) {
		return ErrConnectionClosed
	}
	return fmt.Errorf("failed to read frame: %w", err)
}

func isClosedError(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, ErrConnectionClosed)
}

func isTimeout(err error) bool {
	return errors.Is(err, os.ErrDeadlineExceeded)
}
