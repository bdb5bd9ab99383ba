package progress

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	ackByte      byte = 0x06
	maxFrameSize      = 64 << 10
)

// ErrFrameTooLarge is returned for frames over the size limit.
var ErrFrameTooLarge = errors.New("progress frame too large")

func writeFrame(w io.Writer, payload []byte) error {
	if len(payload) > maxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}
	buf := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload))) //nolint:gosec
	copy(buf[4:], payload)
	_, err := w.Write(buf)
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(header[:])
	if size > maxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, size)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return payload, nil
}

func readAck(r io.Reader) error {
	var ack [1]byte
	if _, err := io.ReadFull(r, ack[:]); err != nil {
		return err
	}
	if ack[0] != ackByte {
		return fmt.Errorf("unexpected ack byte 0x%02x", ack[0])
	}
	return nil
}

func writeAck(w io.Writer) error {
	_, err := w.Write([]byte{ackByte})
	return err
}
