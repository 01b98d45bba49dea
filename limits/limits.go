// Package limits provides centralized size limits for outbound STUN messages.
// This keeps validation consistent between the socket and the transports.
package limits

import (
	"errors"
	"fmt"
)

const (
	// MaxDatagramMessage is the largest UDP payload over IPv4
	// (65535 - 8 byte UDP header - 20 byte IP header).
	MaxDatagramMessage = 65507

	// MaxStreamMessage is the absolute maximum for one stream write.
	// This prevents a single caller from queueing unbounded memory.
	MaxStreamMessage = 1024 * 1024
)

var (
	// ErrMessageEmpty indicates an empty message was provided
	ErrMessageEmpty = errors.New("empty message")

	// ErrMessageTooLarge indicates message exceeds maximum size
	ErrMessageTooLarge = errors.New("message too large")
)

// ValidateMessageSize validates a message against the specified maximum size.
// Returns an error with context including the actual and maximum sizes.
func ValidateMessageSize(message []byte, maxSize int) error {
	if len(message) == 0 {
		return ErrMessageEmpty
	}
	if len(message) > maxSize {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrMessageTooLarge, len(message), maxSize)
	}
	return nil
}

// ValidateDatagramMessage validates a message that must fit in one datagram.
func ValidateDatagramMessage(message []byte) error {
	if err := ValidateMessageSize(message, MaxDatagramMessage); err != nil {
		return fmt.Errorf("datagram: %w", err)
	}
	return nil
}

// ValidateStreamMessage validates a message written to a stream transport.
func ValidateStreamMessage(message []byte) error {
	if err := ValidateMessageSize(message, MaxStreamMessage); err != nil {
		return fmt.Errorf("stream write: %w", err)
	}
	return nil
}
