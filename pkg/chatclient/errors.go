package chatclient

import "errors"

var (
	// ErrMissingToken Initialize called without a bearer token
	ErrMissingToken = errors.New("chatclient: no auth token supplied")
	// ErrAuthRejected the server refused the token at handshake; fatal for
	// the attempt, never retried with the same token
	ErrAuthRejected = errors.New("chatclient: authentication rejected")
	// ErrNotConnected an operation needs a live session and there is none
	ErrNotConnected = errors.New("chatclient: no live session")
	// ErrTransportLost the connection dropped mid-session; reconnection is
	// automatic, this only surfaces through state callbacks or a capped
	// retry policy
	ErrTransportLost = errors.New("chatclient: transport lost")
	// ErrRoomRejected the server declined the room for a send
	ErrRoomRejected = errors.New("chatclient: room rejected by server")
	// ErrEmptyContent message content empty after trimming
	ErrEmptyContent = errors.New("chatclient: empty message content")
	// ErrContentTooLong message content over the server limit
	ErrContentTooLong = errors.New("chatclient: message content too long")
	// ErrInvalidMessage the server rejected the message content
	ErrInvalidMessage = errors.New("chatclient: message rejected as invalid")
	// ErrAckTimeout no send acknowledgment arrived in time
	ErrAckTimeout = errors.New("chatclient: send acknowledgment timed out")
)
