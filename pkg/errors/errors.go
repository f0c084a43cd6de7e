package errors

import "errors"

// Authentication errors
var (
	// ErrAuthFailed is returned when a websocket handshake is rejected
	ErrAuthFailed = errors.New("authentication failed")

	// ErrInvalidToken is returned when an access token cannot be verified
	ErrInvalidToken = errors.New("invalid token")

	// ErrInvalidCredentials is returned when a login attempt fails
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Connection and delivery errors
var (
	// ErrNotConnected is returned when the target identity has no live connection
	ErrNotConnected = errors.New("not connected")

	// ErrSendBufferFull is returned when a client's send buffer overflows
	ErrSendBufferFull = errors.New("send buffer full")

	// ErrHubStopped is returned when the hub serving loop is not running
	ErrHubStopped = errors.New("hub stopped")
)

// Protocol errors
var (
	// ErrInvalidMessage is returned when an inbound message is malformed
	ErrInvalidMessage = errors.New("invalid message")

	// ErrUnknownCommand is returned for unrecognized inbound message types
	ErrUnknownCommand = errors.New("unknown command")

	// ErrPermissionDenied is returned when a privileged command lacks the required role
	ErrPermissionDenied = errors.New("insufficient permissions")
)

// Storage errors
var (
	// ErrStorageNotInitialized is returned when storage is not initialized
	ErrStorageNotInitialized = errors.New("storage not initialized")

	// ErrUserNotFound is returned when a user lookup finds no row
	ErrUserNotFound = errors.New("user not found")

	// ErrPackageNotFound is returned when a package lookup finds no row
	ErrPackageNotFound = errors.New("package not found")

	// ErrDeliveryNotFound is returned when a delivery lookup finds no row
	ErrDeliveryNotFound = errors.New("delivery not found")
)

// Configuration errors
var (
	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")
)
