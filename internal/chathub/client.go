package chathub

import "chatrelay/backend/internal/models"

// Client is one live connection as seen by the hub. It abstracts the transport so
// the registry and relay can be exercised without a network.
type Client interface {
	// GetConnID returns the connection identifier (the "socketId" of the online set).
	GetConnID() string
	// GetUserID returns the identity bound by addNewUser, or "" before registration.
	GetUserID() string
	// SetUserID is called by the hub when the connection registers an identity.
	SetUserID(string)

	// GetSendChannel returns the channel the hub writes outgoing events to.
	GetSendChannel() chan<- models.Event

	// Run starts the read and write pumps.
	Run()
	// Close stops the write pump by closing the send channel. Only the hub calls it,
	// exactly once, after it forgot the client.
	Close()
}
