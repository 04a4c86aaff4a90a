// Package lifecycle owns the backend client, the game and chat socket
// handles, and the session, and drives them through connect, disconnect,
// and reconnect.
//
// Phases of the Manager:
//
//	Uninitialized -> Initialized -> Connecting -> Connected -> Disconnecting -> Disconnected
//
// Initialized and Disconnected both accept RestoreSession. Each socket
// handle tracks its own ConnectionState; State reports the aggregate.
//
// A Trigger drives the manager from an external verified flag through Watch.
package lifecycle
