// Package connection is the backend client facade.
//
// A Client is created once per process from the server key and address. It
// decodes stored tokens into sessions, refreshes them over REST, and allocates
// Sockets. A Socket is one persistent websocket to the realtime endpoint:
//   - Connect dials with the session token, bounded by a timeout
//   - Disconnect closes the connection or aborts an in-flight dial
//   - inbound frames are decoded and passed to registered Handlers in receipt order
//   - a keepalive loop pings the server and reports stale connections through OnDrop
//
// Sockets are reusable: the same Socket may connect again after a Disconnect
// or a drop.
package connection
