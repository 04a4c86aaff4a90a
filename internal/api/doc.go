// Package api provides the REST client for the realtime backend's session endpoints.
//
// Requests authenticate with HTTP basic auth using the server key as the
// username and an empty password. Only session refresh is needed by the
// connection lifecycle; everything else goes over the realtime sockets.
package api
