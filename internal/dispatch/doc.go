// Package dispatch delivers inbound socket events to observers.
//
// Each wired socket gets its own queue and pump goroutine. Socket handlers
// only enqueue, so a slow observer never stalls a socket read loop, and
// events from one socket reach observers in the order they were received.
// There is no ordering between the game and chat sockets.
package dispatch
