// Package refresher keeps the active session's token fresh.
//
// The Refresher:
//   - Checks the current session on a fixed interval
//   - Refreshes it once the token expires within the refresh window
//   - Skips sessions without a usable refresh token
//   - Leaves failures to the next tick; the sockets keep their connection
package refresher
