// Package database builds PostgreSQL connection pools from configuration.
//
// The credential store's postgres backend is the only consumer; it keeps
// one small pool per process.
package database
