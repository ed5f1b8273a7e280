// Package cli implements the mockserver command line: serve, validate and
// a set of commands that drive a running server through its admin API.
package cli
