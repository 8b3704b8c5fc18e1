// Package artifact renders and stores the exportable outputs of a finished
// build: the JSON artifact and a Showdown-style paste of the team.
//
// Rendering is pure; the Store implementations provide swappable persistence
// backends. Callers should depend on the Store interface rather than the
// concrete in-memory type so tests and production can substitute durable
// object stores.
package artifact
