// Package app assembles the tracker's components from configuration and
// runs them as a single service: the venue client, the store, the sync
// and snapshot schedulers, the analytics engine and the HTTP API.
package app
