// Package pipeline provides the media-pipeline collaborators the coordinator
// reads from: a running-time clock that follows play/pause state and a
// detector feed that carries content matches into the coordinator.
package pipeline
