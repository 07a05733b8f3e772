// Package splice coordinates SCTE-35 ad-insertion signaling for a live
// transport stream.
//
// It allocates splice event identifiers, encodes splice_insert sections, and
// runs the ad window state machine that guarantees every splice-out is paired
// with exactly one splice-in. Trigger sources (periodic timers, content-match
// detectors, operator requests) feed a Scheduler through a Coordinator event
// loop; the Scheduler reads the pipeline's running clock, dispatches sections
// to the multiplexer through a weakly held handle, and arms the deferred
// splice-in.
//
// The media engine itself is external. Clock, Detector, and Multiplexer are the
// narrow interfaces this package consumes from it.
package splice
