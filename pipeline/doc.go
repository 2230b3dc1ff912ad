// Package pipeline implements the streaming closed-loop signal path: raw
// samples flow through bandpass filters into event detectors, and triggers
// arbitrate detections into stimulation timestamps.
//
// A [SignalProcessor] owns registries of filters, detectors, and triggers
// instantiated from a config.Config and wired by string ids. Processing is
// strictly synchronous and single-threaded: RunChunk walks every sample
// through filters, detectors, and triggers in registration order, sharing a
// string-keyed [Results] scratch map, and surfaces the first trigger
// timestamp of the chunk. One processor instance handles one channel; it is
// not safe for concurrent use.
package pipeline
