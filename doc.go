// Package avrecord implements the recording pipeline of a multipoint media
// server: encoded audio and video frames arriving from independent conference
// legs are buffered per media type, output tracks are negotiated lazily from
// the first frame of each type, and a periodic flush drains the buffers into
// an interleaved container file with millisecond presentation timestamps.
//
// Key pieces include:
//   - Recorder, the timer-driven ingestion/muxing session
//   - MediaFrameQueue, the per-media-type FIFO between producers and the flush
//   - ContainerSink, the opaque muxing backend boundary, with a WebM
//     implementation backed by ebml-go
//   - SlotInput, the compositor-facing pass-through input adapter
//
// # Architecture
//
//	Record:  producer legs -> Recorder.OnFrame -> MediaFrameQueue -> flush tick -> ContainerSink
//	Mix:     decoded frames -> SlotInput.OnFrame -> Compositor slot
//
// A Recorder accepts exactly one video codec and one audio codec per session,
// fixed by the first frame of each type. Mixing codecs within a type, or
// feeding an unrecognized format, moves the session to a terminal error state
// in which all further input is discarded. The container header is written
// once, on the first flush tick after both tracks exist; a session torn down
// cleanly also writes the trailer.
//
// # Supported Formats
//
// Video: VP8, H.264. Audio: PCMU (G.711 mu-law), Opus. Raw I420 frames are
// handled only by SlotInput on the compositor path.
package avrecord
