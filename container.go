package avrecord

import "errors"

// ErrTracksFinal is returned by ContainerSink.AddTrack once the container
// header has been written and the track set can no longer change.
var ErrTracksFinal = errors.New("container header written, track set is final")

// TrackInfo describes one output track. A descriptor is written once, when
// the track is negotiated from the first frame of its media type, and is
// immutable afterwards; lock-free reads from the flush path rely on that.
type TrackInfo struct {
	Kind   MediaKind
	Format FrameFormat

	// Index is the track's position in the container, assigned by the sink
	// in creation order.
	Index int

	// TimeBase is the duration of one track timestamp tick in seconds.
	TimeBase float64

	// Video geometry, valid when Kind == KindVideo.
	Width  int
	Height int

	// Audio parameters, valid when Kind == KindAudio.
	Channels   int
	SampleRate int
}

// Packet is one interleaved unit handed to the muxing backend.
type Packet struct {
	TrackIndex int
	PTS        int64 // in track time-base ticks
	Keyframe   bool
	Data       []byte
}

// ContainerSink is the opaque muxing backend behind the recorder. The
// recorder drives it through a fixed lifecycle:
//
//	AddTrack*  ->  Open  ->  WriteHeader  ->  WritePacket*  ->  WriteTrailer  ->  Close
//
// AddTrack may be called from a producer thread while the flush goroutine
// runs; implementations must make it safe against concurrent WriteHeader.
// Every step after WriteHeader is called from the flush or teardown path
// only. Close must be idempotent.
type ContainerSink interface {
	// AddTrack registers a track and returns the completed descriptor with
	// Index and TimeBase assigned. Fails if the container cannot accept a
	// track at this point.
	AddTrack(info TrackInfo) (TrackInfo, error)

	// Open acquires the output resource. A no-op for sinks that need no
	// file handle.
	Open() error

	// WriteHeader writes the container header. Called exactly once, after
	// every track has been added.
	WriteHeader() error

	// WritePacket appends one packet for interleaved writing. A failure is
	// local to the packet; the caller may keep writing.
	WritePacket(pkt *Packet) error

	// WriteTrailer finalizes the container. Only called if WriteHeader
	// succeeded.
	WriteTrailer() error

	// Close releases the output resource. Idempotent.
	Close() error
}
