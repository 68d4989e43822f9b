// Core frame and format types used across the recording pipeline.
package avrecord

// MediaKind separates the two buffered media paths.
type MediaKind int

const (
	KindUnknown MediaKind = iota
	KindVideo
	KindAudio
)

func (k MediaKind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	default:
		return "unknown"
	}
}

// FrameFormat identifies the payload format of an incoming frame.
type FrameFormat int

const (
	FormatUnknown FrameFormat = iota
	FormatVP8
	FormatH264
	FormatPCMU // G.711 mu-law
	FormatOpus
	FormatI420 // raw video, compositor path only
)

func (f FrameFormat) String() string {
	switch f {
	case FormatVP8:
		return "VP8"
	case FormatH264:
		return "H264"
	case FormatPCMU:
		return "PCMU"
	case FormatOpus:
		return "Opus"
	case FormatI420:
		return "I420"
	default:
		return "Unknown"
	}
}

// Kind returns the media kind this format belongs to.
func (f FrameFormat) Kind() MediaKind {
	switch f {
	case FormatVP8, FormatH264, FormatI420:
		return KindVideo
	case FormatPCMU, FormatOpus:
		return KindAudio
	default:
		return KindUnknown
	}
}

// ClockRate returns the RTP clock rate for this format.
func (f FrameFormat) ClockRate() uint32 {
	switch f {
	case FormatVP8, FormatH264, FormatI420:
		return 90000
	case FormatPCMU:
		return 8000
	case FormatOpus:
		return 48000
	default:
		return 0
	}
}

// VideoFrameInfo carries the video-only metadata of a Frame.
type VideoFrameInfo struct {
	Width  int
	Height int
}

// AudioFrameInfo carries the audio-only metadata of a Frame.
type AudioFrameInfo struct {
	Channels   int
	SampleRate int
	// IsRTPPacket marks a payload that still carries its RTP header.
	// The recorder strips exactly the header before buffering.
	IsRTPPacket bool
}

// Frame is one unit of encoded media as delivered by a producer leg.
// The payload is owned by the producer and only borrowed for the duration
// of the OnFrame call; the recorder copies what it keeps.
type Frame struct {
	Format      FrameFormat
	Payload     []byte
	TimestampMs int64 // presentation timestamp, ingestion clock
	Keyframe    bool
	Video       VideoFrameInfo // valid for video formats
	Audio       AudioFrameInfo // valid for audio formats
}

// EncodedFrame is the buffered form of a frame: an owned payload plus the
// timing needed to emit it. Ownership moves from the dispatcher into the
// queue and from the queue to the flush path; it is never shared.
type EncodedFrame struct {
	Payload     []byte
	TimestampMs int64
	Keyframe    bool
}

// newEncodedFrame copies payload into a frame the queue can own.
func newEncodedFrame(payload []byte, timestampMs int64, keyframe bool) *EncodedFrame {
	buf := make([]byte, len(payload))
	copy(buf, payload)
	return &EncodedFrame{
		Payload:     buf,
		TimestampMs: timestampMs,
		Keyframe:    keyframe,
	}
}

// VideoFrame represents a raw decoded video frame on the compositor path.
// The Data slices may point to memory owned by the decoder; callers must
// ensure the data remains valid while the frame is in flight.
type VideoFrame struct {
	Data        [][]byte    // plane data (Y, U, V for I420)
	Stride      []int       // stride per plane in bytes
	Width       int         // frame width in pixels
	Height      int         // frame height in pixels
	Format      FrameFormat // pixel layout, FormatI420 for this pipeline
	TimestampMs int64       // presentation timestamp
}

// Clone creates a deep copy of the video frame.
func (f *VideoFrame) Clone() *VideoFrame {
	clone := &VideoFrame{
		Data:        make([][]byte, len(f.Data)),
		Stride:      make([]int, len(f.Stride)),
		Width:       f.Width,
		Height:      f.Height,
		Format:      f.Format,
		TimestampMs: f.TimestampMs,
	}
	copy(clone.Stride, f.Stride)
	for i, plane := range f.Data {
		if plane != nil {
			clone.Data[i] = make([]byte, len(plane))
			copy(clone.Data[i], plane)
		}
	}
	return clone
}
