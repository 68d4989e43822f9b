package avrecord

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/at-wat/ebml-go/mkvcore"
	"github.com/at-wat/ebml-go/webm"
)

// WebM/Matroska codec IDs for the supported recording formats.
func webmCodecID(format FrameFormat) (string, error) {
	switch format {
	case FormatVP8:
		return "V_VP8", nil
	case FormatH264:
		return "V_MPEG4/ISO/AVC", nil
	case FormatOpus:
		return "A_OPUS", nil
	case FormatPCMU:
		return "A_MS/ACM", nil
	default:
		return "", fmt.Errorf("format %s cannot be stored in webm", format)
	}
}

const (
	// One container tick per millisecond.
	webmTimecodeScale = 1000000
	webmTimeBase      = 0.001

	// Blocks tolerated out of order across tracks before the sorter
	// flushes them as-is.
	webmSorterQueueSize = 16
)

// WebMSink writes an interleaved WebM file through ebml-go. It implements
// ContainerSink: tracks are collected up front, the header is emitted when
// WriteHeader creates the block writers, and closing the writers finalizes
// the segment.
type WebMSink struct {
	path string

	mu            sync.Mutex
	tracks        []TrackInfo
	headerWritten bool

	file    *os.File
	writers []webm.BlockWriteCloser
	closed  bool
}

// NewWebMSink creates a sink that will record to path. The file is not
// touched until Open.
func NewWebMSink(path string) *WebMSink {
	return &WebMSink{path: path}
}

// AddTrack registers a video or audio track. Tracks can no longer be added
// once the header has been written.
func (s *WebMSink) AddTrack(info TrackInfo) (TrackInfo, error) {
	if _, err := webmCodecID(info.Format); err != nil {
		return TrackInfo{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.headerWritten {
		return TrackInfo{}, ErrTracksFinal
	}
	info.Index = len(s.tracks)
	info.TimeBase = webmTimeBase
	s.tracks = append(s.tracks, info)
	return info, nil
}

// Open creates the output file.
func (s *WebMSink) Open() error {
	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.path, err)
	}
	s.file = f
	return nil
}

// WriteHeader emits the EBML header and segment info for the tracks added
// so far and prepares one block writer per track.
func (s *WebMSink) WriteHeader() error {
	s.mu.Lock()
	tracks := make([]TrackInfo, len(s.tracks))
	copy(tracks, s.tracks)
	s.mu.Unlock()

	if s.file == nil {
		return errors.New("webm: header before open")
	}

	entries := make([]webm.TrackEntry, 0, len(tracks))
	for _, t := range tracks {
		codecID, err := webmCodecID(t.Format)
		if err != nil {
			return err
		}
		entry := webm.TrackEntry{
			Name:        t.Kind.String(),
			TrackNumber: uint64(t.Index + 1),
			TrackUID:    uint64(t.Index + 1),
			CodecID:     codecID,
		}
		switch t.Kind {
		case KindVideo:
			entry.TrackType = 1
			entry.Video = &webm.Video{
				PixelWidth:  uint64(t.Width),
				PixelHeight: uint64(t.Height),
			}
		case KindAudio:
			entry.TrackType = 2
			entry.Audio = &webm.Audio{
				SamplingFrequency: float64(t.SampleRate),
				Channels:          uint64(t.Channels),
			}
		}
		entries = append(entries, entry)
	}

	interceptor, err := mkvcore.NewMultiTrackBlockSorter(
		mkvcore.WithMaxDelayedPackets(webmSorterQueueSize),
		mkvcore.WithSortRule(mkvcore.BlockSorterWriteOutdated),
	)
	if err != nil {
		return fmt.Errorf("webm block sorter: %w", err)
	}

	writers, err := webm.NewSimpleBlockWriter(
		s.file,
		entries,
		mkvcore.WithSegmentInfo(&webm.Info{
			TimecodeScale: webmTimecodeScale,
			MuxingApp:     "avrecord",
			WritingApp:    "avrecord",
		}),
		mkvcore.WithBlockInterceptor(interceptor),
	)
	if err != nil {
		return fmt.Errorf("webm header: %w", err)
	}

	s.mu.Lock()
	s.writers = writers
	s.headerWritten = true
	s.mu.Unlock()
	return nil
}

// WritePacket appends one block to the packet's track.
func (s *WebMSink) WritePacket(pkt *Packet) error {
	if pkt.TrackIndex < 0 || pkt.TrackIndex >= len(s.writers) {
		return fmt.Errorf("webm: no track at index %d", pkt.TrackIndex)
	}
	_, err := s.writers[pkt.TrackIndex].Write(pkt.Keyframe, pkt.PTS, pkt.Data)
	return err
}

// WriteTrailer closes every block writer, which finalizes the segment and
// patches the duration.
func (s *WebMSink) WriteTrailer() error {
	var first error
	for _, w := range s.writers {
		if err := w.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Close releases the output file. Closing the block writers already closes
// the underlying file, so a second close here is tolerated.
func (s *WebMSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.file == nil {
		return nil
	}
	s.closed = true
	if err := s.file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}
	return nil
}
