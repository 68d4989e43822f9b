package avrecord

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pion/rtp"
	"github.com/sirupsen/logrus"
)

// RecorderState tracks the container lifecycle of a recording session.
type RecorderState int

const (
	StateEmpty RecorderState = iota // waiting for both tracks to negotiate
	StateReady                      // header written, draining queues
	StateError                      // terminal, all input discarded
)

func (s RecorderState) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Notifier receives the recorder's fatal-condition events. Exactly three
// situations emit one: sink-open failure, header-write failure, and each
// flush tick spent in the terminal error state.
type Notifier interface {
	NotifyEvent(category, message string)
}

// Event category used for every recorder notification.
const EventRecordingStream = "RecordingStream"

// Fixed defaults for PCMU legs that do not declare their audio parameters.
const (
	pcmuDefaultSampleRate = 8000
	pcmuDefaultChannels   = 1
)

// RecorderConfig configures a recording session. Path and FlushInterval are
// fixed for the session's lifetime.
type RecorderConfig struct {
	Path          string        // output container file
	FlushInterval time.Duration // flush tick period (default: 100ms)
	Sink          ContainerSink // muxing backend (default: WebM at Path)
	Notifier      Notifier      // optional fatal-event collaborator
	Logger        *logrus.Entry // optional; a session-tagged entry is derived
}

// RecorderStats counts the recorder's observable work.
type RecorderStats struct {
	VideoFramesQueued uint64
	AudioFramesQueued uint64
	PacketsWritten    uint64
	PacketsDropped    uint64
}

// Recorder ingests encoded frames from any number of producer legs and
// muxes them into a single container file on a fixed timer cadence.
//
// OnFrame may be called concurrently from one producer per media type; the
// flush runs on its own goroutine. The session mutex covers track creation
// and state, never blocking I/O: descriptors are write-once, so the flush
// path reads them without the lock once they exist.
type Recorder struct {
	id   string
	sink ContainerSink
	log  *logrus.Entry

	notifier Notifier

	mu            sync.Mutex
	state         RecorderState
	videoTrack    *TrackInfo
	audioTrack    *TrackInfo
	trailerNeeded bool

	videoQueue *MediaFrameQueue
	audioQueue *MediaFrameQueue

	videoQueued    atomic.Uint64
	audioQueued    atomic.Uint64
	packetsWritten atomic.Uint64
	packetsDropped atomic.Uint64

	stop      chan struct{}
	flushDone sync.WaitGroup
	closeOnce sync.Once
}

// NewRecorder creates a recording session and starts its flush timer.
func NewRecorder(config RecorderConfig) (*Recorder, error) {
	if config.FlushInterval <= 0 {
		config.FlushInterval = 100 * time.Millisecond
	}
	if config.Sink == nil {
		if config.Path == "" {
			return nil, fmt.Errorf("recorder: output path required")
		}
		config.Sink = NewWebMSink(config.Path)
	}

	id := uuid.NewString()
	log := config.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	r := &Recorder{
		id:         id,
		sink:       config.Sink,
		log:        log.WithField("session", id),
		notifier:   config.Notifier,
		videoQueue: NewMediaFrameQueue(),
		audioQueue: NewMediaFrameQueue(),
		stop:       make(chan struct{}),
	}

	r.flushDone.Add(1)
	go r.flushLoop(config.FlushInterval)

	r.log.Debug("recorder created")
	return r, nil
}

// ID returns the session identifier used in log correlation.
func (r *Recorder) ID() string { return r.id }

// State returns the current lifecycle state.
func (r *Recorder) State() RecorderState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Stats returns a snapshot of the session counters.
func (r *Recorder) Stats() RecorderStats {
	return RecorderStats{
		VideoFramesQueued: r.videoQueued.Load(),
		AudioFramesQueued: r.audioQueued.Load(),
		PacketsWritten:    r.packetsWritten.Load(),
		PacketsDropped:    r.packetsDropped.Load(),
	}
}

// OnFrame routes one encoded frame from a producer leg into the matching
// queue, negotiating the output track on the first frame of each type.
// In the terminal error state every frame is silently discarded.
func (r *Recorder) OnFrame(frame *Frame) {
	r.mu.Lock()
	if r.state == StateError {
		r.mu.Unlock()
		return
	}

	switch frame.Format {
	case FormatVP8, FormatH264:
		if r.videoTrack == nil {
			if frame.Video.Width <= 0 || frame.Video.Height <= 0 {
				// No geometry yet; wait for a frame that carries it.
				r.mu.Unlock()
				return
			}
			if !r.addVideoTrackLocked(frame) {
				r.mu.Unlock()
				return
			}
		} else if r.videoTrack.Format != frame.Format {
			r.log.Errorf("different video frame formats cannot be recorded together: have %s, got %s",
				r.videoTrack.Format, frame.Format)
			r.state = StateError
			r.mu.Unlock()
			return
		}
		r.mu.Unlock()

		r.videoQueue.Push(newEncodedFrame(frame.Payload, frame.TimestampMs, frame.Keyframe))
		r.videoQueued.Add(1)

	case FormatPCMU, FormatOpus:
		if r.videoTrack != nil && r.audioTrack == nil {
			// Video first: the audio track is only added once video exists.
			if !r.addAudioTrackLocked(frame) {
				r.mu.Unlock()
				return
			}
		} else if r.audioTrack != nil && r.audioTrack.Format != frame.Format {
			r.log.Errorf("different audio frame formats cannot be recorded together: have %s, got %s",
				r.audioTrack.Format, frame.Format)
			r.state = StateError
			r.mu.Unlock()
			return
		}
		r.mu.Unlock()

		payload := frame.Payload
		if frame.Audio.IsRTPPacket {
			stripped, err := stripRTPHeader(payload)
			if err != nil {
				r.log.WithError(err).Error("dropping audio frame with malformed rtp framing")
				return
			}
			payload = stripped
		}
		r.audioQueue.Push(newEncodedFrame(payload, frame.TimestampMs, frame.Keyframe))
		r.audioQueued.Add(1)

	default:
		r.log.Errorf("improper frame format %s: only VP8/H264 and PCMU/Opus can be recorded", frame.Format)
		r.state = StateError
		r.mu.Unlock()
	}
}

// addVideoTrackLocked negotiates the video track from the first video frame.
// Caller holds r.mu.
func (r *Recorder) addVideoTrackLocked(frame *Frame) bool {
	info, err := r.sink.AddTrack(TrackInfo{
		Kind:   KindVideo,
		Format: frame.Format,
		Width:  frame.Video.Width,
		Height: frame.Video.Height,
	})
	if err != nil {
		r.log.WithError(err).Error("cannot add video track")
		r.state = StateError
		return false
	}
	r.videoTrack = &info
	r.log.Debugf("video track added: %dx%d, %s", info.Width, info.Height, info.Format)
	return true
}

// addAudioTrackLocked negotiates the audio track from the first audio frame
// that arrives after the video track exists. Caller holds r.mu.
func (r *Recorder) addAudioTrackLocked(frame *Frame) bool {
	channels := frame.Audio.Channels
	sampleRate := frame.Audio.SampleRate
	if frame.Format == FormatPCMU {
		if sampleRate == 0 {
			sampleRate = pcmuDefaultSampleRate
		}
		if channels == 0 {
			channels = pcmuDefaultChannels
		}
	}

	info, err := r.sink.AddTrack(TrackInfo{
		Kind:       KindAudio,
		Format:     frame.Format,
		Channels:   channels,
		SampleRate: sampleRate,
	})
	if err != nil {
		r.log.WithError(err).Error("cannot add audio track")
		r.state = StateError
		return false
	}
	r.audioTrack = &info
	r.log.Debugf("audio track added: %d channel(s), %d Hz, %s", info.Channels, info.SampleRate, info.Format)
	return true
}

// stripRTPHeader removes the fixed+variable RTP header from payload and
// returns the remaining media bytes.
func stripRTPHeader(payload []byte) ([]byte, error) {
	var h rtp.Header
	n, err := h.Unmarshal(payload)
	if err != nil {
		return nil, fmt.Errorf("rtp header: %w", err)
	}
	return payload[n:], nil
}

// flushLoop runs the fixed-cadence flush until Close. The stop signal is
// checked before every tick; a tick in progress when Close is requested
// runs to completion.
func (r *Recorder) flushLoop(interval time.Duration) {
	defer r.flushDone.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.tick()
		}
	}
}

// tick advances the container lifecycle and drains both queues.
func (r *Recorder) tick() {
	r.mu.Lock()
	switch r.state {
	case StateEmpty:
		if r.videoTrack == nil || r.audioTrack == nil {
			r.mu.Unlock()
			return
		}
		r.mu.Unlock()

		// Sink open and header write happen outside the lock; the track
		// set is already fixed and descriptors are immutable.
		if err := r.sink.Open(); err != nil {
			r.log.WithError(err).Error("open output failed")
			r.setError()
			r.notify("output file does not exist or cannot be opened for write")
			return
		}
		if err := r.sink.WriteHeader(); err != nil {
			r.log.WithError(err).Error("write container header failed")
			r.setError()
			r.notify("write file header error")
			return
		}

		r.mu.Lock()
		r.trailerNeeded = true
		r.state = StateReady
		r.mu.Unlock()
		r.log.Debug("container ready")

	case StateReady:
		r.mu.Unlock()

	case StateError:
		r.mu.Unlock()
		r.notify("context initialization failed")
		return
	}

	r.mu.Lock()
	video, audio := r.videoTrack, r.audioTrack
	r.mu.Unlock()

	for f := r.audioQueue.Pop(); f != nil; f = r.audioQueue.Pop() {
		r.writeFrame(audio, f)
	}
	for f := r.videoQueue.Pop(); f != nil; f = r.videoQueue.Pop() {
		r.writeFrame(video, f)
	}
}

// writeFrame converts one buffered frame to a packet in the track's time
// base and submits it. A submission failure drops the frame only.
func (r *Recorder) writeFrame(track *TrackInfo, f *EncodedFrame) {
	pts := int64(float64(f.TimestampMs) / (track.TimeBase * 1000))
	pkt := &Packet{
		TrackIndex: track.Index,
		PTS:        pts,
		Keyframe:   f.Keyframe,
		Data:       f.Payload,
	}
	if err := r.sink.WritePacket(pkt); err != nil {
		r.packetsDropped.Add(1)
		r.log.WithError(err).Warnf("dropping %s packet at pts %d", track.Kind, pts)
		return
	}
	r.packetsWritten.Add(1)
}

func (r *Recorder) setError() {
	r.mu.Lock()
	r.state = StateError
	r.mu.Unlock()
}

func (r *Recorder) notify(message string) {
	if r.notifier != nil {
		r.notifier.NotifyEvent(EventRecordingStream, message)
	}
}

// Close tears the session down: the flush timer is stopped first, then the
// trailer is written if the header ever was, then the sink is released.
// Every step is best-effort and independent of the others. Close is
// idempotent and never fails.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		close(r.stop)
		r.flushDone.Wait()

		r.mu.Lock()
		trailer := r.trailerNeeded
		r.trailerNeeded = false
		r.mu.Unlock()

		if trailer {
			if err := r.sink.WriteTrailer(); err != nil {
				r.log.WithError(err).Error("write container trailer failed")
			}
		}
		if err := r.sink.Close(); err != nil {
			r.log.WithError(err).Error("close sink failed")
		}
		r.log.Debug("recorder closed")
	})
	return nil
}
