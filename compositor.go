package avrecord

import (
	"fmt"
	"sync/atomic"
)

// Compositor is the slot-based input boundary of the conference video mixer.
// A slot is an integer identifying one input position in the mix; it must be
// activated before frames are pushed to it and deactivated when its feeder
// goes away.
type Compositor interface {
	ActivateInput(slot int)
	DeactivateInput(slot int)
	PushInput(slot int, frame *VideoFrame)
}

// VideoInput is the input-negotiation contract every compositor feeder
// implements, whether it decodes or passes frames through.
type VideoInput interface {
	// SetInput declares the format frames will arrive in.
	SetInput(format FrameFormat) error

	// UnsetInput revokes the declared format.
	UnsetInput()

	// OnFrame delivers one raw frame.
	OnFrame(format FrameFormat, frame *VideoFrame)

	// Close releases the feeder's compositor resources.
	Close() error
}

// SlotInput feeds already-decoded I420 frames straight into one compositor
// slot. It is not a decoder; it exists so a pre-decoded leg satisfies the
// same per-slot activation protocol real decoders follow. The slot is held
// for exactly the adapter's lifetime: NewSlotInput activates it, Close
// deactivates it.
type SlotInput struct {
	slot       int
	compositor Compositor
	closed     atomic.Bool
}

var _ VideoInput = (*SlotInput)(nil)

// NewSlotInput binds slot on compositor and activates it.
func NewSlotInput(slot int, compositor Compositor) *SlotInput {
	s := &SlotInput{slot: slot, compositor: compositor}
	compositor.ActivateInput(slot)
	return s
}

// Slot returns the bound slot number.
func (s *SlotInput) Slot() int { return s.slot }

// SetInput accepts only raw I420 input; there is no decode path here.
func (s *SlotInput) SetInput(format FrameFormat) error {
	if format != FormatI420 {
		return fmt.Errorf("slot input %d: unsupported format %s, only I420 accepted", s.slot, format)
	}
	return nil
}

// UnsetInput is a no-op: the slot's lifetime is bound to the adapter, not
// to set/unset calls.
func (s *SlotInput) UnsetInput() {}

// OnFrame forwards the frame into the bound slot unchanged. Frames in any
// format other than I420, or arriving after Close, are dropped.
func (s *SlotInput) OnFrame(format FrameFormat, frame *VideoFrame) {
	if format != FormatI420 || s.closed.Load() {
		return
	}
	s.compositor.PushInput(s.slot, frame)
}

// Close deactivates the slot. Idempotent; the slot is never pushed to after
// the first Close returns.
func (s *SlotInput) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		s.compositor.DeactivateInput(s.slot)
	}
	return nil
}
