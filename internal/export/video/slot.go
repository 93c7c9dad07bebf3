// Package video encodes listing frames into video files, either by stitching
// settled stills or by recording a paced live capture.
package video

import (
	"context"
	"errors"
	"image"
	"io"
	"log"
	"sync"
	"time"

	"github.com/listingcast/api/internal/exporterr"
)

// ErrSlotClosed is returned by Acquire after Close.
var ErrSlotClosed = errors.New("video encoder slot is closed")

// Container describes an encoded file
type Container struct {
	Ext         string
	ContentType string
}

var (
	MP4  = Container{Ext: "mp4", ContentType: "video/mp4"}
	WebM = Container{Ext: "webm", ContentType: "video/webm"}
	AVI  = Container{Ext: "avi", ContentType: "video/x-msvideo"}
)

// Encoder turns a sequence of held stills into a video
type Encoder interface {
	Begin(ctx context.Context, hold time.Duration) (Session, error)
	Container() Container
	Close() error
}

// Session is one encode. Abort is safe to call after Finish.
type Session interface {
	AddFrame(img image.Image) error
	Finish(ctx context.Context, w io.Writer) error
	Abort()
}

// Slot owns the one encoder of a process. The encoder is created on the
// first Acquire and lives until Close.
type Slot struct {
	newEncoder func() (Encoder, error)

	mu     sync.Mutex
	enc    Encoder
	held   bool
	closed bool
}

func NewSlot(newEncoder func() (Encoder, error)) *Slot {
	return &Slot{newEncoder: newEncoder}
}

// Handle is a checked-out encoder
type Handle struct {
	slot *Slot
	enc  Encoder
	once sync.Once
}

// Acquire checks the encoder out. It fails with EncoderBusyError while
// another handle is outstanding.
func (s *Slot) Acquire() (*Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSlotClosed
	}
	if s.held {
		return nil, &exporterr.EncoderBusyError{}
	}
	if s.enc == nil {
		enc, err := s.newEncoder()
		if err != nil {
			return nil, err
		}
		log.Printf("[VideoExport] Encoder initialized (%s)", enc.Container().Ext)
		s.enc = enc
	}
	s.held = true
	return &Handle{slot: s, enc: s.enc}, nil
}

// Busy reports whether a handle is outstanding.
func (s *Slot) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.held
}

// Close tears the encoder down.
func (s *Slot) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.enc == nil {
		return nil
	}
	err := s.enc.Close()
	s.enc = nil
	return err
}

func (h *Handle) Encoder() Encoder { return h.enc }

// Release returns the encoder to the slot. Extra calls are no-ops.
func (h *Handle) Release() {
	h.once.Do(func() {
		h.slot.mu.Lock()
		h.slot.held = false
		h.slot.mu.Unlock()
	})
}
