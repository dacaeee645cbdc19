// Package frames tells a parent window which of its iframes a child window
// lives in. A child announces itself with a frame-info message carrying a
// fresh id; the parent resolves the message source to the iframe element
// and records the mapping.
package frames

import (
	"errors"
	"iter"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/subtitlelens/subtitlelens-server/internal/dom"
	"github.com/subtitlelens/subtitlelens-server/internal/id"
)

// MessageType identifies frame-info messages.
const MessageType = "asbplayer-frame-info"

// ErrTopLevel is returned when a window without a parent tries to announce itself.
var ErrTopLevel = errors.New("frames: window has no parent")

// Info is the payload posted from a child window to its parent.
type Info struct {
	Type    string `json:"type"`
	FrameID string `json:"frameId"`
}

// Announce posts a frame-info message for child to its parent window and
// returns the generated frame id.
func Announce(child *dom.Window) (string, error) {
	parent := child.Parent()
	if parent == nil {
		return "", ErrTopLevel
	}
	frameID, err := id.Generate(id.PrefixFrame)
	if err != nil {
		return "", err
	}
	parent.PostMessage(child, Info{Type: MessageType, FrameID: frameID})
	return frameID, nil
}

// Registry maps announced frame ids to their iframes.
type Registry struct {
	mu     sync.RWMutex
	frames map[string]*dom.Frame
	logger *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{frames: make(map[string]*dom.Frame), logger: logger}
}

// Listen records frame-info messages posted to parent until stop is called.
func (r *Registry) Listen(parent *dom.Window) (stop func()) {
	return parent.AddMessageListener(func(msg dom.Message) {
		info, ok := decode(msg.Data)
		if !ok || msg.Source == nil {
			return
		}
		frame := msg.Source.FrameElement()
		if frame == nil || frame.Owner != parent {
			r.logger.Debug("frame info from unknown source", "frame_id", info.FrameID)
			return
		}

		r.mu.Lock()
		r.frames[info.FrameID] = frame
		r.mu.Unlock()
		r.logger.Debug("frame registered", "frame_id", info.FrameID)
	})
}

// Lookup returns the iframe registered under frameID.
func (r *Registry) Lookup(frameID string) (*dom.Frame, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.frames[frameID]
	return f, ok
}

// All yields every registered frame ordered by id.
func (r *Registry) All() iter.Seq2[string, *dom.Frame] {
	r.mu.RLock()
	snapshot := maps.Clone(r.frames)
	r.mu.RUnlock()

	return func(yield func(string, *dom.Frame) bool) {
		for _, k := range slices.Sorted(maps.Keys(snapshot)) {
			if !yield(k, snapshot[k]) {
				return
			}
		}
	}
}

// Forget removes a frame id.
func (r *Registry) Forget(frameID string) {
	r.mu.Lock()
	delete(r.frames, frameID)
	r.mu.Unlock()
}

// Len returns the number of registered frames.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.frames)
}

// decode accepts the typed payload and the generic map form a JSON bridge
// would deliver.
func decode(data any) (Info, bool) {
	switch v := data.(type) {
	case Info:
		return v, v.Type == MessageType && v.FrameID != ""
	case map[string]any:
		t, _ := v["type"].(string)
		fid, _ := v["frameId"].(string)
		return Info{Type: t, FrameID: fid}, t == MessageType && fid != ""
	default:
		return Info{}, false
	}
}
