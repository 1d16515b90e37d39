package selection

import (
	"math"
	"time"

	"github.com/ironsheep/design-spec-mcp/internal/geometry"
)

// Mode is the phase of the pointer interaction.
type Mode int

const (
	ModeIdle Mode = iota
	ModeDrawing
	ModeDragging
	ModeResizing
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeDrawing:
		return "drawing"
	case ModeDragging:
		return "dragging"
	case ModeResizing:
		return "resizing"
	}
	return "unknown"
}

// MarshalText encodes the mode by name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// Selection is a committed rectangular region. Bounds are always clamped
// percentages, never raw pixels.
type Selection struct {
	ID        string          `json:"id"`
	Bounds    geometry.Bounds `json:"bounds"`
	Name      string          `json:"name,omitempty"`
	Format    string          `json:"format,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// PixelRect returns the selection in pixels of an image of the given size.
func (s Selection) PixelRect(imageW, imageH float64) geometry.PixelRect {
	return geometry.BoundsToPixels(s.Bounds, imageW, imageH)
}

// Options tunes hit-testing and the draw threshold, in display pixels.
type Options struct {
	HandleSize  float64
	MinDrawSize float64
}

// DefaultOptions returns 8px handles and a 10px minimum draw extent.
func DefaultOptions() Options {
	return Options{HandleSize: 8, MinDrawSize: 10}
}

// EditorState is the complete selection editor. It is a value: every
// transition returns a new state and leaves the receiver untouched, so the
// machine can be driven without any rendering surface.
type EditorState struct {
	Mode     Mode   `json:"mode"`
	Handle   Handle `json:"handle,omitempty"`
	ActiveID string `json:"active_id,omitempty"`
	TargetID string `json:"target_id,omitempty"`

	// Start is the pointer-down position in rendered-element pixels.
	Start geometry.Point `json:"-"`
	// Origin is the target's bounds at pointer-down.
	Origin geometry.Bounds `json:"-"`
	// Candidate is the rectangle that would be committed on pointer-up.
	Candidate geometry.Bounds `json:"candidate"`
	// DrawExtent is the drawn rectangle in rendered pixels, used for the
	// minimum-size check.
	DrawExtent geometry.PixelRect `json:"-"`

	Selections []Selection `json:"selections"`
	Options    Options     `json:"-"`
}

// NewEditorState returns an idle editor with no selections.
func NewEditorState(opts Options) EditorState {
	return EditorState{Mode: ModeIdle, Options: opts}
}

// Find returns the selection with the given id.
func (s EditorState) Find(id string) (Selection, bool) {
	for _, sel := range s.Selections {
		if sel.ID == id {
			return sel, true
		}
	}
	return Selection{}, false
}

// HitTest reports what a display-space point would grab: a handle of the
// active selection, the body of a selection (topmost first), or nothing.
func (s EditorState) HitTest(p geometry.Point, surf geometry.Surface) (string, Handle, bool) {
	local := geometry.ScreenToLocal(p, surf)
	rw, rh := surf.Rendered.Width, surf.Rendered.Height
	half := s.Options.HandleSize / 2

	if active, ok := s.Find(s.ActiveID); ok {
		r := active.PixelRect(rw, rh)
		for _, h := range Handles {
			c := h.center(r)
			if math.Abs(local.X-c.X) <= half && math.Abs(local.Y-c.Y) <= half {
				return active.ID, h, true
			}
		}
	}

	for i := len(s.Selections) - 1; i >= 0; i-- {
		sel := s.Selections[i]
		if sel.PixelRect(rw, rh).Contains(local) {
			return sel.ID, HandleNone, true
		}
	}
	return "", HandleNone, false
}

// PointerDown starts drawing, dragging or resizing depending on what lies
// under the pointer. It is ignored unless the editor is idle.
func (s EditorState) PointerDown(p geometry.Point, surf geometry.Surface) EditorState {
	if s.Mode != ModeIdle || !surf.Valid() {
		return s
	}
	next := s
	local := geometry.ScreenToLocal(p, surf)

	id, handle, hit := s.HitTest(p, surf)
	if !hit {
		next.Mode = ModeDrawing
		next.ActiveID = ""
		next.TargetID = ""
		next.Start = geometry.ClampPoint(local, surf.Rendered.Width, surf.Rendered.Height)
		next.DrawExtent = geometry.PixelRect{X: next.Start.X, Y: next.Start.Y}
		next.Candidate = geometry.Bounds{}
		return next
	}

	sel, _ := s.Find(id)
	next.ActiveID = id
	next.TargetID = id
	next.Start = local
	next.Origin = sel.Bounds
	next.Candidate = sel.Bounds
	if handle == HandleNone {
		next.Mode = ModeDragging
	} else {
		next.Mode = ModeResizing
		next.Handle = handle
	}
	return next
}

// PointerMove recomputes the candidate rectangle from the pointer delta.
func (s EditorState) PointerMove(p geometry.Point, surf geometry.Surface) EditorState {
	if s.Mode == ModeIdle || !surf.Valid() {
		return s
	}
	next := s
	rw, rh := surf.Rendered.Width, surf.Rendered.Height
	local := geometry.ScreenToLocal(p, surf)
	dx := (local.X - s.Start.X) / rw * 100
	dy := (local.Y - s.Start.Y) / rh * 100

	switch s.Mode {
	case ModeDrawing:
		cur := geometry.ClampPoint(local, rw, rh)
		next.DrawExtent = geometry.Normalize(s.Start, cur)
		next.Candidate = geometry.PixelsToBounds(next.DrawExtent, rw, rh)
	case ModeDragging:
		next.Candidate = move(s.Origin, dx, dy)
	case ModeResizing:
		next.Candidate = resize(s.Origin, s.Handle, dx, dy)
	case ModeIdle:
	}
	return next
}

// PointerUp finishes the interaction. A drawn rectangle is committed only if
// it exceeds MinDrawSize on both axes; newID is called only on commit. The
// committed or updated selection is returned, nil when nothing changed.
func (s EditorState) PointerUp(p geometry.Point, surf geometry.Surface, now time.Time, newID func() string) (EditorState, *Selection) {
	if s.Mode == ModeIdle {
		return s, nil
	}
	next := s.PointerMove(p, surf)
	var changed *Selection

	switch next.Mode {
	case ModeDrawing:
		if next.DrawExtent.Width > s.Options.MinDrawSize && next.DrawExtent.Height > s.Options.MinDrawSize {
			sel := Selection{
				ID:        newID(),
				Bounds:    geometry.ClampBounds(next.Candidate),
				CreatedAt: now,
			}
			next.Selections = append(cloneSelections(s.Selections), sel)
			next.ActiveID = sel.ID
			changed = &sel
		}
	case ModeDragging, ModeResizing:
		bounds := geometry.ClampBounds(next.Candidate)
		next.Selections = cloneSelections(s.Selections)
		for i := range next.Selections {
			if next.Selections[i].ID == s.TargetID {
				next.Selections[i].Bounds = bounds
				sel := next.Selections[i]
				changed = &sel
				break
			}
		}
	case ModeIdle:
	}

	return next.reset(), changed
}

// Cancel abandons the current interaction without committing.
func (s EditorState) Cancel() EditorState {
	return s.reset()
}

// Activate marks a selection as active; an unknown id clears the active one.
func (s EditorState) Activate(id string) EditorState {
	next := s
	if _, ok := s.Find(id); ok {
		next.ActiveID = id
	} else {
		next.ActiveID = ""
	}
	return next
}

// Delete removes a selection by id. It clears the active reference when it
// pointed at the removed selection and aborts an interaction targeting it.
func (s EditorState) Delete(id string) (EditorState, bool) {
	idx := -1
	for i, sel := range s.Selections {
		if sel.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return s, false
	}

	next := s
	next.Selections = make([]Selection, 0, len(s.Selections)-1)
	next.Selections = append(next.Selections, s.Selections[:idx]...)
	next.Selections = append(next.Selections, s.Selections[idx+1:]...)
	if next.ActiveID == id {
		next.ActiveID = ""
	}
	if next.TargetID == id {
		next = next.reset()
	}
	return next, true
}

// Rename sets the optional name and export format of a selection.
func (s EditorState) Rename(id, name, format string) (EditorState, bool) {
	next := s
	next.Selections = cloneSelections(s.Selections)
	for i := range next.Selections {
		if next.Selections[i].ID == id {
			next.Selections[i].Name = name
			next.Selections[i].Format = format
			return next, true
		}
	}
	return s, false
}

func (s EditorState) reset() EditorState {
	s.Mode = ModeIdle
	s.Handle = HandleNone
	s.TargetID = ""
	s.Start = geometry.Point{}
	s.Origin = geometry.Bounds{}
	s.Candidate = geometry.Bounds{}
	s.DrawExtent = geometry.PixelRect{}
	return s
}

func cloneSelections(in []Selection) []Selection {
	out := make([]Selection, len(in))
	copy(out, in)
	return out
}
