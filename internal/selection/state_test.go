package selection

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/ironsheep/design-spec-mcp/internal/geometry"
)

// surface renders a 2000x1000 image into a 400x200 box at (100,50).
var surface = geometry.Surface{
	Natural:  geometry.Size{Width: 2000, Height: 1000},
	Rendered: geometry.PixelRect{X: 100, Y: 50, Width: 400, Height: 200},
}

var epoch = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func pt(x, y float64) geometry.Point { return geometry.Point{X: x, Y: y} }

func idGen() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("sel-%d", n)
	}
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func boundsNear(a, b geometry.Bounds) bool {
	return near(a.X, b.X) && near(a.Y, b.Y) && near(a.Width, b.Width) && near(a.Height, b.Height)
}

// draw creates a selection by dragging between two screen points.
func draw(t *testing.T, s EditorState, from, to geometry.Point, ids func() string) (EditorState, *Selection) {
	t.Helper()
	s = s.PointerDown(from, surface)
	if s.Mode != ModeDrawing {
		t.Fatalf("PointerDown on empty area: mode %s, want drawing", s.Mode)
	}
	s = s.PointerMove(to, surface)
	return s.PointerUp(to, surface, epoch, ids)
}

func TestDraw_CommitsSelection(t *testing.T) {
	s := NewEditorState(DefaultOptions())
	s, sel := draw(t, s, pt(140, 70), pt(240, 150), idGen())

	if sel == nil {
		t.Fatal("expected a committed selection")
	}
	want := geometry.Bounds{X: 10, Y: 10, Width: 25, Height: 40}
	if !boundsNear(sel.Bounds, want) {
		t.Errorf("Bounds: got %+v, want %+v", sel.Bounds, want)
	}
	if s.Mode != ModeIdle {
		t.Errorf("Mode after up: got %s, want idle", s.Mode)
	}
	if s.ActiveID != sel.ID {
		t.Errorf("ActiveID: got %q, want %q", s.ActiveID, sel.ID)
	}
	if !sel.CreatedAt.Equal(epoch) {
		t.Errorf("CreatedAt: got %v", sel.CreatedAt)
	}
}

func TestDraw_ReverseDirection(t *testing.T) {
	s := NewEditorState(DefaultOptions())
	_, sel := draw(t, s, pt(240, 150), pt(140, 70), idGen())
	if sel == nil {
		t.Fatal("expected a committed selection")
	}
	want := geometry.Bounds{X: 10, Y: 10, Width: 25, Height: 40}
	if !boundsNear(sel.Bounds, want) {
		t.Errorf("Bounds: got %+v, want %+v", sel.Bounds, want)
	}
}

func TestDraw_BelowThresholdDiscarded(t *testing.T) {
	tests := []struct {
		name string
		to   geometry.Point
	}{
		{"tiny", pt(205, 155)},
		{"exactly 10px", pt(210, 160)},
		{"narrow", pt(205, 250)},
		{"short", pt(400, 155)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewEditorState(DefaultOptions())
			calls := 0
			ids := func() string { calls++; return "x" }
			s = s.PointerDown(pt(200, 150), surface)
			s, sel := s.PointerUp(tt.to, surface, epoch, ids)
			if sel != nil {
				t.Errorf("selection should be discarded, got %+v", sel)
			}
			if len(s.Selections) != 0 {
				t.Errorf("Selections: got %d, want 0", len(s.Selections))
			}
			if calls != 0 {
				t.Errorf("id generator called %d times", calls)
			}
			if s.Mode != ModeIdle {
				t.Errorf("Mode: got %s, want idle", s.Mode)
			}
		})
	}
}

func TestDraw_ClampedToImage(t *testing.T) {
	s := NewEditorState(DefaultOptions())
	_, sel := draw(t, s, pt(400, 200), pt(900, 900), idGen())
	if sel == nil {
		t.Fatal("expected a committed selection")
	}
	if sel.Bounds.X+sel.Bounds.Width > 100+1e-9 || sel.Bounds.Y+sel.Bounds.Height > 100+1e-9 {
		t.Errorf("selection escapes image: %+v", sel.Bounds)
	}
}

func seeded(t *testing.T) (EditorState, Selection) {
	t.Helper()
	s := NewEditorState(DefaultOptions())
	// 20%,20% .. 60%,70% => rendered (80,40)-(240,140), screen (180,90)-(340,190)
	s, sel := draw(t, s, pt(180, 90), pt(340, 190), idGen())
	if sel == nil {
		t.Fatal("seed selection not committed")
	}
	return s, *sel
}

func TestDrag_MovesSelection(t *testing.T) {
	s, sel := seeded(t)

	s = s.PointerDown(pt(260, 140), surface)
	if s.Mode != ModeDragging {
		t.Fatalf("Mode: got %s, want dragging", s.Mode)
	}
	s = s.PointerMove(pt(300, 120), surface)
	s, moved := s.PointerUp(pt(300, 120), surface, epoch, idGen())
	if moved == nil {
		t.Fatal("expected updated selection")
	}

	want := geometry.Bounds{X: sel.Bounds.X + 10, Y: sel.Bounds.Y - 10, Width: sel.Bounds.Width, Height: sel.Bounds.Height}
	if !boundsNear(moved.Bounds, want) {
		t.Errorf("Bounds: got %+v, want %+v", moved.Bounds, want)
	}
	stored, _ := s.Find(sel.ID)
	if !boundsNear(stored.Bounds, want) {
		t.Errorf("stored bounds not updated: %+v", stored.Bounds)
	}
}

func TestDrag_ClampedAtEdge(t *testing.T) {
	s, sel := seeded(t)
	s = s.PointerDown(pt(260, 140), surface)
	s, moved := s.PointerUp(pt(-1000, -1000), surface, epoch, idGen())
	if moved == nil {
		t.Fatal("expected updated selection")
	}
	if moved.Bounds.X != 0 || moved.Bounds.Y != 0 {
		t.Errorf("origin: got (%v,%v), want (0,0)", moved.Bounds.X, moved.Bounds.Y)
	}
	if !near(moved.Bounds.Width, sel.Bounds.Width) || !near(moved.Bounds.Height, sel.Bounds.Height) {
		t.Errorf("size changed while dragging: %+v", moved.Bounds)
	}
}

func TestResize_SE_KeepsOrigin(t *testing.T) {
	s, sel := seeded(t)

	// se corner of the seed is at screen (340,190)
	s = s.PointerDown(pt(340, 190), surface)
	if s.Mode != ModeResizing || s.Handle != HandleSE {
		t.Fatalf("got mode %s handle %s, want resizing se", s.Mode, s.Handle)
	}
	s, resized := s.PointerUp(pt(380, 210), surface, epoch, idGen())
	if resized == nil {
		t.Fatal("expected updated selection")
	}

	if !near(resized.Bounds.X, sel.Bounds.X) || !near(resized.Bounds.Y, sel.Bounds.Y) {
		t.Errorf("se resize moved the origin: %+v", resized.Bounds)
	}
	if !near(resized.Bounds.Width, sel.Bounds.Width+10) || !near(resized.Bounds.Height, sel.Bounds.Height+10) {
		t.Errorf("se resize size: got %+v", resized.Bounds)
	}
}

func TestResize_NW_KeepsOppositeCorner(t *testing.T) {
	s, sel := seeded(t)
	right := sel.Bounds.X + sel.Bounds.Width
	bottom := sel.Bounds.Y + sel.Bounds.Height

	s = s.PointerDown(pt(180, 90), surface)
	if s.Handle != HandleNW {
		t.Fatalf("Handle: got %s, want nw", s.Handle)
	}
	s, resized := s.PointerUp(pt(140, 110), surface, epoch, idGen())
	if resized == nil {
		t.Fatal("expected updated selection")
	}
	b := resized.Bounds
	if !near(b.X, sel.Bounds.X-10) || !near(b.Y, sel.Bounds.Y+10) {
		t.Errorf("nw origin: got %+v", b)
	}
	if !near(b.X+b.Width, right) || !near(b.Y+b.Height, bottom) {
		t.Errorf("opposite corner moved: right %v bottom %v, want %v %v", b.X+b.Width, b.Y+b.Height, right, bottom)
	}
}

func TestResize_NW_CannotInvert(t *testing.T) {
	s, sel := seeded(t)
	right := sel.Bounds.X + sel.Bounds.Width
	bottom := sel.Bounds.Y + sel.Bounds.Height

	s = s.PointerDown(pt(180, 90), surface)
	_, resized := s.PointerUp(pt(500, 250), surface, epoch, idGen())
	b := resized.Bounds
	if !near(b.Width, geometry.MinBoundsSize) || !near(b.Height, geometry.MinBoundsSize) {
		t.Errorf("expected minimum size, got %+v", b)
	}
	if !near(b.X+b.Width, right) || !near(b.Y+b.Height, bottom) {
		t.Errorf("opposite corner moved: %+v", b)
	}
}

func TestResize_EdgeHandlesChangeOneAxis(t *testing.T) {
	tests := []struct {
		handle Handle
		grab   geometry.Point
		check  func(orig, got geometry.Bounds) bool
	}{
		{HandleN, pt(260, 90), func(o, g geometry.Bounds) bool {
			return near(g.X, o.X) && near(g.Width, o.Width) && near(g.Y, o.Y+5) && near(g.Height, o.Height-5)
		}},
		{HandleS, pt(260, 190), func(o, g geometry.Bounds) bool {
			return near(g.X, o.X) && near(g.Width, o.Width) && near(g.Y, o.Y) && near(g.Height, o.Height+5)
		}},
		{HandleE, pt(340, 140), func(o, g geometry.Bounds) bool {
			return near(g.Y, o.Y) && near(g.Height, o.Height) && near(g.X, o.X) && near(g.Width, o.Width+2.5)
		}},
		{HandleW, pt(180, 140), func(o, g geometry.Bounds) bool {
			return near(g.Y, o.Y) && near(g.Height, o.Height) && near(g.X, o.X+2.5) && near(g.Width, o.Width-2.5)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.handle.String(), func(t *testing.T) {
			s, sel := seeded(t)
			s = s.PointerDown(tt.grab, surface)
			if s.Handle != tt.handle {
				t.Fatalf("Handle: got %s, want %s", s.Handle, tt.handle)
			}
			_, got := s.PointerUp(geometry.Point{X: tt.grab.X + 10, Y: tt.grab.Y + 10}, surface, epoch, idGen())
			if got == nil || !tt.check(sel.Bounds, got.Bounds) {
				t.Errorf("unexpected bounds after %s resize: %+v (from %+v)", tt.handle, got, sel.Bounds)
			}
		})
	}
}

func TestResize_OnlyActiveSelectionHasHandles(t *testing.T) {
	s, sel := seeded(t)
	s = s.Activate("")
	s = s.PointerDown(pt(340, 190), surface)
	if s.Mode != ModeDragging {
		t.Errorf("corner of inactive selection should drag the body, got %s", s.Mode)
	}
	if s.ActiveID != sel.ID {
		t.Errorf("ActiveID: got %q", s.ActiveID)
	}
}

func TestHitTest_FollowsRenderedSize(t *testing.T) {
	s, sel := seeded(t)

	zoomed := surface
	zoomed.Rendered.Width *= 2
	zoomed.Rendered.Height *= 2

	// se corner at 2x: local (480,280) => screen (580,330)
	id, h, ok := s.HitTest(pt(580, 330), zoomed)
	if !ok || id != sel.ID || h != HandleSE {
		t.Errorf("HitTest at 2x: got (%q,%s,%v)", id, h, ok)
	}
}

func TestPointerEvents_IgnoredInWrongMode(t *testing.T) {
	s := NewEditorState(DefaultOptions())
	moved := s.PointerMove(pt(10, 10), surface)
	if moved.Mode != ModeIdle {
		t.Error("PointerMove while idle changed the mode")
	}
	up, sel := s.PointerUp(pt(10, 10), surface, epoch, idGen())
	if sel != nil || up.Mode != ModeIdle {
		t.Error("PointerUp while idle should be a no-op")
	}

	drawing := s.PointerDown(pt(150, 100), surface)
	again := drawing.PointerDown(pt(300, 200), surface)
	if again.Start != drawing.Start {
		t.Error("PointerDown while drawing should be ignored")
	}
}

func TestTransitions_DoNotMutateReceiver(t *testing.T) {
	s, sel := seeded(t)
	before := s.Selections[0].Bounds

	down := s.PointerDown(pt(260, 140), surface)
	_, _ = down.PointerUp(pt(300, 160), surface, epoch, idGen())

	if s.Selections[0].Bounds != before {
		t.Error("transition mutated the previous state's selections")
	}
	if s.Selections[0].ID != sel.ID {
		t.Error("selection identity changed")
	}
}

func TestDelete(t *testing.T) {
	s, sel := seeded(t)
	ids := idGen()
	ids() // skip the seeded id
	s, second := draw(t, s, pt(110, 60), pt(160, 80), ids)
	if second == nil {
		t.Fatal("second selection not committed")
	}

	s, ok := s.Delete(second.ID)
	if !ok {
		t.Fatal("Delete returned false")
	}
	if s.ActiveID != "" {
		t.Errorf("ActiveID should reset after deleting the active selection, got %q", s.ActiveID)
	}
	if len(s.Selections) != 1 || s.Selections[0].ID != sel.ID {
		t.Errorf("unexpected selections after delete: %+v", s.Selections)
	}

	if _, ok := s.Delete("missing"); ok {
		t.Error("Delete of unknown id should report false")
	}
}

func TestDelete_KeepsOtherActive(t *testing.T) {
	s, sel := seeded(t)
	ids := idGen()
	ids()
	s, second := draw(t, s, pt(110, 60), pt(160, 80), ids)
	s = s.Activate(sel.ID)
	s, _ = s.Delete(second.ID)
	if s.ActiveID != sel.ID {
		t.Errorf("ActiveID: got %q, want %q", s.ActiveID, sel.ID)
	}
}

func TestRename(t *testing.T) {
	s, sel := seeded(t)
	s, ok := s.Rename(sel.ID, "hero", "png")
	if !ok {
		t.Fatal("Rename returned false")
	}
	got, _ := s.Find(sel.ID)
	if got.Name != "hero" || got.Format != "png" {
		t.Errorf("Rename: got %+v", got)
	}
}

func TestParseHandle(t *testing.T) {
	for _, h := range Handles {
		got, ok := ParseHandle(h.String())
		if !ok || got != h {
			t.Errorf("ParseHandle(%q) = %v, %v", h.String(), got, ok)
		}
	}
	if _, ok := ParseHandle("north"); ok {
		t.Error("ParseHandle should reject unknown names")
	}
	if len(Handles) != 8 {
		t.Errorf("expected 8 handles, got %d", len(Handles))
	}
}
