package scroll

import (
	"errors"
	"testing"
)

func TestRegistry_AddIsIdempotent(t *testing.T) {
	r := NewRegistry()

	added, err := r.Add(Spec{Key: "A", Text: "first", ScrollDuration: 12}, 800, 600)
	if err != nil || !added {
		t.Fatalf("Add(A) = %v, %v; want true, nil", added, err)
	}

	added, err = r.Add(Spec{Key: "A", Text: "second", ScrollDuration: 5}, 800, 600)
	if err != nil || added {
		t.Fatalf("second Add(A) = %v, %v; want false, nil", added, err)
	}

	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
	e, _ := r.Get("A")
	if e.Text() != "first" || e.Duration() != 12 {
		t.Errorf("existing entity replaced: text=%q duration=%v", e.Text(), e.Duration())
	}

	t.Logf("✅ duplicate key ignored, original entity kept")
}

func TestRegistry_AddRejectsInvalidDuration(t *testing.T) {
	r := NewRegistry()

	_, err := r.Add(Spec{Key: "A", Text: "x", ScrollDuration: 0}, 800, 600)
	if !errors.Is(err, ErrInvalidScrollDuration) {
		t.Fatalf("Add() error = %v, want ErrInvalidScrollDuration", err)
	}
	if r.Has("A") {
		t.Error("invalid spec was registered")
	}
}

func TestRegistry_Remove(t *testing.T) {
	r := NewRegistry()
	for _, k := range []string{"A", "B", "C"} {
		r.Add(Spec{Key: k, Text: k, ScrollDuration: 12}, 800, 600)
	}

	if !r.Remove("B") {
		t.Fatal("Remove(B) = false, want true")
	}
	if r.Remove("B") {
		t.Error("second Remove(B) = true, want false")
	}
	if r.Remove("missing") {
		t.Error("Remove(missing) = true, want false")
	}

	keys := r.Keys()
	if len(keys) != 2 || keys[0] != "A" || keys[1] != "C" {
		t.Errorf("Keys() = %v, want [A C]", keys)
	}

	// Removed entities are not advanced or drawn
	canvas := &recordingCanvas{}
	r.AdvanceAll(1, fixedMeasurer(10))
	r.RenderAll(canvas, DefaultStyle())
	for _, c := range canvas.calls {
		if c.text == "B" {
			t.Error("removed entity B was rendered")
		}
	}
	if len(canvas.calls) != 4 {
		t.Errorf("DrawText calls = %d, want 4", len(canvas.calls))
	}
}

func TestRegistry_RetiresAfterExactLoops(t *testing.T) {
	// 800 wide, text 100, 12s → 75 px/s; with dt=1 each loop takes 13 advances
	const loops = 3
	const advancesPerLoop = 13

	r := NewRegistry()
	r.Add(Spec{Key: "A", Text: "x", Loops: loops, ScrollDuration: 12}, 800, 600)
	m := fixedMeasurer(100)

	for i := 1; i < loops*advancesPerLoop; i++ {
		if retired := r.AdvanceAll(1.0, m); len(retired) != 0 {
			t.Fatalf("advance %d retired %v early", i, retired)
		}
		e, ok := r.Get("A")
		if !ok {
			t.Fatalf("entity missing after advance %d", i)
		}
		if want := i / advancesPerLoop; e.Loop() != want {
			t.Fatalf("advance %d: Loop = %d, want %d", i, e.Loop(), want)
		}
	}

	retired := r.AdvanceAll(1.0, m)
	if len(retired) != 1 || retired[0] != "A" {
		t.Fatalf("final advance retired %v, want [A]", retired)
	}
	if r.Has("A") {
		t.Error("entity still registered after its last loop")
	}

	t.Logf("✅ present for %d loops, gone on advance %d", loops, loops*advancesPerLoop)
}

// TestRegistry_TwentyFourSecondScenario runs a two-loop, 12-second message at
// 10 fps on a 1000-wide frame. The entity must disappear on the same advance
// that makes it Retiring, somewhere around the 24 s mark.
func TestRegistry_TwentyFourSecondScenario(t *testing.T) {
	r := NewRegistry()
	r.Add(Spec{Key: "A", Text: "x", Loops: 2, ScrollDuration: 12}, 1000, 600)
	e, _ := r.Get("A")
	m := fixedMeasurer(100)

	for i := 0; i < 30; i++ {
		r.AdvanceAll(0.1, m)
	}
	if !r.Has("A") || e.Loop() != 0 {
		t.Fatalf("after 3s: present=%v loop=%d, want true/0", r.Has("A"), e.Loop())
	}

	goneAt := 0
	for i := 31; i <= 300; i++ {
		retired := r.AdvanceAll(0.1, m)
		if e.Retiring() != (len(retired) == 1) {
			t.Fatalf("advance %d: retiring=%v but retired=%v", i, e.Retiring(), retired)
		}
		if e.Retiring() {
			goneAt = i
			break
		}
	}

	if goneAt < 240 || goneAt > 243 {
		t.Errorf("entity retired on advance %d, want ~240 (24s)", goneAt)
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d after retirement, want 0", r.Len())
	}
}

func TestRegistry_AdvanceAllPrunesOnlyRetiring(t *testing.T) {
	r := NewRegistry()
	r.Add(Spec{Key: "once", Text: "a", Loops: 1, ScrollDuration: 1}, 100, 100)
	r.Add(Spec{Key: "forever", Text: "b", Loops: 0, ScrollDuration: 1}, 100, 100)
	r.Add(Spec{Key: "slow", Text: "c", Loops: 1, ScrollDuration: 100}, 100, 100)

	retired := r.AdvanceAll(2.0, fixedMeasurer(0))

	if len(retired) != 1 || retired[0] != "once" {
		t.Errorf("retired = %v, want [once]", retired)
	}
	keys := r.Keys()
	if len(keys) != 2 || keys[0] != "forever" || keys[1] != "slow" {
		t.Errorf("Keys() = %v, want [forever slow]", keys)
	}

	// Every survivor advanced exactly once
	slow, _ := r.Get("slow")
	if slow.X() != 98 {
		t.Errorf("slow.X = %v, want 98", slow.X())
	}
}

func TestRegistry_ResizeAll(t *testing.T) {
	r := NewRegistry()
	r.Add(Spec{Key: "A", Text: "x", ScrollDuration: 12}, 800, 600)
	r.Add(Spec{Key: "B", Text: "y", ScrollDuration: 12}, 800, 600)
	r.AdvanceAll(1.0, fixedMeasurer(100))

	r.ResizeAll(1920, 1080, ResizeRestart)

	r.Each(func(e *Entity) {
		if e.X() != 1920 {
			t.Errorf("%s: X = %v, want 1920", e.Key(), e.X())
		}
		if w, h := e.Bounds(); w != 1920 || h != 1080 {
			t.Errorf("%s: Bounds = %vx%v", e.Key(), w, h)
		}
	})
}

func TestRegistry_RenderAllDrawOrder(t *testing.T) {
	r := NewRegistry()
	for _, k := range []string{"C", "A", "B"} {
		r.Add(Spec{Key: k, Text: k, ScrollDuration: 12}, 800, 600)
	}

	canvas := &recordingCanvas{}
	r.RenderAll(canvas, DefaultStyle())

	// Foreground passes are the odd calls
	var got []string
	for i := 1; i < len(canvas.calls); i += 2 {
		got = append(got, canvas.calls[i].text)
	}
	if len(got) != 3 || got[0] != "C" || got[1] != "A" || got[2] != "B" {
		t.Errorf("draw order = %v, want [C A B]", got)
	}
}
