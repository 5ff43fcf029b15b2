package capture

import (
	"bytes"
	"errors"
	"testing"

	"gocv.io/x/gocv"
)

func TestSyntheticCamera_ReadRequiresOpen(t *testing.T) {
	cam := NewSyntheticCamera(320, 240, 40)

	if _, err := cam.ReadFrame(); !errors.Is(err, ErrCameraNotOpen) {
		t.Errorf("expected ErrCameraNotOpen, got %v", err)
	}

	if err := cam.Open(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer cam.Close()

	frame, err := cam.ReadFrame()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer frame.Close()

	if frame.Cols() != 320 || frame.Rows() != 240 {
		t.Errorf("expected 320x240 frame, got %dx%d", frame.Cols(), frame.Rows())
	}
	if frame.Channels() != 3 {
		t.Errorf("expected 3 channel frame, got %d", frame.Channels())
	}
}

func TestSyntheticCamera_WarmupThenObject(t *testing.T) {
	cam := NewSyntheticCamera(320, 240, 40)
	cam.SetWarmup(2)
	if err := cam.Open(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer cam.Close()

	background := cam.Background()
	defer background.Close()

	// The first two frames are background only
	for i := 0; i < 2; i++ {
		frame, err := cam.ReadFrame()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		same := bytes.Equal(frame.ToBytes(), background.ToBytes())
		frame.Close()
		if !same {
			t.Errorf("expected warmup frame %d to match the background", i)
		}
	}

	// From the third frame on the square appears
	frame, err := cam.ReadFrame()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer frame.Close()
	if bytes.Equal(frame.ToBytes(), background.ToBytes()) {
		t.Error("expected object frame to differ from the background")
	}
}

func TestSyntheticCamera_ObjectMoves(t *testing.T) {
	cam := NewSyntheticCamera(320, 240, 40)

	first := cam.ObjectFrame(0)
	defer first.Close()
	second := cam.ObjectFrame(1)
	defer second.Close()

	if bytes.Equal(first.ToBytes(), second.ToBytes()) {
		t.Error("expected the square to move between steps")
	}

	// The same step always renders the same frame
	again := cam.ObjectFrame(0)
	defer again.Close()
	if !bytes.Equal(first.ToBytes(), again.ToBytes()) {
		t.Error("expected identical frames for identical steps")
	}
}

func TestSyntheticCamera_ZeroSquareIsBackgroundOnly(t *testing.T) {
	cam := NewSyntheticCamera(320, 240, 0)
	cam.SetWarmup(0)
	if err := cam.Open(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer cam.Close()

	background := cam.Background()
	defer background.Close()

	frame, err := cam.ReadFrame()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer frame.Close()
	if !bytes.Equal(frame.ToBytes(), background.ToBytes()) {
		t.Error("expected background-only output with no square configured")
	}
}

func TestSyntheticCamera_FPS(t *testing.T) {
	cam := NewSyntheticCamera(320, 240, 40)
	if cam.FPS() != DefaultFPS {
		t.Errorf("expected default fps %d, got %d", DefaultFPS, cam.FPS())
	}

	cam.SetFPS(30)
	if cam.FPS() != 30 {
		t.Errorf("expected fps 30, got %d", cam.FPS())
	}

	// Invalid rates are ignored
	cam.SetFPS(0)
	if cam.FPS() != 30 {
		t.Errorf("expected fps unchanged at 30, got %d", cam.FPS())
	}
}
