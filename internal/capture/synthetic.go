package capture

import (
	"image"
	"image/color"
	"sync"

	"gocv.io/x/gocv"
)

// SyntheticCamera renders frames instead of reading a device: a static
// dark background for the first Warmup frames (enough to train a
// background model), then a bright square stepping across the scene.
// Implements Camera, so the detection loop and tests can run without
// hardware.
type SyntheticCamera struct {
	mu      sync.Mutex
	width   int
	height  int
	square  int
	warmup  int
	step    int
	frame   int
	running bool
	fps     int
}

// NewSyntheticCamera creates a synthetic source. square is the side
// length in pixels of the moving object; zero disables the object.
func NewSyntheticCamera(width, height, square int) *SyntheticCamera {
	return &SyntheticCamera{
		width:  width,
		height: height,
		square: square,
		warmup: 30,
		step:   8,
		fps:    DefaultFPS,
	}
}

// SetWarmup sets how many background-only frames are produced before the
// square appears.
func (c *SyntheticCamera) SetWarmup(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.warmup = n
}

// Open starts playback from the first frame.
func (c *SyntheticCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = true
	c.frame = 0
	return nil
}

// Close stops playback.
func (c *SyntheticCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	return nil
}

// ReadFrame renders the next frame in the sequence.
func (c *SyntheticCamera) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil, ErrCameraNotOpen
	}

	var frame gocv.Mat
	if c.frame < c.warmup || c.square <= 0 {
		frame = c.background()
	} else {
		frame = c.objectFrame(c.frame - c.warmup)
	}
	c.frame++
	return &frame, nil
}

// Background renders one background-only frame, regardless of playback
// position. The caller owns the Mat.
func (c *SyntheticCamera) Background() *gocv.Mat {
	c.mu.Lock()
	defer c.mu.Unlock()
	frame := c.background()
	return &frame
}

// ObjectFrame renders a frame with the square at playback step n. The
// caller owns the Mat.
func (c *SyntheticCamera) ObjectFrame(n int) *gocv.Mat {
	c.mu.Lock()
	defer c.mu.Unlock()
	frame := c.objectFrame(n)
	return &frame
}

func (c *SyntheticCamera) background() gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(40, 40, 40, 0),
		c.height, c.width, gocv.MatTypeCV8UC3)
}

func (c *SyntheticCamera) objectFrame(n int) gocv.Mat {
	frame := c.background()

	travel := c.width - c.square - 2*c.step
	if travel < 1 {
		travel = 1
	}
	x := c.step + (n*c.step)%travel
	y := (c.height - c.square) / 2

	rect := image.Rect(x, y, x+c.square, y+c.square)
	gocv.Rectangle(&frame, rect, color.RGBA{R: 230, G: 230, B: 230}, -1)
	return frame
}

func (c *SyntheticCamera) SetFPS(fps int) {
	if fps <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fps = fps
}

func (c *SyntheticCamera) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps
}

func (c *SyntheticCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}
