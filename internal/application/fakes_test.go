package app

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"inspection-brain/internal/domain/entity"
)

func testFrame(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: uint8(y), B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testBox(t *testing.T, id string, x0, y0, x1, y1 float64) entity.BoundingBox {
	t.Helper()
	b, err := entity.NewBoundingBox(id, "apple", 0.9, x0, y0, x1, y1)
	require.NoError(t, err)
	return b
}

type fakeCamera struct {
	data  []byte
	err   error
	block chan struct{}
	calls atomic.Int32
}

func (c *fakeCamera) Capture(ctx context.Context, resolution string) (*entity.CapturedImage, error) {
	c.calls.Add(1)
	if c.block != nil {
		<-c.block
	}
	if c.err != nil {
		return nil, c.err
	}
	return &entity.CapturedImage{ImageID: "img-1", Data: c.data, ContentType: "image/png"}, nil
}

type fakeFruitDetector struct {
	byImgsz map[int][]entity.BoundingBox
	err     error

	mu    sync.Mutex
	sizes []int
}

func (d *fakeFruitDetector) Detect(ctx context.Context, imageID string, img []byte, imgsz int) ([]entity.BoundingBox, error) {
	d.mu.Lock()
	d.sizes = append(d.sizes, imgsz)
	d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	return d.byImgsz[imgsz], nil
}

func (d *fakeFruitDetector) calledSizes() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int(nil), d.sizes...)
}

type fakeDefectDetector struct {
	fail  map[string]error
	delay map[string]time.Duration
	calls atomic.Int32

	// waitFor > 0: каждый вызов ждёт, пока столько вызовов не окажутся в работе одновременно.
	waitFor     int32
	allIn       chan struct{}
	allInOnce   sync.Once
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (d *fakeDefectDetector) DetectDefects(ctx context.Context, imageID string, box entity.BoundingBox, crop []byte) ([]entity.DefectFinding, error) {
	d.calls.Add(1)
	n := d.inFlight.Add(1)
	defer d.inFlight.Add(-1)
	for {
		cur := d.maxInFlight.Load()
		if n <= cur || d.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}

	if d.waitFor > 0 {
		if n >= d.waitFor {
			d.allInOnce.Do(func() { close(d.allIn) })
		}
		select {
		case <-d.allIn:
		case <-time.After(2 * time.Second):
			return nil, errors.New("defect calls did not overlap")
		}
	}

	if dl := d.delay[box.ID]; dl > 0 {
		time.Sleep(dl)
	}
	if err := d.fail[box.ID]; err != nil {
		return nil, err
	}
	if len(crop) == 0 {
		return nil, errors.New("empty crop")
	}
	return []entity.DefectFinding{{Type: "bruise-" + box.ID, Confidence: 0.8}}, nil
}

type recordingPublisher struct {
	name string
	err  error

	mu      sync.Mutex
	results []*entity.ScanResult
}

func (p *recordingPublisher) Name() string { return p.name }

func (p *recordingPublisher) Publish(ctx context.Context, result *entity.ScanResult) error {
	p.mu.Lock()
	p.results = append(p.results, result)
	p.mu.Unlock()
	return p.err
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.results)
}

type recordingSink struct {
	mu     sync.Mutex
	events []entity.Event
}

func (s *recordingSink) Emit(e entity.Event) {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
}

func (s *recordingSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Type)
	}
	return out
}
