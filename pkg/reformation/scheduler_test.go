package reformation

import (
	"context"
	"errors"
	"testing"
	"time"

	"taviplan/pkg/geometry"
	"taviplan/pkg/volume"
)

// slowField wraps a field and delays every voxel access, making renders
// slow enough to supersede deterministically.
type slowField struct {
	volume.Field
	delay time.Duration
}

func (f slowField) At(i, j, k int) float64 {
	time.Sleep(f.delay)
	return f.Field.At(i, j, k)
}

// TestSchedulerCompletes verifies the basic submit/receive flow
func TestSchedulerCompletes(t *testing.T) {
	s := NewScheduler(nil, 0)
	field := constantVolume(t, 2)
	path := straightPath(t)

	result := <-s.Submit(context.Background(), field, path, Params{Width: 6})
	if result.Err != nil {
		t.Fatalf("Submit failed: %v", result.Err)
	}
	if result.Image == nil || result.Image.Transform == nil {
		t.Fatal("result is missing the image or its transform record")
	}
	if result.RequestID == "" {
		t.Error("result has no request id")
	}
}

// TestSchedulerCache verifies that identical parameters are served from
// the render cache
func TestSchedulerCache(t *testing.T) {
	s := NewScheduler(nil, time.Minute)
	field := constantVolume(t, 2)
	path := straightPath(t)
	params := Params{Width: 6, LateralSpacing: 0.5}

	first := <-s.Submit(context.Background(), field, path, params)
	if first.Err != nil {
		t.Fatalf("first Submit failed: %v", first.Err)
	}
	second := <-s.Submit(context.Background(), field, path, params)
	if second.Err != nil {
		t.Fatalf("second Submit failed: %v", second.Err)
	}

	if first.Image != second.Image {
		t.Error("expected the cached image for identical parameters")
	}
	if first.RequestID == second.RequestID {
		t.Error("request ids must be unique per submission")
	}
}

// TestSchedulerDistinctParams verifies that parameter changes miss the
// cache and produce a fresh transform record
func TestSchedulerDistinctParams(t *testing.T) {
	s := NewScheduler(nil, time.Minute)
	field := constantVolume(t, 2)
	path := straightPath(t)

	first := <-s.Submit(context.Background(), field, path, Params{Width: 6})
	second := <-s.Submit(context.Background(), field, path, Params{Width: 8})
	if first.Err != nil || second.Err != nil {
		t.Fatalf("Submit failed: %v / %v", first.Err, second.Err)
	}

	if first.Image == second.Image {
		t.Error("different parameters must not share an image")
	}
	if first.Image.Transform.ID == second.Image.Transform.ID {
		t.Error("each render must issue a new transform record")
	}
}

// TestSchedulerSupersession verifies that a new submission cancels the
// in-flight render
func TestSchedulerSupersession(t *testing.T) {
	s := NewScheduler(nil, time.Minute)
	path := straightPath(t)

	// The first render would need minutes at this per-voxel delay; the
	// second submission must cancel it long before that.
	slow := slowField{Field: constantVolume(t, 1), delay: 500 * time.Microsecond}
	slowResults := s.Submit(context.Background(), slow, path, Params{Width: 30, LateralSpacing: 0.25})

	fast := <-s.Submit(context.Background(), constantVolume(t, 1), path, Params{Width: 6})
	if fast.Err != nil {
		t.Fatalf("superseding Submit failed: %v", fast.Err)
	}

	select {
	case result := <-slowResults:
		if !errors.Is(result.Err, context.Canceled) {
			t.Fatalf("expected the superseded render to be cancelled, got %v", result.Err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("superseded render never reported")
	}
}

// TestFingerprintDependsOnPath verifies that a rebuilt path invalidates
// the cache key
func TestFingerprintDependsOnPath(t *testing.T) {
	params := Params{Width: 6}
	a := straightPath(t)
	b := straightPath(t)
	b.Samples[len(b.Samples)-1].Position = geometry.Vec3{X: 9, Y: 8, Z: 13}

	if fingerprint(a, params) == fingerprint(b, params) {
		t.Error("paths with different endpoints must not share a fingerprint")
	}
	if fingerprint(a, params) != fingerprint(a, params) {
		t.Error("fingerprint must be deterministic")
	}
}
