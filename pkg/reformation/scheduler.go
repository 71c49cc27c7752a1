package reformation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"taviplan/internal/models"
	"taviplan/pkg/volume"
)

// DefaultCacheTTL is how long rendered reformations stay cached. Users
// flip between rotation and slab settings and frequently return to a
// recent one.
const DefaultCacheTTL = 2 * time.Minute

// Result delivers the outcome of a scheduled render. Err is
// context.Canceled when the request was superseded by a newer one.
type Result struct {
	// RequestID identifies the render request the result belongs to.
	RequestID string

	// Image is the rendered reformation, nil on error.
	Image *models.ReformationImage

	// Err is the render failure, nil on success.
	Err error
}

// Scheduler runs reformation renders off the interactive path. At most one
// render is in flight per scheduler; submitting a new request cancels the
// previous one, because users change rotation and slab parameters faster
// than a render completes. Completed renders are cached by parameter
// fingerprint for the configured TTL.
type Scheduler struct {
	logger *zap.Logger
	cache  *gocache.Cache

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewScheduler creates a scheduler. A nil logger disables logging; a zero
// ttl uses DefaultCacheTTL.
func NewScheduler(logger *zap.Logger, ttl time.Duration) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Scheduler{
		logger: logger,
		cache:  gocache.New(ttl, ttl),
	}
}

// Submit schedules a render and returns a channel delivering exactly one
// Result. Any in-flight render is cancelled first; its channel receives a
// Result with Err == context.Canceled. The image and its transform record
// are published together through the Result, never separately.
func (s *Scheduler) Submit(ctx context.Context, field volume.Field, path *models.CenterlinePath, params Params) <-chan Result {
	requestID := uuid.NewString()
	out := make(chan Result, 1)

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	renderCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	key := fingerprint(path, params)
	s.logger.Debug("render submitted",
		zap.String("requestId", requestID),
		zap.String("fingerprint", key))

	go func() {
		defer cancel()

		if cached, ok := s.cache.Get(key); ok {
			s.logger.Debug("render served from cache",
				zap.String("requestId", requestID))
			out <- Result{RequestID: requestID, Image: cached.(*models.ReformationImage)}
			return
		}

		start := time.Now()
		img, err := Render(renderCtx, field, path, params)
		if err != nil {
			if renderCtx.Err() != nil {
				s.logger.Debug("render superseded",
					zap.String("requestId", requestID))
				out <- Result{RequestID: requestID, Err: context.Canceled}
				return
			}
			s.logger.Warn("render failed",
				zap.String("requestId", requestID),
				zap.Error(err))
			out <- Result{RequestID: requestID, Err: err}
			return
		}

		s.cache.SetDefault(key, img)
		s.logger.Info("render completed",
			zap.String("requestId", requestID),
			zap.Int("width", img.Width),
			zap.Int("height", img.Height),
			zap.Duration("elapsed", time.Since(start)))
		out <- Result{RequestID: requestID, Image: img}
	}()

	return out
}

// fingerprint derives a cache key from the render inputs. The path is
// identified by its shape (sample count, endpoints, total length), which is
// stable for an unchanged path and differs for any rebuilt one.
func fingerprint(path *models.CenterlinePath, params Params) string {
	params = params.withDefaults()
	var first, last string
	if n := len(path.Samples); n > 0 {
		f := path.Samples[0].Position
		l := path.Samples[n-1].Position
		first = fmt.Sprintf("%.4f,%.4f,%.4f", f.X, f.Y, f.Z)
		last = fmt.Sprintf("%.4f,%.4f,%.4f", l.X, l.Y, l.Z)
	}
	return fmt.Sprintf("n=%d|%s|%s|len=%.4f|w=%.3f|rot=%.5f|proj=%s|slab=%.3f/%d|layout=%s|sp=%.4f",
		len(path.Samples), first, last, path.Length(),
		params.Width, params.Rotation, params.Projection,
		params.SlabThickness, params.SlabSamples, params.Layout, params.LateralSpacing)
}
