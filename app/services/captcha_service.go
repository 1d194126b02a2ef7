package services

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wenlng/go-captcha/v2/rotate"
)

// ErrCaptchaUnavailable is returned when a challenge could not be produced
var ErrCaptchaUnavailable = errors.New("captcha unavailable")

// CaptchaService guards the public contact form with a rotate captcha.
// The client rotates the thumb until it lines up with the master image and
// submits the angle with the challenge ID. Challenges are single use.
type CaptchaService interface {
	GenerateRotate(ctx context.Context) (*RotateChallenge, error)
	VerifyRotate(ctx context.Context, challengeID string, userAngle float64) bool
}

type RotateChallenge struct {
	ID                string
	MasterImageBase64 string
	ThumbImageBase64  string
	ImageSize         int
	ExpiresAt         time.Time
}

type captchaServiceImpl struct {
	rotator   rotate.Captcha
	store     *challengeStore
	padding   int
	imgSizePx int
}

// NewCaptchaServiceRotate builds the rotate captcha. padding is the accepted angle error in degrees.
// The background sweep of expired challenges stops when ctx is done.
func NewCaptchaServiceRotate(ctx context.Context, ttl time.Duration, padding int, imgSizePx int) (CaptchaService, error) {
	if imgSizePx <= 0 {
		imgSizePx = 220
	}

	builder := rotate.NewBuilder(
		rotate.WithImageSquareSize(imgSizePx),
	)
	builder.SetResources(
		rotate.WithImages(parcelBackgrounds(3, imgSizePx)),
	)

	store := newChallengeStore(ttl)
	go store.sweep(ctx, time.Minute)

	return &captchaServiceImpl{
		rotator:   builder.Make(),
		store:     store,
		padding:   padding,
		imgSizePx: imgSizePx,
	}, nil
}

func (s *captchaServiceImpl) GenerateRotate(ctx context.Context) (*RotateChallenge, error) {
	captData, err := s.rotator.Generate()
	if err != nil {
		return nil, err
	}

	block := captData.GetData()
	if block == nil {
		return nil, ErrCaptchaUnavailable
	}

	masterB64, err := captData.GetMasterImage().ToBase64()
	if err != nil {
		return nil, err
	}
	thumbB64, err := captData.GetThumbImage().ToBase64()
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	expiresAt := time.Now().Add(s.store.ttl)
	s.store.put(id, block.Angle, expiresAt)

	return &RotateChallenge{
		ID:                id,
		MasterImageBase64: masterB64,
		ThumbImageBase64:  thumbB64,
		ImageSize:         s.imgSizePx,
		ExpiresAt:         expiresAt.UTC(),
	}, nil
}

// VerifyRotate consumes the challenge whatever the outcome
func (s *captchaServiceImpl) VerifyRotate(ctx context.Context, challengeID string, userAngle float64) bool {
	target, ok := s.store.take(challengeID)
	if !ok {
		return false
	}
	return rotate.Validate(int(math.Round(userAngle)), target, s.padding)
}

type challenge struct {
	angle     int
	expiresAt time.Time
}

type challengeStore struct {
	mu  sync.Mutex
	m   map[string]challenge
	ttl time.Duration
}

func newChallengeStore(ttl time.Duration) *challengeStore {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &challengeStore{m: make(map[string]challenge), ttl: ttl}
}

func (s *challengeStore) put(id string, angle int, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[id] = challenge{angle: angle, expiresAt: expiresAt}
}

// take removes the challenge and returns its angle if it had not expired
func (s *challengeStore) take(id string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.m[id]
	if !ok {
		return 0, false
	}
	delete(s.m, id)
	if time.Now().After(c.expiresAt) {
		return 0, false
	}
	return c.angle, true
}

func (s *challengeStore) sweep(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.mu.Lock()
			for k, v := range s.m {
				if now.After(v.expiresAt) {
					delete(s.m, k)
				}
			}
			s.mu.Unlock()
		}
	}
}

// parcelBackgrounds draws n square images of stacked parcel boxes on a gradient
func parcelBackgrounds(n int, size int) []image.Image {
	if n <= 0 {
		n = 1
	}
	imgs := make([]image.Image, 0, n)
	for i := 0; i < n; i++ {
		imgs = append(imgs, parcelBackground(size))
	}
	return imgs
}

func parcelBackground(size int) image.Image {
	rgba := image.NewRGBA(image.Rect(0, 0, size, size))
	half := float64(size) / 2
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dx, dy := float64(x)-half, float64(y)-half
			t := math.Min(math.Sqrt(dx*dx+dy*dy)/half, 1)
			shade := uint8(220 - int(120*t))
			noise := uint8(rand.IntN(24))
			rgba.Set(x, y, color.RGBA{R: shade, G: shade - noise/2, B: 150 + noise, A: 255})
		}
	}
	box := color.RGBA{R: 160, G: 110, B: 60, A: 200}
	tape := color.RGBA{R: 240, G: 220, B: 160, A: 220}
	for i := 0; i < 4; i++ {
		w := size/6 + rand.IntN(size/6)
		h := size/8 + rand.IntN(size/8)
		x := rand.IntN(size - w)
		y := rand.IntN(size - h)
		fill(rgba, image.Rect(x, y, x+w, y+h), box)
		fill(rgba, image.Rect(x+w/2-2, y, x+w/2+2, y+h), tape)
	}
	return rgba
}

func fill(dst *image.RGBA, r image.Rectangle, c color.RGBA) {
	draw.Draw(dst, r, &image.Uniform{C: c}, image.Point{}, draw.Over)
}
