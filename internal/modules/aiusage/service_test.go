package aiusage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nourseensaeed7/BinWise-Recycle/internal/ai"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/apperr"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/modules/points"
)

type stubDetector struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (d *stubDetector) Detect(_ context.Context, description string) (*ai.Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	return &ai.Detection{Items: []ai.Candidate{{Material: points.Plastic, Quantity: 2, WeightKg: 1}}}, nil
}

type failingQuota struct{}

func (failingQuota) UseToken(context.Context, string) error         { return errors.New("connection reset") }
func (failingQuota) EnsureUser(context.Context, string) error       { return nil }
func (failingQuota) Remaining(context.Context, string) (int, error) { return 0, errors.New("connection reset") }

func TestUseTokenNewUser(t *testing.T) {
	q := NewMemoryQuota(3)
	svc := NewService(q, nil, Options{})
	ctx := context.Background()

	require.NoError(t, svc.UseToken(ctx, "user_new"))
	left, err := svc.Remaining(ctx, "user_new")
	require.NoError(t, err)
	assert.Equal(t, 2, left)
}

func TestUseTokenQuotaBoundary(t *testing.T) {
	svc := NewService(NewMemoryQuota(2), nil, Options{})
	ctx := context.Background()

	require.NoError(t, svc.UseToken(ctx, "u"))
	require.NoError(t, svc.UseToken(ctx, "u"))
	err := svc.UseToken(ctx, "u")
	require.ErrorIs(t, err, ErrInsufficientTokens)
	assert.Equal(t, apperr.CodeQuota, apperr.CodeOf(err))
}

func TestUseTokenCrossMonthReset(t *testing.T) {
	q := NewMemoryQuota(2)
	now := time.Date(2026, 1, 31, 23, 0, 0, 0, time.UTC)
	q.now = func() time.Time { return now }
	svc := NewService(q, nil, Options{})
	ctx := context.Background()

	require.NoError(t, svc.UseToken(ctx, "u"))
	require.NoError(t, svc.UseToken(ctx, "u"))
	require.ErrorIs(t, svc.UseToken(ctx, "u"), ErrInsufficientTokens)

	now = now.Add(2 * time.Hour)
	require.NoError(t, svc.UseToken(ctx, "u"))
	left, err := svc.Remaining(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, 1, left)
}

func TestUseTokenStorageFailure(t *testing.T) {
	svc := NewService(failingQuota{}, nil, Options{})
	err := svc.UseToken(context.Background(), "u")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeStorage, apperr.CodeOf(err))
	assert.True(t, apperr.As(err).Retryable())
}

func TestDetect(t *testing.T) {
	det := &stubDetector{}
	q := NewMemoryQuota(5)
	svc := NewService(q, det, Options{})
	ctx := context.Background()

	d, err := svc.Detect(ctx, "u", "  two plastic bottles ")
	require.NoError(t, err)
	require.Len(t, d.Items, 1)
	assert.Equal(t, points.Plastic, d.Items[0].Material)

	left, _ := q.Remaining(ctx, "u")
	assert.Equal(t, 4, left)
}

func TestDetectRejections(t *testing.T) {
	cases := []struct {
		name        string
		uid, desc   string
		detector    ai.MaterialDetector
		code        apperr.Code
		tokensSpent bool
	}{
		{name: "anonymous", desc: "bottles", detector: &stubDetector{}, code: apperr.CodeUnauthorized},
		{name: "blank description", uid: "u", desc: "   ", detector: &stubDetector{}, code: apperr.CodeValidation},
		{name: "not configured", uid: "u", desc: "bottles", code: apperr.CodeInternal},
		{name: "detector failure", uid: "u", desc: "bottles", detector: &stubDetector{err: errors.New("upstream 500")}, code: apperr.CodeInternal, tokensSpent: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := NewMemoryQuota(5)
			svc := NewService(q, tc.detector, Options{})
			_, err := svc.Detect(context.Background(), tc.uid, tc.desc)
			require.Error(t, err)
			assert.Equal(t, tc.code, apperr.CodeOf(err))

			left, _ := q.Remaining(context.Background(), tc.uid)
			if tc.tokensSpent {
				assert.Equal(t, 4, left)
			} else {
				assert.Equal(t, 5, left)
			}
		})
	}
}

func TestDetectExhaustedQuotaSkipsDetector(t *testing.T) {
	det := &stubDetector{}
	svc := NewService(NewMemoryQuota(1), det, Options{})
	ctx := context.Background()

	_, err := svc.Detect(ctx, "u", "glass jars")
	require.NoError(t, err)
	_, err = svc.Detect(ctx, "u", "glass jars")
	require.ErrorIs(t, err, ErrInsufficientTokens)
	assert.Equal(t, 1, det.calls)
}
