package aiusage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/nourseensaeed7/BinWise-Recycle/internal/ai"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/apperr"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/logger"
)

const maxDescriptionLen = 2000

type Options struct {
	// Timeout bounds a single detector call.
	Timeout time.Duration
	Logger  *logger.Logger
}

// Service orchestrates AI token usage and material detection.
type Service struct {
	quota    Quota
	detector ai.MaterialDetector
	timeout  time.Duration
	log      *logger.Logger
}

// NewService creates a Service; detector may be nil when no model is configured.
func NewService(quota Quota, detector ai.MaterialDetector, opts Options) *Service {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return &Service{quota: quota, detector: detector, timeout: opts.Timeout, log: opts.Logger}
}

// UseToken deducts one token from the user's monthly allowance.
// A missing user row is created and the deduction retried once.
func (s *Service) UseToken(ctx context.Context, uid string) error {
	err := s.quota.UseToken(ctx, uid)
	if !errors.Is(err, ErrInsufficientTokens) {
		return storageErr(err)
	}

	if initErr := s.quota.EnsureUser(ctx, uid); initErr != nil {
		return storageErr(initErr)
	}
	return storageErr(s.quota.UseToken(ctx, uid))
}

func (s *Service) Remaining(ctx context.Context, uid string) (int, error) {
	n, err := s.quota.Remaining(ctx, uid)
	return n, storageErr(err)
}

// Detect spends one token and asks the detector for candidate items.
func (s *Service) Detect(ctx context.Context, uid, description string) (*ai.Detection, error) {
	description = strings.TrimSpace(description)
	switch {
	case uid == "":
		return nil, apperr.New(apperr.CodeUnauthorized, "caller identity required")
	case description == "":
		return nil, apperr.New(apperr.CodeValidation, "description is required")
	case len(description) > maxDescriptionLen:
		return nil, apperr.Newf(apperr.CodeValidation, "description exceeds %d characters", maxDescriptionLen)
	case s.detector == nil:
		return nil, apperr.New(apperr.CodeInternal, "material detection is not configured")
	}

	if err := s.UseToken(ctx, uid); err != nil {
		return nil, err
	}

	dctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	detection, err := s.detector.Detect(dctx, description)
	if err != nil {
		ctx = s.log.WithUserID(ctx, uid)
		s.log.Error(ctx, "material detection failed", err)
		return nil, apperr.Wrap(apperr.CodeInternal, err, "material detection failed")
	}
	return detection, nil
}

func storageErr(err error) error {
	if err == nil || apperr.As(err) != nil {
		return err
	}
	return apperr.Wrap(apperr.CodeStorage, err, "ai usage store failed")
}
