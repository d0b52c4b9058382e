package refresher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/gramvault/gramvault/internal/model"
	"github.com/gramvault/gramvault/internal/pkg/logger"
	"github.com/gramvault/gramvault/internal/pkg/metrics"
)

// Outcome is the terminal result of one refresh invocation.
type Outcome string

const (
	OutcomeSkipped   Outcome = "skipped"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeUpdated   Outcome = "updated"
	OutcomeFailed    Outcome = "failed"
)

type ProfileStore interface {
	GetByID(ctx context.Context, id string) (*model.Profile, error)
	UpdatePicture(ctx context.Context, id, path, hash string) error
}

type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type BlobStore interface {
	Write(hint, fingerprint string, data []byte) (string, error)
}

type Config struct {
	MaxAttempts int
	Backoff     Backoff
}

// Refresher keeps a profile's stored picture synchronized with its
// remote source. It writes only on genuine content change: the sha256
// fingerprint of the fetched bytes is compared against the stored one
// before any persistence happens.
type Refresher struct {
	profiles ProfileStore
	fetcher  Fetcher
	blobs    BlobStore
	cfg      Config

	// sleep is injectable so retry timing is testable without real delays.
	sleep func(ctx context.Context, d time.Duration) error
}

func New(profiles ProfileStore, fetcher Fetcher, blobs BlobStore, cfg Config) *Refresher {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Backoff == nil {
		cfg.Backoff = FixedBackoff{Delay: 60 * time.Second}
	}
	return &Refresher{
		profiles: profiles,
		fetcher:  fetcher,
		blobs:    blobs,
		cfg:      cfg,
		sleep:    sleepContext,
	}
}

// WithSleep overrides the retry wait, for tests.
func (r *Refresher) WithSleep(fn func(ctx context.Context, d time.Duration) error) *Refresher {
	r.sleep = fn
	return r
}

// Refresh runs one invocation for the given profile. force bypasses the
// auto-update flag but never the unchanged-content write skip.
func (r *Refresher) Refresh(ctx context.Context, profileID string, force bool) (outcome Outcome, err error) {
	start := time.Now()
	defer func() {
		metrics.RefreshOutcomes.WithLabelValues(string(outcome)).Inc()
		metrics.RefreshDuration.Observe(time.Since(start).Seconds())
	}()

	profile, getErr := r.profiles.GetByID(ctx, profileID)
	if getErr != nil {
		return OutcomeFailed, &FatalError{Stage: "load", Cause: getErr}
	}

	if !profile.AllowAutoUpdateProfile && !force {
		logger.Debug("refresh skipped, auto-update disabled", "profile_id", profileID)
		return OutcomeSkipped, nil
	}
	if profile.OriginalProfilePictureURL == "" {
		return OutcomeFailed, &FatalError{Stage: "load", Cause: fmt.Errorf("profile has no source picture url")}
	}

	data, fetchErr := r.fetchWithRetry(ctx, profile.OriginalProfilePictureURL)
	if fetchErr != nil {
		return OutcomeFailed, fetchErr
	}

	hash := Fingerprint(data)
	if hash == profile.ProfilePictureHash {
		logger.Debug("refresh unchanged", "profile_id", profileID, "hash", hash)
		return OutcomeUnchanged, nil
	}

	location, writeErr := r.blobs.Write(profile.Username+"_profile", hash, data)
	if writeErr != nil {
		return OutcomeFailed, &FatalError{Stage: "store", Cause: writeErr}
	}

	// Location and fingerprint move together in one write so the pair
	// never goes stale relative to the stored bytes.
	if persistErr := r.profiles.UpdatePicture(ctx, profile.ID, location, hash); persistErr != nil {
		return OutcomeFailed, &FatalError{Stage: "persist", Cause: persistErr}
	}

	logger.Info("profile picture updated",
		"profile_id", profileID, "username", profile.Username,
		"location", location, "hash", hash)
	return OutcomeUpdated, nil
}

func (r *Refresher) fetchWithRetry(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		data, err := r.fetcher.Fetch(ctx, url)
		if err == nil {
			return data, nil
		}
		lastErr = err

		var fetchErr *FetchError
		if !errors.As(err, &fetchErr) || !fetchErr.Temporary {
			return nil, &FatalError{Stage: "fetch", Cause: err}
		}
		if attempt == r.cfg.MaxAttempts {
			break
		}

		delay := r.cfg.Backoff.NextDelay(attempt)
		logger.Warn("transient fetch failure, retrying",
			"url", url, "attempt", attempt, "delay", delay.String(), "error", err.Error())
		if sleepErr := r.sleep(ctx, delay); sleepErr != nil {
			return nil, &FatalError{Stage: "fetch", Cause: sleepErr}
		}
	}
	return nil, &TransientError{Attempts: r.cfg.MaxAttempts, Cause: lastErr}
}

// Fingerprint is the content hash used for change detection. Collision
// resistance is not a security property here; a stable digest suffices.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
