package pageviews

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"linblog/internal/pkg/user_agent"
	"linblog/internal/posts"
	"linblog/internal/visitors"
)

// DedupWindow is how long a repeat view of the same post by the same fingerprint is suppressed.
const DedupWindow = 30 * time.Minute

// Source tags where a view attempt came from.
type Source string

const (
	SourceFrontend Source = "frontend"
	SourcePreview  Source = "preview"
)

// IgnoreReason says why an attempt was not recorded.
type IgnoreReason string

const (
	IgnoredPreview        IgnoreReason = "preview"
	IgnoredIneligiblePost IgnoreReason = "ineligible_post"
	IgnoredBot            IgnoreReason = "bot"
	IgnoredDuplicate      IgnoreReason = "duplicate"
)

// RecordViewInput is one page-view attempt.
type RecordViewInput struct {
	Post           *posts.PostSummary
	Source         Source
	IP             string
	UserAgent      string
	Referer        *string
	AcceptLanguage *string
}

// RecordResult is either an ignored attempt with its reason or a recorded event.
type RecordResult struct {
	Ignored    bool         `json:"ignored"`
	Reason     IgnoreReason `json:"reason,omitempty"`
	DeviceType DeviceType   `json:"device_type,omitempty"`
	EventID    string       `json:"event_id,omitempty"`
}

// OK reports whether the attempt was persisted.
func (r RecordResult) OK() bool {
	return !r.Ignored
}

func ignored(reason IgnoreReason) RecordResult {
	return RecordResult{Ignored: true, Reason: reason}
}

// CountryResolver maps an IP to an ISO country code, or "" when unknown.
type CountryResolver interface {
	CountryCode(ip string) string
}

// Recorder applies the eligibility and duplicate rules to view attempts.
type Recorder struct {
	store     Store
	now       func() time.Time
	newID     func() string
	countries CountryResolver
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithClock overrides the time source.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) { r.now = now }
}

// WithCountryResolver stamps a country code on recorded events.
func WithCountryResolver(resolver CountryResolver) RecorderOption {
	return func(r *Recorder) { r.countries = resolver }
}

// WithIDGenerator overrides event id generation.
func WithIDGenerator(newID func() string) RecorderOption {
	return func(r *Recorder) { r.newID = newID }
}

// NewRecorder creates a Recorder writing to store.
func NewRecorder(store Store, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		store: store,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RecordView records a view unless it is preview traffic, targets a post that is
// not live, comes from a bot, or repeats a view of the same post by the same
// fingerprint within DedupWindow. The first three checks never touch the store.
// Store failures are returned to the caller and never retried.
func (r *Recorder) RecordView(ctx context.Context, in RecordViewInput) (RecordResult, error) {
	if in.Source == SourcePreview {
		return ignored(IgnoredPreview), nil
	}
	if in.Post == nil || !in.Post.Published() {
		return ignored(IgnoredIneligiblePost), nil
	}
	if user_agent.IsBot(in.UserAgent) {
		return ignored(IgnoredBot), nil
	}

	fingerprint := visitors.Fingerprint(in.IP, in.UserAgent)
	deviceType := user_agent.ClassifyDevice(in.UserAgent)
	now := r.now().UTC()

	existing, err := r.store.FindRecent(ctx, in.Post.ID, fingerprint, now.Add(-DedupWindow))
	if err != nil {
		return RecordResult{}, fmt.Errorf("check duplicate view: %w", err)
	}
	if existing != nil {
		return ignored(IgnoredDuplicate), nil
	}

	event := &ViewEvent{
		ID:             r.newID(),
		PostID:         in.Post.ID,
		ViewedAt:       now,
		IP:             in.IP,
		UserAgent:      in.UserAgent,
		Referer:        nonEmpty(in.Referer),
		AcceptLanguage: nonEmpty(in.AcceptLanguage),
		DeviceType:     deviceType,
		Fingerprint:    fingerprint,
	}
	if r.countries != nil {
		event.Country = r.countries.CountryCode(in.IP)
	}

	if err := r.store.Insert(ctx, event); err != nil {
		return RecordResult{}, fmt.Errorf("record view: %w", err)
	}

	return RecordResult{DeviceType: deviceType, EventID: event.ID}, nil
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
