package analytics

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"linblog/internal/pageviews"
	"linblog/internal/posts"
)

// RecordPostViewInput is a page-view attempt addressed by post id.
type RecordPostViewInput struct {
	PostID         uint
	Source         pageviews.Source
	IP             string
	UserAgent      string
	Referer        *string
	AcceptLanguage *string
}

// Service is the entry point used by the HTTP layer and the CLI.
type Service struct {
	posts    posts.Lookup
	recorder *pageviews.Recorder
	queries  *pageviews.QueryService
	engine   *Engine
}

// NewService wires the collaborators together.
func NewService(lookup posts.Lookup, recorder *pageviews.Recorder, queries *pageviews.QueryService, engine *Engine) *Service {
	return &Service{
		posts:    lookup,
		recorder: recorder,
		queries:  queries,
		engine:   engine,
	}
}

// NewGormService builds a Service over db. countries may be nil.
func NewGormService(db *gorm.DB, countries pageviews.CountryResolver, engineOpts ...EngineOption) *Service {
	store := pageviews.NewGormStore(db)

	var recorderOpts []pageviews.RecorderOption
	if countries != nil {
		recorderOpts = append(recorderOpts, pageviews.WithCountryResolver(countries))
	}

	return NewService(
		posts.NewGormLookup(db),
		pageviews.NewRecorder(store, recorderOpts...),
		pageviews.NewQueryService(store),
		NewEngine(store, engineOpts...),
	)
}

// RecordPostView resolves the target post and hands the attempt to the recorder.
// An unknown post is an ignored attempt, not an error.
func (s *Service) RecordPostView(ctx context.Context, in RecordPostViewInput) (pageviews.RecordResult, error) {
	input := pageviews.RecordViewInput{
		Source:         in.Source,
		IP:             in.IP,
		UserAgent:      in.UserAgent,
		Referer:        in.Referer,
		AcceptLanguage: in.AcceptLanguage,
	}

	// preview traffic is dropped before the post lookup
	if in.Source != pageviews.SourcePreview {
		post, err := s.posts.GetPostSummary(ctx, in.PostID)
		if err != nil {
			return pageviews.RecordResult{}, fmt.Errorf("resolve post %d: %w", in.PostID, err)
		}
		input.Post = post
	}

	return s.recorder.RecordView(ctx, input)
}

func (s *Service) GetDashboardStats(ctx context.Context, days int) (*DashboardStats, error) {
	return s.engine.GetDashboardStats(ctx, days)
}

func (s *Service) ListPostAnalyticsSummary(ctx context.Context, days int) (*PostAnalyticsSummary, error) {
	return s.engine.ListPostAnalyticsSummary(ctx, days)
}

func (s *Service) ListPostViewEvents(ctx context.Context, filter pageviews.ViewEventFilter, page, pageSize int) (*pageviews.ViewEventPage, error) {
	return s.queries.ListPostViewEvents(ctx, filter, page, pageSize)
}

func (s *Service) GetPostSummary(ctx context.Context, postID uint) (*posts.PostSummary, error) {
	return s.posts.GetPostSummary(ctx, postID)
}

func (s *Service) CountViews(ctx context.Context, days int) (int64, error) {
	return s.engine.CountViews(ctx, days)
}
