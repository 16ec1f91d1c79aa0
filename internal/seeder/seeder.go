// Package seeder fills a database with sample posts and reader traffic.
package seeder

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"linblog/internal/pageviews"
	"linblog/internal/posts"
)

// Seeder generates sample data.
type Seeder struct {
	DBManager  cartridge.DBManager
	Logger     *slog.Logger
	PostCount  int
	EventCount int
	Days       int

	rng *rand.Rand
	now func() time.Time
}

// Report summarises a seeding run.
type Report struct {
	Posts    int
	Recorded int
	Ignored  map[pageviews.IgnoreReason]int
}

// NewSeeder creates a new seeder instance
func NewSeeder(dbManager cartridge.DBManager, logger *slog.Logger, postCount, eventCount int) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{
		DBManager:  dbManager,
		Logger:     logger,
		PostCount:  postCount,
		EventCount: eventCount,
		Days:       30,
		rng:        rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 42)),
		now:        time.Now,
	}
}

// WithSeed makes the run reproducible.
func (s *Seeder) WithSeed(seed uint64, now time.Time) *Seeder {
	s.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	s.now = func() time.Time { return now }
	return s
}

// Run seeds posts, then replays synthetic reads through the recorder so that
// bots, previews and repeat reads are filtered exactly as in production.
func (s *Seeder) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	s.Logger.Info("Starting database seeding...",
		slog.Int("postCount", s.PostCount),
		slog.Int("eventCount", s.EventCount))

	db := s.DBManager.GetConnection()

	seeded, err := s.seedPosts(db)
	if err != nil {
		return nil, fmt.Errorf("failed to seed posts: %w", err)
	}

	report := &Report{Posts: len(seeded), Ignored: map[pageviews.IgnoreReason]int{}}
	if err := s.generateReads(ctx, db, seeded, report); err != nil {
		return report, fmt.Errorf("failed to generate reads: %w", err)
	}

	s.Logger.Info("Seeding completed successfully",
		slog.Int("posts", report.Posts),
		slog.Int("recorded", report.Recorded),
		slog.Any("ignored", report.Ignored),
		slog.Duration("elapsed", time.Since(start)))
	return report, nil
}

func (s *Seeder) seedPosts(db *gorm.DB) ([]*posts.Post, error) {
	titles := getPostTitles()
	var seeded []*posts.Post

	for i := 0; i < s.PostCount; i++ {
		title := titles[i%len(titles)]
		if i >= len(titles) {
			title = fmt.Sprintf("%s (part %d)", title, i/len(titles)+1)
		}
		slug := slugify(title)

		post := &posts.Post{Slug: slug, Title: title, Status: s.pickStatus()}

		err := sqlite.PerformWrite(s.Logger, db, func(tx *gorm.DB) error {
			var existing posts.Post
			if err := tx.Unscoped().Where("slug = ?", slug).Limit(1).Find(&existing).Error; err != nil {
				return err
			}
			if existing.ID != 0 {
				*post = existing
				return nil
			}
			return posts.CreatePost(tx, post)
		})
		if err != nil {
			return nil, err
		}
		seeded = append(seeded, post)
	}

	s.Logger.Info("Seeded posts", slog.Int("count", len(seeded)))
	return seeded, nil
}

// pickStatus favours published posts so that most reads count.
func (s *Seeder) pickStatus() posts.Status {
	switch n := s.rng.IntN(10); {
	case n < 8:
		return posts.StatusPublished
	case n < 9:
		return posts.StatusDraft
	default:
		return posts.StatusArchived
	}
}

func (s *Seeder) generateReads(ctx context.Context, db *gorm.DB, seeded []*posts.Post, report *Report) error {
	if len(seeded) == 0 || s.EventCount <= 0 {
		return nil
	}

	ipPool := s.generateIPPool(200)
	userAgents := getUserAgents()
	referers := getReferers()
	languages := []string{"en-US,en;q=0.9", "de-DE,de;q=0.8", "es-ES,es;q=0.9", "fr-FR,fr;q=0.7", ""}

	var at time.Time
	recorder := pageviews.NewRecorder(pageviews.NewGormStore(db),
		pageviews.WithClock(func() time.Time { return at }))

	span := time.Duration(s.Days) * 24 * time.Hour
	base := s.now().UTC().Add(-span)
	step := span / time.Duration(s.EventCount)

	for i := 0; i < s.EventCount; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		// walk forward in time so the dedup window sees reads in order
		at = base.Add(time.Duration(i)*step + time.Duration(s.rng.Int64N(int64(step)+1)))

		post := seeded[s.popularIndex(len(seeded))]
		source := pageviews.SourceFrontend
		if s.rng.IntN(50) == 0 {
			source = pageviews.SourcePreview
		}

		result, err := recorder.RecordView(ctx, pageviews.RecordViewInput{
			Post:           post.Summary(),
			Source:         source,
			IP:             ipPool[s.rng.IntN(len(ipPool))],
			UserAgent:      userAgents[s.rng.IntN(len(userAgents))],
			Referer:        optional(referers[s.rng.IntN(len(referers))]),
			AcceptLanguage: optional(languages[s.rng.IntN(len(languages))]),
		})
		if err != nil {
			return err
		}

		if result.Ignored {
			report.Ignored[result.Reason]++
		} else {
			report.Recorded++
		}
	}
	return nil
}

// popularIndex skews traffic towards the first posts.
func (s *Seeder) popularIndex(n int) int {
	a, b := s.rng.IntN(n), s.rng.IntN(n)
	return min(a, b)
}

func (s *Seeder) generateIPPool(count int) []string {
	seen := make(map[string]bool)
	var ips []string
	for len(ips) < count {
		ip := fmt.Sprintf("%d.%d.%d.%d", s.rng.IntN(223)+1, s.rng.IntN(256), s.rng.IntN(256), s.rng.IntN(254)+1)
		if !seen[ip] {
			seen[ip] = true
			ips = append(ips, ip)
		}
	}
	return ips
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func slugify(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func getPostTitles() []string {
	return []string{
		"Hello World",
		"Why I Moved My Blog to SQLite",
		"Notes on Structured Logging",
		"A Week with Go Generics",
		"Reading List: Distributed Systems",
		"Self-Hosting on a Tiny VPS",
		"What Page Views Do Not Tell You",
		"Writing Tests That Age Well",
		"Year in Review",
		"Draft Ideas for Next Quarter",
	}
}

func getUserAgents() []string {
	return []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
		"Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1",
		"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36",
		"Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
		"Mozilla/5.0 (iPad; CPU OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1",
		"Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)",
		"curl/8.4.0",
	}
}

func getReferers() []string {
	return []string{
		"",
		"https://www.google.com/",
		"https://duckduckgo.com/",
		"https://news.ycombinator.com/item?id=1",
		"https://www.reddit.com/r/golang/",
		"https://t.co/abc123",
		"https://github.com/",
		"https://some-other-blog.net/links",
	}
}
