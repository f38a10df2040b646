package repository

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang-trade-sentry/internal/watcher/config"
	"golang-trade-sentry/internal/watcher/dto"
	"golang-trade-sentry/pkg/logger"

	"github.com/mauidude/go-readability"
	"github.com/mmcdole/gofeed"
	"github.com/patrickmn/go-cache"
)

// NewsRepository fetches recent headlines mentioning a symbol for evaluator
// context. The top headline's article body is extracted to an excerpt.
type NewsRepository interface {
	GetHeadlines(ctx context.Context, symbol string) ([]dto.NewsHeadline, error)
}

// NewNewsRepository creates a new RSS-backed news repository.
func NewNewsRepository(cfg *config.Config, log *logger.Logger) NewsRepository {
	maxHeadlines := cfg.News.MaxHeadlines
	if maxHeadlines <= 0 {
		maxHeadlines = 5
	}
	return &newsRepository{
		cfg:           cfg,
		logger:        log,
		parser:        gofeed.NewParser(),
		client:        &http.Client{Timeout: 30 * time.Second},
		inmemoryCache: cache.New(10*time.Minute, 20*time.Minute),
		maxHeadlines:  maxHeadlines,
	}
}

type newsRepository struct {
	cfg           *config.Config
	logger        *logger.Logger
	parser        *gofeed.Parser
	client        *http.Client
	inmemoryCache *cache.Cache
	maxHeadlines  int
}

func (r *newsRepository) GetHeadlines(ctx context.Context, symbol string) ([]dto.NewsHeadline, error) {
	if cached, found := r.inmemoryCache.Get(symbol); found {
		return cached.([]dto.NewsHeadline), nil
	}

	feedURL := fmt.Sprintf(r.cfg.News.FeedURLTemplate, symbol)
	feed, err := r.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse news feed for %s: %w", symbol, err)
	}

	var headlines []dto.NewsHeadline
	for _, item := range feed.Items {
		if len(headlines) >= r.maxHeadlines {
			break
		}
		if !strings.Contains(strings.ToUpper(item.Title+" "+item.Description), strings.ToUpper(symbol)) {
			continue
		}
		headlines = append(headlines, dto.NewsHeadline{
			Title:       item.Title,
			Link:        item.Link,
			PublishedAt: item.PublishedParsed,
		})
	}

	// Pull the lead article's text into an excerpt for the AI evaluator.
	if len(headlines) > 0 && headlines[0].Link != "" {
		if excerpt, err := r.extractExcerpt(ctx, headlines[0].Link); err != nil {
			r.logger.Debug("Failed to extract article excerpt",
				logger.ErrorField(err), logger.StringField("link", headlines[0].Link))
		} else {
			headlines[0].Excerpt = excerpt
		}
	}

	r.inmemoryCache.Set(symbol, headlines, cache.DefaultExpiration)
	return headlines, nil
}

func (r *newsRepository) extractExcerpt(ctx context.Context, link string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}

	doc, err := readability.NewDocument(string(body))
	if err != nil {
		return "", err
	}

	content := strings.TrimSpace(stripTags(doc.Content()))
	const maxExcerpt = 600
	if len(content) > maxExcerpt {
		content = content[:maxExcerpt]
	}
	return content, nil
}

func stripTags(html string) string {
	var sb strings.Builder
	inTag := false
	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			sb.WriteRune(' ')
		case !inTag:
			sb.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}
