package sources

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"wallp/internal/logging"
	"wallp/internal/services"
	"wallp/internal/textutil"
)

// Getter fetches a page body.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

const xkcdArtist = "Randall Munroe"

// XKCD scrapes the xkcd archive. Enumerated comics are cached between
// acquisitions and the archive is only fetched again when every cached comic
// has been used, or when the caller asks for the latest comic.
type XKCD struct {
	baseURL string
	http    Getter
	seen    SeenChecker
	logger  *slog.Logger

	mu     sync.Mutex
	set    *ImageSet
	latest *Candidate
}

// NewXKCD builds the xkcd source rooted at baseURL (normally https://xkcd.com).
func NewXKCD(baseURL string, http Getter, seen SeenChecker, logger *slog.Logger) *XKCD {
	return &XKCD{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http,
		seen:    seen,
		logger:  logging.NewComponentLogger(logger, "xkcd"),
	}
}

func (x *XKCD) Name() string { return "xkcd" }

func (x *XKCD) Capability() Capability { return Resolvable }

// Acquire selects an unused comic (or the latest one when params.Latest is
// set) and resolves its image URL.
func (x *XKCD) Acquire(ctx context.Context, params Params) (*Selection, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	var trace Trace
	set := x.imageSet(params)

	if params.Latest {
		set.Reset()
		if err := x.scrape(ctx, set, &trace); err != nil {
			return nil, err
		}
	} else {
		available, err := set.Available(ctx)
		if err != nil {
			return nil, err
		}
		if len(available) == 0 {
			set.Reset()
			if err := x.scrape(ctx, set, &trace); err != nil {
				return nil, err
			}
		} else {
			trace.Add("archive", "%d cached comics", set.Len())
		}
	}

	picked, err := set.Select(ctx, &trace)
	if err != nil {
		return nil, err
	}
	trace.Add("image", picked.URL)
	return &Selection{Candidate: *picked, Trace: trace}, nil
}

// imageSet rebuilds the filter chain for this call while keeping the cached
// candidates.
func (x *XKCD) imageSet(params Params) *ImageSet {
	var cached []Candidate
	if x.set != nil {
		cached = x.set.candidates
	}
	set := NewImageSet(x.Name())
	set.Add(cached...)
	if params.Latest {
		set.SetSelector(func(_ context.Context, _ []Candidate) (*Candidate, error) {
			if x.latest == nil {
				return nil, nil
			}
			latest := *x.latest
			return &latest, nil
		})
	} else {
		set.AddDBFilter(x.seen).AddListFilter().AddQueryFilter(params.Query)
	}
	set.SetResolver(x.resolveComic)
	x.set = set
	return set
}

func (x *XKCD) scrape(ctx context.Context, set *ImageSet, trace *Trace) error {
	archiveURL := x.baseURL + "/archive"
	body, err := x.http.Get(ctx, archiveURL)
	if err != nil {
		return services.Wrap(services.ErrTransient, "xkcd", "get archive", archiveURL, err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return services.Wrap(services.ErrValidation, "xkcd", "parse archive", archiveURL, err)
	}

	base, err := url.Parse(x.baseURL + "/")
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "xkcd", "parse base url", x.baseURL, err)
	}

	var (
		added   int
		skipped int
	)
	x.latest = nil
	doc.Find("div#middleContainer a").Each(func(_ int, link *goquery.Selection) {
		href, ok := link.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			skipped++
			return
		}
		ref, err := base.Parse(strings.TrimSpace(href))
		if err != nil {
			skipped++
			return
		}
		candidate := Candidate{
			ContextURL: ref.String(),
			Title:      textutil.NormalizeText(link.Text()),
			Artist:     xkcdArtist,
		}
		if raw, ok := link.Attr("title"); ok {
			if date, err := time.Parse("2006-1-2", strings.TrimSpace(raw)); err == nil {
				candidate.Date = date.Format("2006-01-02")
				candidate.Title += date.Format(" (02 Jan 2006)")
			}
		}
		set.Add(candidate)
		if added == 0 {
			latest := candidate
			x.latest = &latest
		}
		added++
	})
	if skipped > 0 {
		x.logger.Debug("skipped archive links", logging.Int("skipped", skipped))
	}
	if added == 0 {
		return services.Wrap(services.ErrValidation, "xkcd", "parse archive", "no comics found", nil)
	}
	trace.Add("archive", "%d comics from %s", added, archiveURL)
	return nil
}

func (x *XKCD) resolveComic(ctx context.Context, c Candidate) (Candidate, error) {
	body, err := x.http.Get(ctx, c.ContextURL)
	if err != nil {
		return c, services.Wrap(services.ErrTransient, "xkcd", "get comic page", c.ContextURL, err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return c, services.Wrap(services.ErrValidation, "xkcd", "parse comic page", c.ContextURL, err)
	}
	img := doc.Find("div#comic img").First()
	src, ok := img.Attr("src")
	if !ok || strings.TrimSpace(src) == "" {
		return c, services.Wrap(services.ErrValidation, "xkcd", "parse comic page", fmt.Sprintf("no comic image on %s", c.ContextURL), nil)
	}
	page, err := url.Parse(c.ContextURL)
	if err != nil {
		return c, services.Wrap(services.ErrValidation, "xkcd", "parse comic url", c.ContextURL, err)
	}
	imageURL, err := page.Parse(strings.TrimSpace(src))
	if err != nil {
		return c, services.Wrap(services.ErrValidation, "xkcd", "parse image url", src, err)
	}
	c.URL = imageURL.String()
	if title, ok := img.Attr("title"); ok {
		c.Description = textutil.NormalizeText(title)
	}
	return c, nil
}
