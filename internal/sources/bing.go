package sources

import (
	"context"
	"net/url"
	"path"
	"strings"
	"sync"

	"wallp/internal/services"
	"wallp/internal/store"
	"wallp/internal/textutil"
)

// JSONGetter fetches and decodes a JSON document.
type JSONGetter interface {
	GetJSON(ctx context.Context, url string, v any) error
}

type bingArchive struct {
	Images []bingImage `json:"images"`
}

type bingImage struct {
	StartDate     string `json:"startdate"`
	URL           string `json:"url"`
	URLBase       string `json:"urlbase"`
	Copyright     string `json:"copyright"`
	CopyrightLink string `json:"copyrightlink"`
	Title         string `json:"title"`
}

// Bing reads the Bing image-of-the-day archive.
type Bing struct {
	archiveURL string
	baseURL    string
	http       JSONGetter
	seen       SeenChecker
	settings   store.SettingGetter

	mu sync.Mutex
}

// NewBing builds the bing source. archiveURL is the HPImageArchive JSON
// endpoint; image paths in it are resolved against baseURL.
func NewBing(archiveURL, baseURL string, http JSONGetter, seen SeenChecker) *Bing {
	return &Bing{
		archiveURL: archiveURL,
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       http,
		seen:       seen,
	}
}

// WithSettings makes Bing request the archive for the bing.market setting.
func (b *Bing) WithSettings(settings store.SettingGetter) *Bing {
	b.settings = settings
	return b
}

func (b *Bing) Name() string { return "bing" }

func (b *Bing) Capability() Capability { return Resolvable }

// Acquire picks the newest unused archive image. In latest mode the newest
// image is returned even if it was delivered before.
func (b *Bing) Acquire(ctx context.Context, params Params) (*Selection, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	archiveURL, err := b.marketURL(ctx)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "bing", "build archive url", b.archiveURL, err)
	}
	var archive bingArchive
	if err := b.http.GetJSON(ctx, archiveURL, &archive); err != nil {
		return nil, services.Wrap(services.ErrTransient, "bing", "get archive", archiveURL, err)
	}

	var trace Trace
	set := NewImageSet(b.Name())
	for _, img := range archive.Images {
		if candidate, ok := b.candidate(img); ok {
			set.Add(candidate)
		}
	}
	if set.Len() == 0 {
		return nil, services.Wrap(services.ErrValidation, "bing", "parse archive", "no images listed", nil)
	}
	trace.Add("archive", "%d images from %s", set.Len(), archiveURL)

	if params.Latest {
		set.SetSelector(func(_ context.Context, batch []Candidate) (*Candidate, error) {
			if len(batch) == 0 {
				return nil, nil
			}
			first := batch[0]
			return &first, nil
		})
	} else {
		set.AddDBFilter(b.seen).AddListFilter().AddQueryFilter(params.Query)
	}

	picked, err := set.Select(ctx, &trace)
	if err != nil {
		return nil, err
	}
	trace.Add("image", picked.URL)
	return &Selection{Candidate: *picked, Trace: trace}, nil
}

// marketURL sets the mkt query parameter from the bing.market setting. An
// empty market leaves the configured URL untouched.
func (b *Bing) marketURL(ctx context.Context) (string, error) {
	market := strings.TrimSpace(store.SettingOr(ctx, b.settings, store.BingMarketSetting, ""))
	if market == "" {
		return b.archiveURL, nil
	}
	parsed, err := url.Parse(b.archiveURL)
	if err != nil {
		return "", err
	}
	query := parsed.Query()
	query.Set("mkt", market)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func (b *Bing) candidate(img bingImage) (Candidate, bool) {
	if strings.TrimSpace(img.URL) == "" {
		return Candidate{}, false
	}
	imageURL := b.absolute(img.URL)
	contextRef := b.absolute(firstNonEmpty(img.URLBase, img.URL))

	description, artist := splitCopyright(img.Copyright)
	title := textutil.NormalizeText(img.Title)
	if title == "" {
		title = description
	}
	return Candidate{
		ContextURL:  contextRef,
		URL:         imageURL,
		Title:       title,
		Date:        img.StartDate,
		Description: description,
		Artist:      artist,
		Extension:   extensionOf(idParam(img.URL)),
	}, true
}

func (b *Bing) absolute(ref string) string {
	ref = strings.TrimSpace(ref)
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	if !strings.HasPrefix(ref, "/") {
		ref = "/" + ref
	}
	return b.baseURL + ref
}

// splitCopyright separates "Lavender field, France (© Jane Doe/Getty Images)"
// into the caption and the credited artist.
func splitCopyright(copyright string) (string, string) {
	copyright = textutil.NormalizeText(copyright)
	open := strings.LastIndex(copyright, "(")
	if open < 0 || !strings.HasSuffix(copyright, ")") {
		return copyright, ""
	}
	credit := strings.TrimSpace(copyright[open+1 : len(copyright)-1])
	credit = strings.TrimSpace(strings.TrimPrefix(credit, "©"))
	return strings.TrimSpace(copyright[:open]), credit
}

// idParam returns the id query parameter of a /th?id=... image path.
func idParam(ref string) string {
	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if id := parsed.Query().Get("id"); id != "" {
		return id
	}
	return path.Base(parsed.Path)
}

func extensionOf(name string) string {
	idx := strings.LastIndexByte(name, '.')
	if idx < 0 || idx == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[idx+1:])
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
