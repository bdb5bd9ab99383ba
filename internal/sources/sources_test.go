package sources

import (
	"context"
	"errors"
	"fmt"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"wallp/internal/fetch"
	"wallp/internal/logging"
	"wallp/internal/services"
)

type seenSet struct {
	mu   sync.Mutex
	refs map[string]bool
}

func newSeenSet(refs ...string) *seenSet {
	s := &seenSet{refs: map[string]bool{}}
	for _, ref := range refs {
		s.refs[ref] = true
	}
	return s
}

func (s *seenSet) HasSeen(_ context.Context, ref string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refs[ref], nil
}

func (s *seenSet) mark(ref string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs[ref] = true
}

type fakeSource struct {
	name string
	cap  Capability
}

func (f fakeSource) Name() string { return f.name }
func (f fakeSource) Capability() Capability { return f.cap }
func (f fakeSource) Acquire(context.Context, Params) (*Selection, error) {
	return nil, errors.New("not used")
}

func TestRegistryGetReturnsNilForUnknownOrDisabled(t *testing.T) {
	reg := NewRegistry([]string{"xkcd"}, fakeSource{"xkcd", Resolvable}, fakeSource{"color", Generative})

	if reg.Get("XKCD") == nil {
		t.Fatal("expected enabled source to resolve case-insensitively")
	}
	if reg.Get("color") != nil {
		t.Fatal("expected disabled source to be nil")
	}
	if reg.Get("flickr") != nil {
		t.Fatal("expected unknown source to be nil")
	}
}

func TestRegistryRandomIsUniformOverEnabled(t *testing.T) {
	reg := NewRegistry([]string{"a", "c"}, fakeSource{"a", Resolvable}, fakeSource{"b", Resolvable}, fakeSource{"c", Generative})
	calls := 0
	reg.intn = func(n int) int {
		if n != 2 {
			t.Fatalf("expected choice among 2 enabled sources, got %d", n)
		}
		calls++
		return calls - 1
	}
	if got := reg.Random().Name(); got != "a" {
		t.Fatalf("expected a, got %s", got)
	}
	if got := reg.Random().Name(); got != "c" {
		t.Fatalf("expected c, got %s", got)
	}

	empty := NewRegistry(nil, fakeSource{"a", Resolvable})
	if empty.Random() != nil {
		t.Fatal("expected nil when nothing is enabled")
	}
}

func TestRegistryList(t *testing.T) {
	reg := NewRegistry([]string{"color"}, fakeSource{"xkcd", Resolvable}, fakeSource{"color", Generative})
	infos := reg.List()
	if len(infos) != 2 || infos[0].Name != "color" || !infos[0].Enabled || infos[1].Enabled {
		t.Fatalf("unexpected list %#v", infos)
	}
	if infos[0].Capability != Generative {
		t.Fatalf("expected generative tag, got %v", infos[0].Capability)
	}
}

func TestImageSetFiltersHistoryAndDuplicates(t *testing.T) {
	seen := newSeenSet("ctx/1", "ctx/3")
	set := NewImageSet("test").AddDBFilter(seen).AddListFilter()
	set.Add(
		Candidate{ContextURL: "ctx/1"},
		Candidate{ContextURL: "ctx/2", Title: "two"},
		Candidate{ContextURL: "ctx/2", Title: "two again"},
		Candidate{ContextURL: "ctx/3"},
		Candidate{ContextURL: "ctx/4"},
	)

	var trace Trace
	picked, err := set.Select(context.Background(), &trace)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if picked.ContextURL != "ctx/2" || picked.Title != "two" {
		t.Fatalf("expected first unseen candidate, got %#v", picked)
	}
	if len(trace) != 2 || trace[0].Detail != "2 of 5 candidates unused" {
		t.Fatalf("unexpected trace %#v", trace)
	}

	next, err := set.Select(context.Background(), nil)
	if err != nil {
		t.Fatalf("second Select failed: %v", err)
	}
	if next.ContextURL != "ctx/4" {
		t.Fatalf("expected selected candidate to leave the cache, got %#v", next)
	}

	if _, err := set.Select(context.Background(), nil); !errors.Is(err, services.ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
}

func TestImageSetQueryFilterAndResolver(t *testing.T) {
	set := NewImageSet("test").AddQueryFilter("Moon")
	set.SetResolver(func(_ context.Context, c Candidate) (Candidate, error) {
		c.URL = "https://img/" + c.Title + ".png"
		return c, nil
	})
	set.Add(Candidate{Title: "sun"}, Candidate{Title: "x", Description: "full moon"})

	picked, err := set.Select(context.Background(), nil)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if picked.URL != "https://img/x.png" {
		t.Fatalf("expected resolved candidate, got %#v", picked)
	}
}

func TestImageSetSelectorBypassesFilters(t *testing.T) {
	seen := newSeenSet("ctx/latest")
	set := NewImageSet("test").AddDBFilter(seen)
	set.SetSelector(func(context.Context, []Candidate) (*Candidate, error) {
		return &Candidate{ContextURL: "ctx/latest"}, nil
	})
	picked, err := set.Select(context.Background(), nil)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if picked.ContextURL != "ctx/latest" {
		t.Fatalf("unexpected pick %#v", picked)
	}
}

const archivePage = `<html><body><div id="middleContainer">
<a href="/5/" title="2026-1-5">Five</a><br/>
<a href="/4/" title="2026-1-4">Four</a><br/>
<a href="/3/" title="2026-1-3">Three</a><br/>
<a href="/2/" title="2026-1-2">Two</a><br/>
<a href="/1/" title="2026-1-1">One</a><br/>
</div></body></html>`

func newXKCDServer(t *testing.T) (*httptest.Server, *int) {
	t.Helper()
	var mu sync.Mutex
	archiveHits := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/archive", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		archiveHits++
		mu.Unlock()
		_, _ = w.Write([]byte(archivePage))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.Trim(r.URL.Path, "/")
		fmt.Fprintf(w, `<html><div id="comic"><img src="/comics/c%s.png" title="alt text %s" alt="c%s"/></div></html>`, id, id, id)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &archiveHits
}

func TestXKCDSkipsSeenComicsAndCaches(t *testing.T) {
	srv, archiveHits := newXKCDServer(t)
	seen := newSeenSet(srv.URL+"/5/", srv.URL+"/4/")
	client := fetch.NewClient(srv.Client(), "", 0, time.Second)
	src := NewXKCD(srv.URL, client, seen, logging.NewNop())

	sel, err := src.Acquire(context.Background(), Params{})
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if sel.Candidate.ContextURL != srv.URL+"/3/" {
		t.Fatalf("expected newest unseen comic, got %s", sel.Candidate.ContextURL)
	}
	if sel.Candidate.URL != srv.URL+"/comics/c3.png" {
		t.Fatalf("unexpected image url %s", sel.Candidate.URL)
	}
	if sel.Candidate.Description != "alt text 3" {
		t.Fatalf("unexpected description %q", sel.Candidate.Description)
	}
	if !strings.HasSuffix(sel.Candidate.Title, "(03 Jan 2026)") {
		t.Fatalf("expected dated title, got %q", sel.Candidate.Title)
	}
	names := make([]string, 0, len(sel.Trace))
	for _, step := range sel.Trace {
		names = append(names, step.Name)
	}
	if strings.Join(names, ",") != "archive,filter,select,image" {
		t.Fatalf("unexpected trace %v", names)
	}

	seen.mark(sel.Candidate.ContextURL)
	sel, err = src.Acquire(context.Background(), Params{})
	if err != nil {
		t.Fatalf("second Acquire failed: %v", err)
	}
	if sel.Candidate.ContextURL != srv.URL+"/2/" {
		t.Fatalf("expected next unseen comic, got %s", sel.Candidate.ContextURL)
	}
	if *archiveHits != 1 {
		t.Fatalf("expected cached archive to be reused, got %d fetches", *archiveHits)
	}
}

func TestXKCDLatestIgnoresHistory(t *testing.T) {
	srv, _ := newXKCDServer(t)
	seen := newSeenSet(srv.URL + "/5/")
	client := fetch.NewClient(srv.Client(), "", 0, time.Second)
	src := NewXKCD(srv.URL, client, seen, nil)

	sel, err := src.Acquire(context.Background(), Params{Latest: true})
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if sel.Candidate.ContextURL != srv.URL+"/5/" {
		t.Fatalf("expected latest comic, got %s", sel.Candidate.ContextURL)
	}
}

func TestXKCDQueryFilter(t *testing.T) {
	srv, _ := newXKCDServer(t)
	client := fetch.NewClient(srv.Client(), "", 0, time.Second)
	src := NewXKCD(srv.URL, client, newSeenSet(), nil)

	sel, err := src.Acquire(context.Background(), Params{Query: "two"})
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if sel.Candidate.ContextURL != srv.URL+"/2/" {
		t.Fatalf("expected query match, got %s", sel.Candidate.ContextURL)
	}
}

func TestXKCDExhausted(t *testing.T) {
	srv, _ := newXKCDServer(t)
	var refs []string
	for i := 1; i <= 5; i++ {
		refs = append(refs, fmt.Sprintf("%s/%d/", srv.URL, i))
	}
	client := fetch.NewClient(srv.Client(), "", 0, time.Second)
	src := NewXKCD(srv.URL, client, newSeenSet(refs...), nil)

	_, err := src.Acquire(context.Background(), Params{})
	if !errors.Is(err, services.ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
}

const bingArchiveJSON = `{"images":[
 {"startdate":"20260105","url":"/th?id=OHR.Fog_EN-US1_1920x1080.jpg&rf=x.jpg&pid=hp","urlbase":"/th?id=OHR.Fog_EN-US1","copyright":"Morning fog (© Jane Doe/Getty Images)","title":"Fog"},
 {"startdate":"20260104","url":"/th?id=OHR.Lake_EN-US2_1920x1080.webp","urlbase":"/th?id=OHR.Lake_EN-US2","copyright":"A lake","title":""}
]}`

func TestBingSelectsUnseenImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(bingArchiveJSON))
	}))
	defer srv.Close()

	client := fetch.NewClient(srv.Client(), "", 0, time.Second)
	seen := newSeenSet(srv.URL + "/th?id=OHR.Fog_EN-US1")
	src := NewBing(srv.URL+"/HPImageArchive.aspx", srv.URL, client, seen)

	sel, err := src.Acquire(context.Background(), Params{})
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	c := sel.Candidate
	if c.ContextURL != srv.URL+"/th?id=OHR.Lake_EN-US2" {
		t.Fatalf("unexpected context %s", c.ContextURL)
	}
	if c.Extension != "webp" || c.Title != "A lake" {
		t.Fatalf("unexpected candidate %#v", c)
	}

	latest, err := src.Acquire(context.Background(), Params{Latest: true})
	if err != nil {
		t.Fatalf("latest Acquire failed: %v", err)
	}
	if latest.Candidate.Artist != "Jane Doe/Getty Images" || latest.Candidate.Description != "Morning fog" {
		t.Fatalf("unexpected copyright split %#v", latest.Candidate)
	}
	if latest.Candidate.Extension != "jpg" {
		t.Fatalf("expected jpg from id param, got %q", latest.Candidate.Extension)
	}
}

func TestColorRendersPNG(t *testing.T) {
	src := NewColor(40, 20)
	if src.Capability() != Generative {
		t.Fatal("expected generative capability")
	}
	sel, err := src.Acquire(context.Background(), Params{Color: "#336699"})
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if sel.Render == nil {
		t.Fatal("expected render function")
	}
	path, ext, err := sel.Render(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if ext != "png" {
		t.Fatalf("unexpected extension %q", ext)
	}
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open render: %v", err)
	}
	defer file.Close()
	img, err := png.Decode(file)
	if err != nil {
		t.Fatalf("decode render: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 40 || b.Dy() != 20 {
		t.Fatalf("unexpected bounds %v", b)
	}
	r, g, b, _ := img.At(0, 0).RGBA()
	if r>>8 != 0x33 || g>>8 != 0x66 || b>>8 != 0x99 {
		t.Fatalf("expected top row in base color, got %x %x %x", r>>8, g>>8, b>>8)
	}
}

func TestColorRejectsBadHint(t *testing.T) {
	_, err := NewColor(4, 4).Acquire(context.Background(), Params{Color: "not-a-color"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestParseHexColor(t *testing.T) {
	c, err := ParseHexColor("#abc")
	if err != nil || HexColor(c) != "#aabbcc" {
		t.Fatalf("unexpected %v %v", HexColor(c), err)
	}
	if _, err := ParseHexColor("12345"); err == nil {
		t.Fatal("expected error for short hex")
	}
}

type settingsMap map[string]any

func (m settingsMap) GetSetting(_ context.Context, name string) (any, error) {
	value, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("unknown setting %q", name)
	}
	return value, nil
}

func TestBingRequestsConfiguredMarket(t *testing.T) {
	var markets []string
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		markets = append(markets, r.URL.Query().Get("mkt")+"|"+r.URL.Query().Get("n"))
		mu.Unlock()
		_, _ = w.Write([]byte(bingArchiveJSON))
	}))
	defer srv.Close()

	client := fetch.NewClient(srv.Client(), "", 0, time.Second)
	settings := settingsMap{"bing.market": "de-DE"}
	src := NewBing(srv.URL+"/HPImageArchive.aspx?format=js&n=8", srv.URL, client, newSeenSet()).WithSettings(settings)

	sel, err := src.Acquire(context.Background(), Params{})
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if !strings.Contains(sel.Trace[0].Detail, "mkt=de-DE") {
		t.Fatalf("expected market in trace, got %q", sel.Trace[0].Detail)
	}

	settings["bing.market"] = " "
	if _, err := src.Acquire(context.Background(), Params{Latest: true}); err != nil {
		t.Fatalf("Acquire without market failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(markets) != 2 || markets[0] != "de-DE|8" || markets[1] != "|8" {
		t.Fatalf("unexpected archive requests %v", markets)
	}
}

func TestColorHonorsSettings(t *testing.T) {
	settings := settingsMap{"color.saturation": 0.0, "color.gradient": false}
	src := NewColor(8, 8).WithSettings(settings)
	src.intn = func(int) int { return 200 }

	sel, err := src.Acquire(context.Background(), Params{})
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	// zero saturation at value 0.85 is a neutral gray
	if sel.Candidate.Title != "Solid #d9d9d9" {
		t.Fatalf("unexpected title %q", sel.Candidate.Title)
	}
	path, _, err := sel.Render(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open render: %v", err)
	}
	defer file.Close()
	img, err := png.Decode(file)
	if err != nil {
		t.Fatalf("decode render: %v", err)
	}
	if img.At(0, 0) != img.At(0, 7) {
		t.Fatalf("expected a solid fill, got %v at top and %v at bottom", img.At(0, 0), img.At(0, 7))
	}

	settings["color.saturation"] = 1.0
	settings["color.gradient"] = true
	src.intn = func(int) int { return 0 }
	sel, err = src.Acquire(context.Background(), Params{})
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if sel.Candidate.Title != "Gradient #d90000" {
		t.Fatalf("expected fully saturated red gradient, got %q", sel.Candidate.Title)
	}
}
