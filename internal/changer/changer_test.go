package changer_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"wallp/internal/acquire"
	"wallp/internal/changer"
	"wallp/internal/config"
	"wallp/internal/desktop"
	"wallp/internal/imageinfo"
	"wallp/internal/logging"
	"wallp/internal/progress"
	"wallp/internal/sources"
	"wallp/internal/store"
	"wallp/internal/testsupport"
)

type fixture struct {
	cfg      *config.Config
	store    *store.Store
	source   *testsupport.StaticSource
	pipeline *acquire.Pipeline
}

func newFixture(t *testing.T, candidates int) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithSources("static"))
	st := testsupport.MustOpenStore(t, cfg)
	src := &testsupport.StaticSource{SourceName: "static", Candidates: testsupport.Candidates("item", candidates), Seen: st}
	pipeline := acquire.New(cfg, sources.NewRegistry([]string{"static"}, src),
		&testsupport.FakeDownloader{Body: testsupport.PNG(t, 40, 30)}, imageinfo.NewReader(), st, logging.NewNop(),
		acquire.WithTransferBackoff(0))
	return &fixture{cfg: cfg, store: st, source: src, pipeline: pipeline}
}

type outcome struct {
	result progress.Outcome
	states []progress.State
	err    error
}

func receive(t *testing.T) (*progress.Conn, <-chan outcome) {
	t.Helper()
	sender, remote := progress.Pipe(2*time.Second, logging.NewNop())
	t.Cleanup(func() { _ = sender.Close() })
	ch := make(chan outcome, 1)
	go func() {
		var o outcome
		o.result, o.err = progress.Receive(context.Background(), remote, func(s progress.State) {
			o.states = append(o.states, s)
		})
		ch <- o
	}()
	return sender, ch
}

type recordingDesktop struct {
	err    error
	path   string
	style  string
	called int
}

func (d *recordingDesktop) Name() string { return "recording" }

func (d *recordingDesktop) Apply(_ context.Context, path, style string) error {
	d.called++
	d.path, d.style = path, style
	return d.err
}

func TestChangeReportsReadyWithPath(t *testing.T) {
	f := newFixture(t, 5)
	testsupport.MarkSeen(t, f.store, "static", f.source.Candidates[0].ContextURL)
	testsupport.MarkSeen(t, f.store, "static", f.source.Candidates[1].ContextURL)
	dt := &recordingDesktop{}
	c := changer.New(f.pipeline, dt, f.store, nil, "auto", logging.NewNop())

	sender, done := receive(t)
	path, err := c.Change(context.Background(), acquire.Spec{}, sender)
	if err != nil {
		t.Fatalf("Change: %v", err)
	}

	got := <-done
	if got.err != nil {
		t.Fatalf("Receive: %v", got.err)
	}
	if !reflect.DeepEqual(got.states, []progress.State{progress.Changing, progress.Ready}) {
		t.Fatalf("unexpected states %v", got.states)
	}
	if got.result.Path != path {
		t.Fatalf("expected path %q on the channel, got %q", path, got.result.Path)
	}
	if dt.called != 1 || dt.path != path || dt.style != "centered" {
		t.Fatalf("unexpected desktop call %+v", dt)
	}

	recent, err := f.store.RecentImages(context.Background(), 1)
	if err != nil || len(recent) != 1 {
		t.Fatalf("RecentImages: %v %v", recent, err)
	}
	rec := recent[0]
	if rec.ContextURL != f.source.Candidates[2].ContextURL || rec.Width != 40 || rec.Height != 30 || rec.Size == 0 {
		t.Fatalf("unexpected record %+v", rec)
	}

	last, err := f.store.LastChangeTime(context.Background())
	if err != nil || last.IsZero() {
		t.Fatalf("expected last change time, got %v err=%v", last, err)
	}
	if source, err := f.store.LastSource(context.Background()); err != nil || source != "static" {
		t.Fatalf("expected last source static, got %q err=%v", source, err)
	}
}

func TestChangeReportsErrorWhenAcquisitionFails(t *testing.T) {
	f := newFixture(t, 1)
	f.source.Err = errors.New("archive unavailable")
	dt := &recordingDesktop{}
	c := changer.New(f.pipeline, dt, f.store, nil, "auto", logging.NewNop())

	sender, done := receive(t)
	_, err := c.Change(context.Background(), acquire.Spec{}, sender)
	if !errors.Is(err, changer.ErrChangeWP) || !errors.Is(err, acquire.ErrGetImage) {
		t.Fatalf("expected ErrChangeWP wrapping ErrGetImage, got %v", err)
	}

	got := <-done
	if got.err != nil || got.result.State != progress.Error {
		t.Fatalf("expected ERROR outcome, got %+v err=%v", got.result, got.err)
	}
	if !reflect.DeepEqual(got.states, []progress.State{progress.Changing, progress.Error}) {
		t.Fatalf("unexpected states %v", got.states)
	}
	if dt.called != 0 {
		t.Fatal("desktop must not be touched when acquisition fails")
	}
}

func TestDesktopFailureIsNotReported(t *testing.T) {
	f := newFixture(t, 1)
	dt, err := desktop.New(config.Desktop{Backend: "feh"}, desktop.WithRunner(func(context.Context, string, ...string) error {
		return errors.New("cannot open display")
	}))
	if err != nil {
		t.Fatalf("desktop.New: %v", err)
	}
	c := changer.New(f.pipeline, dt, f.store, nil, "zoom", logging.NewNop())

	sender, done := receive(t)
	path, err := c.Change(context.Background(), acquire.Spec{Source: "static"}, sender)
	if err != nil {
		t.Fatalf("expected desktop failure to be absorbed, got %v", err)
	}

	got := <-done
	if got.result.State != progress.Ready || got.result.Path != path {
		t.Fatalf("expected READY with path, got %+v", got.result)
	}
	for _, state := range got.states {
		if state == progress.Error {
			t.Fatal("desktop failure must not produce ERROR")
		}
	}
}

func TestChangeCompletesWhenPeerVanishes(t *testing.T) {
	f := newFixture(t, 1)
	c := changer.New(f.pipeline, &recordingDesktop{}, f.store, nil, "auto", logging.NewNop())

	sender, remote := progress.Pipe(100*time.Millisecond, logging.NewNop())
	_ = remote.Close()

	path, err := c.Change(context.Background(), acquire.Spec{}, sender)
	if err != nil {
		t.Fatalf("expected change to complete without a peer, got %v", err)
	}
	if path == "" {
		t.Fatal("expected staged path")
	}
	if !sender.Detached() {
		t.Fatal("expected sender to detach")
	}
}

func TestChangeWithoutReporter(t *testing.T) {
	f := newFixture(t, 1)
	c := changer.New(f.pipeline, nil, f.store, nil, "auto", logging.NewNop())
	if _, err := c.Change(context.Background(), acquire.Spec{}, nil); err != nil {
		t.Fatalf("Change: %v", err)
	}
}
