// Package atmosphere is the built-in atmosphere plugin. It scores the
// sentiment of the text around the editor cursor on a background
// goroutine and publishes it with a mood hint the UI can theme itself
// with.
package atmosphere

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/aretw0/lifecycle"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/zeebo/blake3"

	"github.com/aretw0/cosmarium/pkg/core"
	"github.com/aretw0/cosmarium/pkg/plugin"
)

const (
	Name    = "atmosphere"
	Version = "0.1.0"

	// CacheSize bounds the number of remembered window scores.
	CacheSize = 64
)

type request struct {
	key    [32]byte
	window string
	cursor int
}

type result struct {
	key       [32]byte
	sentiment float64
}

// Atmosphere is the atmosphere plugin. Analysis runs one job at a time: a
// request arriving while a job runs replaces any earlier waiting request
// and starts when the job's result is drained by Update.
type Atmosphere struct {
	plugin.Base
	plugin.PanelBase

	cache *lru.Cache[[32]byte, float64]
	wg    sync.WaitGroup

	mu          sync.Mutex
	analyzing   bool
	pending     *result
	waiting     *request
	want        [32]byte
	seen        bool
	lastContent [32]byte
	lastCursor  int
	sentiment   float64
	jobs        int
}

func New() *Atmosphere {
	cache, err := lru.New[[32]byte, float64](CacheSize)
	if err != nil {
		panic(err)
	}
	return &Atmosphere{cache: cache}
}

func Factory() plugin.Plugin { return New() }

func (a *Atmosphere) Info() plugin.Info {
	return plugin.NewInfo(Name, Version, "Dynamic atmosphere from content sentiment", "Cosmarium Team")
}

func (a *Atmosphere) Type() plugin.Type { return plugin.TypeAnalysis }

func (a *Atmosphere) Title() string { return "Atmosphere" }
func (a *Atmosphere) Icon() string { return "🌗" }

func (a *Atmosphere) Initialize(ctx *plugin.Context) error {
	a.publish(ctx, 0, false)
	return nil
}

// Update applies a finished analysis and schedules a new one when the
// content or the cursor moved.
func (a *Atmosphere) Update(ctx *plugin.Context) error {
	a.drain(ctx)

	content, ok := plugin.LookupShared[string](ctx, core.KeyEditorContent)
	if !ok {
		return nil
	}
	cursor, _ := plugin.LookupShared[int](ctx, core.KeyEditorCursorIdx)

	sum := blake3.Sum256([]byte(content))
	a.mu.Lock()
	if a.seen && sum == a.lastContent && cursor == a.lastCursor {
		a.mu.Unlock()
		return nil
	}
	a.seen = true
	a.lastContent = sum
	a.lastCursor = cursor
	a.mu.Unlock()

	window, rel := Window(content, cursor)
	req := request{key: windowKey(window, rel), window: window, cursor: rel}
	a.mu.Lock()
	a.want = req.key
	a.mu.Unlock()
	if s, ok := a.cache.Get(req.key); ok {
		a.mu.Lock()
		a.sentiment = s
		a.waiting = nil
		analyzing := a.analyzing
		a.mu.Unlock()
		a.publish(ctx, s, analyzing)
		return nil
	}
	a.submit(ctx, req)
	return nil
}

// Sentiment returns the last applied score.
func (a *Atmosphere) Sentiment() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sentiment
}

// Analyzing reports whether a job is running.
func (a *Atmosphere) Analyzing() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.analyzing
}

// Shutdown waits for the running job.
func (a *Atmosphere) Shutdown(ctx *plugin.Context) error {
	a.wg.Wait()
	return nil
}

func (a *Atmosphere) submit(ctx *plugin.Context, req request) {
	a.mu.Lock()
	if a.analyzing {
		a.waiting = &req
		a.mu.Unlock()
		return
	}
	a.analyzing = true
	a.jobs++
	a.mu.Unlock()

	plugin.SetShared(ctx, core.KeyAtmosphereAnalyzing, true)
	a.wg.Add(1)
	lifecycle.Go(ctx.Context(), func(context.Context) error {
		defer a.wg.Done()
		s := Score(req.window, req.cursor)
		a.mu.Lock()
		a.pending = &result{key: req.key, sentiment: s}
		a.mu.Unlock()
		return nil
	}, lifecycle.WithErrorHandler(func(err error) {
		ctx.Logger().Error("atmosphere analysis failed", "error", err)
		a.mu.Lock()
		a.analyzing = false
		a.mu.Unlock()
	}))
}

// drain moves a finished result out of the pending slot and starts the
// waiting request, if any. Every result is cached but only one matching
// the latest request is applied.
func (a *Atmosphere) drain(ctx *plugin.Context) {
	a.mu.Lock()
	res := a.pending
	if res == nil {
		a.mu.Unlock()
		return
	}
	a.pending = nil
	a.analyzing = false
	current := res.key == a.want
	if current {
		a.sentiment = res.sentiment
	}
	sentiment := a.sentiment
	next := a.waiting
	a.waiting = nil
	a.mu.Unlock()

	a.cache.Add(res.key, res.sentiment)
	ctx.Logger().Debug("atmosphere analysed", "sentiment", res.sentiment, "current", current)
	a.publish(ctx, sentiment, false)

	if next != nil {
		if s, ok := a.cache.Get(next.key); ok {
			a.mu.Lock()
			a.sentiment = s
			a.mu.Unlock()
			a.publish(ctx, s, false)
			return
		}
		a.submit(ctx, *next)
	}
}

func (a *Atmosphere) publish(ctx *plugin.Context, sentiment float64, analyzing bool) {
	plugin.SetShared(ctx, core.KeyAtmosphereSentiment, sentiment)
	plugin.SetShared(ctx, core.KeyAtmosphereMood, MoodOf(sentiment))
	plugin.SetShared(ctx, core.KeyAtmosphereAnalyzing, analyzing)
}

func windowKey(window string, cursor int) [32]byte {
	h := blake3.New()
	_, _ = h.Write([]byte(window))
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(cursor))
	_, _ = h.Write(buf[:])
	var key [32]byte
	copy(key[:], h.Sum(nil))
	return key
}

var _ plugin.Panel = (*Atmosphere)(nil)
