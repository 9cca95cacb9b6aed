package tle

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/star/across/internal/errs"
)

// ErrNoElements is returned when no source could supply elements. It is an
// input error: the caller cannot compute anything without elements.
var ErrNoElements = fmt.Errorf("%w: no orbital elements available", errs.ErrInput)

const celestrakGP = "https://celestrak.org/NORAD/elements/gp.php"

// Source describes where a mission's elements come from.
type Source struct {
	NORADID   int
	Name      string
	URL       string        // returns the mission's element set (last two lines used)
	ConcatURL string        // returns many element sets; the closest epoch wins
	Window    time.Duration // acceptable |epoch - at| when choosing a set
	MinEpoch  time.Time     // sets before this are ignored
}

// Provider supplies orbital elements for a source as of a given time.
type Provider interface {
	Elements(ctx context.Context, src Source, at time.Time) (Elements, error)
}

// ChainProvider answers from the Store when it holds a set within the
// source's window; otherwise it tries the mission URL, the concatenated
// URL and finally Celestrak, adding whatever it fetches to the Store (and
// to the disk cache, if configured). If no set falls within the window,
// the closest set of any age is returned so the caller can flag it stale.
type ChainProvider struct {
	store        *Store
	cache        *Cache
	logger       *slog.Logger
	celestrakURL string
	offline      bool
}

// ProviderOption configures a ChainProvider.
type ProviderOption func(*ChainProvider)

// WithCache persists fetched text to c.
func WithCache(c *Cache) ProviderOption {
	return func(p *ChainProvider) { p.cache = c }
}

// WithCelestrakURL overrides the Celestrak GP endpoint.
func WithCelestrakURL(u string) ProviderOption {
	return func(p *ChainProvider) { p.celestrakURL = u }
}

// Offline disables all network fetches; only the Store is consulted.
func Offline() ProviderOption {
	return func(p *ChainProvider) { p.offline = true }
}

// NewChainProvider creates a provider backed by store.
func NewChainProvider(store *Store, logger *slog.Logger, opts ...ProviderOption) *ChainProvider {
	p := &ChainProvider{
		store:        store,
		logger:       logger,
		celestrakURL: celestrakGP,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Elements implements Provider.
func (p *ChainProvider) Elements(ctx context.Context, src Source, at time.Time) (Elements, error) {
	if src.NORADID <= 0 {
		return Elements{}, errs.Input("TLE source %q has no NORAD catalog number", src.Name)
	}
	if e, ok := p.store.Closest(src.NORADID, at, src.Window, src.MinEpoch); ok {
		return e, nil
	}

	if !p.offline {
		for _, u := range p.urls(src) {
			if err := p.fetchInto(ctx, src, u); err != nil {
				p.logger.Warn("TLE source failed", "norad_id", src.NORADID, "url", u, "error", err)
				continue
			}
			if e, ok := p.store.Closest(src.NORADID, at, src.Window, src.MinEpoch); ok {
				return e, nil
			}
		}
	}

	if e, ok := p.store.Closest(src.NORADID, at, 0, src.MinEpoch); ok {
		p.logger.Warn("no TLE within window, using closest available",
			"norad_id", src.NORADID,
			"epoch", e.Epoch.Format(time.RFC3339),
			"window_days", src.Window.Hours()/24,
		)
		return e, nil
	}
	return Elements{}, fmt.Errorf("%w: NORAD %d (%s) at %s", ErrNoElements, src.NORADID, src.Name, at.UTC().Format(time.RFC3339))
}

func (p *ChainProvider) urls(src Source) []string {
	var urls []string
	if src.URL != "" {
		urls = append(urls, src.URL)
	}
	if src.ConcatURL != "" {
		urls = append(urls, src.ConcatURL)
	}
	if p.celestrakURL != "" {
		q := url.Values{"CATNR": {strconv.Itoa(src.NORADID)}, "FORMAT": {"TLE"}}
		urls = append(urls, p.celestrakURL+"?"+q.Encode())
	}
	return urls
}

func (p *ChainProvider) fetchInto(ctx context.Context, src Source, u string) error {
	data, err := NewFetcher(u, p.logger).Fetch(ctx)
	if err != nil {
		return err
	}

	entries, err := Parse(bytes.NewReader(data), p.logger)
	if err != nil {
		return err
	}

	var matched []Elements
	for _, e := range entries {
		if e.NORADID == src.NORADID {
			matched = append(matched, e)
		}
	}
	if len(matched) == 0 {
		return fmt.Errorf("no element sets for NORAD %d in %d entries", src.NORADID, len(entries))
	}

	added := p.store.Add(matched...)
	p.logger.Info("TLE fetched", "norad_id", src.NORADID, "url", u, "sets", len(matched), "new", added)

	if p.cache != nil && added > 0 {
		if err := p.cache.Write(strconv.Itoa(src.NORADID), data, time.Now()); err != nil {
			p.logger.Warn("TLE cache write failed", "error", err)
		}
	}
	return nil
}

// LoadCache reads every cached file into the store. Returns the number of
// element sets added.
func LoadCache(c *Cache, store *Store, logger *slog.Logger) (int, error) {
	keys, err := c.Keys()
	if err != nil {
		return 0, err
	}

	total := 0
	for _, key := range keys {
		data, ts, err := c.LoadLatest(key)
		if err != nil {
			logger.Warn("TLE cache read failed", "key", key, "error", err)
			continue
		}
		entries, err := Parse(bytes.NewReader(data), logger)
		if err != nil {
			logger.Warn("TLE cache parse failed", "key", key, "error", err)
			continue
		}
		n := store.Add(entries...)
		total += n
		logger.Info("loaded TLE data from cache", "key", key, "count", n, "cached_at", ts.Format(time.RFC3339))
	}
	return total, nil
}
