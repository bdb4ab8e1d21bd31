package workflows

import (
	"cmp"
	"slices"
	"sync"

	"github.com/paulmach/orb"

	"github.com/samirrijal/bilbopass-geocoder/internal/core/domain"
	"github.com/samirrijal/bilbopass-geocoder/internal/core/usecases"
)

type hotKey struct {
	text     string
	hasFocus bool
	focus    orb.Point
}

// HotQueries counts forward queries seen on the event stream so the most
// requested ones can be warmed. It is safe for concurrent use.
type HotQueries struct {
	mu     sync.Mutex
	counts map[hotKey]int
}

func NewHotQueries() *HotQueries {
	return &HotQueries{counts: make(map[hotKey]int)}
}

// Record counts one event. Reverse lookups and empty texts are ignored.
func (h *HotQueries) Record(e *domain.QueryEvent) {
	if e == nil || e.Text == "" || e.Method == domain.MethodReverse {
		return
	}
	k := hotKey{text: e.Text}
	if e.Focus != nil {
		k.hasFocus = true
		k.focus = *e.Focus
	}

	h.mu.Lock()
	h.counts[k]++
	h.mu.Unlock()
}

// Drain returns up to n queries ordered by count, most requested first, and
// resets the counters. Ties keep text order so runs are deterministic.
func (h *HotQueries) Drain(n int) []domain.GeocoderQuery {
	h.mu.Lock()
	counts := h.counts
	h.counts = make(map[hotKey]int)
	h.mu.Unlock()

	keys := make([]hotKey, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b hotKey) int {
		if c := cmp.Compare(counts[b], counts[a]); c != 0 {
			return c
		}
		if c := cmp.Compare(a.text, b.text); c != 0 {
			return c
		}
		if c := cmp.Compare(a.focus.Lat(), b.focus.Lat()); c != 0 {
			return c
		}
		return cmp.Compare(a.focus.Lon(), b.focus.Lon())
	})
	if n > 0 && len(keys) > n {
		keys = keys[:n]
	}

	out := make([]domain.GeocoderQuery, 0, len(keys))
	for _, k := range keys {
		q := domain.GeocoderQuery{Text: k.text}
		if k.hasFocus {
			p := k.focus
			q.Focus = &p
		}
		out = append(out, q)
	}
	return out
}

// BuildWarmInput combines the always-warmed texts with hot queries into one
// workflow input, normalized the way the HTTP layer normalizes requests so
// that the warmed cache keys match live traffic. Duplicates are dropped.
func BuildWarmInput(static []string, hot []domain.GeocoderQuery, defaults usecases.QueryDefaults) CacheWarmInput {
	seen := make(map[string]bool)
	var input CacheWarmInput

	add := func(text string, focus *orb.Point) {
		q := usecases.NormalizeQuery(map[string]string{usecases.ParamText: text}, defaults)
		q.Text = usecases.SanitizeText(q.Text)
		if q.Text == "" {
			return
		}
		q.Focus = focus
		key := usecases.CacheKey("", domain.MethodAutocomplete, q)
		if seen[key] {
			return
		}
		seen[key] = true
		input.Queries = append(input.Queries, q)
	}

	for _, text := range static {
		add(text, nil)
	}
	for _, q := range hot {
		add(q.Text, q.Focus)
	}
	return input
}
