// Package search implements approximate string matching over arbitrary records.
//
// Records are viewed through their JSON encoding: each configured key is a dotted
// field path ("function.name") and arrays met along a path contribute every element.
// A record's score is the best score of any of its key values; 0 is an exact match and
// 1 accepts anything.
package search

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"unicode"

	"github.com/tidwall/gjson"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/bitte-ai/go-mcp-proxy/src/errs"
	"github.com/bitte-ai/go-mcp-proxy/src/json"
)

// Wildcard is the query that returns every record unfiltered.
const Wildcard = "*"

const (
	DefaultLimit     = 10
	DefaultThreshold = 0.3

	// worst is the score reported when a matcher has nothing better to say.
	worst = 1.0
	// lengthBias nudges exact and short fields ahead of long fields with the same
	// edit distance. It must stay well below any useful threshold.
	lengthBias = 0.01
)

// Options configures a search.
type Options struct {
	Keys      []string `json:"keys"`
	Limit     int      `json:"limit"`
	Threshold float64  `json:"threshold"`
}

// Normalized returns o with Limit defaulted and Threshold clamped to [0,1].
func (o Options) Normalized() Options {
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.Threshold < 0 {
		o.Threshold = 0
	}
	if o.Threshold > 1 {
		o.Threshold = 1
	}
	return o
}

// Result is one ranked match.
type Result[T any] struct {
	Item     T       `json:"item"`
	Score    float64 `json:"score"`
	RefIndex int     `json:"refIndex"`
}

// Search ranks records against query. It never mutates records.
func Search[T any](records []T, query string, opts Options) ([]Result[T], error) {
	opts = opts.Normalized()

	if query == Wildcard {
		out := make([]Result[T], len(records))
		for i, rec := range records {
			out[i] = Result[T]{Item: rec, Score: worst, RefIndex: i}
		}
		return out, nil
	}

	pattern := normalize(query)
	if pattern == "" {
		return []Result[T]{}, nil
	}
	m := newMatcher(pattern)

	out := make([]Result[T], 0)
	for i, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return nil, &errs.InvalidInputError{Reason: fmt.Sprintf("record %d cannot be encoded: %v", i, err)}
		}
		score, ok := m.scoreRecord(gjson.ParseBytes(data), opts.Keys)
		if !ok || score > opts.Threshold {
			continue
		}
		out = append(out, Result[T]{Item: rec, Score: score, RefIndex: i})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score < out[j].Score })
	if len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// SearchValue searches a value of unknown shape, typically decoded JSON. It fails with
// errs.InvalidInputError unless records is a slice or array.
func SearchValue(records any, query string, opts Options) ([]Result[any], error) {
	if records == nil {
		return nil, &errs.InvalidInputError{Reason: "records must be a sequence, got nil"}
	}
	rv := reflect.ValueOf(records)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, &errs.InvalidInputError{Reason: fmt.Sprintf("records must be a sequence, got %T", records)}
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return Search(items, query, opts)
}

// normalize folds case, strips combining marks and collapses whitespace.
func normalize(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = cases.Fold().String(folded)
	return strings.Join(strings.Fields(folded), " ")
}

type matcher struct {
	pattern []rune
	tokens  [][]rune
}

func newMatcher(pattern string) *matcher {
	m := &matcher{pattern: []rune(pattern)}
	if words := strings.Fields(pattern); len(words) > 1 {
		for _, w := range words {
			m.tokens = append(m.tokens, []rune(w))
		}
	}
	return m
}

// scoreRecord returns the best score over every value reachable through keys. ok is
// false when no key resolved to a searchable value.
func (m *matcher) scoreRecord(root gjson.Result, keys []string) (float64, bool) {
	best, found := worst, false
	for _, key := range keys {
		var values []string
		collect(root, splitPath(key), &values)
		for _, v := range values {
			found = true
			if s := m.scoreText(normalize(v)); s < best {
				best = s
			}
		}
	}
	return best, found
}

func (m *matcher) scoreText(text string) float64 {
	t := []rune(text)
	if len(t) == 0 {
		return worst
	}
	score := ratio(substringDistance(m.pattern, t), len(m.pattern))
	if len(m.tokens) > 0 {
		var sum float64
		for _, tok := range m.tokens {
			sum += ratio(substringDistance(tok, t), len(tok))
		}
		if avg := sum / float64(len(m.tokens)); avg < score {
			score = avg
		}
	}
	if len(t) > len(m.pattern) {
		score += lengthBias * (1 - float64(len(m.pattern))/float64(len(t)))
	}
	if score > worst {
		score = worst
	}
	return score
}

func ratio(dist, n int) float64 {
	if n == 0 {
		return worst
	}
	r := float64(dist) / float64(n)
	if r > worst {
		return worst
	}
	return r
}

// substringDistance is the smallest edit distance between p and any substring of t
// (Sellers' algorithm).
func substringDistance(p, t []rune) int {
	m := len(p)
	prev := make([]int, m+1)
	cur := make([]int, m+1)
	for i := range prev {
		prev[i] = i
	}
	best := prev[m]
	for j := 1; j <= len(t); j++ {
		cur[0] = 0
		for i := 1; i <= m; i++ {
			cost := 1
			if p[i-1] == t[j-1] {
				cost = 0
			}
			cur[i] = min(prev[i-1]+cost, prev[i]+1, cur[i-1]+1)
		}
		if cur[m] < best {
			best = cur[m]
		}
		prev, cur = cur, prev
	}
	return best
}

func splitPath(key string) []string {
	if key == "" {
		return nil
	}
	return strings.Split(key, ".")
}

// collect walks path from r, fanning out over arrays, and appends scalar leaves.
func collect(r gjson.Result, path []string, out *[]string) {
	if r.IsArray() {
		r.ForEach(func(_, v gjson.Result) bool {
			collect(v, path, out)
			return true
		})
		return
	}
	if len(path) == 0 {
		switch r.Type {
		case gjson.String, gjson.Number, gjson.True, gjson.False:
			*out = append(*out, r.String())
		}
		return
	}
	if !r.IsObject() {
		return
	}
	collect(r.Get(escapeKey(path[0])), path[1:], out)
}

// escapeKey protects gjson's path metacharacters inside a single key segment.
func escapeKey(k string) string {
	if !strings.ContainsAny(k, `.*?|#@\!=<>%`) {
		return k
	}
	var b strings.Builder
	for _, r := range k {
		if strings.ContainsRune(`.*?|#@\!=<>%`, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
