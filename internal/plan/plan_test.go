package plan

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/reshape/internal/diagnostics"
	"github.com/conduit-lang/reshape/internal/evaluator"
	"github.com/conduit-lang/reshape/internal/rules"
)

func TestHasher(t *testing.T) {
	h := NewHasher()
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", h.HashContent([]byte("")))
	assert.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", h.HashString("hello world"))
}

func TestCacheKey_StableAcrossAuthoring(t *testing.T) {
	a := Compile(`{"rules":[{"from":"name","as":"n","default":"x"}]}`)
	b := Compile(`{"rules":[{"defaultValue":"x","source":{"path":"name","type":"path"},"outputPaths":["n"],"kind":"field"}],"outputFormat":"json"}`)
	c := Compile(`{"rules":[{"from":"name","as":"m"}]}`)

	assert.Equal(t, a.CacheKey(), b.CacheKey())
	assert.NotEqual(t, a.CacheKey(), c.CacheKey())
	assert.Len(t, a.CacheKey(), 64)
	assert.Equal(t, CacheKey(a.Rules()), a.CacheKey())
}

func TestPlan_ApplyIncludesValidation(t *testing.T) {
	p := Compile(`{"rules":[{"kind":"weird"},{"from":"name","to":"name"}]}`)
	res := p.Apply(map[string]any{"name": "Ada"}, evaluator.Options{Trace: true})

	assert.Equal(t, map[string]any{"name": "Ada"}, res.Output)
	assert.Equal(t, []string{`rules[0]: unsupported rule kind "weird"`}, res.Errors)
	assert.Equal(t, diagnostics.StageValidate, res.Diagnostics[0].Stage)
	assert.Len(t, res.Trace, 1)
}

func TestCompileStrict(t *testing.T) {
	_, err := CompileStrict(`{"rules":[{"kind":"weird"}]}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported rule kind")

	p, err := CompileStrict(`{"rules":[{"if":"path(a) is 1","then":[]}]}`)
	require.NoError(t, err)
	assert.Contains(t, p.ExpressionErrors(), "path(a) is 1")
}

func TestPlan_ConcurrentApply(t *testing.T) {
	p := Compile(`{"rules":[
		{"from":"n","to":"n","transform":"number"},
		{"if":"path(n) > 5","then":[{"const":"big","to":"size"}],"else":[{"const":"small","to":"size"}]}
	]}`)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res := p.Apply(map[string]any{"n": float64(i)}, evaluator.Options{})
			want := "small"
			if i > 5 {
				want = "big"
			}
			assert.Equal(t, want, res.Output["size"])
		}(i)
	}
	wg.Wait()
}

func TestCache(t *testing.T) {
	c, err := NewCache(4, nil)
	require.NoError(t, err)

	first := c.Get(`{"rules":[{"from":"a","to":"b"}]}`)
	again := c.Get(`{"rules":[{"from":"a","to":"b"}]}`)
	assert.Same(t, first, again)

	aliased := c.Get(`{"rules":[{"from":"a","as":"b"}]}`)
	assert.Same(t, first, aliased)

	value := c.Get(map[string]any{"rules": []any{map[string]any{"from": "a", "target": "b"}}})
	assert.Same(t, first, value)

	other := c.Get(`{"rules":[{"from":"a","to":"c"}]}`)
	assert.NotSame(t, first, other)

	stats := c.Stats()
	assert.Equal(t, 4, stats.Size)
	assert.Equal(t, int64(3), stats.Hits)
	assert.Equal(t, int64(2), stats.Misses)

	c.Purge()
	assert.Equal(t, 0, c.Stats().Size)
}

func TestCache_DoesNotShareDirtyTwins(t *testing.T) {
	c, err := NewCache(0, nil)
	require.NoError(t, err)

	clean := c.Get(`{"rules":[{"from":"a","to":"b"}]}`)
	dirty := c.Get(`{"rules":[{"kind":"weird"},{"from":"a","to":"b"}]}`)
	assert.NotSame(t, clean, dirty)
	assert.Equal(t, clean.CacheKey(), dirty.CacheKey())
	assert.Empty(t, clean.Apply(map[string]any{"a": 1.0}, evaluator.Options{}).Errors)
	assert.Len(t, dirty.Apply(map[string]any{"a": 1.0}, evaluator.Options{}).Errors, 1)

	again := c.Get(`{"rules":[{"from":"a","as":"b"}]}`)
	assert.Same(t, clean, again)
}

func TestCache_NormalizedDocuments(t *testing.T) {
	c, err := NewCache(0, nil)
	require.NoError(t, err)

	base := c.Get(`{"rules":[{"from":"a","to":"b"}]}`)
	doc := *base.Rules()

	tests := []struct {
		name string
		raw  any
	}{
		{"pointer", &doc},
		{"value", doc},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first := c.Get(tt.raw)
			again := c.Get(tt.raw)
			assert.Same(t, first, again)
			assert.Equal(t, base.CacheKey(), first.CacheKey())
		})
	}
	assert.Equal(t, c.contentHash(&doc), c.contentHash(doc))
}

func TestCache_KeepsAuthoredAddresses(t *testing.T) {
	c, err := NewCache(0, nil)
	require.NoError(t, err)

	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"listed", `{"rules":[{"from":"a","to":"x"},{"from":"b","to":"y"},{"kind":"array","inputPath":"items","outputPaths":["out"],"itemRules":[{"from":"v","to":"v"}]}]}`, "rules[2]"},
		{"mapped", `{"rules":[{"map":[{"from":"a","to":"x"},{"from":"b","to":"y"}]},{"kind":"array","inputPath":"items","outputPaths":["out"],"itemRules":[{"from":"v","to":"v"}]}]}`, "rules[1]"},
	}
	var keys []string
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := c.Get(tt.doc)
			keys = append(keys, p.CacheKey())
			res := p.Apply(map[string]any{"a": 1.0, "b": 2.0}, evaluator.Options{})
			require.Len(t, res.Diagnostics, 1)
			assert.Equal(t, tt.want, res.Diagnostics[0].RulePath)
		})
	}
	require.Len(t, keys, 2)
	assert.Equal(t, keys[0], keys[1])
	assert.Empty(t, rules.Layout(c.Get(tests[0].doc).Rules()))
}
