package search

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitTerms(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"john smith", []string{"john", "smith"}},
		{"An-Entity_Name/Variant", []string{"An", "Entity", "Name", "Variant"}},
		{"  leading and trailing  ", []string{"leading", "and", "trailing"}},
		{"single", []string{"single"}},
		{"", []string{}},
		{" -_/", []string{}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SplitTerms(tt.in), "%q", tt.in)
	}
}

func makeSet(n int) headSet {
	set := make(headSet, n)
	for i := 0; i < n; i++ {
		id := uuid.New()
		set[id] = Head{ID: id, Label: "Person", Score: 1}
	}
	return set
}

func TestOrderBySize(t *testing.T) {
	a := makeSet(5)
	b := makeSet(2)
	c := makeSet(100)

	ordered := orderBySize([]headSet{a, b, c})

	require.Len(t, ordered, 3)
	assert.Len(t, ordered[0], 2, "smallest candidate set intersects first")
	assert.Len(t, ordered[1], 5)
	assert.Len(t, ordered[2], 100)
}

func TestIntersect(t *testing.T) {
	shared := uuid.New()
	alsoShared := uuid.New()

	withShared := func(extra int, score float64) headSet {
		set := makeSet(extra)
		set[shared] = Head{ID: shared, Label: "Person", Score: score}
		set[alsoShared] = Head{ID: alsoShared, Label: "Person", Score: score}
		return set
	}

	t.Run("keeps only common heads and sums scores", func(t *testing.T) {
		got := intersect([]headSet{withShared(3, 1), withShared(5, 2), withShared(1, 4)})
		require.Len(t, got, 2)
		assert.InDelta(t, 7.0, got[shared].Score, 1e-9)
	})

	t.Run("order-independent result set", func(t *testing.T) {
		a, b, c := withShared(3, 1), withShared(5, 2), withShared(1, 4)
		forward := intersect([]headSet{a, b, c})
		backward := intersect([]headSet{c, b, a})
		require.Equal(t, len(forward), len(backward))
		for id := range forward {
			assert.Contains(t, backward, id)
		}
	})

	t.Run("single set passes through", func(t *testing.T) {
		a := makeSet(4)
		assert.Equal(t, a, intersect([]headSet{a}))
	})

	t.Run("disjoint sets short-circuit empty", func(t *testing.T) {
		assert.Nil(t, intersect([]headSet{makeSet(3), makeSet(3)}))
	})

	t.Run("no sets", func(t *testing.T) {
		assert.Nil(t, intersect(nil))
	})
}

func TestPageCapsResults(t *testing.T) {
	svc := &Service{pageSize: 50}

	set := make(headSet, 120)
	for i := 0; i < 120; i++ {
		id := uuid.New()
		set[id] = Head{ID: id, Label: "Person", Score: float64(i)}
	}

	result := svc.page(set)

	assert.Equal(t, 120, result.Count, "count reports the untruncated intersection")
	require.Len(t, result.Results, 50)
	// Ranked by score descending.
	assert.InDelta(t, 119.0, result.Results[0].Score, 1e-9)
	for i := 1; i < len(result.Results); i++ {
		assert.GreaterOrEqual(t, result.Results[i-1].Score, result.Results[i].Score)
	}
}

func TestPageStableTieBreak(t *testing.T) {
	svc := &Service{pageSize: 10}

	set := make(headSet)
	for i := 0; i < 5; i++ {
		id := uuid.MustParse(fmt.Sprintf("00000000-0000-0000-0000-00000000000%d", i))
		set[id] = Head{ID: id, Label: "Person", Score: 1}
	}

	first := svc.page(set)
	second := svc.page(set)
	assert.Equal(t, first.Results, second.Results, "equal scores order by identifier")
}

func TestNoMatches(t *testing.T) {
	r := NoMatches()
	assert.Zero(t, r.Count)
	assert.Empty(t, r.Results)
}

func TestTsqueryLexeme(t *testing.T) {
	tests := []struct {
		name string
		term string
		want string
	}{
		{"plain word", "smith", "'smith':*"},
		{"apostrophe", "O'Brien", "'O''Brien':*"},
		{"ampersand", "AT&T", "'AT&T':*"},
		{"tsquery operators", "a|b!(c:d)", "'a|b!(c:d)':*"},
		{"backslash", `a\b`, `'a\\b':*`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tsqueryLexeme(tt.term))
		})
	}
}
