package engine

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSortNatural(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{
			name:  "prefixed numbers",
			input: []string{"a11", "a1", "a22", "b1", "a12", "a9"},
			want:  []string{"a1", "a9", "a11", "a12", "a22", "b1"},
		},
		{
			name:  "bare numbers",
			input: []string{"11", "1", "22", "12", "9"},
			want:  []string{"1", "9", "11", "12", "22"},
		},
		{
			name:  "text only",
			input: []string{"bb", "ab", "aa", "a", "b"},
			want:  []string{"a", "aa", "ab", "b", "bb"},
		},
		{
			name:  "case folded",
			input: []string{"B2", "a10", "A2"},
			want:  []string{"A2", "a10", "B2"},
		},
		{
			name:  "mixed token types",
			input: []string{"x", "1x", "x1", ""},
			want:  []string{"", "1x", "x", "x1"},
		},
		{
			name:  "multiple numeric runs",
			input: []string{"v1.10.0", "v1.2.10", "v1.2.9", "v1.10"},
			want:  []string{"v1.2.9", "v1.2.10", "v1.10", "v1.10.0"},
		},
		{
			name:  "tracking ids",
			input: []string{"team:monitor-10", "team:monitor-2", "infra:slo-1"},
			want:  []string{"infra:slo-1", "team:monitor-2", "team:monitor-10"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := slices.Clone(tt.input)
			SortNatural(got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNaturalKey_BigNumbers(t *testing.T) {
	small := NewNaturalKey("n18446744073709551615")
	big := NewNaturalKey("n18446744073709551616")
	bigger := NewNaturalKey("n100000000000000000000000")

	assert.Equal(t, -1, small.Compare(big))
	assert.Equal(t, -1, big.Compare(bigger))
	assert.Equal(t, 1, bigger.Compare(small))
}

func TestNaturalKey_LeadingZeros(t *testing.T) {
	assert.Equal(t, 0, NewNaturalKey("a007").Compare(NewNaturalKey("a7")))
	assert.Equal(t, -1, NewNaturalKey("a007").Compare(NewNaturalKey("a8")))

	// Equal keys fall back to byte order.
	assert.Equal(t, -1, CompareNatural("a007", "a7"))
}

func TestNaturalKey_MixedTokens(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		// digit run against a text run at the same position compares the raw digits as text
		{"10", "a", -1},
		{"10", "A", -1},
		{"2", "-1", 1},
		{"007", "b", -1},
		{"9z", "Z9", -1},
		// punctuation stays inside the text run
		{"a-1", "a1", 1},
		{"x 2", "x1", 1},
	}

	for _, tt := range tests {
		t.Run(tt.a+" vs "+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, NewNaturalKey(tt.a).Compare(NewNaturalKey(tt.b)))
			assert.Equal(t, -tt.want, NewNaturalKey(tt.b).Compare(NewNaturalKey(tt.a)))
			assert.Equal(t, tt.want, CompareNatural(tt.a, tt.b))
		})
	}
}

func TestNaturalKey_Prefix(t *testing.T) {
	assert.Equal(t, -1, NewNaturalKey("abc").Compare(NewNaturalKey("abc1")))
	assert.Equal(t, 1, NewNaturalKey("abc1x").Compare(NewNaturalKey("abc1")))
	assert.Equal(t, 0, NewNaturalKey("").Compare(NewNaturalKey("")))
}

func TestCompareNatural_TotalOrder(t *testing.T) {
	alphabet := []byte("aB0-9 1z")
	r := rand.New(rand.NewPCG(1, 2))

	values := make([]string, 60)
	for i := range values {
		b := make([]byte, r.IntN(6))
		for j := range b {
			b[j] = alphabet[r.IntN(len(alphabet))]
		}
		values[i] = string(b)
	}

	for _, a := range values {
		assert.Equal(t, 0, CompareNatural(a, a))
		for _, b := range values {
			ab := CompareNatural(a, b)
			assert.Equal(t, -ab, CompareNatural(b, a), "antisymmetry %q %q", a, b)
			for _, c := range values {
				if ab <= 0 && CompareNatural(b, c) <= 0 {
					assert.LessOrEqual(t, CompareNatural(a, c), 0, "transitivity %q %q %q", a, b, c)
				}
			}
		}
	}
}

func TestSortNaturalFunc(t *testing.T) {
	resources := []Resource{
		{Project: "web", ID: "monitor-10"},
		{Project: "web", ID: "monitor-9"},
		{Project: "api", ID: "slo-1"},
	}

	SortNaturalFunc(resources, Resource.TrackingID)

	ids := make([]string, len(resources))
	for i, r := range resources {
		ids[i] = r.TrackingID()
	}
	assert.Equal(t, []string{"api:slo-1", "web:monitor-9", "web:monitor-10"}, ids)
}
