package similarity

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestJaroWinklerIdentity(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"", "a", "auth module", "Fix LOGIN bug", "café"} {
		if got := JaroWinkler(s, s); !almostEqual(got, 1.0) {
			t.Errorf("JaroWinkler(%q, %q) = %v, want 1.0", s, s, got)
		}
	}
}

func TestJaroWinklerEmpty(t *testing.T) {
	t.Parallel()

	if got := JaroWinkler("", "abc"); got != 0 {
		t.Errorf("JaroWinkler(\"\", \"abc\") = %v, want 0", got)
	}
	if got := JaroWinkler("abc", ""); got != 0 {
		t.Errorf("JaroWinkler(\"abc\", \"\") = %v, want 0", got)
	}
}

func TestJaroWinklerSymmetry(t *testing.T) {
	t.Parallel()

	pairs := [][2]string{
		{"martha", "marhta"},
		{"dixon", "dicksonx"},
		{"implement auth", "auth implementation"},
	}
	for _, p := range pairs {
		ab := JaroWinkler(p[0], p[1])
		ba := JaroWinkler(p[1], p[0])
		if !almostEqual(ab, ba) {
			t.Errorf("JaroWinkler not symmetric for %q/%q: %v vs %v", p[0], p[1], ab, ba)
		}
	}
}

func TestJaroWinklerKnownValues(t *testing.T) {
	t.Parallel()

	// Classic reference pair: jaro("martha","marhta") = 0.944..., 3-char
	// common prefix gives 0.9611...
	got := JaroWinkler("martha", "marhta")
	if math.Abs(got-0.9611111111) > 1e-6 {
		t.Errorf("JaroWinkler(martha, marhta) = %v, want ~0.96111", got)
	}
	if got := JaroWinkler("abc", "xyz"); got != 0 {
		t.Errorf("JaroWinkler(abc, xyz) = %v, want 0", got)
	}
}

func TestJaroWinklerPrefixBonus(t *testing.T) {
	t.Parallel()

	// Same Jaro match structure, but a shared prefix should score higher.
	withPrefix := JaroWinkler("prefab", "prefix")
	if withPrefix <= JaroWinkler("abferp", "xiferp") {
		t.Error("expected common prefix to boost similarity")
	}
}

func TestJaroWinklerDiacriticsAndCase(t *testing.T) {
	t.Parallel()

	if got := JaroWinkler("Café", "cafe"); !almostEqual(got, 1.0) {
		t.Errorf("JaroWinkler(Café, cafe) = %v, want 1.0", got)
	}
}

func TestTokenSimilarityIdentity(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"", "auth", "implement the auth module"} {
		if got := TokenSimilarity(s, s); !almostEqual(got, 1.0) {
			t.Errorf("TokenSimilarity(%q, %q) = %v, want 1.0", s, s, got)
		}
	}
}

func TestTokenSimilarityWordOrderInvariance(t *testing.T) {
	t.Parallel()

	if got := TokenSimilarity("auth module", "module auth"); !almostEqual(got, 1.0) {
		t.Errorf("TokenSimilarity(auth module, module auth) = %v, want 1.0", got)
	}
}

func TestTokenSimilarityCoverageScaling(t *testing.T) {
	t.Parallel()

	// Matching a 2-word query against a short corpus must beat matching it
	// against a long corpus, even when the best per-token score is 1.0.
	short := TokenSimilarity("auth module", "auth module service")
	long := TokenSimilarity("auth module", "auth module service worker queue db cache ui api gateway")
	if short <= long {
		t.Errorf("coverage scaling: short corpus %v should beat long corpus %v", short, long)
	}
	// Exact scaling: avg 1.0, coverage 2/3.
	want := 0.8 + 0.2*(2.0/3.0)
	if !almostEqual(short, want) {
		t.Errorf("TokenSimilarity short corpus = %v, want %v", short, want)
	}
}

func TestTokenSimilarityShortTokensSurvive(t *testing.T) {
	t.Parallel()

	if got := TokenSimilarity("CI", "fix the CI"); got == 0 {
		t.Error("short token \"CI\" should survive tokenization")
	}
	if got := TokenSimilarity("ui db", "db ui"); !almostEqual(got, 1.0) {
		t.Errorf("TokenSimilarity(ui db, db ui) = %v, want 1.0", got)
	}
}

func TestCombinedSimilaritySymmetry(t *testing.T) {
	t.Parallel()

	ab := CombinedSimilarity("implement login flow", "login flow implementation")
	ba := CombinedSimilarity("login flow implementation", "implement login flow")
	if !almostEqual(ab, ba) {
		t.Errorf("CombinedSimilarity not symmetric: %v vs %v", ab, ba)
	}
}

func TestCombinedSimilarityMonotonicSharedTokens(t *testing.T) {
	t.Parallel()

	// Adding shared tokens, holding the rest fixed, must not decrease score.
	base := "alpha beta gamma delta"
	prev := CombinedSimilarity("zzz yyy xxx www", base)
	for _, q := range []string{
		"alpha yyy xxx www",
		"alpha beta xxx www",
		"alpha beta gamma www",
		"alpha beta gamma delta",
	} {
		got := CombinedSimilarity(q, base)
		if got+1e-9 < prev {
			t.Fatalf("CombinedSimilarity(%q) = %v decreased below %v", q, got, prev)
		}
		prev = got
	}
	if !almostEqual(prev, 1.0) {
		t.Errorf("full overlap should score 1.0, got %v", prev)
	}
}

func TestTokenize(t *testing.T) {
	t.Parallel()

	got := Tokenize("Implement: auth-module (v2), DB!")
	want := []string{"implement", "auth", "module", "v2", "db"}
	if len(got) != len(want) {
		t.Fatalf("Tokenize = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Tokenize = %v, want %v", got, want)
		}
	}
}
