package analyzer

import (
	"reflect"
	"testing"
)

func TestTokenizer_Tokenize(t *testing.T) {
	tok := NewTokenizer(2)

	tokens := tok.Tokenize("Running dogs are playing")
	want := []string{"running", "dogs", "playing"}
	if !reflect.DeepEqual(tokens, want) {
		t.Errorf("Tokenize() = %v, want %v", tokens, want)
	}
}

func TestTokenizer_StopwordRemoval(t *testing.T) {
	tok := NewTokenizer(1)

	tokens := tok.Tokenize("the quick brown fox")
	for _, token := range tokens {
		if token == "the" {
			t.Errorf("stopword 'the' should be removed, got %v", tokens)
		}
	}
}

func TestTokenizer_ShortWordRemoval(t *testing.T) {
	tok := NewTokenizer(2)

	tokens := tok.Tokenize("a I go to")
	for _, token := range tokens {
		if len(token) < 2 {
			t.Errorf("short word should be removed: %s", token)
		}
	}
}

func TestTokenizer_LinkTargets(t *testing.T) {
	tok := NewTokenizer(2)

	tests := []struct {
		input string
		want  []string
	}{
		{"see [[journal/2024-03-01|yesterday]]", []string{"see", "yesterday"}},
		{"see [[dreams]]", []string{"see", "dreams"}},
		{"read [the docs](https://example.com/docs) now", []string{"read", "docs", "now"}},
		{"broken [[link", []string{"broken", "link"}},
		{"broken [label](target", []string{"broken", "label", "target"}},
	}

	for _, tt := range tests {
		got := tok.Tokenize(tt.input)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Tokenize(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestTokenizer_Terms(t *testing.T) {
	tok := NewTokenizer(2)

	terms := tok.Terms("sleep, sleep and more sleep; dreams")
	if terms["sleep"] != 3 || terms["dreams"] != 1 {
		t.Errorf("unexpected term counts: %v", terms)
	}
	if _, ok := terms["and"]; ok {
		t.Errorf("stopwords should not be counted: %v", terms)
	}
}

func TestTokenizer_EmptyInput(t *testing.T) {
	tok := NewTokenizer(2)

	if tokens := tok.Tokenize(""); len(tokens) != 0 {
		t.Errorf("expected 0 tokens for empty input, got %d", len(tokens))
	}
}

func TestSplitWords(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"hello world", 2},
		{"hello_world", 1},
		{"hello-world", 2},
		{"func(x, y)", 3},
		{"CamelCase", 1},
		{"snake_case_name", 1},
		{"123numbers456", 1},
		{"café crème", 2},
	}

	for _, tt := range tests {
		words := splitWords(tt.input)
		if len(words) != tt.expected {
			t.Errorf("splitWords(%q) = %d words, want %d: %v", tt.input, len(words), tt.expected, words)
		}
	}
}
