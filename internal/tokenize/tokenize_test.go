package tokenize

import (
	"testing"
	"unicode/utf8"
)

func TestPatternTokenizer_KnownKeywords(t *testing.T) {
	tok := NewPatternTokenizer()

	keywords, err := tok.Tokenize("宇宙の星が見たい、ロケットに乗りたい")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	found := make(map[string]string)
	for _, kw := range keywords {
		found[kw.Text] = kw.Category
	}

	for _, want := range []struct{ text, category string }{
		{"宇宙", "宇宙"},
		{"星", "宇宙"},
		{"ロケット", "宇宙"},
	} {
		if got, ok := found[want.text]; !ok {
			t.Errorf("keyword %q not extracted", want.text)
		} else if got != want.category {
			t.Errorf("keyword %q category = %q, want %q", want.text, got, want.category)
		}
	}
}

func TestPatternTokenizer_WeightCountsOccurrences(t *testing.T) {
	tok := NewPatternTokenizer()

	keywords, err := tok.Tokenize("星と星と星")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, kw := range keywords {
		if kw.Text == "星" {
			if kw.Weight != 3 {
				t.Errorf("weight = %d, want 3", kw.Weight)
			}
			return
		}
	}
	t.Fatal("keyword 星 not extracted")
}

func TestPatternTokenizer_CaseInsensitiveLatin(t *testing.T) {
	tok := NewPatternTokenizer()

	keywords, _ := tok.Tokenize("esp32から接続しました")
	for _, kw := range keywords {
		if kw.Text == "ESP32" && kw.Category == "デバイス" {
			return
		}
	}
	t.Error("expected ESP32 to match case-insensitively")
}

func TestPatternTokenizer_NoMatches(t *testing.T) {
	tok := NewPatternTokenizer()

	keywords, err := tok.Tokenize("zzzzz")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keywords) != 0 {
		t.Errorf("got %d keywords, want 0", len(keywords))
	}
}

func TestPatternTokenizer_DeterministicOrder(t *testing.T) {
	tok := NewPatternTokenizer()
	text := "今日は宇宙の話をしよう、楽しいね"

	first, _ := tok.Tokenize(text)
	second, _ := tok.Tokenize(text)

	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("keyword %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

// FuzzPatternTokenizer checks the fallback extractor never panics and
// always yields valid UTF-8 keywords on arbitrary input.
func FuzzPatternTokenizer(f *testing.F) {
	f.Add("宇宙の星")
	f.Add("こんにちは、ロボット")
	f.Add("")
	f.Add("plain ascii text")
	f.Add("\xff\xfe broken utf8")

	tok := NewPatternTokenizer()
	f.Fuzz(func(t *testing.T, text string) {
		keywords, err := tok.Tokenize(text)
		if err != nil {
			t.Fatalf("fallback tokenizer must not fail: %v", err)
		}
		for _, kw := range keywords {
			if !utf8.ValidString(kw.Text) {
				t.Errorf("invalid keyword text %q", kw.Text)
			}
			if kw.Weight < 1 {
				t.Errorf("keyword %q weight = %d, want >= 1", kw.Text, kw.Weight)
			}
		}
	})
}
