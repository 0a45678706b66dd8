package messages

import (
	"context"
	"testing"

	"golang.org/x/text/language"
)

func TestRenderTranslatesNestedEntityKeys(t *testing.T) {
	got := Render(language.English, NotFound, EntityInventoryItem, "sku-1")
	if got != "inventory item sku-1 not found" {
		t.Fatalf("unexpected english rendering %q", got)
	}

	got = Render(language.Spanish, NotFound, EntityInventoryItem, "sku-1")
	if got != "artículo de inventario sku-1 no encontrado" {
		t.Fatalf("unexpected spanish rendering %q", got)
	}
}

func TestRenderFallsBackToEnglishForUnsupportedLocale(t *testing.T) {
	got := Render(language.German, Forbidden)
	if got != "access denied" {
		t.Fatalf("expected english fallback, got %q", got)
	}
}

func TestRenderResolvesRegionalVariants(t *testing.T) {
	spanish := Render(language.Spanish, Forbidden)
	for _, tag := range []language.Tag{language.MustParse("es-MX"), language.MustParse("es-419")} {
		if got := Render(tag, Forbidden); got != spanish {
			t.Fatalf("%s: got %q, want %q", tag, got, spanish)
		}
	}
	if got := Render(language.MustParse("en-GB"), Forbidden); got != "access denied" {
		t.Fatalf("en-GB: got %q", got)
	}
}

func TestMatch(t *testing.T) {
	tests := []struct {
		header string
		want   language.Tag
	}{
		{header: "", want: language.English},
		{header: "es-MX,es;q=0.9,en;q=0.5", want: language.Spanish},
		{header: "en-GB", want: language.English},
		{header: "fr-FR", want: language.English},
		{header: "!!garbage", want: language.English},
	}
	for _, tt := range tests {
		if got := Match(tt.header, language.English); got != tt.want {
			t.Fatalf("Match(%q) = %s, want %s", tt.header, got, tt.want)
		}
	}
	if got := ParseTag("es"); got != language.Spanish {
		t.Fatalf("ParseTag(es) = %s", got)
	}
}

func TestEveryKeyHasBothLocales(t *testing.T) {
	for key := range entries[language.English] {
		if _, ok := entries[language.Spanish][key]; !ok {
			t.Fatalf("key %s missing spanish translation", key)
		}
	}
	if !Known(FieldConflict) {
		t.Fatalf("expected FieldConflict to be known")
	}
	if Known(Key("nope")) {
		t.Fatalf("unexpected known key")
	}
}

func TestLocaleContext(t *testing.T) {
	if got := LocaleFrom(context.Background()); got != language.English {
		t.Fatalf("expected english default, got %s", got)
	}
	ctx := WithLocale(context.Background(), language.Spanish)
	if got := LocaleFrom(ctx); got != language.Spanish {
		t.Fatalf("expected spanish, got %s", got)
	}
}
