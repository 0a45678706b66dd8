package messages

import (
	"context"

	"golang.org/x/text/language"
)

type localeKey struct{}

// WithLocale stores the negotiated response locale.
func WithLocale(ctx context.Context, tag language.Tag) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, localeKey{}, tag)
}

// LocaleFrom returns the request locale, English when none was negotiated.
func LocaleFrom(ctx context.Context) language.Tag {
	if ctx == nil {
		return language.English
	}
	if tag, ok := ctx.Value(localeKey{}).(language.Tag); ok {
		return tag
	}
	return language.English
}
