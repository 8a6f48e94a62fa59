package readable

import (
	"github.com/hyperifyio/goreadable/internal/decode"
	"github.com/hyperifyio/goreadable/internal/patterns"
	"github.com/hyperifyio/goreadable/internal/sanitize"
)

// Option configures an Extractor built by New.
type Option func(*Extractor)

// WithPatterns replaces the default pattern table.
func WithPatterns(t *patterns.Table) Option {
	return func(x *Extractor) { x.Patterns = t }
}

// WithSanitizer replaces the default sanitizer policy.
func WithSanitizer(s sanitize.Sanitizer) Option {
	return func(x *Extractor) { x.Sanitizer = s }
}

// WithoutSanitize returns unsanitized markup.
func WithoutSanitize() Option {
	return func(x *Extractor) { x.DisableSanitize = true }
}

// WithDecoder replaces the default decode chain.
func WithDecoder(d decode.Decoder) Option {
	return func(x *Extractor) { x.Decoder = d }
}

// WithMaxCleanPasses caps the cleaner loop.
func WithMaxCleanPasses(n int) Option {
	return func(x *Extractor) { x.MaxCleanPasses = n }
}

// New returns an Extractor with opts applied over the defaults.
func New(opts ...Option) *Extractor {
	x := &Extractor{}
	for _, o := range opts {
		o(x)
	}
	return x
}
