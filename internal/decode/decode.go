// Package decode turns raw page bytes into text. It is best effort: a chain
// of candidate encodings is tried in order and the first clean decode wins.
// When every candidate fails the bytes are used as they are.
package decode

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
)

// Candidate is a named encoding tried by the Decoder. A nil Encoding means
// UTF-8.
type Candidate struct {
	Name     string
	Encoding encoding.Encoding
}

// DefaultChain is the order used when a Decoder has no chain configured.
var DefaultChain = []Candidate{
	{Name: "utf-8"},
	{Name: "gbk", Encoding: simplifiedchinese.GBK},
	{Name: "big5", Encoding: traditionalchinese.Big5},
}

// Result describes how a buffer was decoded.
type Result struct {
	Text string
	// Encoding is the name of the encoding that succeeded, or "raw" when
	// none did.
	Encoding string
	// Detected is true when the encoding came from charset detection rather
	// than the fixed chain.
	Detected bool
}

// Decoder tries Chain in order. With Detect set, a statistical charset guess
// is tried after the chain before falling back to raw bytes.
type Decoder struct {
	Chain  []Candidate
	Detect bool
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decode never fails; see Result.Encoding for what happened.
func (d Decoder) Decode(raw []byte) Result {
	chain := d.Chain
	if len(chain) == 0 {
		chain = DefaultChain
	}
	for _, c := range chain {
		if s, ok := tryDecode(raw, c.Encoding); ok {
			return Result{Text: s, Encoding: c.Name}
		}
		log.Debug().Str("encoding", c.Name).Msg("decode attempt failed")
	}
	if d.Detect {
		if res, ok := detect(raw); ok {
			return res
		}
	}
	log.Debug().Int("bytes", len(raw)).Msg("all decodes failed; using raw bytes")
	return Result{Text: string(raw), Encoding: "raw"}
}

// Decode runs the default chain without detection.
func Decode(raw []byte) string {
	return Decoder{}.Decode(raw).Text
}

func tryDecode(raw []byte, enc encoding.Encoding) (string, bool) {
	if enc == nil {
		if !utf8.Valid(raw) {
			return "", false
		}
		return string(bytes.TrimPrefix(raw, utf8BOM)), true
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", false
	}
	// x/text decoders substitute U+FFFD for invalid input instead of failing.
	if bytes.ContainsRune(out, utf8.RuneError) {
		return "", false
	}
	return string(out), true
}

func detect(raw []byte) (Result, bool) {
	best, err := chardet.NewHtmlDetector().DetectBest(raw)
	if err != nil || best == nil {
		return Result{}, false
	}
	enc, name := charset.Lookup(strings.ToLower(best.Charset))
	if enc == nil {
		return Result{}, false
	}
	s, ok := tryDecode(raw, enc)
	if !ok {
		return Result{}, false
	}
	log.Debug().Str("charset", name).Int("confidence", best.Confidence).Msg("decoded via charset detection")
	return Result{Text: s, Encoding: name, Detected: true}, true
}
