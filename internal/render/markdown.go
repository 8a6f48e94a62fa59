package render

import (
	"fmt"
	"strings"
	"sync"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
)

var markdownConverter = sync.OnceValue(func() *converter.Converter {
	return converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
})

// ToMarkdown converts an article fragment to CommonMark. Relative links left
// in the fragment are resolved against baseURL when it is set.
func ToMarkdown(fragment, baseURL string) (string, error) {
	conv := markdownConverter()
	var (
		md  string
		err error
	)
	if baseURL != "" {
		md, err = conv.ConvertString(fragment, converter.WithDomain(baseURL))
	} else {
		md, err = conv.ConvertString(fragment)
	}
	if err != nil {
		return "", fmt.Errorf("convert to markdown: %w", err)
	}
	return strings.TrimSpace(md), nil
}
