package textutil

import (
	"regexp"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.Trim(name, " \n\t")
	name = whitespaceRegex.ReplaceAllString(name, "")
	return name
}

var mdConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
	),
)

// HTMLToText converts an HTML fragment to readable markdown-flavored
// text. sourceURL is used to absolutize relative links.
func HTMLToText(html, sourceURL string) (string, error) {
	result, err := mdConverter.ConvertString(html, converter.WithDomain(sourceURL))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(result), nil
}

// every comment page ends with the site's posting prompt, which is noise
// in quoted output
var trailingBoilerplate = regexp.MustCompile(`\s*\\?\(Log in to post comments\\?\)`)

// StripFooter cuts the final posting-prompt marker and everything after
// it. A comment body that merely quotes the marker keeps the text
// between that quote and the real footer.
func StripFooter(text string) string {
	locs := trailingBoilerplate.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return text
	}
	return text[:locs[len(locs)-1][0]]
}

// Quote prefixes every line of text with "> ". Empty text quotes to
// nothing.
func Quote(text string) string {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return ""
	}
	lines := strings.Split(text, "\n")
	var b strings.Builder
	for _, line := range lines {
		b.WriteString("> ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}
