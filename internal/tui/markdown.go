package tui

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/alecthomas/chroma"
	"github.com/alecthomas/chroma/formatters"
	"github.com/alecthomas/chroma/lexers"
	"github.com/alecthomas/chroma/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	mdCodeBlockRe  = regexp.MustCompile(`(?s)<pre><code(?: class="language-([a-zA-Z0-9]+)")?>(.*?)</code></pre>`)
	mdInlineCodeRe = regexp.MustCompile(`<code>([^<]+)</code>`)
	mdHeadingRe    = regexp.MustCompile(`<h([1-6])[^>]*>(.*?)</h[1-6]>`)
	mdStrongRe     = regexp.MustCompile(`<strong>(.*?)</strong>`)
	mdEmRe         = regexp.MustCompile(`<em>(.*?)</em>`)
	mdLinkRe       = regexp.MustCompile(`<a href="([^"]*)">(.*?)</a>`)
	mdListItemRe   = regexp.MustCompile(`<li>(.*?)</li>`)
	mdTagRe        = regexp.MustCompile(`<[^>]+>`)
	mdMultiNLRe    = regexp.MustCompile(`\n{3,}`)
)

// MarkdownRenderer turns agent replies into styled terminal text. Replies
// are markdown with occasional fenced code blocks (the agent quotes prices
// and query results in tables and code), so code gets chroma highlighting.
type MarkdownRenderer struct {
	goldmark.Markdown
	theme     Theme
	formatter chroma.Formatter
	style     *chroma.Style
}

func NewMarkdownRenderer(theme Theme) *MarkdownRenderer {
	md := goldmark.New(
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			html.WithXHTML(),
		),
		goldmark.WithExtensions(
			extension.GFM,
		),
	)
	return &MarkdownRenderer{
		Markdown:  md,
		theme:     theme,
		formatter: formatters.Get("terminal256"),
		style:     styles.Get("friendly"),
	}
}

// Render converts markdown to terminal output. On any conversion failure
// the raw content is returned untouched.
func (r *MarkdownRenderer) Render(content string, width int) string {
	var buf bytes.Buffer
	if err := r.Convert([]byte(content), &buf); err != nil {
		return content
	}
	return r.formatForTerminal(buf.String(), width)
}

func (r *MarkdownRenderer) formatForTerminal(htmlContent string, width int) string {
	result := htmlContent

	// Code blocks are highlighted first and parked behind placeholders so
	// later tag stripping cannot eat the ANSI escapes.
	var blocks []string
	result = mdCodeBlockRe.ReplaceAllStringFunc(result, func(m string) string {
		sub := mdCodeBlockRe.FindStringSubmatch(m)
		if len(sub) < 3 {
			return m
		}
		code := decodeEntities(sub[2])
		styled := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(r.theme.Border).
			Padding(0, 1).
			Render(r.highlight(strings.TrimRight(code, "\n"), sub[1]))
		blocks = append(blocks, styled)
		return fmt.Sprintf("\n{{block-%d}}\n", len(blocks)-1)
	})

	result = mdInlineCodeRe.ReplaceAllStringFunc(result, func(m string) string {
		sub := mdInlineCodeRe.FindStringSubmatch(m)
		if len(sub) < 2 {
			return m
		}
		return lipgloss.NewStyle().Foreground(r.theme.Accent).Render(decodeEntities(sub[1]))
	})

	result = mdHeadingRe.ReplaceAllStringFunc(result, func(m string) string {
		sub := mdHeadingRe.FindStringSubmatch(m)
		if len(sub) < 3 {
			return m
		}
		text := mdTagRe.ReplaceAllString(sub[2], "")
		return lipgloss.NewStyle().Bold(true).Foreground(r.theme.Accent).Render(text) + "\n"
	})

	result = mdStrongRe.ReplaceAllStringFunc(result, func(m string) string {
		sub := mdStrongRe.FindStringSubmatch(m)
		if len(sub) < 2 {
			return m
		}
		return lipgloss.NewStyle().Bold(true).Render(sub[1])
	})

	result = mdEmRe.ReplaceAllStringFunc(result, func(m string) string {
		sub := mdEmRe.FindStringSubmatch(m)
		if len(sub) < 2 {
			return m
		}
		return lipgloss.NewStyle().Italic(true).Render(sub[1])
	})

	result = mdLinkRe.ReplaceAllStringFunc(result, func(m string) string {
		sub := mdLinkRe.FindStringSubmatch(m)
		if len(sub) < 3 {
			return m
		}
		return lipgloss.NewStyle().Underline(true).Foreground(r.theme.Accent).
			Render(fmt.Sprintf("%s (%s)", sub[2], sub[1]))
	})

	result = mdListItemRe.ReplaceAllStringFunc(result, func(m string) string {
		sub := mdListItemRe.FindStringSubmatch(m)
		if len(sub) < 2 {
			return m
		}
		return "  • " + mdTagRe.ReplaceAllString(sub[1], "") + "\n"
	})

	result = strings.ReplaceAll(result, "</p>", "\n")
	result = strings.ReplaceAll(result, "<br>", "\n")
	result = strings.ReplaceAll(result, "<br/>", "\n")
	result = strings.ReplaceAll(result, "<br />", "\n")
	result = mdTagRe.ReplaceAllString(result, "")
	result = decodeEntities(result)

	for i, b := range blocks {
		result = strings.ReplaceAll(result, fmt.Sprintf("{{block-%d}}", i), b)
	}

	result = mdMultiNLRe.ReplaceAllString(result, "\n\n")
	return strings.TrimSpace(result)
}

func (r *MarkdownRenderer) highlight(code, lang string) string {
	var lexer chroma.Lexer
	if lang != "" {
		lexer = lexers.Get(lang)
	}
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	iterator, err := chroma.Coalesce(lexer).Tokenise(nil, code)
	if err != nil {
		return code
	}
	var buf bytes.Buffer
	if err := r.formatter.Format(&buf, r.style, iterator); err != nil {
		return code
	}
	return strings.TrimRight(buf.String(), "\n")
}

var entityReplacer = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&#x27;", "'",
	"&#x60;", "`",
	"&nbsp;", " ",
)

func decodeEntities(s string) string {
	return entityReplacer.Replace(s)
}
