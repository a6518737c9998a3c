package sqlt

import (
	"fmt"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// Color is a background tint applied by SqlPrettyPrinter to a line of
// output, used by UnifiedDiff to mark additions/removals.
type Color int

const (
	ColorNone Color = iota
	ColorRed
	ColorGreen
	ColorCyan
)

type sqlGrammar struct {
	lexer chroma.Lexer
	style *chroma.Style
}

// sqlAsset is the shared grammar+theme pair: loaded once on first use
// and treated as immutable thereafter, owned entirely by this file.
var sqlAsset = sync.OnceValue(func() sqlGrammar {
	lexer := lexers.Get("sql")
	if lexer == nil {
		lexer = lexers.Fallback
	}
	style := styles.Get("monokai")
	if style == nil {
		style = styles.Fallback
	}
	return sqlGrammar{lexer: chroma.Coalesce(lexer), style: style}
})

// SqlPrettyPrinter tokenizes DDL fragments with a SQL grammar and emits
// ANSI-colorized output. TrueColor selects 24-bit escapes; when false,
// each color is mapped to the nearest of the eight basic ANSI
// foreground colors.
type SqlPrettyPrinter struct {
	TrueColor bool
}

// NewSqlPrettyPrinter returns a printer using truecolor escapes when
// truecolor is true, or the eight basic ANSI foreground colors
// otherwise.
func NewSqlPrettyPrinter(truecolor bool) *SqlPrettyPrinter {
	return &SqlPrettyPrinter{TrueColor: truecolor}
}

// Print tokenizes text as a whole and colorizes each token, with
// background applied uniformly across the whole fragment (used for
// diff +/- lines).
// If styling fails for any reason, it falls back to PrintPlain.
func (p *SqlPrettyPrinter) Print(text string, background Color) string {
	if p == nil {
		return text
	}
	asset := sqlAsset()
	iter, err := asset.lexer.Tokenise(nil, text)
	if err != nil {
		return text
	}
	var b strings.Builder
	bg := backgroundEscape(background)
	if bg != "" {
		b.WriteString(bg)
	}
	for _, tok := range iter.Tokens() {
		entry := asset.style.Get(tok.Type)
		esc := p.colorEscape(entry.Colour)
		if esc != "" {
			b.WriteString(esc)
			b.WriteString(tok.Value)
			b.WriteString(resetEscape)
			b.WriteString(bg)
		} else {
			b.WriteString(tok.Value)
		}
	}
	if bg != "" {
		b.WriteString(resetEscape)
	}
	return b.String()
}

// PrintPlain is the identity function, the fallback used when styling
// is disabled or unavailable.
func (p *SqlPrettyPrinter) PrintPlain(text string) string {
	return text
}

const resetEscape = "\x1b[0m"

func backgroundEscape(c Color) string {
	switch c {
	case ColorRed:
		return "\x1b[41m"
	case ColorGreen:
		return "\x1b[42m"
	case ColorCyan:
		return "\x1b[46m"
	default:
		return ""
	}
}

func (p *SqlPrettyPrinter) colorEscape(c chroma.Colour) string {
	if !c.IsSet() {
		return ""
	}
	if p.TrueColor {
		return fmt.Sprintf("\x1b[38;2;%d;%d;%dm", c.Red(), c.Green(), c.Blue())
	}
	return ansi16Escape(c)
}

// ansi16 palette: the eight basic foreground colors, used when the
// caller has not opted into truecolor output. The nearest color is
// picked by squared RGB distance.
var ansi16Palette = [8][3]uint8{
	{0, 0, 0}, {205, 0, 0}, {0, 205, 0}, {205, 205, 0},
	{0, 0, 238}, {205, 0, 205}, {0, 205, 205}, {229, 229, 229},
}

func ansi16Escape(c chroma.Colour) string {
	r, g, b := int(c.Red()), int(c.Green()), int(c.Blue())
	best, bestDist := 0, -1
	for i, p := range ansi16Palette {
		dr, dg, db := r-int(p[0]), g-int(p[1]), b-int(p[2])
		dist := dr*dr + dg*dg + db*db
		if bestDist < 0 || dist < bestDist {
			best, bestDist = i, dist
		}
	}
	return fmt.Sprintf("\x1b[%dm", 30+best)
}
