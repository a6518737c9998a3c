package sqlt

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

type diffLineKind int

const (
	diffContext diffLineKind = iota
	diffAdd
	diffRemove
)

// UnifiedDiff produces a unified, pretty-printed line diff between
// source and target with three lines of context per hunk. Lines are
// prefixed "- " (source-only), "+ " (target-only) or "  " (context),
// each further colorized by printer. The result is the empty string
// when source == target. One trailing newline is dropped from each
// side before lines are compared, so inputs that differ only by it
// also give the empty string. When a change's start is more than six lines
// past the current cursor, the in-progress hunk is flushed and a new
// one begins three lines before the change, matching the histogram
// diff's original hunk-flush heuristic.
func UnifiedDiff(source, target string, printer *SqlPrettyPrinter) string {
	if source == target {
		return ""
	}
	before := splitLines(source)
	after := splitLines(target)
	matcher := difflib.NewMatcher(before, after)
	b := newUnifiedDiffBuilder(before, after, printer)
	for _, op := range matcher.GetOpCodes() {
		if op.Tag == 'e' {
			continue
		}
		b.processChange(op.I1, op.I2, op.J1, op.J2)
	}
	return b.finish()
}

func splitLines(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

type unifiedDiffBuilder struct {
	before, after []string
	printer       *SqlPrettyPrinter

	pos             int
	beforeHunkStart int
	afterHunkStart  int
	beforeHunkLen   int
	afterHunkLen    int

	buf strings.Builder
	dst strings.Builder
}

func newUnifiedDiffBuilder(before, after []string, printer *SqlPrettyPrinter) *unifiedDiffBuilder {
	return &unifiedDiffBuilder{before: before, after: after, printer: printer}
}

func (b *unifiedDiffBuilder) printLines(lines []string, kind diffLineKind) {
	for _, line := range lines {
		switch kind {
		case diffAdd:
			fmt.Fprintf(&b.buf, "+ %s\n", b.printer.Print(line, ColorGreen))
		case diffRemove:
			fmt.Fprintf(&b.buf, "- %s\n", b.printer.Print(line, ColorRed))
		default:
			fmt.Fprintf(&b.buf, "  %s\n", b.printer.Print(line, ColorNone))
		}
	}
}

// updatePos prints the unchanged lines between the current cursor and
// printTo as context, then advances the cursor to moveTo.
func (b *unifiedDiffBuilder) updatePos(printTo, moveTo int) {
	b.printLines(b.before[b.pos:printTo], diffContext)
	length := printTo - b.pos
	b.pos = moveTo
	b.beforeHunkLen += length
	b.afterHunkLen += length
}

func (b *unifiedDiffBuilder) processChange(beforeStart, beforeEnd, afterStart, afterEnd int) {
	if beforeStart-b.pos > 6 {
		b.flush()
		b.pos = max0(beforeStart - 3)
		b.beforeHunkStart = b.pos
		b.afterHunkStart = max0(afterStart - 3)
	}
	b.updatePos(beforeStart, beforeEnd)
	b.beforeHunkLen += beforeEnd - beforeStart
	b.afterHunkLen += afterEnd - afterStart
	b.printLines(b.before[beforeStart:beforeEnd], diffRemove)
	b.printLines(b.after[afterStart:afterEnd], diffAdd)
}

func (b *unifiedDiffBuilder) flush() {
	if b.beforeHunkLen == 0 && b.afterHunkLen == 0 {
		return
	}
	end := b.pos + 3
	if end > len(b.before) {
		end = len(b.before)
	}
	b.updatePos(end, end)

	header := fmt.Sprintf("@@ -%d,%d +%d,%d @@",
		b.beforeHunkStart+1, b.beforeHunkLen, b.afterHunkStart+1, b.afterHunkLen)
	b.dst.WriteString(header)
	b.dst.WriteString("\n")
	b.dst.WriteString(b.buf.String())
	b.buf.Reset()
	b.beforeHunkLen = 0
	b.afterHunkLen = 0
}

func (b *unifiedDiffBuilder) finish() string {
	b.flush()
	return b.dst.String()
}

func max0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
