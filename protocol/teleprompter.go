package protocol

import (
	"strings"
	"unicode/utf8"
)

// Teleprompter layout defaults.
const (
	DefaultCharsPerLine      = 25
	DefaultLinesPerPage      = 7
	DefaultMinPages          = 3
	DefaultTotalLineEstimate = 140
	DefaultLineHeight        = 24

	// MaxTeleprompterPages is how many content pages one send carries.
	MaxTeleprompterPages = 3
)

// Teleprompter command ids (field 1 of every teleprompter payload).
const (
	tpCmdDisplayConfig = 0x02
	tpCmdInit          = 0x01
	tpCmdPage          = 0x03
	tpCmdSync          = 0x04
)

// TeleprompterLayout describes how text is laid out on the display.
type TeleprompterLayout struct {
	CharsPerLine      int
	LinesPerPage      int
	MinPages          int
	TotalLineEstimate int
	LineHeight        int
}

// DefaultTeleprompterLayout returns the layout the firmware is known to
// render correctly.
func DefaultTeleprompterLayout() TeleprompterLayout {
	return TeleprompterLayout{
		CharsPerLine:      DefaultCharsPerLine,
		LinesPerPage:      DefaultLinesPerPage,
		MinPages:          DefaultMinPages,
		TotalLineEstimate: DefaultTotalLineEstimate,
		LineHeight:        DefaultLineHeight,
	}
}

// ContentHeight is the scrollable height announced in the init frame.
func (l TeleprompterLayout) ContentHeight() int {
	return l.TotalLineEstimate * l.LineHeight
}

// wrapWords breaks text into lines of at most width runes. Words longer than
// a line are split.
func wrapWords(text string, width int) []string {
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		var line strings.Builder
		lineLen := 0
		for _, word := range strings.Fields(para) {
			for utf8.RuneCountInString(word) > width {
				if lineLen > 0 {
					lines = append(lines, line.String())
					line.Reset()
					lineLen = 0
				}
				cut := runeOffset(word, width)
				lines = append(lines, word[:cut])
				word = word[cut:]
			}
			n := utf8.RuneCountInString(word)
			if n == 0 {
				continue
			}
			if lineLen > 0 && lineLen+1+n > width {
				lines = append(lines, line.String())
				line.Reset()
				lineLen = 0
			}
			if lineLen > 0 {
				line.WriteByte(' ')
				lineLen++
			}
			line.WriteString(word)
			lineLen += n
		}
		if lineLen > 0 {
			lines = append(lines, line.String())
		}
	}
	return lines
}

// runeOffset returns the byte offset of the n-th rune in s.
func runeOffset(s string, n int) int {
	for i := range s {
		if n == 0 {
			return i
		}
		n--
	}
	return len(s)
}

// FormatTeleprompterText word-wraps text to charsPerLine and groups the
// lines into pages of exactly linesPerPage lines. Short input is padded with
// blank lines and blank pages so at least minPages pages are returned.
func FormatTeleprompterText(text string, charsPerLine, linesPerPage, minPages int) []string {
	charsPerLine = max(charsPerLine, 1)
	linesPerPage = max(linesPerPage, 1)

	lines := wrapWords(text, charsPerLine)
	if len(lines) < linesPerPage {
		lines = append(lines, make([]string, linesPerPage-len(lines))...)
	}
	if rem := len(lines) % linesPerPage; rem != 0 {
		lines = append(lines, make([]string, linesPerPage-rem)...)
	}

	pages := make([]string, 0, max(len(lines)/linesPerPage, minPages))
	for i := 0; i < len(lines); i += linesPerPage {
		pages = append(pages, strings.Join(lines[i:i+linesPerPage], "\n"))
	}
	blank := strings.Repeat("\n", linesPerPage-1)
	for len(pages) < minPages {
		pages = append(pages, blank)
	}
	return pages
}

// DisplayConfigPayload is the fixed display configuration sent ahead of a
// teleprompter session.
func DisplayConfigPayload(msgID uint8) []byte {
	p := appendField(nil, 1, tpCmdDisplayConfig)
	p = appendField(p, 2, uint64(msgID))
	return appendBytes(p, 4, []byte{0x08, 0x01, 0x10, 0x00, 0x18, 0x00, 0x20, 0x01})
}

// TeleprompterInitPayload announces the page geometry.
func TeleprompterInitPayload(msgID uint8, l TeleprompterLayout, pageCount int) []byte {
	info := appendField(nil, 1, 1)
	info = appendField(info, 2, uint64(l.ContentHeight()))
	info = appendField(info, 3, uint64(pageCount))
	info = appendField(info, 4, uint64(l.LinesPerPage))
	info = appendField(info, 5, uint64(l.CharsPerLine))

	p := appendField(nil, 1, tpCmdInit)
	p = appendField(p, 2, uint64(msgID))
	return appendBytes(p, 3, info)
}

// TeleprompterPagePayload carries one page of text. The text is cut on a
// rune boundary so the payload fits in a single frame.
func TeleprompterPagePayload(msgID uint8, index int, page string) []byte {
	build := func(text string) []byte {
		body := appendField(nil, 1, uint64(index))
		body = appendBytes(body, 2, []byte(text))

		p := appendField(nil, 1, tpCmdPage)
		p = appendField(p, 2, uint64(msgID))
		return appendBytes(p, 5, body)
	}
	p := build(page)
	if over := len(p) - MaxPayloadSize; over > 0 {
		p = build(truncateUTF8(page, len(page)-over-2))
	}
	return p
}

// TeleprompterSyncPayload triggers the display to render the pages.
func TeleprompterSyncPayload(msgID uint8) []byte {
	p := appendField(nil, 1, tpCmdSync)
	p = appendField(p, 2, uint64(msgID))
	return appendBytes(p, 6, []byte{0x08, 0x01})
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
