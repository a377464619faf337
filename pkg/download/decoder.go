package download

import (
	"bufio"
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

type lineDecoder struct {
	name   string
	decode func([]byte) (string, bool)
}

// Tried in order. Raw bytes that none of them accepts are decoded as UTF-8
// with invalid sequences replaced by U+FFFD.
var lineDecoders = []lineDecoder{
	{name: "utf-8", decode: decodeUTF8},
	{name: "utf-16", decode: decodeUTF16},
	{name: "windows-1252", decode: decodeWith(charmap.Windows1252)},
}

// DecodeLine turns a raw output line into text without ever failing.
func DecodeLine(raw []byte) string {
	for _, d := range lineDecoders {
		if text, ok := d.decode(raw); ok {
			return text
		}
	}
	return strings.ToValidUTF8(string(raw), "�")
}

func decodeUTF8(raw []byte) (string, bool) {
	if !utf8.Valid(raw) {
		return "", false
	}
	return string(raw), true
}

func decodeUTF16(raw []byte) (string, bool) {
	if !bytes.HasPrefix(raw, []byte{0xFF, 0xFE}) && !bytes.HasPrefix(raw, []byte{0xFE, 0xFF}) {
		return "", false
	}
	return decodeWith(unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM))(raw)
}

func decodeWith(enc encoding.Encoding) func([]byte) (string, bool) {
	return func(raw []byte) (string, bool) {
		out, err := enc.NewDecoder().Bytes(raw)
		if err != nil {
			return "", false
		}
		text := string(out)
		if !plausibleText(text) {
			return "", false
		}
		return text, true
	}
}

// plausibleText rejects decodes that produced replacement runes or C1 controls.
func plausibleText(text string) bool {
	for _, r := range text {
		if r == utf8.RuneError || (r >= 0x80 && r <= 0x9F) {
			return false
		}
	}
	return true
}

// scanOutputLines splits on \n or \r so carriage-return progress redraws
// become separate lines.
func scanOutputLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

var _ bufio.SplitFunc = scanOutputLines
