package extract

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// extractPDF returns the text of every page, pages separated by a blank line.
// A PDF without text operators (a scan) yields an empty string.
func extractPDF(data []byte) (string, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return "", fmt.Errorf("pdfcpu read: %w", err)
	}

	var pages []string
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
		if err != nil || r == nil {
			continue
		}
		content, err := io.ReadAll(r)
		if err != nil || len(content) == 0 {
			continue
		}
		if text := textFromContentStream(content); text != "" {
			pages = append(pages, text)
		}
	}
	return strings.Join(pages, "\n\n"), nil
}

// operand is a pending content-stream operand: a string or a number.
type operand struct {
	text  string
	num   float64
	isNum bool
}

// textFromContentStream walks a page content stream and collects the strings
// shown by the text operators Tj, TJ, ' and ". Line moves (Td, TD, T*, ET)
// become line breaks. Inline image data (BI ... ID ... EI) is skipped.
func textFromContentStream(data []byte) string {
	var sb strings.Builder
	var ops []operand

	newline := func() {
		if sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
			sb.WriteByte('\n')
		}
	}

	for i := 0; i < len(data); {
		c := data[i]
		switch {
		case isPDFSpace(c) || c == '[' || c == ']' || c == '{' || c == '}':
			i++
		case c == '%':
			for i < len(data) && data[i] != '\n' && data[i] != '\r' {
				i++
			}
		case c == '(':
			raw, n := readLiteralString(data[i:])
			ops = append(ops, operand{text: decodePDFBytes(raw)})
			i += n
		case c == '<' && i+1 < len(data) && data[i+1] == '<', c == '>' && i+1 < len(data) && data[i+1] == '>':
			i += 2
		case c == '<':
			raw, n := readHexString(data[i:])
			ops = append(ops, operand{text: decodePDFBytes(raw)})
			i += n
		case c == '/':
			i += tokenLen(data[i+1:]) + 1
		default:
			n := tokenLen(data[i:])
			if n == 0 {
				i++
				continue
			}
			tok := string(data[i : i+n])
			i += n
			if f, err := strconv.ParseFloat(tok, 64); err == nil {
				ops = append(ops, operand{num: f, isNum: true})
				continue
			}

			switch tok {
			case "Tj":
				writeStrings(&sb, ops, false)
			case "TJ":
				writeStrings(&sb, ops, true)
			case "'", "\"":
				newline()
				writeStrings(&sb, ops, false)
			case "T*", "ET":
				newline()
			case "ID":
				i = skipInlineImage(data, i)
			case "Td", "TD":
				if len(ops) >= 2 && ops[len(ops)-1].isNum && ops[len(ops)-1].num != 0 {
					newline()
				} else if sb.Len() > 0 && !strings.HasSuffix(sb.String(), " ") {
					sb.WriteByte(' ')
				}
			}
			ops = ops[:0]
		}
	}

	return normalizeLines(sb.String())
}

// writeStrings appends string operands. Inside TJ arrays a large negative
// kerning adjustment stands for a word gap.
func writeStrings(sb *strings.Builder, ops []operand, kerning bool) {
	for _, op := range ops {
		if op.isNum {
			if kerning && op.num < -200 {
				sb.WriteByte(' ')
			}
			continue
		}
		sb.WriteString(op.text)
	}
}

func readLiteralString(data []byte) ([]byte, int) {
	var out []byte
	depth := 0
	for i := 0; i < len(data); i++ {
		c := data[i]
		switch {
		case c == '\\' && i+1 < len(data):
			i++
			switch e := data[i]; e {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b', 'f':
			case '\r', '\n':
				// line continuation
			default:
				if e >= '0' && e <= '7' {
					val := int(e - '0')
					for k := 0; k < 2 && i+1 < len(data) && data[i+1] >= '0' && data[i+1] <= '7'; k++ {
						i++
						val = val*8 + int(data[i]-'0')
					}
					out = append(out, byte(val))
				} else {
					out = append(out, e)
				}
			}
		case c == '(':
			if depth > 0 {
				out = append(out, c)
			}
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				return out, i + 1
			}
			out = append(out, c)
		default:
			out = append(out, c)
		}
	}
	return out, len(data)
}

// readHexString decodes a <...> string starting at data[0]. An unterminated
// string runs to the end of data.
func readHexString(data []byte) ([]byte, int) {
	end := bytes.IndexByte(data, '>')
	if end < 0 {
		end = len(data)
	}
	var digits []byte
	for _, c := range data[1:end] {
		if isHexDigit(c) {
			digits = append(digits, c)
		}
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, 0, len(digits)/2)
	for i := 0; i < len(digits); i += 2 {
		v, _ := strconv.ParseUint(string(digits[i:i+2]), 16, 8)
		out = append(out, byte(v))
	}
	return out, min(end+1, len(data))
}

// skipInlineImage returns the offset just past the EI that closes the inline
// image data starting at data[i] (right after the ID operator).
func skipInlineImage(data []byte, i int) int {
	if i < len(data) && isPDFSpace(data[i]) {
		i++
	}
	for j := i; j+1 < len(data); j++ {
		if data[j] != 'E' || data[j+1] != 'I' || j == 0 || !isPDFSpace(data[j-1]) {
			continue
		}
		if j+2 == len(data) || isPDFSpace(data[j+2]) || isPDFDelimiter(data[j+2]) {
			return j + 2
		}
	}
	return len(data)
}

// decodePDFBytes decodes a PDF text string: UTF-16BE when it carries a BOM,
// otherwise Windows-1252, close enough to PDFDocEncoding/WinAnsi for Latin text.
func decodePDFBytes(raw []byte) string {
	if bytes.HasPrefix(raw, []byte{0xFE, 0xFF}) {
		if out, err := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder().Bytes(raw); err == nil {
			return string(out)
		}
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(out)
}

func normalizeLines(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

func tokenLen(data []byte) int {
	n := 0
	for n < len(data) && !isPDFSpace(data[n]) && !isPDFDelimiter(data[n]) {
		n++
	}
	return n
}

func isPDFSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t' || c == '\f' || c == 0
}

func isPDFDelimiter(c byte) bool {
	return strings.IndexByte("()<>[]{}/%", c) >= 0
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
