package flatfile

import (
	"strings"

	"github.com/samber/lo"
)

const (
	delimiter = ','
	quote     = '"'
)

// SplitLine splits a delimited line into fields. A double quote toggles
// quoted mode and is dropped from the output; a delimiter inside quotes is
// kept literally. A line always yields at least one field.
func SplitLine(line string) []string {
	var (
		fields   []string
		current  strings.Builder
		inQuotes bool
	)
	for _, c := range line {
		switch {
		case c == quote:
			inQuotes = !inQuotes
		case c == delimiter && !inQuotes:
			fields = append(fields, current.String())
			current.Reset()
		default:
			current.WriteRune(c)
		}
	}
	return append(fields, current.String())
}

// lineBreaks flattens embedded line breaks so a record always stays on one row.
var lineBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// JoinLine renders fields as one delimited line, wrapping the columns listed
// in quoted in double quotes. Line breaks inside a field are written as a
// single space. Quote characters inside a field are written as-is and do not
// survive a SplitLine round trip.
func JoinLine(fields []string, quoted []int) string {
	var b strings.Builder
	for i, f := range fields {
		f = lineBreaks.Replace(f)
		if i > 0 {
			b.WriteByte(delimiter)
		}
		if lo.Contains(quoted, i) {
			b.WriteByte(quote)
			b.WriteString(f)
			b.WriteByte(quote)
			continue
		}
		b.WriteString(f)
	}
	return b.String()
}

// lossless reports whether field i survives JoinLine followed by SplitLine.
func lossless(field string, isQuoted bool) bool {
	if strings.ContainsAny(field, "\"\r\n") {
		return false
	}
	return isQuoted || !strings.ContainsRune(field, delimiter)
}
