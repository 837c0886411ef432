package sheets

import (
	"strconv"
	"strings"
)

// ColumnLetter converts a 1-based column number to its A1 notation letters:
// 1 is "A", 26 is "Z", 27 is "AA". It returns "" when n <= 0.
func ColumnLetter(n int) string {
	if n <= 0 {
		return ""
	}
	var b []byte
	for n > 0 {
		m := (n - 1) % 26
		b = append(b, byte('A'+m))
		n = (n - m - 1) / 26
	}
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}

// sheetPrefix returns the quoted sheet title prefix of a range, or "" to
// address the first sheet.
func sheetPrefix(name string) string {
	if name == "" {
		return ""
	}
	return "'" + strings.ReplaceAll(name, "'", "''") + "'!"
}

// rowRange returns the A1 range covering columns A to last on row n.
func rowRange(prefix string, n int, last string) string {
	r := strconv.Itoa(n)
	return prefix + "A" + r + ":" + last + r
}
