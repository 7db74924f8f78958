package bookmarkfile

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"
)

// ErrBinaryFile is returned for inputs that are clearly not an HTML export.
var ErrBinaryFile = errors.New("bookmarkfile: file looks binary")

const sniffLen = 512

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// cleanExport prepares raw export bytes for the tokenizer: it rejects binary
// input, drops a leading BOM and replaces invalid UTF-8 sequences.
func cleanExport(data []byte, src string) ([]byte, error) {
	if bytes.IndexByte(data[:min(len(data), sniffLen)], 0) >= 0 {
		return nil, fmt.Errorf("%s: %w", src, ErrBinaryFile)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		log.Warnf("%s contains invalid UTF-8, replacing invalid sequences", src)
		data = bytes.ToValidUTF8(data, []byte(string(utf8.RuneError)))
	}
	return data, nil
}

var titleReplacer = strings.NewReplacer(
	"\u00a0", " ",
	"\u200b", "",
)

// cleanTitle collapses the whitespace browsers leave inside titles.
func cleanTitle(s string) string {
	return strings.Join(strings.Fields(titleReplacer.Replace(s)), " ")
}
