package lsp

import (
	"bytes"
	"strconv"
	"strings"
)

// headerSep terminates the header block of a framed message.
var headerSep = []byte("\r\n\r\n")

// Framer decodes the Content-Length wire format used by language servers:
// a plain-text header block ending in CRLF CRLF, then exactly Content-Length
// bytes of UTF-8 body. Lengths are byte counts, never rune counts.
type Framer struct {
	buf []byte
}

// Feed appends a raw chunk and returns every complete message body it can
// peel off, in order. Chunks may split headers or bodies at any byte; a
// header block with no parseable Content-Length is discarded through its
// terminator and scanning continues, so one malformed unit never wedges the
// stream.
func (f *Framer) Feed(chunk []byte) [][]byte {
	f.buf = append(f.buf, chunk...)

	var msgs [][]byte
	for {
		sep := bytes.Index(f.buf, headerSep)
		if sep < 0 {
			break
		}

		length, ok := parseContentLength(f.buf[:sep])
		if !ok {
			f.buf = f.buf[sep+len(headerSep):]
			continue
		}

		bodyStart := sep + len(headerSep)
		if len(f.buf) < bodyStart+length {
			break
		}

		body := make([]byte, length)
		copy(body, f.buf[bodyStart:bodyStart+length])
		msgs = append(msgs, body)
		f.buf = f.buf[bodyStart+length:]
	}
	return msgs
}

// Pending reports how many buffered bytes await more data.
func (f *Framer) Pending() int {
	return len(f.buf)
}

func parseContentLength(header []byte) (int, bool) {
	for _, line := range strings.Split(string(header), "\r\n") {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 0 {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// EncodeFrame prepends the header block to a serialized message body.
func EncodeFrame(body []byte) []byte {
	head := "Content-Length: " + strconv.Itoa(len(body)) + "\r\n\r\n"
	out := make([]byte, 0, len(head)+len(body))
	out = append(out, head...)
	return append(out, body...)
}
