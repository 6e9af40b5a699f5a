package segment

import (
	"bufio"
	"bytes"
	"iter"
	"strings"
)

// Splitter breaks raw message text into segment strings.
type Splitter struct {
	// Terminators lists the bytes that end a segment; any one of them does.
	Terminators string
}

// Split returns the segments of text in source order. Each segment is
// whitespace-trimmed and empty segments are dropped. The sequence is lazy and
// can be ranged over any number of times.
func (s Splitter) Split(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		sc := bufio.NewScanner(strings.NewReader(text))
		sc.Buffer(make([]byte, 0, 4096), len(text)+1)
		sc.Split(s.scanSegments)
		for sc.Scan() {
			seg := strings.TrimSpace(sc.Text())
			if seg == "" {
				continue
			}
			if !yield(seg) {
				return
			}
		}
	}
}

// scanSegments is a bufio.SplitFunc cutting on any terminator byte.
func (s Splitter) scanSegments(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, s.Terminators); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// Join re-terminates segments, including a trailing terminator.
func Join(segments []string, terminator string) string {
	if len(segments) == 0 {
		return ""
	}
	return strings.Join(segments, terminator) + terminator
}
