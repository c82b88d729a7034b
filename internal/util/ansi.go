package util

import "io"

const (
	esc = 0x1b
	bel = 0x07
)

type scanState uint8

const (
	scanText   scanState = iota
	scanEscape           // after ESC
	scanCSI              // ESC [ ... final byte
	scanString           // OSC, DCS, APC or PM body, ended by BEL or ESC \
)

// ANSIStripper removes terminal control sequences from a byte stream. It keeps
// its position between calls, so a sequence may be split across chunks.
type ANSIStripper struct {
	state     scanState
	stringEsc bool // ESC seen inside a string body
}

func NewANSIStripper() *ANSIStripper { return &ANSIStripper{} }

// Strip returns b without control sequences. Of the C0 controls only
// newline, carriage return and tab are kept.
func (s *ANSIStripper) Strip(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for _, c := range b {
		if s.consume(c) {
			out = append(out, c)
		}
	}
	return out
}

// consume advances the state machine by one byte and reports whether the byte
// is visible text.
func (s *ANSIStripper) consume(c byte) bool {
	switch s.state {
	case scanEscape:
		switch c {
		case '[':
			s.state = scanCSI
		case ']', 'P', '_', '^':
			s.state = scanString
			s.stringEsc = false
		default:
			// two-byte escapes such as ESC 7 or ESC =
			s.state = scanText
		}
		return false

	case scanCSI:
		if c >= 0x40 && c <= 0x7e {
			s.state = scanText
		}
		return false

	case scanString:
		switch {
		case c == bel:
			s.state = scanText
			s.stringEsc = false
		case s.stringEsc:
			if c == '\\' {
				s.state = scanText
			}
			s.stringEsc = false
		case c == esc:
			s.stringEsc = true
		}
		return false
	}

	if c == esc {
		s.state = scanEscape
		return false
	}
	if c < 0x20 {
		return c == '\n' || c == '\r' || c == '\t'
	}
	return true
}

// StripANSIString removes control sequences from a complete string.
func StripANSIString(text string) string {
	return string(NewANSIStripper().Strip([]byte(text)))
}

type strippingWriter struct {
	w io.Writer
	s *ANSIStripper
}

// NewStrippingWriter returns a writer that strips control sequences before
// passing data on to w.
func NewStrippingWriter(w io.Writer) io.Writer {
	return &strippingWriter{w: w, s: NewANSIStripper()}
}

func (sw *strippingWriter) Write(b []byte) (int, error) {
	if _, err := sw.w.Write(sw.s.Strip(b)); err != nil {
		return 0, err
	}
	return len(b), nil
}
