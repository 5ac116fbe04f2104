package dma

// A Span is a range [Start, End) of element indices of a circular buffer.
type Span struct {
	Start uint16
	End   uint16
}

// Len returns the number of elements in the span.
func (s Span) Len() int {
	return int(s.End) - int(s.Start)
}

// NewSpans returns the elements written between two cursor readings of a
// buffer of count elements. A wrap yields two spans. More than one wrap
// between the readings cannot be detected. A finished normal transfer reads
// count as its current cursor.
func NewSpans(last, current, count uint16) []Span {
	if count == 0 || last == current {
		return nil
	}

	if current > last {
		return []Span{{Start: last, End: current}}
	}

	spans := []Span{{Start: last, End: count}}
	if current > 0 {
		spans = append(spans, Span{Start: 0, End: current})
	}

	return spans
}

// A CursorReader tells where the hardware is in a circular buffer.
type CursorReader interface {
	Cursor(ch ChannelID) (uint16, error)
}

// Ring consumes a circular transfer. Every Poll returns the spans written
// since the previous Poll. Poll must be called at least once per wrap.
type Ring struct {
	src   CursorReader
	ch    ChannelID
	count uint16
	last  uint16
}

// NewRing creates a Ring over a channel configured for count elements.
func NewRing(src CursorReader, ch ChannelID, count uint16) *Ring {
	return &Ring{
		src:   src,
		ch:    ch,
		count: count,
	}
}

// Poll returns the spans written since the previous Poll.
func (r *Ring) Poll() ([]Span, error) {
	cur, err := r.src.Cursor(r.ch)
	if err != nil {
		return nil, err
	}

	spans := NewSpans(r.last, cur, r.count)
	r.last = cur

	return spans, nil
}

// Last returns the cursor seen by the previous Poll.
func (r *Ring) Last() uint16 {
	return r.last
}

// Rewind forgets the previous readings, for a transfer that restarts at
// the beginning of the buffer.
func (r *Ring) Rewind() {
	r.last = 0
}
