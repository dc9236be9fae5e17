package llm

import "time"

// FlushPolicy bounds how streamed LLM deltas are batched into session
// events, spec §9's "Streaming LLM deltas... consume provider streams,
// coalesce into fixed-size text chunks bounded by {flushChars, flushMs,
// maxEvents, maxChars}, forward as session events."
type FlushPolicy struct {
	FlushChars int
	FlushMs    time.Duration
	MaxEvents  int
	MaxChars   int
}

// DefaultFlushPolicy matches the route-budget style defaults spec §5 uses
// elsewhere (small, human-perceptible flush windows).
var DefaultFlushPolicy = FlushPolicy{
	FlushChars: 200,
	FlushMs:    250 * time.Millisecond,
	MaxEvents:  50,
	MaxChars:   20000,
}

// Coalescer accumulates streamed text deltas and decides, per delta,
// whether the buffered text should flush as one session event. It is
// deadline-agnostic: callers that drive a real provider SSE stream pair it
// with their own ticker for the FlushMs bound; this type only enforces the
// size-based bounds (FlushChars, MaxChars) and the event-count cap
// (MaxEvents).
type Coalescer struct {
	policy     FlushPolicy
	buf        []byte
	totalChars int
	events     int
}

func NewCoalescer(policy FlushPolicy) *Coalescer {
	return &Coalescer{policy: policy}
}

// Add appends delta to the buffer and reports whether the caller should
// flush now (size bound reached) along with the text to flush.
func (c *Coalescer) Add(delta string) (flush bool, text string) {
	c.buf = append(c.buf, delta...)
	if len(c.buf) >= c.policy.FlushChars {
		return c.Flush()
	}
	return false, ""
}

// Flush drains the buffer unconditionally (used on a FlushMs tick or
// stream completion). It returns true with the drained text when the buffer
// held any, and false with "" when it was empty; the MaxEvents/MaxChars
// limits are reported separately by Exhausted.
func (c *Coalescer) Flush() (bool, string) {
	if len(c.buf) == 0 {
		return false, ""
	}
	text := string(c.buf)
	c.buf = c.buf[:0]
	c.totalChars += len(text)
	c.events++
	return true, text
}

// Exhausted reports whether MaxEvents or MaxChars has been reached; the
// caller should stop forwarding further deltas as session events (the
// underlying stream may still be drained to completion).
func (c *Coalescer) Exhausted() bool {
	return c.events >= c.policy.MaxEvents || c.totalChars >= c.policy.MaxChars
}
