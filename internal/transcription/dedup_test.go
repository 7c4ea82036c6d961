package transcription

import (
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestDedup(window time.Duration) (*Deduplicator, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	d := NewDeduplicator(window)
	d.now = clock.now
	return d, clock
}

func final(text string, ts time.Time) Message {
	return Message{Text: text, Final: true, Timestamp: fn.Some(ts)}
}

func interim(text string) Message {
	return Message{Text: text, Final: false}
}

func TestDedupFinalDuplicates(t *testing.T) {
	d, clock := newTestDedup(0)
	ts := clock.t

	require.True(t, d.Accept(final("Bom dia a todos", ts)))
	require.False(t, d.Accept(final("bom  dia a TODOS ", ts)))
	require.True(t, d.Accept(final("vamos começar", ts)))
	require.Equal(t, 2, d.Live())
}

func TestDedupFinalAndInterimDiffer(t *testing.T) {
	d, clock := newTestDedup(0)
	ts := clock.t

	require.True(t, d.Accept(Message{Text: "sim", Timestamp: fn.Some(ts)}))
	require.True(t, d.Accept(final("sim", ts)))
}

func TestDedupWindowExpiry(t *testing.T) {
	d, clock := newTestDedup(10 * time.Second)
	ts := clock.t

	require.True(t, d.Accept(final("orçamento", ts)))

	clock.advance(9 * time.Second)
	require.False(t, d.Accept(final("orçamento", ts)))

	clock.advance(2 * time.Second)
	require.True(t, d.Accept(final("orçamento", ts)))
}

func TestDedupSweepsOnInsert(t *testing.T) {
	d, clock := newTestDedup(time.Second)

	d.Accept(final("a", clock.t))
	d.Accept(final("b", clock.t))
	require.Equal(t, 2, d.Live())

	clock.advance(5 * time.Second)
	d.Accept(final("c", clock.t))
	require.Equal(t, 1, d.Live())
}

func TestDedupMissingTimestampUsesCurrentSecond(t *testing.T) {
	d, clock := newTestDedup(0)
	msg := Message{Text: "metas", Final: true}

	require.True(t, d.Accept(msg))

	clock.advance(300 * time.Millisecond)
	require.False(t, d.Accept(msg))
}

func TestDedupInterimKeepsOnlyLatest(t *testing.T) {
	d, _ := newTestDedup(0)

	require.True(t, d.Accept(interim("vamos")))
	require.False(t, d.Accept(interim("vamos")))
	require.True(t, d.Accept(interim("vamos lá")))

	// Only the immediately prior interim is remembered.
	require.True(t, d.Accept(interim("vamos")))
}

func TestDedupReset(t *testing.T) {
	d, clock := newTestDedup(0)
	d.Accept(final("x", clock.t))

	d.Reset()
	require.Zero(t, d.Live())
	require.True(t, d.Accept(final("x", clock.t)))
}

// TestDedupAcceptsEachDistinctFinalOnce checks that within the window every
// normalized text is accepted exactly once, however often it is repeated.
func TestDedupAcceptsEachDistinctFinalOnce(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		d, clock := newTestDedup(0)
		ts := clock.t

		words := rapid.SliceOfN(
			rapid.SampledFrom([]string{"meta", "Meta", "META ", "plano", "risco"}),
			1, 40,
		).Draw(rt, "words")

		distinct := make(map[string]struct{})
		accepted := 0
		for _, w := range words {
			distinct[normalizeText(w)] = struct{}{}
			if d.Accept(final(w, ts)) {
				accepted++
			}
		}

		require.Equal(rt, len(distinct), accepted)
	})
}
