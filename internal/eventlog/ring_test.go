package eventlog

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRing_RetainsInOrderBeforeFull(t *testing.T) {
	r := NewRing(4)
	r.Record(Entry{Kind: KindStart, Subject: "a"})
	r.Record(Entry{Kind: KindRetry, Subject: "b"})

	snap := r.Snapshot()
	require.Len(t, snap, 2)
	require.Equal(t, "a", snap[0].Subject)
	require.Equal(t, "b", snap[1].Subject)
	require.False(t, snap[0].At.IsZero())
	require.Equal(t, 2, r.Len())
}

func TestRing_EvictsOldest(t *testing.T) {
	r := NewRing(3)
	for i := 0; i < 5; i++ {
		r.Record(Entry{Kind: KindProgress, Subject: fmt.Sprint(i)})
	}

	snap := r.Snapshot()
	require.Len(t, snap, 3)
	require.Equal(t, "2", snap[0].Subject)
	require.Equal(t, "3", snap[1].Subject)
	require.Equal(t, "4", snap[2].Subject)
	require.Equal(t, 3, r.Len())
	require.Equal(t, 3, r.Cap())
}

func TestRing_DefaultSize(t *testing.T) {
	require.Equal(t, DefaultSize, NewRing(0).Cap())
}

func TestRing_ConcurrentRecord(t *testing.T) {
	r := NewRing(50)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				r.Record(Entry{Kind: KindSuccess})
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 50, r.Len())
	require.Len(t, r.Snapshot(), 50)
}
