package tablemeta

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingFetcher struct {
	calls int32
	delay time.Duration
}

func (f *countingFetcher) FetchTableMeta(schema, table string) (TbMeta, error) {
	atomic.AddInt32(&f.calls, 1)
	time.Sleep(f.delay)
	return TbMeta{Schema: schema, Table: table, IDCols: []string{"id"}}, nil
}

func TestGetCachesAfterFirstFetch(t *testing.T) {
	fetcher := &countingFetcher{}
	c := New(fetcher)

	_, err := c.Get("public", "orders")
	require.NoError(t, err)
	_, err = c.Get("public", "orders")
	require.NoError(t, err)
	require.EqualValues(t, 1, atomic.LoadInt32(&fetcher.calls))
}

func TestGetCollapsesConcurrentMisses(t *testing.T) {
	fetcher := &countingFetcher{delay: 30 * time.Millisecond}
	c := New(fetcher)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Get("public", "orders")
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, atomic.LoadInt32(&fetcher.calls))
}

func TestInvalidateForcesRefetch(t *testing.T) {
	fetcher := &countingFetcher{}
	c := New(fetcher)

	_, err := c.Get("public", "orders")
	require.NoError(t, err)
	c.Invalidate("public", "orders")
	_, err = c.Get("public", "orders")
	require.NoError(t, err)
	require.EqualValues(t, 2, atomic.LoadInt32(&fetcher.calls))
}

func TestGetIsolatesDistinctTables(t *testing.T) {
	fetcher := &countingFetcher{}
	c := New(fetcher)

	_, err := c.Get("public", "orders")
	require.NoError(t, err)
	_, err = c.Get("public", "users")
	require.NoError(t, err)
	require.EqualValues(t, 2, atomic.LoadInt32(&fetcher.calls))
}
