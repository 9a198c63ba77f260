package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_StartStopIdempotent(t *testing.T) {
	st := newFakeStore()
	w := NewWatcher(st, "douyin")

	w.Stop()
	assert.False(t, w.Started())

	w.Start()
	w.Start()
	assert.True(t, w.Started())
	assert.Equal(t, 1, st.subscribeCount())

	w.Stop()
	w.Stop()
	assert.False(t, w.Started())
	assert.Equal(t, 0, st.subscribed())
}

func TestWatcher_PublishesFilteredBatch(t *testing.T) {
	st := newFakeStore()
	w := NewWatcher(st, "douyin")
	w.Start()
	defer w.Stop()

	st.set(append(makeCookies(2, ".douyin.com"), makeCookies(3, ".example.com")...)...)

	select {
	case batch := <-w.Batches():
		assert.Len(t, batch, 2)
		for _, c := range batch {
			assert.Equal(t, ".douyin.com", c.Domain)
		}
	case <-time.After(waitFor):
		t.Fatal("no batch")
	}
}

func TestWatcher_NoBatchWhenStopped(t *testing.T) {
	st := newFakeStore()
	w := NewWatcher(st, "douyin")
	w.Start()
	w.Stop()

	st.set(makeCookies(10, ".douyin.com")...)
	select {
	case <-w.Batches():
		t.Fatal("batch delivered after Stop")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWatcher_Purge(t *testing.T) {
	st := newFakeStore(append(makeCookies(4, ".douyin.com"), Cookie{Name: "keep", Domain: ".example.com"})...)
	w := NewWatcher(st, "douyin")

	require.NoError(t, w.Purge(context.Background()))
	assert.Equal(t, 4, st.deletedCount())

	left, err := st.GetAllCookies(context.Background())
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "keep", left[0].Name)
}

func TestWatcher_SnapshotError(t *testing.T) {
	st := newFakeStore()
	st.getErr = errors.New("target closed")
	w := NewWatcher(st, "douyin")

	_, err := w.Snapshot(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target closed")
	require.Error(t, w.Purge(context.Background()))
}

func TestCookie_Helpers(t *testing.T) {
	a := Cookie{Name: "ttwid", Value: "1", Domain: ".douyin.com"}
	b := Cookie{Name: "ttwid", Value: "2", Domain: ".douyin.com"}
	c := Cookie{Name: "ttwid", Value: "1", Domain: "live.douyin.com"}

	assert.True(t, a.Same(b))
	assert.False(t, a.Same(c))
	assert.Equal(t, "ttwid=1;ttwid=2;", CookieHeader([]Cookie{a, b}))
	assert.Empty(t, CookieHeader(nil))
	assert.Len(t, FilterDomain([]Cookie{a, {Name: "x", Domain: "example.com"}}, "douyin"), 1)
}

func TestMultiObserver(t *testing.T) {
	var got []EventKind
	fn := ObserverFunc(func(_ context.Context, ev Event) { got = append(got, ev.Kind) })
	m := NewMultiObserver(fn)
	m.Add(fn)

	m.OnEvent(context.Background(), Event{Kind: EventReady})
	assert.Equal(t, []EventKind{EventReady, EventReady}, got)
}
