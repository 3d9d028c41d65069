package watch

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu  sync.Mutex
	got []int
}

func (r *recorder) add(v int) {
	r.mu.Lock()
	r.got = append(r.got, v)
	r.mu.Unlock()
}

func (r *recorder) values() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.got...)
}

func TestFeedDeliversInOrder(t *testing.T) {
	var f Feed[int]
	var a, b recorder
	cancelA := f.Subscribe(a.add)
	defer cancelA()
	cancelB := f.Subscribe(func(v int) {
		time.Sleep(time.Millisecond)
		b.add(v)
	})
	defer cancelB()

	want := make([]int, 50)
	for i := range want {
		want[i] = i
		f.Publish(i)
	}

	require.Eventually(t, func() bool { return len(a.values()) == 50 && len(b.values()) == 50 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, want, a.values())
	assert.Equal(t, want, b.values())
}

func TestFeedCancel(t *testing.T) {
	var f Feed[int]
	var r recorder
	cancel := f.Subscribe(r.add)

	f.Publish(1)
	require.Eventually(t, func() bool { return len(r.values()) == 1 }, time.Second, time.Millisecond)

	cancel()
	cancel()
	assert.Equal(t, 0, f.Len())

	f.Publish(2)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []int{1}, r.values())
}

func TestFeedClose(t *testing.T) {
	var f Feed[int]
	var r recorder
	f.Subscribe(r.add)
	f.Close()

	f.Publish(1)
	cancel := f.Subscribe(r.add)
	cancel()
	f.Publish(2)

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, r.values())
	assert.Equal(t, 0, f.Len())
}

func TestCell(t *testing.T) {
	c := NewCell(10)
	assert.Equal(t, 10, c.Get())

	var r recorder
	cancel := c.Subscribe(r.add)
	defer cancel()

	c.Set(11)
	got := c.Update(func(v int) int { return v * 2 })
	assert.Equal(t, 22, got)
	assert.Equal(t, 22, c.Get())

	require.Eventually(t, func() bool { return len(r.values()) == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, []int{11, 22}, r.values())
}
