package wsconn

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnqueue(t *testing.T) {
	c := New(nil, 2)

	assert.NotEmpty(t, c.Id())
	assert.True(t, c.Enqueue([]byte("a")))
	assert.True(t, c.Enqueue([]byte("b")))
	assert.False(t, c.Enqueue([]byte("c")), "full queue must drop")

	assert.Equal(t, []byte("a"), <-c.Outbound())
	assert.True(t, c.Enqueue([]byte("d")))
}

func TestEnqueueAfterClose(t *testing.T) {
	c := New(nil, 4)
	c.Close()
	c.Close()

	assert.False(t, c.Enqueue([]byte("a")))

	select {
	case <-c.Done():
	default:
		t.Fatal("done must be closed")
	}
}

func TestUniqueIds(t *testing.T) {
	assert.NotEqual(t, New(nil, 1).Id(), New(nil, 1).Id())
}
