package bufpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetSizing(t *testing.T) {
	for _, sz := range []int{1, Size64k, Size64k + 1, Size256k, Size1m} {
		buf := Get(sz)
		assert.Len(t, buf, sz)
		Put(buf)
	}
}

func TestRoundTripReuse(t *testing.T) {
	b1 := Get(Size64k)
	b1[0] = 0xAB
	Put(b1)

	b2 := Get(Size64k)
	assert.Equal(t, Size64k, len(b2))
	Put(b2)
}
