package merkletrie

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNbufRoundTripsChildrenAndValues(t *testing.T) {
	var h1, h2, v1 chainhash.Hash
	h1[0] = 1
	h2[0] = 2
	v1[0] = 9

	children := []childEntry{
		{edge: 'a', hash: h1},
		{edge: 'z', hash: h2},
	}
	values := []chainhash.Hash{v1}

	buf := newNbuf(children, values)

	require.Equal(t, 2, buf.numChildren())
	require.Equal(t, 1, buf.numValues())
	assert.True(t, buf.hasValue())

	assert.Equal(t, childEntry{edge: 'a', hash: h1}, buf.child(0))
	assert.Equal(t, childEntry{edge: 'z', hash: h2}, buf.child(1))
	assert.Equal(t, v1, buf.value(0))
}

func TestNbufWithNoChildrenOrValues(t *testing.T) {
	buf := newNbuf(nil, nil)
	assert.Equal(t, 0, buf.numChildren())
	assert.Equal(t, 0, buf.numValues())
	assert.False(t, buf.hasValue())
}

func TestNbufTreatsShortBufferAsEmpty(t *testing.T) {
	var buf nbuf
	assert.Equal(t, 0, buf.numChildren())
	assert.Equal(t, 0, buf.numValues())
}
