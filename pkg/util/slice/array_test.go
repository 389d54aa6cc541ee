package slice

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCopy(t *testing.T) {
	require.Nil(t, Copy(nil))

	empty := Copy([]byte{})
	require.NotNil(t, empty)
	require.Len(t, empty, 0)

	src := []byte{1, 2, 3}
	dst := Copy(src)
	require.Equal(t, src, dst)
	dst[0] = 0
	require.Equal(t, byte(1), src[0])
}
