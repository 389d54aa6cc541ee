package canonstate_test

import (
	"testing"

	"github.com/nspcc-dev/neo-exex/internal/chaintest"
	"github.com/nspcc-dev/neo-exex/pkg/core/canonstate"
	"github.com/nspcc-dev/neo-exex/pkg/core/primitives/neo"
	"github.com/nspcc-dev/neo-exex/pkg/util"
	"github.com/stretchr/testify/require"
)

func TestAccessors(t *testing.T) {
	var (
		a = chaintest.New(t, 1, 2, util.Uint256{})
		b = chaintest.Fork(t, a, 3)
	)

	var n canonstate.Notification[neo.Primitives] = &canonstate.Commit[neo.Primitives]{New: a}
	require.Same(t, a, n.Committed())
	require.Nil(t, n.Reverted())

	n = &canonstate.Reorg[neo.Primitives]{Old: a, New: b}
	require.Same(t, b, n.Committed())
	require.Same(t, a, n.Reverted())
}
