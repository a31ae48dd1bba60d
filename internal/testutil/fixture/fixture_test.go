package fixture

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescriptor(t *testing.T) {
	desc := Descriptor(t, "descale/v1.0.0/release")
	assert.Equal(t, "descale/v1.0.0/release", desc.Key().String())
}

func TestOpenStore(t *testing.T) {
	s := OpenStore(t)
	seq, err := s.GetLastSeq(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq)
}
