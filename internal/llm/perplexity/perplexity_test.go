package perplexity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListModels(t *testing.T) {
	p := New("key")
	assert.Equal(t, "perplexity", p.Name())

	list, err := p.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sonar", list[0].ID)
}
