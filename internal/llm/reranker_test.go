package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRank_ParsesAndCompletes(t *testing.T) {
	r := NewSimpleLLMReranker(&MockLLMClient{Response: "2, 0, 2, 7"})

	order, err := r.Rank(context.Background(), "verizon", []string{"a", "b", "c"})

	require.NoError(t, err)
	assert.Equal(t, []int{2, 0, 1}, order)
}

func TestRank_FallbackOnError(t *testing.T) {
	r := NewSimpleLLMReranker(&MockLLMClient{Err: errors.New("down")})

	order, err := r.Rank(context.Background(), "q", []string{"a", "b", "c"})

	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestRank_TrivialInputsSkipLLM(t *testing.T) {
	m := &MockLLMClient{}
	r := NewSimpleLLMReranker(m)

	order, _ := r.Rank(context.Background(), "q", nil)
	assert.Nil(t, order)

	order, _ = r.Rank(context.Background(), "q", []string{"only"})
	assert.Equal(t, []int{0}, order)
	assert.Equal(t, 0, m.Calls())
}
