package biz

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestCount_Empty(t *testing.T) {
	counter := NewTokenCounter(zap.NewNop())
	assert.Equal(t, 0, counter.Count(""))
}

func TestCount_Additive(t *testing.T) {
	counter := NewTokenCounter(zap.NewNop())

	short := counter.Count("ground rent apportionment")
	long := counter.Count(strings.Repeat("ground rent apportionment ", 10))

	assert.Greater(t, short, 0)
	assert.Greater(t, long, short)
}

func TestCount_WordEstimateFallback(t *testing.T) {
	// A counter without an encoder estimates from the word count.
	counter := &TokenCounter{logger: zap.NewNop()}

	assert.Equal(t, 10, counter.Count("official copy of title register"))
	assert.Equal(t, 0, counter.Count("   "))
}

func TestCount_Stable(t *testing.T) {
	counter := NewTokenCounter(zap.NewNop())
	text := "the seller's solicitor has confirmed vacant possession on completion"

	assert.Equal(t, counter.Count(text), counter.Count(text))
}
