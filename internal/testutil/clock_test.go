package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSteppingTimeSource_Advances(t *testing.T) {
	src := NewSteppingTimeSource(Epoch, time.Second)

	t0 := src.Now()
	t1 := src.Now()
	t2 := src.Now()

	assert.Equal(t, Epoch, t0)
	assert.Equal(t, time.Second, t1.Sub(t0))
	assert.Equal(t, time.Second, t2.Sub(t1))
}

func TestSteppingTimeSource_Reset(t *testing.T) {
	src := NewDefaultTimeSource()

	first := src.Now()
	src.Now()
	src.Now()

	src.Reset()
	assert.Equal(t, first, src.Now())
}
