package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestBreakerTripsAfterConsecutiveFailures(t *testing.T) {
	b := New[int](Config{Name: "test", ConsecutiveFailures: 2, OpenTimeout: time.Minute})

	calls := 0
	fail := func() (int, error) {
		calls++
		return 0, errBoom
	}

	_, err := b.Execute(fail)
	assert.ErrorIs(t, err, errBoom)
	_, err = b.Execute(fail)
	assert.ErrorIs(t, err, errBoom)

	_, err = b.Execute(fail)
	assert.ErrorIs(t, err, ErrOpen)
	assert.Equal(t, 2, calls, "open breaker must not run the call")
	assert.Equal(t, "open", b.State())
}

func TestBreakerPassesResults(t *testing.T) {
	b := New[string](DefaultConfig("ok"))

	res, err := b.Execute(func() (string, error) { return "quote", nil })
	require.NoError(t, err)
	assert.Equal(t, "quote", res)
	assert.Equal(t, "closed", b.State())
}

func TestBreakerIgnoresSuccessfulErrors(t *testing.T) {
	errClient := errors.New("bad request")
	b := New[int](Config{
		Name:                "client-errors",
		ConsecutiveFailures: 1,
		OpenTimeout:         time.Minute,
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errClient)
		},
	})

	for i := 0; i < 3; i++ {
		_, err := b.Execute(func() (int, error) { return 0, errClient })
		assert.ErrorIs(t, err, errClient)
	}
	assert.Equal(t, "closed", b.State())
}
