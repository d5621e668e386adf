package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTimeParsing(t *testing.T) {
	assert := assert.New(t)

	good := []string{
		"2023-07-19T21:54:14.165300Z",
		"2023-07-19T21:54:14.163Z",
		"2023-07-19T21:52:02.000+00:00",
		"2023-07-19T21:52:02.123456+00:00",
		"2023-09-13T11:23:33+09:00",
		"2023-09-13T11:23:33.123456789Z",
	}
	for _, g := range good {
		_, err := ParseTimestamp(g)
		assert.NoError(err, g)
	}

	ts, err := ParseTimestamp("2023-09-13T11:23:33+09:00")
	assert.NoError(err)
	assert.Equal(2, ts.Hour())

	bad := []string{
		"",
		"yesterday",
		"2023-09-13",
	}
	for _, b := range bad {
		_, err := ParseTimestamp(b)
		assert.Error(err, b)
	}
}
