package cmd

import (
	"testing"
	"time"

	"github.com/serverlessresearch/s3store/pkg/objstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTags(t *testing.T) {
	tags, err := parseTags("")
	require.NoError(t, err)
	assert.Equal(t, 0, tags.Len())

	tags, err = parseTags("team=storage,expr=a=b,empty=")
	require.NoError(t, err)
	assert.Equal(t, "team=storage&expr=a%3Db&empty=", tags.Encoded())

	_, err = parseTags("novalue")
	assert.Error(t, err)
	_, err = parseTags("=v")
	assert.Error(t, err)
}

func TestParseRange(t *testing.T) {
	r, err := parseRange("")
	require.NoError(t, err)
	assert.Nil(t, r)

	r, err = parseRange("10:20")
	require.NoError(t, err)
	assert.Equal(t, &objstore.Range{Start: 10, End: 20}, r)

	for _, bad := range []string{"10", "a:5", "5:b", "5:5", "9:3", "-1:4"} {
		_, err = parseRange(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseTime(t *testing.T) {
	ts, err := parseTime("")
	require.NoError(t, err)
	assert.True(t, ts.IsZero())

	ts, err = parseTime("2021-03-04T10:30:00.123Z")
	require.NoError(t, err)
	assert.True(t, ts.Equal(time.Date(2021, time.March, 4, 10, 30, 0, 123000000, time.UTC)))

	_, err = parseTime("yesterday")
	assert.Error(t, err)
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"get", "head", "put", "rm", "cp", "ls", "upload", "abort"} {
		assert.True(t, names[want], want)
	}
}
