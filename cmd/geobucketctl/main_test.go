package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		output = "json"
		statsPeriod, statsLimit, statsBuckets = "", 50, true
		normalizeCorpus = false
		app = nil
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestSeedCommand(t *testing.T) {
	out, err := execute(t, "seed")
	require.NoError(t, err)

	var res map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.EqualValues(t, 18, res["buckets_created"])
	assert.EqualValues(t, 13, res["properties_added"])
}

func TestNormalizeCommand_YAML(t *testing.T) {
	out, err := execute(t, "normalize", "Sangotedo, Estate", "-o", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "normalized: sangotedo")
	assert.Contains(t, out, "cleaned: sangotedo, estate")
}

func TestResolveCommand(t *testing.T) {
	out, err := execute(t, "resolve", "Badagry", "6.415", "2.881", "-o", "json")
	require.NoError(t, err)

	var res map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "created", res["outcome"])
}

func TestCommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bad latitude", []string{"resolve", "Yaba", "north", "3.38"}},
		{"out of range", []string{"resolve", "Yaba", "95", "3.38"}},
		{"bad output", []string{"stats", "-o", "xml"}},
		{"bad period", []string{"stats", "--time-period", "week"}},
		{"missing bucket", []string{"similar", "nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			assert.Error(t, err)
		})
	}
}
