package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bergenCSV = `timestamp,temperature,humidity,wind_speed
2026-01-09T00:00:00Z,5.5,85,3.2
2026-01-09T01:00:00Z,5.2,87,3.0
`

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "weather.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRun_Stdout(t *testing.T) {
	input := writeInput(t, bergenCSV)
	var stdout, stderr bytes.Buffer

	err := run(context.Background(), []string{"-no-cache", input}, &stdout, &stderr)
	require.NoError(t, err, stderr.String())

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "timestamp,ttf", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "2026-01-09T00:00:00Z,6.0699"), lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "2026-01-09T01:00:00Z,5.7299"), lines[2])
	assert.Contains(t, stderr.String(), "danger_level=VERY_HIGH")
}

func TestRun_CachesInStoreDir(t *testing.T) {
	input := writeInput(t, bergenCSV)
	storeDir := filepath.Join(t.TempDir(), "cache")
	output := filepath.Join(t.TempDir(), "risk.csv")

	var stderr bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"-store", storeDir, input, output}, &bytes.Buffer{}, &stderr))
	assert.Contains(t, stderr.String(), "cached=false")

	first, err := os.ReadFile(output)
	require.NoError(t, err)

	shards, err := os.ReadDir(storeDir)
	require.NoError(t, err)
	assert.Len(t, shards, 1)

	stderr.Reset()
	require.NoError(t, run(context.Background(), []string{"-store", storeDir, input, output}, &bytes.Buffer{}, &stderr))
	assert.Contains(t, stderr.String(), "cached=true")

	second, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name    string
		args    func(t *testing.T) []string
		wantErr string
	}{
		{
			name:    "no arguments",
			args:    func(*testing.T) []string { return nil },
			wantErr: "usage",
		},
		{
			name:    "missing file",
			args:    func(t *testing.T) []string { return []string{"-no-cache", filepath.Join(t.TempDir(), "nope.csv")} },
			wantErr: "open input",
		},
		{
			name: "no data points",
			args: func(t *testing.T) []string {
				return []string{"-no-cache", writeInput(t, "timestamp,temperature,humidity,wind_speed\n")}
			},
			wantErr: "no data points",
		},
		{
			name: "out of order",
			args: func(t *testing.T) []string {
				in := "timestamp,temperature,humidity,wind_speed\n" +
					"2026-01-09T01:00:00Z,5,80,1\n" +
					"2026-01-09T00:00:00Z,5,80,1\n"
				return []string{"-no-cache", writeInput(t, in)}
			},
			wantErr: "observation 1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(context.Background(), tt.args(t), &bytes.Buffer{}, &bytes.Buffer{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
