package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signaltap/backend"
	"signaltap/config"
	"signaltap/simulator"
	"signaltap/tagfilter"
)

func TestWithLogDebugDefault(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"absent", []string{"-no-tui"}, []string{"-no-tui"}},
		{"bare at end", []string{"-no-tui", "-log-debug"}, []string{"-no-tui", "-log-debug", "all"}},
		{"bare before flag", []string{"--log-debug", "-no-tui"}, []string{"--log-debug", "all", "-no-tui"}},
		{"with value", []string{"-log-debug", "plcman"}, []string{"-log-debug", "plcman"}},
		{"with equals", []string{"-log-debug=mqtt"}, []string{"-log-debug=mqtt"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, withLogDebugDefault(tt.args))
		})
	}
}

func TestSplitTypes(t *testing.T) {
	assert.Nil(t, splitTypes(""))
	assert.Equal(t, []string{"BOOL", "DINT"}, splitTypes(" bool, ,dint "))
}

func newSimClient(t *testing.T) *backend.Client {
	t.Helper()
	sim := simulator.NewServer(simulator.NewPLC("10.0.0.99"))
	ts := httptest.NewServer(sim.Handler())
	t.Cleanup(ts.Close)
	return backend.NewClient(ts.URL+"/api", time.Second)
}

func TestSnapshotOnce(t *testing.T) {
	client := newSimClient(t)
	target := config.TargetConfig{Address: "192.168.1.10"}

	t.Run("all tags", func(t *testing.T) {
		rows, total, err := snapshotOnce(context.Background(), client, target, tagfilter.NewFilterState(nil))
		require.NoError(t, err)
		assert.Equal(t, 11, total)
		assert.Len(t, rows, 11)
		for _, r := range rows {
			assert.True(t, r.HasValue, r.Name)
		}
	})

	t.Run("filtered", func(t *testing.T) {
		state := tagfilter.NewFilterState([]string{"BOOL"})
		rows, total, err := snapshotOnce(context.Background(), client, target, state)
		require.NoError(t, err)
		assert.Equal(t, 11, total)
		require.Len(t, rows, 2)
		assert.Equal(t, "PumpStatus", rows[0].Name)
		assert.Equal(t, "AlarmActive", rows[1].Name)
	})

	t.Run("hide unreadable", func(t *testing.T) {
		state := tagfilter.NewFilterState(nil)
		state.HideUnreadable = true
		rows, _, err := snapshotOnce(context.Background(), client, target, state)
		require.NoError(t, err)
		assert.Len(t, rows, 10)
	})

	t.Run("offline plc", func(t *testing.T) {
		_, _, err := snapshotOnce(context.Background(), client, config.TargetConfig{Address: "10.0.0.99"}, tagfilter.NewFilterState(nil))
		var scanErr *backend.ScanError
		require.ErrorAs(t, err, &scanErr)
		assert.Contains(t, scanErr.Message, "10.0.0.99")
	})
}

func TestPrintRows(t *testing.T) {
	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		printRows(&buf, []tagfilter.Row{
			{Name: "MotorSpeed", Type: "REAL", Value: "1.5", HasValue: true},
			{Name: "PumpStatus", Type: "BOOL", Value: "true", HasValue: true},
		}, 5)

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 4)
		assert.Equal(t, "NAME        TYPE  VALUE", lines[0])
		assert.Equal(t, "MotorSpeed  REAL  1.5", lines[1])
		assert.Equal(t, "2 of 5 tags shown", lines[3])
	})

	t.Run("no tags", func(t *testing.T) {
		var buf bytes.Buffer
		printRows(&buf, nil, 0)
		assert.Equal(t, "No tags found.\n", buf.String())
	})
}
