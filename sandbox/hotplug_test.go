// Copyright (c) 2024 Kata Containers contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package sandbox

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOnlineRanges(t *testing.T) {
	cases := map[string]int{
		"":        0,
		"0":       1,
		"0-3":     4,
		"0-3,6":   5,
		"0,2,4":   3,
		"0-1,4-7": 6,
	}
	for input, want := range cases {
		got, err := parseOnlineRanges(input)
		require.NoError(t, err)
		assert.Equal(t, want, got, "input %q", input)
	}
}

func TestParseOnlineRangesInvalid(t *testing.T) {
	_, err := parseOnlineRanges("x-y")
	assert.Error(t, err)
}

// TestOnlineResourcesBringsUpRequestedCount fakes a sysfs layout with
// cpuN/online files and verifies OnlineResources flips enough of them to
// "1" to satisfy the request, stopping once satisfied.
func TestOnlineResourcesBringsUpRequestedCount(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 4; i++ {
		cpuDir := filepath.Join(root, "cpu"+itoa(i))
		require.NoError(t, os.MkdirAll(cpuDir, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(cpuDir, "online"), []byte("0"), 0644))
	}

	s := newTestSandbox()
	s.Config.HotplugMaxRetries = 3
	s.Config.HotplugPollInterval = time.Millisecond

	onlined, err := s.OnlineResources(context.Background(), root, "cpu[0-9]*", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, onlined)
}

func itoa(i int) string {
	return string(rune('0' + i))
}
