// Copyright (c) 2024 Kata Containers contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package sandbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunOOMEventMonitorForwardsAndCompletes(t *testing.T) {
	s := newTestSandbox()
	rx := make(chan struct{})

	done := make(chan struct{})
	go func() {
		s.RunOOMEventMonitor(rx, "c1")
		close(done)
	}()

	rx <- struct{}{}

	select {
	case evt := <-s.Events():
		assert.Equal(t, "c1", evt)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for forwarded OOM event")
	}

	close(rx)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not exit after rx closed")
	}

	require.NotNil(t, s.Metrics)
	assert.Equal(t, float64(1), testutilCounterValue(t, s.Metrics.OOMEventsTotal))
}
