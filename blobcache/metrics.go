// Copyright (C) 2021 Alibaba Cloud. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package blobcache

import "github.com/prometheus/client_golang/prometheus"

// Metrics mirrors the counters cachedfile.rs increments directly
// (self.metrics.partial_hits.inc(), etc.), exposed through the shared
// prometheus registry.
type Metrics struct {
	PartialHits            prometheus.Counter
	WholeHits              prometheus.Counter
	PrefetchUnmergedChunks prometheus.Counter
	BufferedBackendSize    prometheus.Gauge
	BackendFetches         prometheus.Counter
}

// NewMetrics registers and returns the blob cache's metric set.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PartialHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blobcache_partial_hits_total",
			Help: "Reads served by CacheSlow (ready but requiring validation or decompression).",
		}),
		WholeHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blobcache_whole_hits_total",
			Help: "Reads served entirely by CacheFast (ready, uncompressed, no validation).",
		}),
		PrefetchUnmergedChunks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blobcache_prefetch_unmerged_chunks_total",
			Help: "Chunks prefetched individually because they could not be merged into a contiguous group.",
		}),
		BufferedBackendSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "blobcache_buffered_backend_bytes",
			Help: "Bytes currently held in backend-fetch buffers awaiting persist.",
		}),
		BackendFetches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blobcache_backend_fetches_total",
			Help: "Backend fetch calls issued (read or prefetch).",
		}),
	}
	reg.MustRegister(m.PartialHits, m.WholeHits, m.PrefetchUnmergedChunks, m.BufferedBackendSize, m.BackendFetches)
	return m
}
