// Package metrics records card pipeline counters.
//
// Components take a [Recorder] and default to [NoopRecorder]. [PrometheusRecorder] registers its collectors on
// a caller-supplied registry, and [HTTPHandler] exposes that registry for scraping.
package metrics
