/*
Package observability provides tools for monitoring Docket documents.

Everything here plugs into domain.LifecycleHooks or wraps Dispatch, so the
core never depends on a metrics or tracing backend.

  - Metrics: Prometheus counters and histograms fed by lifecycle hooks.
  - LoggingHooks: structured slog records for every dispatch and mutation.
  - MultiHooks: fan-out of several hook sets.
  - Tracer: OpenTelemetry spans around Document.Dispatch.
*/
package observability
