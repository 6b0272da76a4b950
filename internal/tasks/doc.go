// Package tasks holds the long-running and asynchronous work behind the CLI and the TUI.
//
// # Fetch units
//
// [Loader] models one data-fetching unit (a movie list, a detail page, the user's
// playlists) as idle → loading → success | error. Each request gets a sequence token from
// [Loader.Begin]; [Loader.Finish] applies a result only when its token is still the newest,
// so a slow superseded response is ignored. [Loader.Close] turns later completions into
// no-ops once the consumer is gone.
//
// # Playlist export
//
// [Exporter] joins a backend playlist with catalog details for each of its movies and
// writes the result through the formatter package. [Exporter.BulkExport] runs several
// exports on a bounded errgroup with a rate limiter, reports [ProgressUpdate] values on a
// non-blocking channel, and writes a manifest summarizing successes and failures.
package tasks
