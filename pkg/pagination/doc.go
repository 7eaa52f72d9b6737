// Package pagination walks the pages of a registry dictionary until the
// registry signals the end of the data set.
//
// The registry does not report a trustworthy total, so the only completion
// signal is a short page: a page carrying fewer records than the requested
// page size is the last one.
//
// Example usage:
//
//	cfg := pagination.DefaultConfig()
//	downloader := pagination.NewDownloader(registryClient, cfg)
//	result, err := downloader.Download(ctx, "1.2.643.5.1.13.13.11.1040")
//
// The downloader:
//   - Requests pages 1, 2, 3, ... strictly in order
//   - Normalizes every row into a dictionary.Record
//   - Stops after the first page shorter than the page size
//   - Aborts on the first failed page and returns no partial data
//
// An always-full registry makes the loop run forever. Config.MaxPages bounds
// the walk when set; it is zero (unbounded) by default.
package pagination
