// Package syncstate keeps the history of batch sync runs in Redis.
//
// Every finished run is stored under its run ID for a week, and the most
// recent one is additionally kept under a fixed key so operators can ask
// "how did the last sync go?" without scanning:
//
//	nsi:sync:last          JSON of the last ingest.Report
//	nsi:sync:run:<run_id>  JSON of a specific run, expires after RunTTL
//
// The store is write-after-run history. Nothing in the download or save
// path reads from it.
package syncstate
