// Package ingest copies fills and settlements from the venue into the local
// store.
//
// Each stream is swept page by page. A page's rows and the cursor that
// resumes after it commit together, so an interrupted sweep picks up where
// it stopped. A fresh sweep starts at the newest stored timestamp; inserts
// ignore ids already present, so overlap at the boundary is harmless.
package ingest
