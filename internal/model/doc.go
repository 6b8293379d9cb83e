// Package model defines the shared data types used across the tracker.
//
// Conventions:
//   - Money: int64 cents. Contract prices are cents in [0, 100].
//   - Timestamps: time.Time in UTC.
//   - IDs: venue-assigned strings for fills and settlements, int64 for
//     locally created rows (snapshots, transactions).
package model
