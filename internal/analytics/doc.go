// Package analytics derives period-scoped performance metrics from the
// local store: summary, daily and cumulative realized P&L, win rate,
// per-market breakdown and ROI against tracked capital flows.
//
// Money is int64 cents throughout. Percentages are computed with
// shopspring/decimal and rounded to two places, half away from zero.
package analytics
