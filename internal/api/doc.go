// Package api provides the authenticated Kalshi REST client.
//
// REST endpoints:
//   - Production: https://api.elections.kalshi.com/trade-api/v2
//   - Demo: https://demo-api.kalshi.co/trade-api/v2
//
// Every request waits on the client's shared token bucket, is signed with a
// fresh timestamp, and is retried according to the client's RetryPolicy.
// List endpoints are cursor paginated; see Paginate.
package api
