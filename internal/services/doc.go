// Package services holds the clients glance uses to talk to things outside the process.
//
// # Producer signals
//
// The primary instance tells the card producer two things: that it is ready for updates and that the state it
// was showing has expired. Both are one-way and best-effort.
//
//   - [NATSProducer] publishes them on the configured enable and expired subjects
//   - [LogProducer] only logs them, for setups without a broker
//
// # API client
//
// [APIService] makes requests against a running `glance serve`. The CLI uses it for push, state, dump and
// the lifecycle commands.
//
// # Error Handling
//
// Services use typed errors from the shared package:
//   - [shared.ErrServiceUnavailable] : broker or server unreachable
//   - [shared.ErrAPIRequest] : the server answered with a non-2xx status
package services
