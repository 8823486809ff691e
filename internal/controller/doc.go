// Package controller owns the live card state.
//
// A [Controller] is an actor with two [Looper]s:
//
//   - the background loop persists accepted updates, reads the store on reload, and sends producer signals
//   - the main loop owns [models.State], the subscriber list and the expiry [alarm.Alarm]
//
// Every mutation of state, subscribers or the alarm runs as a task on the main loop, so none of them need a lock.
// Updates travel background → main in post order. Store and transport I/O never run on the main loop.
//
// Lifecycle:
//
//	ingest      persist (or tombstone) on background, then apply on main
//	apply       decode the persisted wrapper, assign the slot, clear expired slots, refresh
//	refresh     cancel alarm, re-arm at the earliest deadline, notify subscribers in order
//	expire      clear expired slots; on change (or when forced) refresh and signal the producer
//
// Only the primary instance (user 0) talks to the producer.
package controller
