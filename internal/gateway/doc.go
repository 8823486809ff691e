// Package gateway is the ingestion entry point for producer payloads.
//
// A payload arrives with [Meta] describing who it is for and whether it has already been rebroadcast.
// Instances running for a secondary user never decode: they rebroadcast once, tagged as forwarded, so the
// primary instance can pick it up. The primary instance decodes the Update, classifies each card into a slot by
// its priority and hands a [models.PendingUpdate] per card to the controller, in payload order.
//
// Payloads reach the gateway over NATS ([NATSTransport]) or the HTTP API (see internal/server).
package gateway
