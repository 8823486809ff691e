// Package ui implements the watch terminal interface using bubbletea's Elm architecture.
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Events arrive from a running server's websocket stream through a [Stream] and are folded into two card panels,
// a privacy indicator and a scrollback list of recent events.
//
// Keys send lifecycle actions back to the server (p, r, e, t) and q quits. Help is displayed via charmbracelet/bubbles/help.
package ui
