// Package models defines the card domain shared by the glance packages.
//
// The package contains three groups of types:
//
// 1. Card content: immutable values decoded from producer payloads
//   - [Card] : one decoded update with its messages, action, icon and expiry
//   - [Message] : a title/subtitle pair of [FormattedText] templates
//   - [Action] : an opaque tap target handed to the rendering side
//
// 2. Live state: owned by the controller's notification loop
//   - [Slot] : Primary or Secondary display position
//   - [State] : the two live slots with expiry bookkeeping
//
// 3. Transit: values that move between the gateway and the controller
//   - [PendingUpdate] : a classified, not yet applied update
//
// Cards are replaced wholesale and never mutated after construction.
// [State] carries no locking; only the controller's notification loop touches it.
package models
