// Package codec encodes and decodes the card wire format with [protowire].
//
// There is no generated code. Field numbers are fixed constants in this package:
//
//	Update   1 repeated Card
//	Card     1 priority, 2 should_discard, 3 card_id, 4 pre_event, 5 during_event, 6 post_event,
//	         7 event_time_millis, 8 event_duration_millis, 9 expiry_criteria, 10 tap_action,
//	         11 card_type, 12 icon, 13 icon_grayscale
//	Message  1 title, 2 subtitle
//	Text     1 text, 2 repeated format_param {1 text, 2 args}
//	Wrapper  1 card, 2 publish_time_millis, 3 icon, 4 icon_grayscale
//
// [Wrapper] is the persisted form: the card bytes as received plus the publish time stamped by the gateway.
// Unknown fields are skipped. Truncated input and wrong wire types return [shared.ErrMalformedPayload].
package codec
