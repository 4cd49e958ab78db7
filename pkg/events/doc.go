// Package events defines the core event contracts for the comanda realtime
// layer: the Event value type carried on the wire and in process, the
// Dispatcher used for in-process fan-out, and the Log that retains a bounded
// window of recent events for replay and inspection.
//
// Events are schemaless. The wire format is a flat JSON object with
// a mandatory "type" field; every other field is opaque payload data.
// Consumers must tolerate unknown fields and unknown type values.
package events
