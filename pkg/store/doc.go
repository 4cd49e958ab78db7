// Package store defines the persistence contracts consumed by the realtime
// core: payment vouchers, chat messages, notifications, GPS pings and live
// configuration values. Implementations open a short transaction per call
// and never hold one across a network wait.
//
// Optional persisted fields use explicit nullable types (pointers), resolved
// at compile time; there is no runtime presence probing.
package store
