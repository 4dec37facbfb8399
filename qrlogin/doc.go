// Package qrlogin drives the client side of the QR-code login handshake.
//
// A Controller asks the backend for a QR session, then runs one loop per
// session with two arms: a one-second expiry countdown and a fixed-interval
// status poll. The first terminal status wins. On confirmation the issued
// credentials are persisted exactly once and the user is redirected.
//
// All mutations of a session happen on its loop goroutine and are guarded by
// the session token in a qrsession.Store, so replacing a session (Refresh) or
// tearing the controller down (Close) can never let a superseded loop touch
// the new session.
//
// When the countdown reaches zero in the same tick as a poll, the poll's
// result is awaited until the next countdown tick and a confirmed result
// takes precedence over expiry.
package qrlogin
