// Package wsgate exposes a gateway hub over websockets.
//
// Clients connect to the handler with a signed token, either as the
// "token" query parameter or a bearer Authorization header. The token's
// claims name the member, and the member joins the hub on connect.
//
// Every frame is a JSON [Frame]. Clients send "message", "react" and
// "unreact" frames; the server answers with a "hello" frame describing the
// member, then a "delivery" frame for each public message and each direct
// message addressed to the member. A frame the hub rejects produces an
// "error" frame; the connection stays open.
package wsgate
