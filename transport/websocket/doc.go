// Package websocket carries the real-time puzzle protocol. A single Hub
// loop owns all connections and processes piece intents one at a time,
// which is what gives grab contention its first-wins semantics. Clients
// speak a small event envelope ({"event": ..., "data": ...}); the server
// echoes only the mutations it actually applied.
package websocket
