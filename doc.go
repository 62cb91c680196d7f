// Package oscbridge exposes addressable control values received over the
// Open Sound Control protocol to a block-based, real-time consumer such as
// an audio render graph.
//
// A `Receiver` owns one UDP listener and a registry of path-like addresses
// (e.g. `/pitch`). Each registered address is backed by a control slot
// holding a previous and a target value. Incoming messages overwrite the
// slot's pending target; the render side pulls one block of samples per
// address per render period and the slot linearly ramps from its previous
// value to the target across exactly one block. Multiple messages landing
// on the same address within one block coalesce: only the most recent
// value is ever observable.
//
// ## Contexts
//
// Three contexts touch a `Receiver`:
//
//   - the network context delivers decoded messages and only ever holds a
//     slot lock for the duration of a single value write;
//   - the render context samples slots on a hard deadline and never
//     blocks, allocates, or performs I/O;
//   - the control context adds and removes addresses; the address table is
//     swapped copy-on-write so the other two contexts never wait on it.
//
// Closing a `Receiver` drains and joins its listener: once `Close`
// returns, no slot or handler can be reached again, even by datagrams
// that were in flight at close time.
//
// ## Typed data path
//
// Besides single-value control streams, `DataSender` and `DataReceiver`
// carry arbitrary-arity tuples of mixed types, constrained by a type
// signature string ("i" int32, "h" int64, "f" float32, "d" float64,
// "s" string). There is no sampling on this path: a matching message
// invokes the receiver's handler synchronously, and a handler panic is
// contained at the delivery boundary so the listener survives.
//
// The wire codec is [github.com/chabad360/go-osc/osc]. The protocol is
// fire-and-forget UDP: no retransmission and no cross-packet ordering is
// provided, which matches how OSC is typically deployed on a local
// network.
package oscbridge
