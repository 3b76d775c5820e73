/*
Package flow implements a tree of distribution nodes that continuously
redistribute an incoming rate of value.

Each node owns two stream pools. The baseline pool pays every active
recipient the same share. The bonus pool pays recipients proportionally to
the weight allocated to them by voters, using pluggable allocation
strategies. A part of the incoming rate can be streamed to a reward target.
The bonus part is scaled down when the allocated weight is below the
configured quorum.

A recipient can be an external address or another node. When the rate
streamed to a child node changes, the parent pushes the new rate to the
child. A single call pushes at most DrainCap rates. Remaining children are
kept in a pending queue that anyone can drain with later calls.

Before a stream to a child node or to the reward target is started or
increased, the receiver balance is topped up to the buffer required by the
stream primitive. When the node cannot afford it, the change is deferred
instead of failing the whole call.
*/
package flow
