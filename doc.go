/*
Package flowtree defines interfaces used throughout the engine, such as:
storage, messages, handlers and context helpers.

The engine continuously redistributes an incoming flow rate across a
weighted, curated set of recipients. Recipients may be nested distribution
nodes, so the distribution forms a tree. The distribution logic lives in the
x/flow extension, the streaming primitive it relies on in x/stream and
example allocation strategies in x/strategy.

Every state transition is expressed as a message (Msg) routed to a Handler.
A handler receives a KVStore that is a cache wrap of the real storage, so
that all of its changes are applied atomically or not at all.
*/
package flowtree
