/*
Package stream implements continuous payment streams.

An account can distribute value at a constant rate to a pool. Every member
of the pool receives a part of that rate proportional to its units. An
account can also stream to a single address directly.

Starting or increasing a stream locks a deposit of rate * BufferPeriod from
the distributor's balance. Streams are settled using the block time, each
time a pool or a flow is modified and at every tick. A distributor whose
balance drops below its locked deposit is liquidated: all of its streams
are stopped.
*/
package stream
