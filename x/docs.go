/*
Package x contains the extensions of flowtree.

Extensions implement handlers, decorators and tickers that are combined
together by the app package. The authentication helpers in this package are
shared by all of them.

	stream    the streaming ledger: accounts, pools, direct flows
	flow      distribution nodes, allocations and the child update queue
	strategy  allocation strategies that can be attached to a node
	utils     logging, recovery and savepoint decorators
*/
package x
