/*
Package strategy provides allocation strategies a flow node can be
configured with.

Single grants a fixed weight to one configured address. TokenWeighted grants
every account a weight equal to its stream balance.
*/
package strategy
