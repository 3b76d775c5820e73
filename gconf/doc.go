/*
Package gconf implements a configuration store intended to be used as a
global, in-database configuration.

Each extension keeps a single configuration object under the "_c:<pkg>"
key. The object is loaded from the genesis file (opts["conf"][pkg]) and can
later be patched by its owner with a message carrying a "Patch" field of the
configuration type.

Not being able to load a configuration is a critical condition for the
extension. Handlers return the error and the message fails.
*/
package gconf
