/*
Package datastore implements the Data Store on-disk layer (spec §4.4):
one XML file per (module, datastore) pair, loaded read-only under a
shared advisory lock and written only by the Commit Engine under an
exclusive one. The encoding is defined in xmlcodec.go.
*/
package datastore
