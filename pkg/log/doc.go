/*
Package log provides structured logging for yangstore using zerolog.

A single global Logger is initialized once via Init and then narrowed
per component with WithComponent/WithSession/WithModule/WithDatastore/
WithCommit so that commit-pipeline and dispatcher logs carry enough
context to correlate a session's operations with the commit they
eventually land in, without threading a logger through every call.
*/
package log
