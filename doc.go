// Package filetransfer moves files between an old and a new file service in periodic
// batch cycles and keeps a ledger of every failed attempt.
//
// A cycle works as follows:
//  1. A RequestSelector returns the requests due at the cycle time, capped by the batch size.
//  2. The Daemon hands each request, one at a time and in order, to a Transferer.
//  3. A failure is classified into an ErrorRecord and stored through an ErrorRecorder;
//     neither the transfer failure nor a failure to store it stops the batch.
//  4. Every request leaves one line in the RunLog, published when the cycle ends.
//
// A batch size of zero or less means the cycle is unbounded.
//
// See the sqlstore package for the SQL request queue and error ledger, and filestore for
// the storage backends and the file switcher.
package filetransfer
