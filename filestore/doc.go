// Package filestore provides the file services requests are transferred between
// and the Switcher that performs a single transfer.
package filestore
