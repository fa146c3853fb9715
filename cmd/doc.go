// Package cmd defines the inboxzero command line interface: the serve,
// watch, process, and version subcommands and the shared wiring that
// builds the service from configuration.
package cmd
