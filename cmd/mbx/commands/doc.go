// Package commands wires the mbx CLI: flag parsing, backend construction
// and the init/send subcommands.
package commands
