// Package cli constructs the dedeploy command-line interface. It wires the
// Cobra command hierarchy to the layered configuration loader (embedded
// defaults, config file, dotenv files, environment) and to the zap logger
// shared by every subcommand.
package cli
