// Package cmd implements the command-line interface for the sKV key-value
// store. It opens a local birch database and exposes its operations.
//
// The package is organized into several subpackages:
//
//   - kv: Commands for key-value operations (set, get, info, shell, perf)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// All engine flags can also be set as environment variables with the SKV_
// prefix (e.g. SKV_DATA_DIR), also read from .env and .env.local.
//
// See skv -help for a list of all commands.
package cmd
