// Package config defines the configuration for a tattle relay.
//
// Regardless of how the relay is started, directly from Go code or as a
// standalone process from the command line, it uses the Config object defined
// in this package to store and forward configuration options. On top of these
// options, the relay relies on a data directory, defined by Config.DataDir,
// which holds the journal database:
//
//	badger_db/ // the Badger database containing the durable message journal.
//
// A tattle.toml file in the data directory, read through viper, can override
// any option.
package config
