package kv

import (
	"encoding/json"
	"github.com/ValentinKolb/sKV/cmd/util"
	"github.com/ValentinKolb/sKV/lib/common"
	"github.com/ValentinKolb/sKV/lib/db"
	"github.com/ValentinKolb/sKV/lib/db/engines/birch"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
)

var (
	Logger = logger.GetLogger("cmd")

	database db.KVDB[string, string]

	// KeyValueCommands represents the KV command group
	KeyValueCommands = &cobra.Command{
		Use:                "kv",
		Short:              "Perform key-value operations on a local database",
		PersistentPreRunE:  openDatabase,
		PersistentPostRunE: closeDatabase,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add engine flags to the KV command
	util.SetupEngineFlags(KeyValueCommands)

	// Add subcommands
	KeyValueCommands.AddCommand(setCmd)
	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(infoCmd)
	KeyValueCommands.AddCommand(shellCmd)
	KeyValueCommands.AddCommand(perfTestCmd)
}

// openDatabase opens the birch database in the configured directory
func openDatabase(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	config := util.GetEngineConfig()
	if err := common.InitLoggers(config.LogLevel); err != nil {
		return err
	}

	opts := config.ToDBOptions()
	if config.CompactionInterval > 0 {
		opts.CompactionHook = logCompactionInfo
	}

	var err error
	database, err = birch.NewBirchDB[string, string](opts)
	return err
}

// closeDatabase stops the database after the subcommand finished
func closeDatabase(_ *cobra.Command, _ []string) error {
	if database == nil {
		return nil
	}
	return database.Stop()
}

// logCompactionInfo is the compaction hook of the cli, it only reports the layout
func logCompactionInfo(info birch.CompactionInfo) {
	data, err := json.Marshal(info)
	if err != nil {
		Logger.Warningf("failed to encode compaction info: %v", err)
		return
	}
	Logger.Infof("compaction info: %s", data)
}
