package kv

import (
	"encoding/json"
	"fmt"
	"github.com/spf13/cobra"
	"os"
)

var (
	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Sets the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := database.Update(args[0], args[1]); err != nil {
				return err
			}
			fmt.Println("set successfully")
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key] [default]",
		Short: "Reads the value for a key (or the default if the key was never set)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			def := ""
			if len(args) == 2 {
				def = args[1]
			}
			value, err := database.Get(key, def)
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, value=%s\n", key, value)
			return nil
		},
	}
	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Prints database statistics and metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := json.MarshalIndent(database.GetInfo(), "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))

			if withMetrics, _ := cmd.Flags().GetBool("metrics"); withMetrics {
				fmt.Println()
				database.WriteMetrics(os.Stdout)
			}
			return nil
		},
	}
)

func init() {
	infoCmd.Flags().Bool("metrics", false, "Also print the engine metrics in Prometheus text format")
}
