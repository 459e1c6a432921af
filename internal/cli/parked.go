package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/randalmurphal/eventbus/pkg/eventbus/parking"
)

func newParkedCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parked",
		Short: "List events that left the bus undelivered",
		Example: `  eventbus parked --db parked.db
  eventbus parked --db parked.db --tag demo.tick --limit 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParked(cmd, v)
		},
	}

	flags := cmd.Flags()
	flags.String("db", "", "SQLite parking database")
	flags.Int("limit", 20, "Maximum records to show (0 shows all)")
	flags.String("tag", "", "Only show this type tag")
	_ = v.BindPFlag("db", flags.Lookup("db"))
	_ = v.BindPFlag("limit", flags.Lookup("limit"))
	_ = v.BindPFlag("tag", flags.Lookup("tag"))

	return cmd
}

func runParked(cmd *cobra.Command, v *viper.Viper) error {
	path := v.GetString("db")
	if path == "" {
		return errors.New("--db is required")
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("open parking database: %w", err)
	}

	store, err := parking.NewSQLiteStore(path)
	if err != nil {
		return err
	}
	defer store.Close()

	limit := v.GetInt("limit")
	tag := v.GetString("tag")

	var records []parking.Record
	var total int
	if tag != "" {
		all, err := store.ListByTag(tag, 0)
		if err != nil {
			return err
		}
		total = len(all)
		records = all
		if limit > 0 && len(records) > limit {
			records = records[:limit]
		}
	} else {
		if records, err = store.List(limit); err != nil {
			return err
		}
		if total, err = store.Count(); err != nil {
			return err
		}
	}

	printRecords(cmd.OutOrStdout(), total, records)
	return nil
}
