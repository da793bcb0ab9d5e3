package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jordanlanch/commercebi/pkg/testdata"
)

func newGenerateCmd(a *app) *cobra.Command {
	gen := testdata.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a synthetic set of raw extracts",
		Long:  "Generate customers, orders and campaigns with gofakeit and write them as raw CSV extracts into the raw directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.config()
			data := testdata.NewGenerator(gen).Generate()
			if err := data.WriteRaw(cfg.DataRawDir); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Raw extracts written to %s (seed %d)\n", cfg.DataRawDir, gen.Seed)
			table := newTable(out, "Table", "Rows")
			table.Append([]string{"orders", fmt.Sprint(len(data.Orders))})
			table.Append([]string{"customers", fmt.Sprint(len(data.Customers))})
			table.Append([]string{"products", fmt.Sprint(len(data.Products))})
			table.Append([]string{"campaigns", fmt.Sprint(len(data.Campaigns))})
			table.Render()
			return nil
		},
	}

	cmd.Flags().Int64Var(&gen.Seed, "seed", gen.Seed, "random seed")
	cmd.Flags().IntVar(&gen.Customers, "customers", gen.Customers, "number of customers")
	cmd.Flags().IntVar(&gen.Orders, "orders", gen.Orders, "number of orders")
	cmd.Flags().IntVar(&gen.Campaigns, "campaigns", gen.Campaigns, "number of campaigns")
	return cmd
}
