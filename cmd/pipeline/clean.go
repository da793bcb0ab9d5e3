package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jordanlanch/commercebi/pkg/attribution"
	"github.com/jordanlanch/commercebi/pkg/domain"
	"github.com/jordanlanch/commercebi/pkg/ingest"
	"github.com/jordanlanch/commercebi/pkg/storage"
)

func readTable[T any](dir string, files map[string]string, table string, clean func(io.Reader) (*ingest.Result[T], error)) (*ingest.Result[T], error) {
	f, err := ingest.Open(dir, files, table)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return clean(f)
}

// cleanTable cleans one raw extract into the cleaned directory. A missing file or
// schema violation is reported in the returned status rather than as an error.
func cleanTable[T any](rawDir, cleanedDir, table string, clean func(io.Reader) (*ingest.Result[T], error), write func(io.Writer, []T) error) ([]string, error) {
	res, err := readTable(rawDir, ingest.RawFiles, table, clean)
	if err != nil {
		if domain.IsMissingSource(err) || domain.IsSchemaViolation(err) {
			return []string{table, "-", "-", "-", "skipped: " + err.Error()}, nil
		}
		return nil, err
	}

	var buf bytes.Buffer
	if err := write(&buf, res.Rows); err != nil {
		return nil, fmt.Errorf("failed to encode cleaned %s: %w", table, err)
	}
	path := filepath.Join(cleanedDir, ingest.CleanedFiles[table])
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return []string{table, fmt.Sprint(res.Total), fmt.Sprint(res.Kept()), fmt.Sprint(res.Dropped), "cleaned"}, nil
}

func newCleanCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Clean the raw extracts without touching the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.config()
			if err := os.MkdirAll(cfg.DataCleanedDir, 0o755); err != nil {
				return fmt.Errorf("failed to create cleaned directory: %w", err)
			}
			cleanCustomers := func(r io.Reader) (*ingest.Result[domain.Customer], error) {
				return ingest.CleanCustomers(r, ingest.Options{RecomputeSegments: cfg.RecomputeSegments})
			}

			var rows [][]string
			steps := []func() ([]string, error){
				func() ([]string, error) {
					return cleanTable(cfg.DataRawDir, cfg.DataCleanedDir, ingest.TableOrders, ingest.CleanOrders, ingest.WriteOrders)
				},
				func() ([]string, error) {
					return cleanTable(cfg.DataRawDir, cfg.DataCleanedDir, ingest.TableCustomers, cleanCustomers, ingest.WriteCustomers)
				},
				func() ([]string, error) {
					return cleanTable(cfg.DataRawDir, cfg.DataCleanedDir, ingest.TableProducts, ingest.CleanProducts, ingest.WriteProducts)
				},
				func() ([]string, error) {
					return cleanTable(cfg.DataRawDir, cfg.DataCleanedDir, ingest.TableCampaigns, ingest.CleanCampaigns, ingest.WriteCampaigns)
				},
			}
			for _, step := range steps {
				row, err := step()
				if err != nil {
					return err
				}
				rows = append(rows, row)
			}

			table := newTable(cmd.OutOrStdout(), "Table", "Total", "Kept", "Dropped", "Status")
			table.AppendBulk(rows)
			table.Render()
			return nil
		},
	}
}

func newAttributeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "attribute",
		Short: "Map cleaned orders to campaigns and publish the attribution table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.config()
			ctx := cmd.Context()

			orders, err := readTable(cfg.DataCleanedDir, ingest.CleanedFiles, ingest.TableOrders, ingest.CleanOrders)
			if err != nil {
				return fmt.Errorf("attribution needs cleaned orders: %w", err)
			}
			campaigns, err := readTable(cfg.DataCleanedDir, ingest.CleanedFiles, ingest.TableCampaigns, ingest.CleanCampaigns)
			if err != nil {
				return fmt.Errorf("attribution needs cleaned campaigns: %w", err)
			}

			records := attribution.Map(orders.Rows, campaigns.Rows)
			var buf bytes.Buffer
			if err := attribution.WriteTable(&buf, records); err != nil {
				return err
			}

			sink, err := storage.New(ctx, cfg)
			if err != nil {
				return err
			}
			if err := sink.Put(ctx, attribution.TableName, buf.Bytes(), "text/csv"); err != nil {
				return fmt.Errorf("failed to publish attribution table: %w", err)
			}

			out := cmd.OutOrStdout()
			stats := attribution.Stats(records)
			fmt.Fprintf(out, "✓ %d attribution records written to %s\n", stats.Records, sink.Location(attribution.TableName))
			fmt.Fprintf(out, "  Orders: %d  Attributed: %d  Unattributed: %d\n", stats.Orders, stats.Attributed, stats.Unattributed)

			table := newTable(out, "Campaign", "Orders")
			for _, c := range stats.Campaigns {
				table.Append([]string{c.CampaignName, fmt.Sprint(c.Orders)})
			}
			table.Render()
			return nil
		},
	}
}
