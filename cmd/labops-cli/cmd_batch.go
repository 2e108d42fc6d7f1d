package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/labsuite/labops/client"
)

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Manage HPLC batches",
	}
	cmd.AddCommand(batchListCmd())
	cmd.AddCommand(batchGetCmd())
	cmd.AddCommand(batchCreateCmd())
	cmd.AddCommand(batchStatusCmd())
	cmd.AddCommand(batchTestStatusCmd())
	cmd.AddCommand(batchDeleteCmd())
	cmd.AddCommand(batchAuditCmd())
	return cmd
}

func batchTable(batches []client.Batch) table {
	return func() ([]string, [][]string) {
		rows := make([][]string, len(batches))
		for i, b := range batches {
			done := 0
			for _, t := range b.Tests {
				if t.Status == "completed" {
					done++
				}
			}
			rows[i] = []string{
				b.ID, b.BatchNumber, truncate(b.ProductName, 30), b.Status,
				fmt.Sprintf("%d/%d", done, len(b.Tests)), shortTime(b.UpdatedAt),
			}
		}
		return []string{"ID", "NUMBER", "PRODUCT", "STATUS", "TESTS", "UPDATED"}, rows
	}
}

func testTable(b *client.Batch) table {
	return func() ([]string, [][]string) {
		rows := make([][]string, len(b.Tests))
		for i, t := range b.Tests {
			rows[i] = []string{t.ID, t.TestTypeID, t.ColumnID, t.HPLCID, t.Status, truncate(t.Remarks, 30)}
		}
		return []string{"TEST", "TYPE", "COLUMN", "HPLC", "STATUS", "REMARKS"}, rows
	}
}

func batchListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List batches in the current scope",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			batches, err := apiClient.Batches.List(context.Background(), scope(), status)
			if err != nil {
				fatal("list batches", err)
			}
			ids := make([]string, len(batches))
			for i, b := range batches {
				ids[i] = b.ID
			}
			output(batches, batchTable(batches), ids...)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Filter by status: pending|in_progress|completed|cancelled")
	return cmd
}

func batchGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a batch and its tests",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			b, err := apiClient.Batches.Get(context.Background(), scope(), args[0])
			if err != nil {
				fatal("get batch", err)
			}
			output(b, testTable(b), b.ID)
		},
	}
}

// parseTestSpec reads "testTypeId[,column=ID][,hplc=ID][,detector=ID][,mobile-phase=ID]".
func parseTestSpec(spec string) (client.BatchTestRequest, error) {
	parts := strings.Split(spec, ",")
	t := client.BatchTestRequest{TestTypeID: strings.TrimSpace(parts[0])}
	if t.TestTypeID == "" {
		return t, fmt.Errorf("test %q has no test type", spec)
	}
	for _, p := range parts[1:] {
		name, value, ok := strings.Cut(strings.TrimSpace(p), "=")
		if !ok || value == "" {
			return t, fmt.Errorf("invalid test option %q, want name=value", p)
		}
		switch name {
		case "column":
			t.ColumnID = value
		case "hplc":
			t.HPLCID = value
		case "detector":
			t.DetectorTypeID = value
		case "mobile-phase":
			t.MobilePhaseID = value
		default:
			return t, fmt.Errorf("unknown test option %q", name)
		}
	}
	return t, nil
}

func batchCreateCmd() *cobra.Command {
	var (
		product, apiID string
		tests          []string
	)
	cmd := &cobra.Command{
		Use:     "create <batch-number>",
		Short:   "Plan a batch in the current scope",
		Example: `  labops-cli batch create B-001 --product "Paracetamol 500" --test TT-1,column=C-7,hplc=H-2`,
		Args:    cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			sc := scope()
			req := &client.CreateBatchRequest{
				BatchNumber: args[0],
				ProductName: product,
				APIID:       apiID,
				CompanyID:   sc.CompanyID,
				LocationID:  sc.LocationID,
			}
			for _, spec := range tests {
				t, err := parseTestSpec(spec)
				if err != nil {
					fatal("parse test", err)
				}
				req.Tests = append(req.Tests, t)
			}

			b, err := apiClient.Batches.Create(context.Background(), req)
			if err != nil {
				fatal("create batch", err)
			}
			output(b, testTable(b), b.ID)
		},
	}
	cmd.Flags().StringVar(&product, "product", "", "Product name")
	cmd.Flags().StringVar(&apiID, "api", "", "API record ID")
	cmd.Flags().StringArrayVar(&tests, "test", nil, "Planned test (repeatable): testTypeId[,column=ID][,hplc=ID][,detector=ID][,mobile-phase=ID]")
	return cmd
}

func batchStatusCmd() *cobra.Command {
	var remarks string
	cmd := &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Change a batch status",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			b, err := apiClient.Batches.SetStatus(context.Background(), scope(), args[0],
				&client.StatusRequest{Status: args[1], Remarks: remarks})
			if err != nil {
				fatal("set batch status", err)
			}
			output(b, batchTable([]client.Batch{*b}), b.ID)
		},
	}
	cmd.Flags().StringVar(&remarks, "remarks", "", "Remarks")
	return cmd
}

func batchTestStatusCmd() *cobra.Command {
	var remarks string
	cmd := &cobra.Command{
		Use:   "test-status <id> <test-id> <status>",
		Short: "Change the status of a planned test",
		Args:  cobra.ExactArgs(3),
		Run: func(cmd *cobra.Command, args []string) {
			b, err := apiClient.Batches.SetTestStatus(context.Background(), scope(), args[0], args[1],
				&client.StatusRequest{Status: args[2], Remarks: remarks})
			if err != nil {
				fatal("set test status", err)
			}
			output(b, testTable(b), b.ID)
		},
	}
	cmd.Flags().StringVar(&remarks, "remarks", "", "Remarks")
	return cmd
}

func batchDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a batch",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			b, err := apiClient.Batches.Delete(context.Background(), scope(), args[0])
			if err != nil {
				fatal("delete batch", err)
			}
			output(b, nil, b.ID)
		},
	}
}

func batchAuditCmd() *cobra.Command {
	var af auditFlags
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show batch change history",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			entries, err := apiClient.Batches.Audit(context.Background(), scope(), &af.opts)
			if err != nil {
				fatal("audit", err)
			}
			output(entries, auditTable(entries), auditIDs(entries)...)
		},
	}
	af.bind(cmd, "Filter by batch number")
	return cmd
}
