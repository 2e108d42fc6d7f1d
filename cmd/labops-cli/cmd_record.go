package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/labsuite/labops/client"
)

func newKindsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List the master-data kinds",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			kinds, err := apiClient.Records.Kinds(context.Background())
			if err != nil {
				fatal("list kinds", err)
			}
			paths := make([]string, len(kinds))
			for i, k := range kinds {
				paths[i] = k.Path
			}
			output(kinds, func() ([]string, [][]string) {
				rows := make([][]string, len(kinds))
				for i, k := range kinds {
					rows[i] = []string{k.Path, k.Name, k.KeyField, fieldNames(k.Fields)}
				}
				return []string{"PATH", "NAME", "KEY", "FIELDS"}, rows
			}, paths...)
		},
	}
}

func fieldNames(fields []client.FieldSpec) string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return strings.Join(names, ",")
}

// findKind looks up a kind by its path segment.
func findKind(ctx context.Context, path string) (*client.Kind, error) {
	kinds, err := apiClient.Records.Kinds(ctx)
	if err != nil {
		return nil, err
	}
	for i := range kinds {
		if kinds[i].Path == path {
			return &kinds[i], nil
		}
	}
	return nil, fmt.Errorf("unknown kind %q (see labops-cli kinds)", path)
}

func newRecordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Manage master-data records",
	}
	cmd.AddCommand(recordListCmd())
	cmd.AddCommand(recordCreateCmd())
	cmd.AddCommand(recordUpdateCmd())
	cmd.AddCommand(recordDeleteCmd())
	cmd.AddCommand(recordAuditCmd())
	return cmd
}

// parseFields decodes --data and applies repeated --set name=value pairs.
func parseFields(dataJSON string, sets []string) (map[string]any, error) {
	fields := map[string]any{}
	if dataJSON != "" {
		if err := json.Unmarshal([]byte(dataJSON), &fields); err != nil {
			return nil, fmt.Errorf("parse data: %w", err)
		}
	}
	for _, kv := range sets {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --set %q, want name=value", kv)
		}
		fields[name] = value
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("no fields given, use --data or --set")
	}
	return fields, nil
}

func recordTable(kind *client.Kind, recs []client.Record) table {
	return func() ([]string, [][]string) {
		headers := []string{"ID", strings.ToUpper(kind.KeyField), "DESCRIPTION"}
		for _, f := range kind.Fields {
			headers = append(headers, strings.ToUpper(f.Name))
		}
		rows := make([][]string, len(recs))
		for i, r := range recs {
			row := []string{r.ID(), r.String(kind.KeyField), truncate(r.String("description"), 40)}
			for _, f := range kind.Fields {
				row = append(row, r.String(f.Name))
			}
			rows[i] = row
		}
		return headers, rows
	}
}

func recordListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <kind>",
		Short: "List the records of a kind in the current scope",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			kind, err := findKind(ctx, args[0])
			if err != nil {
				fatal("list records", err)
			}
			recs, err := apiClient.Records.List(ctx, kind.Path, scope())
			if err != nil {
				fatal("list records", err)
			}
			ids := make([]string, len(recs))
			for i, r := range recs {
				ids[i] = r.ID()
			}
			output(recs, recordTable(kind, recs), ids...)
		},
	}
}

func recordCreateCmd() *cobra.Command {
	var dataJSON string
	var sets []string
	cmd := &cobra.Command{
		Use:   "create <kind>",
		Short: "Create a record in the current scope",
		Example: `  labops-cli record create api --set api="Paracetamol" --set description="Analgesic"
  labops-cli record create column --data '{"columnCode":"C18-01","make":"Agilent"}'`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			fields, err := parseFields(dataJSON, sets)
			if err != nil {
				fatal("create record", err)
			}
			rec, err := apiClient.Records.Create(context.Background(), args[0], scope(), fields)
			if err != nil {
				fatal("create record", err)
			}
			output(rec, nil, rec.ID())
		},
	}
	cmd.Flags().StringVar(&dataJSON, "data", "", "Fields as a JSON object")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Field as name=value (repeatable)")
	return cmd
}

func recordUpdateCmd() *cobra.Command {
	var dataJSON string
	var sets []string
	cmd := &cobra.Command{
		Use:   "update <kind> <id>",
		Short: "Update a record",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			fields, err := parseFields(dataJSON, sets)
			if err != nil {
				fatal("update record", err)
			}
			rec, err := apiClient.Records.Update(context.Background(), args[0], scope(), args[1], fields)
			if err != nil {
				fatal("update record", err)
			}
			output(rec, nil, rec.ID())
		},
	}
	cmd.Flags().StringVar(&dataJSON, "data", "", "Fields as a JSON object")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Field as name=value (repeatable)")
	return cmd
}

func recordDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <kind> <id>",
		Short: "Delete a record",
		Long:  "Deletes a record. The scope flags are optional; the record's own scope is checked.",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			sc := client.Scope{CompanyID: flagCompany, LocationID: flagLocation}
			rec, err := apiClient.Records.Delete(context.Background(), args[0], sc, args[1])
			if err != nil {
				fatal("delete record", err)
			}
			output(rec, nil, rec.ID())
		},
	}
}

// auditFlags are the filters shared by every audit command.
type auditFlags struct {
	opts client.AuditOptions
}

func (a *auditFlags) bind(cmd *cobra.Command, keyHelp string) {
	f := cmd.Flags()
	f.StringVar(&a.opts.Key, "key", "", keyHelp)
	f.StringVar(&a.opts.Action, "action", "", "Action: create|update|delete")
	f.StringVar(&a.opts.SearchTerm, "search", "", "Free-text search in the key and data")
	f.StringVar(&a.opts.StartDate, "from", "", "Start date (YYYY-MM-DD or RFC3339)")
	f.StringVar(&a.opts.EndDate, "to", "", "End date, inclusive (YYYY-MM-DD or RFC3339)")
	f.IntVar(&a.opts.Limit, "limit", 0, "Maximum entries (server default when 0)")
}

func auditTable(entries []client.AuditEntry) table {
	return func() ([]string, [][]string) {
		rows := make([][]string, len(entries))
		for i, e := range entries {
			rows[i] = []string{
				fmt.Sprint(e.ID), shortTime(e.Timestamp), e.Action, e.EntityType,
				e.EntityKey, e.UserID, changedFields(e),
			}
		}
		return []string{"ID", "TIME", "ACTION", "TYPE", "KEY", "USER", "CHANGED"}, rows
	}
}

// changedFields lists the fields an UPDATE changed.
func changedFields(e client.AuditEntry) string {
	if e.Action != "UPDATE" || e.PreviousData == nil {
		return ""
	}
	var changed []string
	for k, v := range e.Data {
		if fmt.Sprint(e.PreviousData[k]) != fmt.Sprint(v) {
			changed = append(changed, k)
		}
	}
	sort.Strings(changed)
	return strings.Join(changed, ",")
}

func auditIDs(entries []client.AuditEntry) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = fmt.Sprint(e.ID)
	}
	return ids
}

func recordAuditCmd() *cobra.Command {
	var af auditFlags
	cmd := &cobra.Command{
		Use:   "audit <kind>",
		Short: "Show the change history of a kind",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			kind, err := findKind(ctx, args[0])
			if err != nil {
				fatal("audit", err)
			}
			entries, err := apiClient.Records.Audit(ctx, kind.Path, kind.KeyField, scope(), &af.opts)
			if err != nil {
				fatal("audit", err)
			}
			output(entries, auditTable(entries), auditIDs(entries)...)
		},
	}
	af.bind(cmd, "Filter by business key")
	return cmd
}
