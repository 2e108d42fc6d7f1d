package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/labsuite/labops/client"
)

func newEmployeeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "employee",
		Short: "Manage employees (admin only)",
	}
	cmd.AddCommand(employeeListCmd())
	cmd.AddCommand(employeeCreateCmd())
	cmd.AddCommand(employeeUpdateCmd())
	cmd.AddCommand(employeeDeleteCmd())
	cmd.AddCommand(employeeAuditCmd())
	return cmd
}

func employeeTable(emps []client.Employee) table {
	return func() ([]string, [][]string) {
		rows := make([][]string, len(emps))
		for i, e := range emps {
			active := "yes"
			if !e.Active {
				active = "no"
			}
			rows[i] = []string{e.ID, e.EmployeeCode, e.Name, e.Email, e.Role, strings.Join(e.LocationIDs, ","), active}
		}
		return []string{"ID", "CODE", "NAME", "EMAIL", "ROLE", "LOCATIONS", "ACTIVE"}, rows
	}
}

func employeeListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the employees of the company",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			emps, err := apiClient.Employees.List(context.Background(), company())
			if err != nil {
				fatal("list employees", err)
			}
			ids := make([]string, len(emps))
			for i, e := range emps {
				ids[i] = e.ID
			}
			output(emps, employeeTable(emps), ids...)
		},
	}
}

func employeeCreateCmd() *cobra.Command {
	var req client.CreateEmployeeRequest
	cmd := &cobra.Command{
		Use:   "create <employee-code>",
		Short: "Create an employee with a login",
		Long:  "Creates an employee. The initial password is read from LABOPS_PASSWORD or stdin.",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			password, err := readPassword()
			if err != nil {
				fatal("read password", err)
			}
			req.EmployeeCode = args[0]
			req.Password = password
			req.CompanyID = company()

			emp, err := apiClient.Employees.Create(context.Background(), &req)
			if err != nil {
				fatal("create employee", err)
			}
			output(emp, employeeTable([]client.Employee{*emp}), emp.ID)
		},
	}
	cmd.Flags().StringVar(&req.Name, "name", "", "Full name")
	cmd.Flags().StringVar(&req.Email, "email", "", "Login email")
	cmd.Flags().StringVar(&req.Role, "role", "analyst", "Role: admin|manager|analyst|viewer")
	cmd.Flags().StringSliceVar(&req.LocationIDs, "locations", nil, "Granted location IDs (comma separated)")
	return cmd
}

func employeeUpdateCmd() *cobra.Command {
	var (
		name, role string
		locations  []string
		active     bool
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update an employee",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			req := &client.UpdateEmployeeRequest{ID: args[0], CompanyID: company()}
			if cmd.Flags().Changed("name") {
				req.Name = &name
			}
			if cmd.Flags().Changed("role") {
				req.Role = &role
			}
			if cmd.Flags().Changed("locations") {
				req.LocationIDs = &locations
			}
			if cmd.Flags().Changed("active") {
				req.Active = &active
			}

			emp, err := apiClient.Employees.Update(context.Background(), req)
			if err != nil {
				fatal("update employee", err)
			}
			output(emp, employeeTable([]client.Employee{*emp}), emp.ID)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Full name")
	cmd.Flags().StringVar(&role, "role", "", "Role: admin|manager|analyst|viewer")
	cmd.Flags().StringSliceVar(&locations, "locations", nil, "Granted location IDs (replaces the current grants)")
	cmd.Flags().BoolVar(&active, "active", true, "Whether the login is enabled")
	return cmd
}

func employeeDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an employee and revoke their login",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			emp, err := apiClient.Employees.Delete(context.Background(), company(), args[0])
			if err != nil {
				fatal("delete employee", err)
			}
			output(emp, nil, emp.ID)
		},
	}
}

func employeeAuditCmd() *cobra.Command {
	var af auditFlags
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the employee change history of the company",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			entries, err := apiClient.Employees.Audit(context.Background(), company(), &af.opts)
			if err != nil {
				fatal("audit", err)
			}
			output(entries, auditTable(entries), auditIDs(entries)...)
		},
	}
	af.bind(cmd, "Filter by employee code")
	return cmd
}
