package cmd

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/hrmcheck/internal/auth"
	"github.com/xkilldash9x/hrmcheck/internal/datafactory"
)

func newDataCmd() *cobra.Command {
	var seed int64

	dataCmd := &cobra.Command{
		Use:   "data",
		Short: "Print generated test data as JSON",
	}
	dataCmd.PersistentFlags().Int64Var(&seed, "seed", 0, "Seed for reproducible output (0 picks one)")
	factory := func() *datafactory.Factory { return datafactory.NewFactory(seed) }

	var roleName string
	credentialsCmd := &cobra.Command{
		Use:   "credentials",
		Short: "Generate an account for a role",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := auth.ParseRole(roleName)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), factory().UserCredentials(role))
		},
	}
	credentialsCmd.Flags().StringVarP(&roleName, "role", "r", "user", "Role to generate credentials for")

	var count int
	profileCmd := &cobra.Command{
		Use:   "profile",
		Short: "Generate user profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := factory()
			out := make([]datafactory.UserProfile, 0, count)
			for range max(count, 1) {
				out = append(out, f.UserProfile())
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	profileCmd.Flags().IntVarP(&count, "count", "n", 1, "Number of profiles")

	var employees int
	employeeCmd := &cobra.Command{
		Use:   "employee",
		Short: "Generate employee records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := factory()
			out := make([]datafactory.Employee, 0, employees)
			for range max(employees, 1) {
				out = append(out, f.Employee())
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	employeeCmd.Flags().IntVarP(&employees, "count", "n", 1, "Number of employees")

	var days int
	datesCmd := &cobra.Command{
		Use:   "dates",
		Short: "Generate a past and a future date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := factory()
			return printJSON(cmd.OutOrStdout(), map[string]string{
				"past":   f.PastDate(days),
				"future": f.FutureDate(days),
			})
		},
	}
	datesCmd.Flags().IntVar(&days, "days", 30, "Maximum distance from today in days")

	dataCmd.AddCommand(credentialsCmd, profileCmd, employeeCmd, datesCmd)
	return dataCmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
