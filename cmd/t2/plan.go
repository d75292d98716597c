package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/eugenetaranov/t2/internal/module"
	"github.com/eugenetaranov/t2/internal/plan"
)

// runCmd executes a plan
var runCmd = &cobra.Command{
	Use:   "run <plan.yaml>",
	Short: "Run a plan against the board",
	Long: `Execute the steps of a plan in order against the board.

Examples:
  t2 run setup.yaml
  t2 run setup.yaml --debug
  t2 run setup.yaml --dry-run --lan 192.168.1.101`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

func init() {
	runCmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would be done without making changes")
}

func runPlan(cmd *cobra.Command, args []string) error {
	planPath := args[0]

	if _, err := os.Stat(planPath); os.IsNotExist(err) {
		return fmt.Errorf("plan not found: %s", planPath)
	}

	p, err := plan.ParseFile(planPath)
	if err != nil {
		return fmt.Errorf("failed to parse plan: %w", err)
	}

	var result *plan.Result
	err = withBoard(func(ctx context.Context, s *session) error {
		runner := &plan.Runner{
			Output: s.out,
			Board:  s.board,
			Target: s.target,
			DryRun: dryRun,
			Debug:  debug,
		}
		result, err = runner.Run(ctx, p)
		return err
	})
	if err != nil {
		return err
	}

	if !result.Success {
		os.Exit(1)
	}
	return nil
}

// validateCmd validates plans without running them
var validateCmd = &cobra.Command{
	Use:   "validate <plan.yaml> [plan2.yaml ...]",
	Short: "Validate one or more plans",
	Long: `Parse and validate plans without executing them.

This checks for:
  - Valid YAML syntax
  - At least one step
  - Valid module names

Examples:
  t2 validate setup.yaml
  t2 validate *.yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: validatePlans,
}

func validatePlans(cmd *cobra.Command, args []string) error {
	var hasErrors bool

	for _, planPath := range args {
		if err := validatePlan(planPath); err != nil {
			fmt.Printf("FAIL: %s - %v\n", planPath, err)
			hasErrors = true
		} else {
			fmt.Printf("OK: %s\n", planPath)
		}
	}

	if hasErrors {
		return fmt.Errorf("one or more plans failed validation")
	}

	fmt.Printf("\nAll %d plan(s) valid.\n", len(args))
	return nil
}

func validatePlan(planPath string) error {
	if _, err := os.Stat(planPath); os.IsNotExist(err) {
		return fmt.Errorf("not found")
	}

	p, err := plan.ParseFile(planPath)
	if err != nil {
		return err
	}

	var errors []string
	for _, step := range p.Steps {
		plan.ExpandShorthand(step)
		if _, err := plan.ResolveModule(step); err != nil {
			errors = append(errors, fmt.Sprintf("%s: %v", step.String(), err))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("%d error(s): %s", len(errors), errors[0])
	}
	return nil
}

// modulesCmd lists available modules
var modulesCmd = &cobra.Command{
	Use:   "modules",
	Short: "List available modules",
	Long:  `Display a list of all available modules that can be used in plans.`,
	Run: func(cmd *cobra.Command, args []string) {
		modules := module.List()
		if len(modules) == 0 {
			fmt.Println("No modules registered.")
			return
		}

		fmt.Println("Available modules:")
		fmt.Println()
		for _, name := range modules {
			fmt.Printf("  - %s\n", name)
		}
		fmt.Println()
		fmt.Printf("Total: %d modules\n", len(modules))
	},
}
