package main

import (
	"fmt"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/datadojo/partrank/internal/scorer"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Inspect and validate scoring profiles",
}

var profilesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available weight and boost profiles",
	RunE:  runProfilesList,
}

var profilesValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate a YAML profiles file",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfilesValidate,
}

func init() {
	profilesListCmd.Flags().String("file", "", "YAML profiles file (default: builtins)")

	profilesCmd.AddCommand(profilesListCmd)
	profilesCmd.AddCommand(profilesValidateCmd)
	rootCmd.AddCommand(profilesCmd)
}

func runProfilesList(cmd *cobra.Command, _ []string) error {
	weights := scorer.BuiltinWeightProfiles()
	boosts := map[string][]scorer.BoostRule{"default": scorer.DefaultBoosts()}

	if path, _ := cmd.Flags().GetString("file"); path != "" {
		ps, err := scorer.LoadProfiles(path)
		if err != nil {
			return err
		}
		weights = ps.Weights
		boosts = ps.Boosts
	}

	fmt.Println("Weight profiles:")
	for _, name := range sortedNames(weights) {
		fmt.Printf("  %s\n", name)
		w := weights[name]
		features := make([]string, 0, len(w))
		for f := range w {
			features = append(features, f)
		}
		sort.Strings(features)
		for _, f := range features {
			fmt.Printf("    %-22s %.2f\n", f, w[f])
		}
	}

	fmt.Println("\nBoost profiles:")
	for _, name := range sortedNames(boosts) {
		fmt.Printf("  %s\n", name)
		for _, r := range boosts[name] {
			fmt.Printf("    %-20s x%.2f  %s\n", r.Name, r.Multiplier, r.Description)
		}
	}

	return nil
}

func runProfilesValidate(_ *cobra.Command, args []string) error {
	ps, err := scorer.LoadProfiles(args[0])
	if err != nil {
		return err
	}

	problems := validateProfileSet(ps)
	if len(problems) > 0 {
		for _, p := range problems {
			fmt.Printf("FAIL  %s\n", p)
		}
		return eris.Errorf("profiles: %d invalid profile(s) in %s", len(problems), args[0])
	}

	fmt.Printf("OK  %d weight profile(s), %d boost profile(s)\n", len(ps.Weights), len(ps.Boosts))
	return nil
}

// validateProfileSet checks every weight and boost profile against the
// default feature definitions and returns one message per failure.
func validateProfileSet(ps *scorer.ProfileSet) []string {
	declared := scorer.DeclaredFeatures(scorer.DefaultFeatures())

	var problems []string
	for _, name := range sortedNames(ps.Weights) {
		if err := scorer.ValidateWeights(ps.Weights[name], declared); err != nil {
			problems = append(problems, fmt.Sprintf("weights %q: %v", name, err))
		}
	}
	for _, name := range sortedNames(ps.Boosts) {
		if err := scorer.ValidateBoosts(ps.Boosts[name], declared); err != nil {
			problems = append(problems, fmt.Sprintf("boosts %q: %v", name, err))
		}
	}
	return problems
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
