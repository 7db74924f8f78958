package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"marksweep/internal/probe"
)

var checkCmd = &cobra.Command{
	Use:   "check <url>",
	Short: "Check whether a single URL is reachable",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		res := appInstance.CheckAccessibility(cmd.Context(), args[0])
		if res.Accessible {
			fmt.Printf("%s %s is reachable (%s %d)\n", okMark, args[0], res.Method, res.Status)
			return nil
		}
		kind := "transient"
		if res.Permanent {
			kind = "permanent"
		}
		if res.NetworkError {
			kind = "network"
		}
		fmt.Printf("%s %s is not reachable: %s (%s failure)\n", failMark, args[0], res.Error, kind)
		return nil
	},
}

var categorizeCmd = &cobra.Command{
	Use:   "categorize <url>",
	Short: "Assign a category to a single URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !probe.ValidURL(args[0]) {
			return fmt.Errorf("%s: %s", probe.InvalidURLMessage, args[0])
		}
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		res := appInstance.Categorize(cmd.Context(), args[0])
		fmt.Printf("Category:    %s\n", res.Category)
		fmt.Printf("Confidence:  %.2f\n", res.Confidence)
		fmt.Printf("Method:      %s\n", res.Method)
		if res.Description != "" {
			fmt.Printf("Description: %s\n", res.Description)
		}
		return nil
	},
}

var testClassifierCmd = &cobra.Command{
	Use:   "test-classifier",
	Short: "Send a minimal request to the configured classification provider",
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		status, err := appInstance.TestClassifierConnection(cmd.Context())
		if err != nil {
			fmt.Printf("%s Connection failed: %v\n", failMark, err)
			return err
		}
		fmt.Printf("%s %s\n  model:    %s\n  response: %s\n", okMark, status.Message, status.Model, status.Response)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(categorizeCmd)
	rootCmd.AddCommand(testClassifierCmd)
}
