// Package main is the pybox command-line entry point.
//
// It executes a single piece of Python code in a sandbox session and prints
// the result. Code comes from a flag, a file, or interactive input; the
// session is torn down after execution unless --keep-session is given.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pybox-dev/pybox/config"
	"github.com/pybox-dev/pybox/logger"
	"github.com/pybox-dev/pybox/orchestrator"
	"github.com/pybox-dev/pybox/sandbox"
)

var (
	codeFlag     string
	fileFlag     string
	packagesFlag string
	timeoutFlag  int
	networkFlag  bool
	keepSession  bool
)

var rootCmd = &cobra.Command{
	Use:   "pybox",
	Short: "Execute Python code in a sandbox environment",
	Long: `pybox executes Python code inside an isolated, resource-bounded sandbox.

Dependencies are installed into the session before execution, and the
environment is removed afterwards unless --keep-session is given.`,
	RunE: run,
}

func init() {
	rootCmd.Flags().StringVarP(&codeFlag, "code", "c", "", "Python code to execute")
	rootCmd.Flags().StringVarP(&fileFlag, "file", "f", "", "File containing Python code")
	rootCmd.Flags().StringVarP(&packagesFlag, "packages", "p", "", "Packages to install (comma-separated)")
	rootCmd.Flags().IntVarP(&timeoutFlag, "timeout", "t", 30, "Execution timeout (seconds)")
	rootCmd.Flags().BoolVarP(&networkFlag, "network", "n", false, "Allow network access")
	rootCmd.Flags().BoolVar(&keepSession, "keep-session", false, "Keep the sandbox session alive after execution")
}

func run(cmd *cobra.Command, _ []string) error {
	code, err := collectCode()
	if err != nil {
		return err
	}
	if strings.TrimSpace(code) == "" {
		return fmt.Errorf("no code provided")
	}

	cfg, err := config.New()
	if err != nil {
		return err
	}

	log, err := logger.NewFromConfig(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	factory, err := sandbox.NewFromConfig(log, cfg)
	if err != nil {
		return err
	}

	orch := orchestrator.New(log, factory, cfg)

	result := orch.Execute(cmd.Context(), orchestrator.ExecutionRequest{
		Code:           code,
		TimeoutSeconds: timeoutFlag,
		Packages:       splitPackages(packagesFlag),
		AllowNetwork:   networkFlag,
		AutoTerminate:  !keepSession,
	})

	fmt.Println(strings.Repeat("-", 60))
	fmt.Println(result.HumanMessage)
	fmt.Println(strings.Repeat("-", 60))

	if !result.Succeeded {
		log.Error("execution failed", zap.String("error_kind", string(result.ErrorKind)))
		return fmt.Errorf("execution failed: %s", result.ErrorKind)
	}
	return nil
}

// collectCode resolves the code to run: the --code flag wins, then --file,
// otherwise it is read interactively line by line until "EOF" or end of
// input.
func collectCode() (string, error) {
	if codeFlag != "" {
		return codeFlag, nil
	}

	if fileFlag != "" {
		data, err := os.ReadFile(fileFlag)
		if err != nil {
			return "", fmt.Errorf("failed to read file: %w", err)
		}
		return string(data), nil
	}

	fmt.Println("Enter Python code to execute (type EOF to finish):")
	var lines []string
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.EqualFold(strings.TrimSpace(line), "eof") {
			break
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}

	return strings.Join(lines, "\n"), nil
}

func splitPackages(list string) []string {
	var packages []string
	for _, pkg := range strings.Split(list, ",") {
		if pkg = strings.TrimSpace(pkg); pkg != "" {
			packages = append(packages, pkg)
		}
	}
	return packages
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
