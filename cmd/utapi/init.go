package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter configuration file",
	Long: `Write a starter utapi.yaml.

This will:
  1. Ask for the component name and datastore driver
  2. Write a starter configuration file

Examples:
  utapi init
  utapi init --component s3 --datastore-driver sqlite
  utapi init --non-interactive --component s3`,
	RunE: runInit,
}

var (
	initComponent       string
	initDatastoreDriver string
	initNonInteractive  bool
)

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().StringVar(&initComponent, "component", "", "component name")
	initCmd.Flags().StringVar(&initDatastoreDriver, "datastore-driver", "memory", "datastore driver: memory or sqlite")
	initCmd.Flags().BoolVar(&initNonInteractive, "non-interactive", false, "run without prompts (requires --component)")
}

func runInit(cmd *cobra.Command, args []string) error {
	fmt.Println("Welcome to utapi!")
	fmt.Println()

	if _, err := os.Stat(cfgFile); err == nil {
		fmt.Printf("Configuration file already exists: %s\n", cfgFile)
		if !confirm("Overwrite?") {
			fmt.Println("Aborted.")
			return nil
		}
	}

	reader := bufio.NewReader(os.Stdin)

	component := initComponent
	if component == "" {
		if initNonInteractive {
			return fmt.Errorf("--component is required in non-interactive mode")
		}
		component = prompt(reader, "Component name", "s3")
		if component == "" {
			return fmt.Errorf("component name is required")
		}
	}

	driver := initDatastoreDriver
	if !initNonInteractive && driver == "memory" {
		driver = prompt(reader, "Datastore driver (memory/sqlite)", "memory")
	}
	if driver != "memory" && driver != "sqlite" {
		return fmt.Errorf("datastore driver must be 'memory' or 'sqlite', got %q", driver)
	}

	configContent := generateConfig(component, driver)

	if err := os.WriteFile(cfgFile, []byte(configContent), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	fmt.Printf("\n%s Generated %s\n", checkMark, cfgFile)

	fmt.Println()
	fmt.Println("Run 'utapi validate' to check the configuration, then 'utapi serve' to start.")
	return nil
}

func prompt(reader *bufio.Reader, label, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("? %s [%s]: ", label, defaultVal)
	} else {
		fmt.Printf("? %s: ", label)
	}

	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}

func confirm(message string) bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Printf("? %s [y/N]: ", message)
	input, _ := reader.ReadString('\n')
	input = strings.ToLower(strings.TrimSpace(input))
	return input == "y" || input == "yes"
}

func generateConfig(component, driver string) string {
	sqliteSection := ""
	if driver == "sqlite" {
		sqliteSection = fmt.Sprintf("  sqlite:\n    dsn: \"%s.db\"\n", component)
	}

	return fmt.Sprintf(`# utapi configuration
# Generated by 'utapi init'

component: "%s"

datastore:
  driver: %s
%s
server:
  host: "0.0.0.0"
  port: 8100
  read_timeout: 30s
  write_timeout: 30s

auth:
  region: us-east-1
  service: s3

workers: 5

metrics: []

log:
  level: info
  dumpLevel: debug
`, component, driver, sqliteSection)
}
