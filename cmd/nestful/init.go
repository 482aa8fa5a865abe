package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a nestful.yaml interactively",
	Long: `Walk through the serve configuration (listen address, storage
backend, Redis, authentication) and write the answers to nestful.yaml
in the current directory.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing nestful.yaml")
}

type initAnswers struct {
	Listen    string
	Prefix    string
	Driver    string
	DSN       string
	RedisAddr string
	JWTSecret string
	Log       string
}

func runInit(cmd *cobra.Command, args []string) error {
	if !initForce {
		if _, err := os.Stat("nestful.yaml"); err == nil {
			return fmt.Errorf("nestful.yaml already exists (use --force to overwrite)")
		}
	}

	answers := initAnswers{}
	questions := []*survey.Question{
		{
			Name:     "listen",
			Prompt:   &survey.Input{Message: "Listen address:", Default: ":8080"},
			Validate: survey.Required,
		},
		{
			Name:   "prefix",
			Prompt: &survey.Input{Message: "API mount prefix:", Default: "/api/v1"},
		},
		{
			Name: "driver",
			Prompt: &survey.Select{
				Message: "Storage backend:",
				Options: []string{"memory", "sqlite", "postgres"},
				Default: "memory",
			},
		},
	}
	if err := survey.Ask(questions, &answers); err != nil {
		return err
	}

	if answers.Driver != "memory" {
		dsnDefault := "nestful.db"
		if answers.Driver == "postgres" {
			dsnDefault = "postgres://localhost:5432/nestful?sslmode=disable"
		}
		prompt := &survey.Input{Message: "Database DSN:", Default: dsnDefault}
		if err := survey.AskOne(prompt, &answers.DSN, survey.WithValidator(survey.Required)); err != nil {
			return err
		}
	}

	rest := []*survey.Question{
		{
			Name:   "redisAddr",
			Prompt: &survey.Input{Message: "Redis address (empty for in-process cache):"},
		},
		{
			Name:   "jwtSecret",
			Prompt: &survey.Password{Message: "JWT secret (empty for anonymous access):"},
		},
		{
			Name: "log",
			Prompt: &survey.Select{
				Message: "Log mode:",
				Options: []string{"dev", "prod"},
				Default: "dev",
			},
		},
	}
	if err := survey.Ask(rest, &answers); err != nil {
		return err
	}

	content := renderConfig(answers)
	if err := os.WriteFile("nestful.yaml", []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write nestful.yaml: %w", err)
	}

	successColor := color.New(color.FgGreen, color.Bold)
	infoColor := color.New(color.FgCyan)
	successColor.Fprintln(cmd.OutOrStdout(), "✓ Created nestful.yaml")
	infoColor.Fprintln(cmd.OutOrStdout(), "Run 'nestful serve' to start the demo API.")
	return nil
}

// renderConfig writes only the sections the answers touch, so the file
// stays close to what a hand-written minimal config looks like.
func renderConfig(a initAnswers) string {
	var b strings.Builder
	fmt.Fprintf(&b, "listen: %q\n", a.Listen)
	fmt.Fprintf(&b, "prefix: %q\n", a.Prefix)
	fmt.Fprintf(&b, "log: %s\n", a.Log)
	fmt.Fprintf(&b, "database:\n  driver: %s\n", a.Driver)
	if a.DSN != "" {
		fmt.Fprintf(&b, "  dsn: %q\n", a.DSN)
	}
	if a.RedisAddr != "" {
		fmt.Fprintf(&b, "redis:\n  addr: %q\n", a.RedisAddr)
	}
	if a.JWTSecret != "" {
		fmt.Fprintf(&b, "jwt:\n  secret: %q\n", a.JWTSecret)
	}
	return b.String()
}
