package cmd

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/xvierd/focus-cli/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View and edit settings",
	Long:  `Interactively change the backend address, poll interval, notifications and log level.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadFrom(app.configPath)
		if err != nil {
			return err
		}
		reader := bufio.NewReader(cmd.InOrStdin())
		out := cmd.OutOrStdout()

		fmt.Fprintln(out)
		fmt.Fprintln(out, "  Current configuration:")
		fmt.Fprintln(out)
		printConfig(out, cfg)
		fmt.Fprintln(out)
		fmt.Fprintln(out, "  What would you like to change?")
		fmt.Fprintln(out, "    [b] Backend address")
		fmt.Fprintln(out, "    [p] Poll interval")
		fmt.Fprintln(out, "    [n] Notifications")
		fmt.Fprintln(out, "    [l] Log level")
		fmt.Fprintln(out, "    [q] Quit without saving")
		fmt.Fprint(out, "  Choose: ")

		choice, _ := reader.ReadString('\n')
		choice = strings.TrimSpace(strings.ToLower(choice))

		switch choice {
		case "b":
			return promptSetting(reader, out, cfg, "backend.base_url", cfg.Backend.BaseURL)
		case "p":
			return promptSetting(reader, out, cfg, "poll.interval", cfg.Poll.Interval.String())
		case "n":
			return editNotifications(reader, out, cfg)
		case "l":
			return promptSetting(reader, out, cfg, "log.level", cfg.Log.Level)
		case "q", "":
			fmt.Fprintln(out, "  No changes made.")
			return nil
		default:
			return fmt.Errorf("invalid choice %q", choice)
		}
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadFrom(app.configPath)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  File: %s\n\n", app.configPath)
		printConfig(cmd.OutOrStdout(), cfg)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting",
	Long: `Change one setting and save the config file. Keys:
  backend.base_url, backend.timeout, poll.interval,
  notifications.enabled, notifications.sound,
  log.level, log.file, rules.file, mcp.enabled`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadFrom(app.configPath)
		if err != nil {
			return err
		}
		if err := setConfigValue(cfg, args[0], args[1]); err != nil {
			return err
		}
		if err := config.SaveTo(app.configPath, cfg); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  Saved: %s = %s\n", args[0], args[1])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func printConfig(w io.Writer, cfg *config.Config) {
	notifStatus := "off"
	if cfg.Notifications.Enabled {
		notifStatus = "on"
		if cfg.Notifications.Sound {
			notifStatus = "on (with sound)"
		}
	}
	mcpStatus := "off"
	if cfg.MCP.Enabled {
		mcpStatus = "on"
	}

	fmt.Fprintf(w, "    Backend:        %s (timeout %s)\n", cfg.Backend.BaseURL, cfg.Backend.Timeout)
	fmt.Fprintf(w, "    Poll interval:  %s\n", cfg.Poll.Interval)
	fmt.Fprintf(w, "    Notifications:  %s\n", notifStatus)
	fmt.Fprintf(w, "    Data dir:       %s\n", cfg.Storage.DataDir)
	fmt.Fprintf(w, "    Log:            %s (%s)\n", config.GetLogPath(cfg), cfg.Log.Level)
	fmt.Fprintf(w, "    Rules file:     %s\n", config.GetRulesFile(cfg))
	fmt.Fprintf(w, "    MCP server:     %s\n", mcpStatus)
}

// setConfigValue validates value and assigns it to the setting named key.
func setConfigValue(cfg *config.Config, key, value string) error {
	value = strings.TrimSpace(value)
	switch key {
	case "backend.base_url":
		u, err := url.Parse(value)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid backend address %q", value)
		}
		cfg.Backend.BaseURL = strings.TrimRight(value, "/")
	case "backend.timeout", "poll.interval":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
		if key == "backend.timeout" {
			cfg.Backend.Timeout = config.Duration(d)
		} else {
			cfg.Poll.Interval = config.Duration(d)
		}
	case "notifications.enabled", "notifications.sound", "mcp.enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean %q", value)
		}
		switch key {
		case "notifications.enabled":
			cfg.Notifications.Enabled = b
		case "notifications.sound":
			cfg.Notifications.Sound = b
		default:
			cfg.MCP.Enabled = b
		}
	case "log.level":
		if _, err := zapcore.ParseLevel(value); err != nil {
			return fmt.Errorf("invalid log level %q", value)
		}
		cfg.Log.Level = strings.ToLower(value)
	case "log.file":
		cfg.Log.File = value
	case "rules.file":
		cfg.Rules.File = value
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	return nil
}

func promptSetting(reader *bufio.Reader, out io.Writer, cfg *config.Config, key, current string) error {
	fmt.Fprintf(out, "\n  %s [%s]: ", key, current)
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		fmt.Fprintln(out, "  No changes made.")
		return nil
	}
	if err := setConfigValue(cfg, key, input); err != nil {
		return err
	}
	if err := config.SaveTo(app.configPath, cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	fmt.Fprintf(out, "\n  Saved: %s = %s\n", key, input)
	return nil
}

func editNotifications(reader *bufio.Reader, out io.Writer, cfg *config.Config) error {
	fmt.Fprintln(out)
	fmt.Fprintln(out, "    [1] Off")
	fmt.Fprintln(out, "    [2] On (visual only)")
	fmt.Fprintln(out, "    [3] On (with sound)")
	fmt.Fprint(out, "  Choose: ")

	choice, _ := reader.ReadString('\n')
	switch strings.TrimSpace(choice) {
	case "1":
		cfg.Notifications.Enabled = false
		cfg.Notifications.Sound = false
	case "2":
		cfg.Notifications.Enabled = true
		cfg.Notifications.Sound = false
	case "3":
		cfg.Notifications.Enabled = true
		cfg.Notifications.Sound = true
	default:
		fmt.Fprintln(out, "  No changes made.")
		return nil
	}

	if err := config.SaveTo(app.configPath, cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	fmt.Fprintln(out, "\n  Saved notification settings.")
	return nil
}
