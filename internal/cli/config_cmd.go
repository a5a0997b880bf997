package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/soyeahso/notebridge/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Get or set configuration values",
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigGetCmd())
	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigUnsetCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write the default config file if none exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			written, err := config.WriteDefault(paths.Config)
			if err != nil {
				return err
			}
			if !written {
				fmt.Fprintf(cmd.OutOrStdout(), "Config already exists at %s\n", paths.Config)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote default config to %s\n", paths.Config)
			fmt.Fprintln(cmd.OutOrStdout(), "Set peer.token, peer.peerId and peer.enabled to start messaging.")
			return nil
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	var reveal bool
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ParseConfigPath(args[0])
			if err != nil {
				return err
			}

			raw, err := config.LoadRaw(paths.Config)
			if err != nil {
				return err
			}

			val, ok := config.GetValueAtPath(raw, path)
			if !ok {
				return fmt.Errorf("key %q not found", args[0])
			}
			if secret, ok := val.(string); ok && isSecretKey(path) && !reveal {
				val = mask(secret)
			}

			return printValue(cmd.OutOrStdout(), val)
		},
	}
	cmd.Flags().BoolVar(&reveal, "reveal", false, "print secrets in full")
	return cmd
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ParseConfigPath(args[0])
			if err != nil {
				return err
			}

			raw, err := config.LoadRaw(paths.Config)
			if err != nil {
				return err
			}

			if err := paths.EnsureDirs(); err != nil {
				return err
			}
			value := parseValue(path, args[1])
			config.SetValueAtPath(raw, path, value)

			if err := config.SaveRaw(paths.Config, raw); err != nil {
				return err
			}

			shown := value
			if isSecretKey(path) {
				shown = mask(args[1])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %v\n", args[0], shown)
			return nil
		},
	}
}

func newConfigUnsetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unset <key>",
		Short: "Remove a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ParseConfigPath(args[0])
			if err != nil {
				return err
			}

			raw, err := config.LoadRaw(paths.Config)
			if err != nil {
				return err
			}

			if !config.UnsetValueAtPath(raw, path) {
				return fmt.Errorf("key %q not found", args[0])
			}

			if err := config.SaveRaw(paths.Config, raw); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Unset %s\n", args[0])
			return nil
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), paths.Config)
		},
	}
}

// stringKeys are stored as strings even when they look numeric or boolean,
// so a Discord user ID stays a quoted snowflake.
var stringKeys = map[string]bool{
	"peerId": true,
	"token":  true,
	"nick":   true,
	"idle":   true,
}

func isSecretKey(path []string) bool {
	return path[len(path)-1] == "token"
}

// printValue outputs a value in a human-readable format.
func printValue(out io.Writer, v any) error {
	switch val := v.(type) {
	case map[string]any, []any:
		data, err := yaml.Marshal(val)
		if err != nil {
			return err
		}
		fmt.Fprint(out, string(data))
	default:
		fmt.Fprintln(out, val)
	}
	return nil
}

// parseValue interprets s as a typed YAML value for the key at path.
func parseValue(path []string, s string) any {
	if stringKeys[path[len(path)-1]] {
		return s
	}

	lower := strings.ToLower(s)
	if lower == "true" {
		return true
	}
	if lower == "false" {
		return false
	}

	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if strings.Contains(s, ",") {
		var items []any
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				items = append(items, part)
			}
		}
		return items
	}

	return s
}
