// Package cli implements relayctl, a command-line client for a running relay.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Harsh-BH/threatrelay/internal/client"
)

const (
	defaultServer  = "http://localhost:8080"
	defaultTimeout = 30 * time.Second
)

// NewRootCmd returns the relayctl command tree. Flags fall back to
// RELAYCTL_* environment variables.
func NewRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("relayctl")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:           "relayctl",
		Short:         "Submit analyses to a threatrelay server and read its results",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.String("server", defaultServer, "Relay base URL")
	flags.Duration("timeout", defaultTimeout, "Per-request HTTP timeout")
	flags.StringP("output", "o", "json", "Output format: json or yaml")
	for _, name := range []string{"server", "timeout", "output"} {
		if err := v.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}

	rootCmd.AddCommand(
		newAnalyzeCmd(v),
		newStatusCmd(v),
		newEventsCmd(v),
	)
	return rootCmd
}

func newClient(v *viper.Viper) (*client.Client, error) {
	return client.New(v.GetString("server"), v.GetDuration("timeout"))
}

// render writes v as indented JSON or YAML. YAML keys follow the JSON field names.
func render(w io.Writer, format string, v interface{}) error {
	switch strings.ToLower(format) {
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "yml":
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var generic interface{}
		if err := json.Unmarshal(raw, &generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format %q (use json or yaml)", format)
	}
}
