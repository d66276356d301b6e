package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Harsh-BH/threatrelay/internal/domain"
	"github.com/Harsh-BH/threatrelay/internal/orchestrator"
	"github.com/Harsh-BH/threatrelay/internal/poller"
)

// errAnalysisFailed is returned after a failed outcome has been printed.
var errAnalysisFailed = errors.New("analysis failed")

func newAnalyzeCmd(v *viper.Viper) *cobra.Command {
	var workflow string
	var attempts int
	var interval time.Duration
	var quiet bool

	defaults := poller.DefaultPolicy()

	cmd := &cobra.Command{
		Use:   "analyze <target>",
		Short: "Dispatch a target for analysis and wait for the verdict",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format := v.GetString("output")
			c, err := newClient(v)
			if err != nil {
				return err
			}

			policy := poller.Policy{MaxAttempts: attempts, Interval: interval}
			if policy.MaxAttempts < 1 {
				return fmt.Errorf("--attempts must be at least 1, got %d", attempts)
			}

			var obs orchestrator.Observer = orchestrator.ObserverFunc(func(t orchestrator.Transition) {
				if quiet {
					return
				}
				line := fmt.Sprintf("%s  %-16s %s", t.At.Format(time.TimeOnly), t.State, t.JobID)
				if t.Reason != "" {
					line += "  " + t.Reason
				}
				fmt.Fprintln(cmd.ErrOrStderr(), line)
			})

			o := orchestrator.New(c, c, policy, zap.NewNop())
			out := o.RunObserved(cmd.Context(), orchestrator.Submission{
				Workflow: domain.Workflow(workflow),
				Target:   args[0],
			}, obs)

			if err := render(cmd.OutOrStdout(), format, out); err != nil {
				return err
			}
			if out.State != orchestrator.StateCompleted {
				return fmt.Errorf("%w: %s", errAnalysisFailed, out.Reason)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&workflow, "workflow", "w", string(domain.WorkflowPhishing), "Workflow to dispatch to (phishing or logs)")
	cmd.Flags().IntVar(&attempts, "attempts", defaults.MaxAttempts, "Maximum status checks before giving up")
	cmd.Flags().DurationVar(&interval, "interval", defaults.Interval, "Wait between status checks")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print progress to stderr")
	return cmd
}
