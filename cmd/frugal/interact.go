package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/pario-ai/frugal/pkg/bucket"
	"github.com/pario-ai/frugal/pkg/budget"
	"github.com/pario-ai/frugal/pkg/engine"
	"github.com/pario-ai/frugal/pkg/router"
	"github.com/pario-ai/frugal/pkg/signature"
)

type interactionFlags struct {
	agent     string
	situation string
	state     []string
}

func (f *interactionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.agent, "agent", "a", "", "agent name")
	cmd.Flags().StringVarP(&f.situation, "situation", "s", "", "situation type")
	cmd.Flags().StringSliceVar(&f.state, "state", nil, "world state as key=value (repeatable)")
}

func newInteractCmd(a *app) *cobra.Command {
	var (
		flags     interactionFlags
		task      string
		system    string
		maxTokens int
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "interact [input]",
		Short: "Run one agent interaction through the cache, budget and router",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := engine.Request{
				Agent:           flags.agent,
				Situation:       flags.situation,
				State:           bucket.ParseState(flags.state),
				Input:           strings.Join(args, " "),
				SystemPrompt:    system,
				MaxOutputTokens: maxTokens,
			}
			if task != "" {
				t, err := router.ParseTaskType(task)
				if err != nil {
					return err
				}
				req.TaskType = t
			}

			e, err := a.openEngine(false)
			if err != nil {
				return err
			}
			defer func() { _ = e.Close() }()

			resp, err := e.Interact(cmd.Context(), req)
			var exceeded *budget.ExceededError
			if errors.As(err, &exceeded) {
				return fmt.Errorf("interaction blocked: %w", err)
			}
			if err != nil && resp.Text == "" {
				return err
			}
			if err != nil {
				a.logger.Warn("interaction completed with errors", "error", err)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Text)
			if resp.FromCache {
				fmt.Fprintf(cmd.ErrOrStderr(), "\n[cache hit %s, $0]\n", resp.Signature)
			} else {
				fmt.Fprintf(cmd.ErrOrStderr(), "\n[%s, %s in / %s out, $%.4f, %s]\n",
					resp.Model,
					humanize.Comma(int64(resp.Usage.InputTokens)),
					humanize.Comma(int64(resp.Usage.OutputTokens)),
					resp.Cost, resp.Latency.Round(time.Millisecond))
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&task, "task", "t", "", "task type (compaction, summarization, agent_response, complex_reasoning)")
	cmd.Flags().StringVar(&system, "system", "", "system prompt")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "maximum output tokens")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full response as JSON")
	return cmd
}

func newSignatureCmd(a *app) *cobra.Command {
	var flags interactionFlags

	cmd := &cobra.Command{
		Use:   "signature [input]",
		Short: "Compute the cache signature of an interaction without running it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stateBucket := bucket.New(a.cfg.Buckets).Bucket(bucket.ParseState(flags.state))
			c := signature.Components{
				AgentName:     flags.agent,
				SituationType: flags.situation,
				StateBucket:   stateBucket,
				InputIntent:   signature.NormalizeInput(strings.Join(args, " ")),
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signature:  %s\nComponents: %s\n", signature.Compute(c), c)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newBucketCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "bucket key=value...",
		Short: "Show the state bucket for a world state",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), bucket.New(a.cfg.Buckets).Bucket(bucket.ParseState(args)))
			return nil
		},
	}
}
