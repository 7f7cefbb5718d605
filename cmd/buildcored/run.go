package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/buildcore/engine/internal/entry"
	"github.com/buildcore/engine/internal/hostenv"
	"github.com/buildcore/engine/internal/nodepool"
	"github.com/buildcore/engine/internal/schedbus"
)

var (
	runProjectPath string
	runTargets     []string
	runDotnetRoot  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "submit a build request and block for its result",
	RunE: func(cmd *cobra.Command, args []string) error {
		if runProjectPath == "" {
			return fmt.Errorf("run: --project is required")
		}
		if len(runTargets) == 0 {
			runTargets = []string{"Build"}
		}

		if runDotnetRoot != "" {
			snap := hostenv.Propagate(runDotnetRoot)
			defer snap.Restore()
		}

		pool := nodepool.New(settings.NodeReuseThreshold, nil)
		if err := pool.WaitForSlot(cmd.Context(), settings.MaxCPUCount); err != nil {
			return fmt.Errorf("run: waiting for a node slot: %w", err)
		}

		bus := schedbus.New()
		events := bus.Subscribe()
		go func() {
			for ev := range events {
				logger.Debug("entry lifecycle event", "type", ev.Type.String(), "submissionId", ev.SubmissionID)
			}
		}()

		req := entry.BuildRequest{
			SubmissionID:    1,
			NodeRequestID:   1,
			ConfigurationID: 1,
			Targets:         runTargets,
		}
		cfg := entry.BuildRequestConfiguration{
			ConfigurationID: 1,
			ProjectPath:     runProjectPath,
		}

		e := entry.New(req, cfg)
		bus.Publish(schedbus.LifecycleEvent{SubmissionID: req.SubmissionID, NodeRequestID: req.NodeRequestID, Type: schedbus.EventReady, At: time.Now()})

		if _, err := e.Continue(); err != nil {
			return fmt.Errorf("run: %w", err)
		}
		bus.Publish(schedbus.LifecycleEvent{SubmissionID: req.SubmissionID, NodeRequestID: req.NodeRequestID, Type: schedbus.EventActive, At: time.Now()})

		result := entry.BuildResult{OverallCode: entry.ResultSuccess}
		for _, t := range runTargets {
			result.SetTarget(t, entry.TargetResult{Code: entry.ResultSuccess})
		}
		if err := e.Complete(result); err != nil {
			return fmt.Errorf("run: %w", err)
		}
		bus.Publish(schedbus.LifecycleEvent{SubmissionID: req.SubmissionID, NodeRequestID: req.NodeRequestID, Type: schedbus.EventComplete, At: time.Now()})

		final, _ := e.Result()
		logger.Info("build complete", "project", runProjectPath, "overallCode", final.OverallCode.String(), "targets", final.TargetNames())
		if jsonOutput {
			fmt.Printf("{\"project\":%q,\"overallCode\":%q,\"targets\":%q}\n", runProjectPath, final.OverallCode.String(), final.TargetNames())
		} else {
			fmt.Printf("%s: %s (%v)\n", runProjectPath, final.OverallCode, final.TargetNames())
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runProjectPath, "project", "", "project path to build")
	runCmd.Flags().StringSliceVar(&runTargets, "target", nil, "target name(s) to build (repeatable, defaults to Build)")
	runCmd.Flags().StringVar(&runDotnetRoot, "dotnet-root", "", "propagate DOTNET_ROOT for the duration of this build")
}
