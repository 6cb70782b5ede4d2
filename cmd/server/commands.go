package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/maheshrc27/postforge/internal/models"
	"github.com/maheshrc27/postforge/internal/service"
)

func newPublishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish",
		Short: "Publish the oldest queued post now",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApplication(cmd.Context())
			if err != nil {
				return err
			}
			res, err := a.publish.PublishNext(cmd.Context())
			if errors.Is(err, service.ErrQueueEmpty) {
				fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty.")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Published %s (message %d)\n\n%s\n",
				filepath.Base(res.PublishedFile), res.MessageID, res.Preview)
			return nil
		},
	}
}

func newPlanCmd() *cobra.Command {
	var show, force bool
	var refine string

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Generate, refine or show the weekly content plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApplication(cmd.Context())
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			latest, err := a.planner.GetLatestPlan(ctx)
			if err != nil {
				return err
			}

			var plan *models.ContentPlan
			switch {
			case show:
				if latest == nil {
					fmt.Fprintln(out, "No content plan yet.")
					return nil
				}
				plan = latest
			case refine != "":
				if latest == nil {
					return errors.New("no content plan to refine")
				}
				if plan, err = a.planner.RefinePlan(ctx, latest, refine); err != nil {
					return err
				}
			default:
				if open := latest.OpenTopics(); open > 0 && !force {
					return fmt.Errorf("latest plan still has %d open topics, use --force to replace it", open)
				}
				if plan, err = a.planner.GenerateWeeklyPlan(ctx); err != nil {
					return err
				}
			}

			fmt.Fprintf(out, "%s\n\n%s", filepath.Base(plan.File), service.FormatPlan(plan))
			return nil
		},
	}
	cmd.Flags().BoolVar(&show, "show", false, "print the latest plan without generating")
	cmd.Flags().BoolVar(&force, "force", false, "replace a plan that still has open topics")
	cmd.Flags().StringVar(&refine, "refine", "", "revise the latest plan with this feedback")
	return cmd
}
