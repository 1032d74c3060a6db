package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shiftbook/rosterscan/internal/auth"
	"github.com/shiftbook/rosterscan/internal/model"
	"github.com/shiftbook/rosterscan/internal/pipeline"
)

var (
	scanOut    string
	scanLegacy bool
)

var scanCmd = &cobra.Command{
	Use:   "scan <image>",
	Short: "Scan a roster image and commit the extracted shifts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		image, err := readImageBase64(args[0])
		if err != nil {
			return err
		}

		sink := newScanSink(env, scanOut)
		gate := auth.NewGate(env.tokens)
		defer gate.Close()
		ctrl := pipeline.NewController(env.client, env.quotaGate(ctx), env.registry,
			env.store, sink, env.userID, pipeline.WithAuthGate(gate))
		defer ctrl.Dispose()

		if scanLegacy {
			return runLegacyScan(ctx, env, ctrl, image, sink)
		}
		return runInteractiveScan(ctx, env, ctrl, image, sink)
	},
}

func runInteractiveScan(ctx context.Context, env *scanEnv, ctrl *pipeline.Controller, image string, sink *scanSink) error {
	in := bufio.NewScanner(os.Stdin)

	if err := ctrl.Process(ctx, image); err != nil {
		return reportPipelineError(ctrl, err)
	}

	if ctrl.State() == pipeline.StateQuestions {
		var answers []model.QuestionAnswer
		for _, q := range ctrl.Questions() {
			fmt.Println(q.Prompt)
			if len(q.Options) > 0 {
				fmt.Printf("  options: %s\n", strings.Join(q.Options, ", "))
			}
			fmt.Print("> ")
			if !in.Scan() {
				return eris.New("input closed before all questions were answered")
			}
			answers = append(answers, model.QuestionAnswer{
				QuestionID: q.ID,
				Value:      strings.TrimSpace(in.Text()),
			})
		}
		if err := ctrl.SubmitAnswers(ctx, answers); err != nil {
			return reportPipelineError(ctrl, err)
		}
	}

	if ctrl.State() == pipeline.StateMapping {
		mappings := promptMappings(in, env, ctrl.UnmappedNames())
		if warn := ctrl.ApplyMappings(ctx, mappings); warn != nil {
			fmt.Println("warning: some aliases could not be saved; mappings still apply to this scan")
		}
	}

	printShifts(env, ctrl.Shifts())
	fmt.Print("Commit these shifts? [y/N] ")
	if !in.Scan() || !strings.EqualFold(strings.TrimSpace(in.Text()), "y") {
		fmt.Println("aborted")
		return nil
	}

	if err := ctrl.Confirm(ctx); err != nil {
		return reportPipelineError(ctrl, err)
	}
	return sink.finish()
}

// runLegacyScan uses the single-phase endpoint: image in, shifts out,
// feeding the same confirmation stage without questions.
func runLegacyScan(ctx context.Context, env *scanEnv, ctrl *pipeline.Controller, image string, sink *scanSink) error {
	var identifier string
	if profile, err := env.store.GetProfile(ctx, env.userID); err == nil && profile != nil {
		identifier = string(profile.RosterIdentifier)
	}

	result, err := env.client.ExtractLegacy(ctx, image, env.registry.List(), nil, identifier)
	if err != nil {
		return err
	}

	if err := ctrl.AdoptShifts(ctx, result.Shifts, result.IdentifiedPerson); err != nil {
		return err
	}
	printShifts(env, ctrl.Shifts())
	if err := ctrl.Confirm(ctx); err != nil {
		return reportPipelineError(ctrl, err)
	}
	return sink.finish()
}

func promptMappings(in *bufio.Scanner, env *scanEnv, unmapped []string) []model.JobMapping {
	jobs := env.registry.List()
	fmt.Println("Unknown roster job names. Pick a job for each (empty to skip):")
	for i, j := range jobs {
		fmt.Printf("  [%d] %s\n", i+1, j.Name)
	}

	var mappings []model.JobMapping
	for _, name := range unmapped {
		fmt.Printf("%q -> job number (add ! to remember): ", name)
		if !in.Scan() {
			break
		}
		choice := strings.TrimSpace(in.Text())
		save := strings.HasSuffix(choice, "!")
		choice = strings.TrimSuffix(choice, "!")
		idx := 0
		if _, err := fmt.Sscanf(choice, "%d", &idx); err != nil || idx < 1 || idx > len(jobs) {
			continue
		}
		mappings = append(mappings, model.JobMapping{
			RosterJobName: name,
			JobConfigID:   jobs[idx-1].ID,
			SaveAsAlias:   save,
		})
	}
	return mappings
}

func printShifts(env *scanEnv, shifts []model.ParsedShift) {
	fmt.Printf("%-12s %-20s %-7s %-7s %s\n", "DATE", "JOB", "START", "END", "HOURS")
	for _, s := range shifts {
		name := s.RosterJobName
		if j, ok := env.registry.Get(s.MappedJobID); ok {
			name = j.Name
		}
		hours := "-"
		if s.TotalHours != nil {
			hours = fmt.Sprintf("%.2f", *s.TotalHours)
		}
		fmt.Printf("%-12s %-20s %-7s %-7s %s\n", s.Date, name, s.StartTime, s.EndTime, hours)
	}
}

func reportPipelineError(ctrl *pipeline.Controller, err error) error {
	if kind, msg, ok := ctrl.Err(); ok {
		zap.L().Error("scan failed", zap.String("kind", string(kind)))
		return eris.Errorf("scan failed (%s): %s", kind, msg)
	}
	return err
}

func init() {
	scanCmd.Flags().StringVar(&scanOut, "out", "", "write committed shifts to this XLSX file")
	scanCmd.Flags().BoolVar(&scanLegacy, "legacy", false, "use the single-phase extraction endpoint")
	rootCmd.AddCommand(scanCmd)
}
