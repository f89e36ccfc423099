package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/matchai/internal/filtering"
	"github.com/spigell/matchai/internal/matching"
	"github.com/spigell/matchai/internal/report"
	"github.com/spigell/matchai/internal/repository"
)

const (
	PromptDone             = "Done"
	PromptBack             = "back"
	PromptShowExplanations = "Show explanations"
	PromptChooseJob        = "Choose a job"
	PromptShowLink         = "Show apply link"
	PromptExclude          = "Exclude from future matches"
)

var errExit = errors.New("exit requested")

var actionPrompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptChooseJob, PromptShowExplanations, PromptDone},
}

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Match the stored candidate against ingested jobs and store the ranked results",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		match(cmd)
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().String("candidate", "", "candidate hash (default is the latest uploaded CV)")
	matchCmd.Flags().String("location", "", "only jobs in this location (remote jobs always match)")
	matchCmd.Flags().Int("seniority-tolerance", -1, "accepted distance between candidate and job seniority (default from config)")
	matchCmd.Flags().Int("top-n", 0, "number of results (default from config)")
	matchCmd.Flags().Bool("ignore-view-history", false, "include jobs already shown max-views times")
	matchCmd.Flags().StringP("format", "o", formatTable, "output format: table or json")
	matchCmd.Flags().BoolP("interactive", "i", false, "choose results to open or exclude after the run")
	matchCmd.Flags().StringP("exclude-file", "e", "", "special file with jobs to exclude. Default is unset.")

	viper.BindPFlag("filters.exclude_file", matchCmd.Flags().Lookup("exclude-file"))
}

func match(cmd *cobra.Command) {
	ctx, cancel := signalContext()
	defer cancel()

	logger, config, comps := prepare(ctx)
	defer comps.Close()

	req, err := matchRequest(ctx, cmd, comps)
	if err != nil {
		logger.Fatal("resolving candidate", zap.Error(err),
			zap.String("hint", "upload a CV with upload-cv first"))
	}

	rep, err := comps.matcher.Match(ctx, req)
	if err != nil {
		fmt.Fprint(cmd.OutOrStdout(), report.Summary(rep))
		runLogger(logger, rep).Fatal("match aborted", zap.Error(err))
	}

	format, _ := cmd.Flags().GetString("format")
	if format == formatJSON {
		if err := printJSON(cmd.OutOrStdout(), rep); err != nil {
			logger.Fatal("printing report", zap.Error(err))
		}
		return
	}
	fmt.Fprintln(cmd.OutOrStdout(), report.Render(rep))

	interactive, _ := cmd.Flags().GetBool("interactive")
	if !interactive || len(rep.Results) == 0 {
		return
	}

	for {
		_, action, err := actionPrompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		if err := handleAction(ctx, action, comps, config, rep); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func matchRequest(ctx context.Context, cmd *cobra.Command, comps *components) (matching.Request, error) {
	hash, _ := cmd.Flags().GetString("candidate")
	candidate, err := comps.profiles.Lookup(ctx, hash)
	if err != nil {
		return matching.Request{}, fmt.Errorf("lookup candidate %q: %w", hash, err)
	}

	req := matching.Request{Candidate: candidate}
	req.Location, _ = cmd.Flags().GetString("location")
	req.TopN, _ = cmd.Flags().GetInt("top-n")
	req.IgnoreViewHistory, _ = cmd.Flags().GetBool("ignore-view-history")
	if tolerance, _ := cmd.Flags().GetInt("seniority-tolerance"); tolerance >= 0 {
		req.SeniorityTolerance = &tolerance
	}
	return req, nil
}

func handleAction(ctx context.Context, action string, comps *components, config *Config, rep *matching.Report) error {
	switch action {
	case PromptDone:
		comps.logger.Info("exiting", zap.String("reason", "done from prompt"))
		return errExit
	case PromptShowExplanations:
		fmt.Println(report.Explanations(rep.Results))
		return nil
	case PromptChooseJob:
		return chooseJob(ctx, comps, config, rep)
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func chooseJob(ctx context.Context, comps *components, config *Config, rep *matching.Report) error {
	for {
		items := make([]string, 0, len(rep.Results)+1)
		for _, r := range rep.Results {
			items = append(items, fmt.Sprintf("%s %s / %s / %.3f", r.JobUID, r.Title, r.CompanyName, r.FinalScore))
		}

		jobPrompt := promptui.Select{
			Label: "Choose a job and press ENTER",
			Items: append(items, PromptBack),
		}
		_, selected, err := jobPrompt.Run()
		if err != nil {
			return err
		}
		if selected == PromptBack {
			return nil
		}

		uid := strings.Split(selected, " ")[0]
		result := findResult(rep.Results, uid)
		if result == nil {
			return fmt.Errorf("there is no such job uid %s", uid)
		}

		jobActions := []string{PromptShowLink}
		if config.Filters.ExcludeFile != "" {
			jobActions = append(jobActions, PromptExclude)
		}
		jobActionPrompt := promptui.Select{
			Label: result.Title,
			Items: append(jobActions, PromptBack),
		}
		_, action, err := jobActionPrompt.Run()
		if err != nil {
			return err
		}

		switch action {
		case PromptShowLink:
			if result.ApplyURL == "" {
				fmt.Println("no apply link for this job")
			} else {
				fmt.Println(result.ApplyURL)
			}
		case PromptExclude:
			if err := excludeJob(ctx, comps, config.Filters.ExcludeFile, uid); err != nil {
				return err
			}
		}
	}
}

func excludeJob(ctx context.Context, comps *components, excludeFile, uid string) error {
	found, err := comps.repo.JobsByUIDs(ctx, []string{uid})
	if err != nil {
		return fmt.Errorf("load job %s: %w", uid, err)
	}
	if len(found) == 0 {
		return fmt.Errorf("job %s is not stored", uid)
	}

	excluded, err := filtering.LoadExcludedJobs(excludeFile)
	if err != nil {
		return fmt.Errorf("read exclude file: %w", err)
	}
	if !excluded.Add(found[0]) {
		comps.logger.Info("job already excluded", zap.String("job_uid", uid))
		return nil
	}
	if err := excluded.Save(excludeFile); err != nil {
		return fmt.Errorf("write exclude file: %w", err)
	}

	comps.logger.Info("appended to exclude file", zap.String("filename", excludeFile), zap.String("job_uid", uid))
	return nil
}

func findResult(results []repository.MatchResult, uid string) *repository.MatchResult {
	for i := range results {
		if results[i].JobUID == uid {
			return &results[i]
		}
	}
	return nil
}
