package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/spigell/matchai/internal/candidate"
	"github.com/spigell/matchai/internal/cv"
	"github.com/spigell/matchai/internal/profiles"
	"github.com/spigell/matchai/internal/repository"
)

var uploadCVCmd = &cobra.Command{
	Use:   "upload-cv <file>",
	Short: "Parse a CV (pdf, txt, md) into a candidate profile and store it",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		uploadCV(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(uploadCVCmd)

	uploadCVCmd.Flags().String("profile", "", "YAML file with a structured profile to store instead of parsing the CV with the LLM")
}

func uploadCV(cmd *cobra.Command, path string) {
	ctx, cancel := signalContext()
	defer cancel()

	logger, _, comps := prepare(ctx)
	defer comps.Close()

	text, err := cv.ExtractText(path)
	if err != nil {
		logger.Fatal("reading cv", zap.String("file", path), zap.Error(err))
	}

	var (
		stored *repository.Candidate
		source profiles.Source
	)
	profilePath, _ := cmd.Flags().GetString("profile")
	if profilePath != "" {
		profile, err := readProfile(profilePath)
		if err != nil {
			logger.Fatal("reading profile", zap.String("file", profilePath), zap.Error(err))
		}
		stored, err = comps.profiles.Store(ctx, text, profile)
		if err != nil {
			logger.Fatal("storing profile", zap.Error(err))
		}
		source = "file"
	} else {
		stored, source, err = comps.profiles.Resolve(ctx, text)
		if err != nil {
			logger.Fatal("resolving profile", zap.Error(err),
				zap.String("hint", "enable ai.gemini or pass --profile with a structured profile"))
		}
	}

	logger.Info("candidate stored", zap.String("candidate_hash", stored.Hash), zap.String("source", string(source)))

	out, err := yaml.Marshal(stored.Profile)
	if err != nil {
		logger.Fatal("rendering profile", zap.Error(err))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "candidate: %s\n%s", stored.Hash, out)
}

func readProfile(path string) (candidate.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return candidate.Profile{}, err
	}
	var profile candidate.Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return candidate.Profile{}, fmt.Errorf("decode profile: %w", err)
	}
	return profile, nil
}
