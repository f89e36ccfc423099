package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/matchai/internal/failure"
	"github.com/spigell/matchai/internal/jobs"
	"github.com/spigell/matchai/internal/repository"
)

var companiesCmd = &cobra.Command{
	Use:   "companies",
	Short: "Manage the companies whose careers API is ingested",
}

var companiesLoadCmd = &cobra.Command{
	Use:   "load <file>",
	Short: "Insert companies from a JSON or YAML file, skipping known ids",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		loadCompanies(cmd, args[0])
	},
}

var companiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored companies",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		listCompanies(cmd)
	},
}

var companiesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a single company, skipping it when the id is known",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		addCompanyCmd(cmd)
	},
}

func init() {
	rootCmd.AddCommand(companiesCmd)
	companiesCmd.AddCommand(companiesLoadCmd, companiesListCmd, companiesAddCmd)

	companiesAddCmd.Flags().StringP("uid", "u", "", "company uid in the careers API")
	companiesAddCmd.Flags().StringP("name", "n", "", "company name")
	companiesAddCmd.Flags().StringP("token", "t", "", "careers API token of the company")
	for _, flag := range []string{"uid", "name", "token"} {
		_ = companiesAddCmd.MarkFlagRequired(flag)
	}
}

func loadCompanies(cmd *cobra.Command, path string) {
	ctx, cancel := signalContext()
	defer cancel()

	logger, _, comps := prepare(ctx)
	defer comps.Close()

	companies, err := jobs.LoadCompanies(path)
	if err != nil {
		logger.Fatal("loading companies", zap.String("file", path), zap.Error(err))
	}

	inserted, err := comps.repo.InsertCompanies(ctx, companies)
	if err != nil {
		logger.Fatal("inserting companies", zap.Error(err))
	}

	logger.Info("companies loaded",
		zap.Int("received", len(companies)),
		zap.Int("inserted", inserted),
		zap.Int("skipped", len(companies)-inserted),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "inserted %d of %d companies\n", inserted, len(companies))
}

func listCompanies(cmd *cobra.Command) {
	ctx, cancel := signalContext()
	defer cancel()

	logger, _, comps := prepare(ctx)
	defer comps.Close()

	companies, err := comps.repo.Companies(ctx)
	if err != nil {
		logger.Fatal("listing companies", zap.Error(err))
	}
	for _, company := range companies {
		token := "no token"
		if company.Token != "" {
			token = "token set"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", company.UID, company.Name, token)
	}
}

func addCompanyCmd(cmd *cobra.Command) {
	ctx, cancel := signalContext()
	defer cancel()

	logger, _, comps := prepare(ctx)
	defer comps.Close()

	uid, _ := cmd.Flags().GetString("uid")
	name, _ := cmd.Flags().GetString("name")
	token, _ := cmd.Flags().GetString("token")

	added, err := addCompany(ctx, comps.repo, &jobs.Company{UID: uid, Name: name, Token: token})
	if err != nil {
		logger.Fatal("adding company", zap.String("uid", uid), zap.Error(err))
	}
	if added {
		fmt.Fprintf(cmd.OutOrStdout(), "company %s (%s) added\n", name, uid)
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "company %s already exists\n", uid)
}

// addCompany reports whether the company was new.
func addCompany(ctx context.Context, repo repository.JobRepository, company *jobs.Company) (bool, error) {
	company.UID = strings.TrimSpace(company.UID)
	company.Name = strings.TrimSpace(company.Name)
	company.Token = strings.TrimSpace(company.Token)
	if company.UID == "" || company.Name == "" || company.Token == "" {
		return false, failure.Validationf(company.UID, "company uid, name and token are required")
	}

	inserted, err := repo.InsertCompanies(ctx, []*jobs.Company{company})
	if err != nil {
		return false, err
	}
	return inserted > 0, nil
}
