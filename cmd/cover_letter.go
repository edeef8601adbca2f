package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/job-matcher/internal/ai"
	"github.com/spigell/job-matcher/internal/logger"
)

var coverLetterCmd = &cobra.Command{
	Use:   "cover-letter",
	Short: "Write a cover letter for a job posting",
	Run: func(cmd *cobra.Command, _ []string) {
		coverLetter(cmd)
	},
}

func init() {
	rootCmd.AddCommand(coverLetterCmd)

	coverLetterCmd.Flags().StringP("resume-file", "r", "", "resume file")
	coverLetterCmd.Flags().StringP("title", "t", "", "job title")
	coverLetterCmd.Flags().StringP("company", "c", "", "company name")
	coverLetterCmd.Flags().String("description-file", "-", "job description file, '-' reads stdin")

	coverLetterCmd.MarkFlagRequired("resume-file")
	coverLetterCmd.MarkFlagRequired("title")
}

func coverLetter(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	resumePath, _ := cmd.Flags().GetString("resume-file")
	descriptionPath, _ := cmd.Flags().GetString("description-file")
	title, _ := cmd.Flags().GetString("title")
	company, _ := cmd.Flags().GetString("company")

	if resumePath == "-" && descriptionPath == "-" {
		logger.Fatal("resume and description can not both be read from stdin")
	}

	resume, err := readFile(resumePath)
	if err != nil {
		logger.Fatal("reading resume", zap.Error(err))
	}
	description, err := readFile(descriptionPath)
	if err != nil {
		logger.Fatal("reading job description", zap.Error(err))
	}

	// guidelines are not used for cover letters, so no embedder is needed
	writer, err := newWriter(ctx, config.AI.Gemini, nil, logger)
	if err != nil {
		logger.Fatal("creating a writer", zap.Error(err))
	}

	letter, err := writer.CoverLetter(ctx, resumeText(resume), ai.JobSummary{
		Title:       title,
		Company:     company,
		Description: strings.TrimSpace(description),
	})
	if err != nil {
		logger.Fatal("writing cover letter", zap.Error(err))
	}

	fmt.Println(letter)
}
