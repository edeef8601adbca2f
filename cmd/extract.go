package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/job-matcher/internal/logger"
	"github.com/spigell/job-matcher/internal/sections"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Split a resume with **Header** lines into canonical sections",
	Run: func(cmd *cobra.Command, _ []string) {
		extract(cmd)
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringP("file", "f", "-", "resume file, '-' reads stdin")
	extractCmd.Flags().StringSlice("sections", sections.Default, "section names to recognise")
	extractCmd.Flags().Bool("text", false, "print the canonical resume text instead of JSON")
}

func extract(cmd *cobra.Command) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	path, _ := cmd.Flags().GetString("file")
	known, _ := cmd.Flags().GetStringSlice("sections")
	asText, _ := cmd.Flags().GetBool("text")

	raw, err := readFile(path)
	if err != nil {
		logger.Fatal("reading resume", zap.Error(err))
	}

	m := sections.Extract(raw, known)
	if m.IsEmpty() {
		logger.Warn("no known sections found", zap.Strings("sections", known))
	}

	if asText {
		fmt.Println(m.Text())
		return
	}

	if err := printJSON(m); err != nil {
		logger.Fatal("printing sections", zap.Error(err))
	}
}
