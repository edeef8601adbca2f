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

	"github.com/spigell/job-matcher/internal/logger"
	"github.com/spigell/job-matcher/internal/sections"
)

var enhanceCmd = &cobra.Command{
	Use:   "enhance",
	Short: "Rewrite a resume into structured sections with Gemini",
	Run: func(cmd *cobra.Command, _ []string) {
		enhance(cmd)
	},
}

func init() {
	rootCmd.AddCommand(enhanceCmd)

	enhanceCmd.Flags().StringP("resume-file", "r", "-", "resume file, '-' reads stdin")
	enhanceCmd.Flags().Bool("raw", false, "print the model answer as is")
}

// enhancedResume is the JSON shape printed by the enhance command.
type enhancedResume struct {
	Enhanced string        `json:"enhanced"`
	About    string        `json:"about"`
	Sections *sections.Map `json:"sections"`
}

func enhance(cmd *cobra.Command) {
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

	path, _ := cmd.Flags().GetString("resume-file")
	raw, err := readFile(path)
	if err != nil {
		logger.Fatal("reading resume", zap.Error(err))
	}
	if strings.TrimSpace(raw) == "" {
		logger.Fatal("resume is empty", zap.String("path", path))
	}

	embedder, cleanup, err := newEmbedder(ctx, config, logger)
	if err != nil {
		logger.Fatal("creating an embedder", zap.Error(err))
	}
	defer cleanup()

	writer, err := newWriter(ctx, config.AI.Gemini, embedder, logger)
	if err != nil {
		logger.Fatal("creating a resume writer", zap.Error(err))
	}

	text, err := writer.EnhanceResume(ctx, raw)
	if err != nil {
		logger.Fatal("enhancing resume", zap.Error(err))
	}

	if asRaw, _ := cmd.Flags().GetBool("raw"); asRaw {
		fmt.Println(text)
		return
	}

	m := sections.Extract(text, sections.Default)
	if m.IsEmpty() {
		logger.Warn("model answer has no recognised sections", zap.String("hint", "use --raw to inspect it"))
	}

	if err := printJSON(enhancedResume{Enhanced: text, About: m.First(sections.About), Sections: m}); err != nil {
		logger.Fatal("printing result", zap.Error(err))
	}
}
