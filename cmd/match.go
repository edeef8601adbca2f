package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/job-matcher/internal/ai"
	"github.com/spigell/job-matcher/internal/embedding"
	"github.com/spigell/job-matcher/internal/filtering"
	"github.com/spigell/job-matcher/internal/listings"
	"github.com/spigell/job-matcher/internal/logger"
	"github.com/spigell/job-matcher/internal/matcher"
)

const (
	PromptShow                = "Show matches"
	PromptReportByCompanies   = "Report by companies"
	PromptMatchesToFile       = "Dump matches to file"
	PromptCoverLetter         = "Write a cover letter"
	PromptLearningPath        = "Suggest a learning path"
	PromptAppendToExcludeFile = "Append all matches to exclude file"
	PromptExit                = "Exit"
	PromptBack                = "back"

	learningPathJobs = 3
)

var errExit = errors.New("exit requested")

var prompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptShow, PromptReportByCompanies, PromptMatchesToFile, PromptCoverLetter, PromptLearningPath, PromptAppendToExcludeFile, PromptExit},
}

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Fetch job postings and rank them against a resume",
	Run: func(cmd *cobra.Command, _ []string) {
		match(cmd)
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().StringP("title", "t", "", "job title to search for")
	matchCmd.Flags().StringP("location", "l", "", "location to search in")
	matchCmd.Flags().IntP("limit", "n", 10, "maximum number of postings to fetch")
	matchCmd.Flags().Int("top", 0, "keep only the best N matches (0 keeps all)")
	matchCmd.Flags().StringP("resume-file", "r", "", "resume file, '-' reads stdin. Without a resume jobs are listed unranked")
	matchCmd.Flags().StringP("exclude-file", "e", "", "special file with jobs to exclude. Default is unset.")
	matchCmd.Flags().String("snapshot", "", "sqlite file to reuse fetched jobs and vectors between runs")
	matchCmd.Flags().Bool("enhance", false, "rewrite the resume with Gemini before matching")
	matchCmd.Flags().Bool("json-output", false, "print the result as JSON and exit")
	matchCmd.Flags().BoolP("auto-approve", "y", false, "print the matches and exit without prompting")

	viper.BindPFlag("search.title", matchCmd.Flags().Lookup("title"))
	viper.BindPFlag("search.location", matchCmd.Flags().Lookup("location"))
	viper.BindPFlag("search.limit", matchCmd.Flags().Lookup("limit"))
	viper.BindPFlag("search.top", matchCmd.Flags().Lookup("top"))
	viper.BindPFlag("resume-file", matchCmd.Flags().Lookup("resume-file"))
	viper.BindPFlag("exclude-file", matchCmd.Flags().Lookup("exclude-file"))
	viper.BindPFlag("snapshot.path", matchCmd.Flags().Lookup("snapshot"))
}

// session carries everything the interactive menu works on.
type session struct {
	ctx      context.Context
	logger   *zap.Logger
	config   *Config
	embedder embedding.Embedder
	writer   ai.Writer
	resume   string
	result   *matcher.Result
}

// match is the main command for the cli.
func match(cmd *cobra.Command) {
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

	logger.Info("starting the job-matcher", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(redacted(config), "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if strings.TrimSpace(config.Search.Title) == "" {
		logger.Fatal("job title is required", zap.String("hint", "pass --title or set search.title"))
	}

	rawResume, err := readFile(config.ResumeFile)
	if err != nil {
		logger.Fatal("reading resume", zap.Error(err))
	}

	embedder, cleanup, err := newEmbedder(ctx, config, logger)
	if err != nil {
		logger.Fatal("creating an embedder", zap.Error(err))
	}
	defer cleanup()

	s := &session{ctx: ctx, logger: logger, config: config, embedder: embedder}

	enhance, _ := cmd.Flags().GetBool("enhance")
	if enhance && strings.TrimSpace(rawResume) != "" {
		writer, err := s.getWriter()
		if err != nil {
			logger.Fatal("creating a resume writer", zap.Error(err))
		}
		text, err := writer.EnhanceResume(ctx, rawResume)
		if err != nil {
			logger.Fatal("enhancing resume", zap.Error(err))
		}
		rawResume = text
	}

	var resume *string
	if text := resumeText(rawResume); text != "" {
		resume = &text
		s.resume = text
	}

	client, err := newListingsClient(config.Listings, logger)
	if err != nil {
		logger.Fatal(
			"loading serpapi key",
			zap.Error(err),
		)
	}

	m := matcher.New(client, embedder, logger)

	store, err := openSnapshots(config.Snapshot, logger)
	if err != nil {
		logger.Fatal("opening snapshot store", zap.Error(err))
	}
	if store != nil {
		defer store.Close()
		if n, err := store.Prune(ctx); err != nil {
			logger.Warn("pruning snapshots", zap.Error(err))
		} else if n > 0 {
			logger.Debug("pruned snapshots", zap.Int64("count", n))
		}
		m.WithSnapshots(store)
	}

	logger.Info("starting the search",
		zap.String("title", config.Search.Title),
		zap.String("location", config.Search.Location),
	)

	result, err := m.Match(ctx, matcher.Request{
		Resume:   resume,
		JobTitle: config.Search.Title,
		Location: config.Search.Location,
		Limit:    config.Search.Limit,
		TopN:     config.Search.Top,
	})
	if err != nil {
		logger.Fatal("matching jobs", zap.Error(err))
	}

	filtered, err := filtering.Run(ctx, config.Filters, filtering.Deps{Logger: logger}, filtering.Default(), result.Matches)
	if err != nil {
		logger.Fatal("filtering failed", zap.Error(err))
	}
	result.Matches = filtered
	result.Total = len(filtered)
	s.result = result

	if jsonOutput, _ := cmd.Flags().GetBool("json-output"); jsonOutput {
		if err := printJSON(newEnvelope(result)); err != nil {
			logger.Fatal("printing result", zap.Error(err))
		}
		return
	}

	if result.Total == 0 {
		logger.Info("exiting", zap.String("reason", "no jobs left after filters"), zap.Strings("diagnostics", result.Diagnostics))
		return
	}

	if autoApprove, _ := cmd.Flags().GetBool("auto-approve"); autoApprove {
		if err := s.handleAction(PromptShow); err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}
		return
	}

	for {
		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		logger.Info("current list of matches", zap.Int("count", len(s.result.Matches)))

		if err := s.handleAction(action); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func (s *session) handleAction(action string) error {
	switch action {
	case PromptShow:
		for _, line := range matchLines(s.result.Matches) {
			fmt.Println(line)
		}
		return nil
	case PromptExit:
		s.logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	case PromptReportByCompanies:
		jobs := jobsOf(s.result.Matches)
		pretty, _ := json.MarshalIndent(jobs.ReportByCompany(), "", "  ")
		s.logger.Info(string(pretty), zap.Int("jobs count", jobs.Len()))
		return nil
	case PromptMatchesToFile:
		filename, err := jobsOf(s.result.Matches).DumpToTmpFile()
		if err != nil {
			return fmt.Errorf("dump results to file: %w", err)
		}
		s.logger.Info("dumping result to file", zap.String("filename", filename))
		return nil
	case PromptCoverLetter:
		return s.coverLetter()
	case PromptLearningPath:
		return s.learningPath()
	case PromptAppendToExcludeFile:
		return s.appendToExcludeFile()
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func (s *session) getWriter() (ai.Writer, error) {
	if s.writer != nil {
		return s.writer, nil
	}
	w, err := newWriter(s.ctx, s.config.AI.Gemini, s.embedder, s.logger)
	if err != nil {
		return nil, err
	}
	s.writer = w
	return w, nil
}

func (s *session) coverLetter() error {
	if s.resume == "" {
		s.logger.Warn("a resume is required to write a cover letter", zap.String("hint", "pass --resume-file"))
		return nil
	}

	items := matchLines(s.result.Matches)
	choose := promptui.Select{
		Label: "Choose a job and press ENTER",
		Items: append(items, PromptBack),
	}

	idx, selected, err := choose.Run()
	if err != nil {
		return err
	}
	if selected == PromptBack {
		return nil
	}

	writer, err := s.getWriter()
	if err != nil {
		s.logger.Error("cover letters are unavailable", zap.Error(err))
		return nil
	}

	job := s.result.Matches[idx]
	letter, err := writer.CoverLetter(s.ctx, s.resume, summary(job.Job))
	if err != nil {
		return fmt.Errorf("writing cover letter: %w", err)
	}

	fmt.Println(letter)
	return nil
}

func (s *session) learningPath() error {
	if s.resume == "" {
		s.logger.Warn("a resume is required to suggest a learning path", zap.String("hint", "pass --resume-file"))
		return nil
	}

	writer, err := s.getWriter()
	if err != nil {
		s.logger.Error("learning paths are unavailable", zap.Error(err))
		return nil
	}

	top := s.result.Matches
	if len(top) > learningPathJobs {
		top = top[:learningPathJobs]
	}
	jobs := make([]ai.JobSummary, len(top))
	for i, m := range top {
		jobs[i] = summary(m.Job)
	}

	path, err := writer.LearningPath(s.ctx, s.resume, jobs)
	if err != nil {
		return fmt.Errorf("suggesting learning path: %w", err)
	}

	fmt.Println(path)
	return nil
}

func (s *session) appendToExcludeFile() error {
	excludeFile := s.config.ExcludeFile
	if excludeFile == "" {
		s.logger.Warn("exclude file is not set", zap.String("hint", "pass --exclude-file or set exclude-file"))
		return nil
	}

	excluded, err := listings.GetExcludedJobsFromFile(excludeFile)
	if err != nil {
		return err
	}

	excluded.Append(jobsOf(s.result.Matches).ToExcluded("excluded from match menu"))

	if err := excluded.ToFile(excludeFile); err != nil {
		return err
	}

	s.logger.Info("appended to exclude file", zap.String("filename", excludeFile), zap.Int("count", len(s.result.Matches)))

	s.result.Matches = []matcher.Match{}
	s.result.Total = 0
	s.logger.Info("exiting", zap.String("reason", "no matches left"))
	return errExit
}

func jobsOf(matches []matcher.Match) *listings.Jobs {
	jobs := &listings.Jobs{Items: make([]listings.Job, len(matches))}
	for i, m := range matches {
		jobs.Items[i] = m.Job
	}
	return jobs
}

func summary(job listings.Job) ai.JobSummary {
	return ai.JobSummary{Title: job.Title, Company: job.Company, Description: job.Description}
}

func matchLines(matches []matcher.Match) []string {
	lines := make([]string, len(matches))
	for i, m := range matches {
		score := "-"
		if m.Similarity != nil {
			score = fmt.Sprintf("%.3f", *m.Similarity)
		}
		position := i + 1
		if m.Rank > 0 {
			position = m.Rank
		}
		lines[i] = fmt.Sprintf("%d. [%s] %s / %s / %s", position, score, m.Title, m.Company, m.ApplicationLink)
	}
	return lines
}

// envelope is the JSON shape printed by --json-output.
type envelope struct {
	Status string       `json:"status"`
	Data   envelopeData `json:"data"`
}

type envelopeData struct {
	Matches  []matcher.Match `json:"matches"`
	Metadata envelopeMeta    `json:"metadata"`
}

type envelopeMeta struct {
	SessionID   string         `json:"sessionId"`
	Query       listings.Query `json:"query"`
	Total       int            `json:"total"`
	Ranked      bool           `json:"ranked"`
	Model       string         `json:"model,omitempty"`
	SnapshotID  string         `json:"snapshotId,omitempty"`
	Diagnostics []string       `json:"diagnostics,omitempty"`
	GeneratedAt string         `json:"generatedAt"`
}

func newEnvelope(r *matcher.Result) envelope {
	return envelope{
		Status: "success",
		Data: envelopeData{
			Matches: r.Matches,
			Metadata: envelopeMeta{
				SessionID:   r.SessionID,
				Query:       r.Query,
				Total:       r.Total,
				Ranked:      r.Ranked,
				Model:       r.Model,
				SnapshotID:  r.SnapshotID,
				Diagnostics: r.Diagnostics,
				GeneratedAt: r.GeneratedAt.Format(time.RFC3339),
			},
		},
	}
}

// redacted returns a copy of config safe for logging.
func redacted(config *Config) Config {
	out := *config
	if config.Listings != nil {
		l := *config.Listings
		l.APIKey = mask(l.APIKey)
		out.Listings = &l
	}
	if config.AI != nil && config.AI.Gemini != nil {
		g := *config.AI.Gemini
		g.APIKey = mask(g.APIKey)
		out.AI = &AIConfig{Gemini: &g}
	}
	if config.Embedding != nil {
		e := *config.Embedding
		if e.OpenAI != nil {
			o := *e.OpenAI
			o.APIKey = mask(o.APIKey)
			e.OpenAI = &o
		}
		if e.Cache != nil && e.Cache.Redis != nil {
			c := *e.Cache
			r := *c.Redis
			r.Password = mask(r.Password)
			c.Redis = &r
			e.Cache = &c
		}
		out.Embedding = &e
	}
	return out
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}
