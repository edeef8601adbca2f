package listings

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

type Jobs struct {
	Items []Job
}

type ExcludedJobs struct {
	Items []*ExcludedJob
}

type ExcludedJob struct {
	Key        string
	Title      string
	Company    string
	URL        string
	Reason     string
	ExcludedAt time.Time
}

func (j *Jobs) Len() int {
	return len(j.Items)
}

func (j *Jobs) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "jobs_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(j); err != nil {
		return "", err
	}
	return file.Name(), nil
}

// ReportByCompany groups jobs by company name.
func (j *Jobs) ReportByCompany() map[string][]map[string]string {
	report := make(map[string][]map[string]string)
	for _, job := range j.Items {
		key := job.Company
		if key == "" {
			key = "(unknown company)"
		}
		report[key] = append(report[key], map[string]string{
			"title":    job.Title,
			"url":      job.ApplicationLink,
			"location": job.Location,
			"posted":   job.PostedAt,
			"type":     job.JobType,
		})
	}
	return report
}

func (j *Jobs) ToExcluded(reason string) *ExcludedJobs {
	excluded := &ExcludedJobs{}
	for _, job := range j.Items {
		excluded.Items = append(excluded.Items, &ExcludedJob{
			Key:        job.Key().String(),
			Title:      job.Title,
			Company:    job.Company,
			URL:        job.ApplicationLink,
			Reason:     reason,
			ExcludedAt: time.Now().UTC(),
		})
	}
	return excluded
}

// GetExcludedJobsFromFile reads an exclude file. A missing or empty file
// yields an empty list.
func GetExcludedJobsFromFile(path string) (*ExcludedJobs, error) {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return &ExcludedJobs{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}

	if stat.Size() == 0 {
		return &ExcludedJobs{}, nil
	}

	var excluded ExcludedJobs
	if err := json.NewDecoder(file).Decode(&excluded); err != nil {
		return nil, fmt.Errorf("decode exclude file %q: %w", path, err)
	}
	return &excluded, nil
}

func (e *ExcludedJobs) Append(s *ExcludedJobs) {
	e.Items = append(e.Items, s.Items...)
}

func (e *ExcludedJobs) Keys() []string {
	keys := make([]string, 0, len(e.Items))
	for _, job := range e.Items {
		keys = append(keys, job.Key)
	}
	return keys
}

func (e *ExcludedJobs) ToFile(path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(e)
}
