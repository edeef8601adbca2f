package listings

import (
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Job is a normalised job posting. Every field is set, missing provider
// values become "".
type Job struct {
	Title           string `json:"title"`
	Company         string `json:"company"`
	Location        string `json:"location"`
	Description     string `json:"description"`
	ApplicationLink string `json:"applicationLink"`
	PostedAt        string `json:"postedTime"`
	JobType         string `json:"jobType"`
	SourceID        string `json:"sourceId"`
}

// Key identifies a job within one fetch.
type Key struct {
	Title           string
	Company         string
	ApplicationLink string
}

func (j Job) Key() Key {
	return Key{Title: j.Title, Company: j.Company, ApplicationLink: j.ApplicationLink}
}

func (k Key) String() string {
	return k.Title + "|" + k.Company + "|" + k.ApplicationLink
}

// Empty reports whether the record carries no recognisable field.
func (j Job) Empty() bool {
	return j.Title == "" && j.Company == "" && j.Location == "" &&
		j.Description == "" && j.ApplicationLink == ""
}

type rawJob struct {
	Title        string `mapstructure:"title"`
	CompanyName  string `mapstructure:"company_name"`
	Location     string `mapstructure:"location"`
	Description  string `mapstructure:"description"`
	Via          string `mapstructure:"via"`
	JobID        string `mapstructure:"job_id"`
	ApplyOptions []struct {
		Title string `mapstructure:"title"`
		Link  string `mapstructure:"link"`
	} `mapstructure:"apply_options"`
	DetectedExtensions struct {
		PostedAt     string `mapstructure:"posted_at"`
		JobType      string `mapstructure:"job_type"`
		ScheduleType string `mapstructure:"schedule_type"`
		ApplyLink    string `mapstructure:"apply_link"`
	} `mapstructure:"detected_extensions"`
}

// normalize converts a provider record into a Job. Values of unexpected
// types are coerced where possible and dropped otherwise.
func normalize(item map[string]any) Job {
	var raw rawJob
	cfg := &mapstructure.DecoderConfig{
		Result:           &raw,
		WeaklyTypedInput: true,
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err == nil {
		// Partial decodes are fine: fields that failed stay "".
		_ = decoder.Decode(item)
	}

	jobType := raw.DetectedExtensions.JobType
	if jobType == "" {
		jobType = raw.DetectedExtensions.ScheduleType
	}

	return Job{
		Title:           strings.TrimSpace(raw.Title),
		Company:         strings.TrimSpace(raw.CompanyName),
		Location:        strings.TrimSpace(raw.Location),
		Description:     strings.TrimSpace(raw.Description),
		ApplicationLink: strings.TrimSpace(applicationLink(item, &raw)),
		PostedAt:        strings.TrimSpace(raw.DetectedExtensions.PostedAt),
		JobType:         strings.TrimSpace(jobType),
		SourceID:        raw.JobID,
	}
}

// applicationLink picks, in this fixed order: the first apply option, the
// via field, the detected apply link.
func applicationLink(item map[string]any, raw *rawJob) string {
	if len(raw.ApplyOptions) > 0 {
		return raw.ApplyOptions[0].Link
	}
	if _, ok := item["via"]; ok {
		return raw.Via
	}
	return raw.DetectedExtensions.ApplyLink
}
