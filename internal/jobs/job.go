package jobs

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spigell/matchai/internal/preprocess"
	"github.com/spigell/matchai/internal/seniority"
	"github.com/spigell/matchai/internal/utils"
)

const maxSummaryDetails = 2000

// Detail is a titled HTML section of a job posting.
type Detail struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
	Order int    `json:"order" yaml:"order"`
}

// Job is a posting as stored by the repository. Text and Keywords are derived at ingestion.
type Job struct {
	UID                  string          `json:"uid"`
	CompanyID            string          `json:"company_uid"`
	CompanyName          string          `json:"company_name,omitempty"`
	Title                string          `json:"title"`
	Department           string          `json:"department,omitempty"`
	EmploymentType       string          `json:"employment_type,omitempty"`
	ExperienceLevel      string          `json:"experience_level,omitempty"`
	Seniority            seniority.Level `json:"seniority"`
	Location             string          `json:"location"`
	WorkplaceType        string          `json:"workplace_type,omitempty"`
	PositionURL          string          `json:"position_url,omitempty"`
	URLActivePage        string          `json:"url_active_page,omitempty"`
	URLComeetHostedPage  string          `json:"url_comeet_hosted_page,omitempty"`
	URLRecruitHostedPage string          `json:"url_recruit_hosted_page,omitempty"`
	TimeUpdated          string          `json:"time_updated,omitempty"`
	Details              []Detail        `json:"details"`

	Text     string         `json:"text,omitempty"`
	Keywords []string       `json:"keywords,omitempty"`
	Raw      map[string]any `json:"-"`
}

// Company holds the credentials used to pull postings from an external careers API.
type Company struct {
	UID           string `json:"uid" yaml:"uid"`
	Name          string `json:"name" yaml:"name"`
	Token         string `json:"token" yaml:"token"`
	ExtractedFrom string `json:"extracted_from" yaml:"extracted_from"`
}

func (c *Company) Validate() error {
	if strings.TrimSpace(c.UID) == "" {
		return errors.New("company uid is required")
	}
	return nil
}

// ResolveSeniority returns the explicit level, then one detected from the experience level or
// title, then fallback.
func (j *Job) ResolveSeniority(fallback seniority.Level) seniority.Level {
	if j.Seniority.Known() {
		return j.Seniority
	}
	if level, err := seniority.Parse(j.ExperienceLevel); err == nil && level.Known() {
		return level
	}
	if level := seniority.Detect(j.ExperienceLevel); level.Known() {
		return level
	}
	if level := seniority.Detect(j.Title); level.Known() {
		return level
	}
	return fallback
}

// Validate checks the minimal fields an ingested job must carry.
func (j *Job) Validate() error {
	var missing []string
	if strings.TrimSpace(j.UID) == "" {
		missing = append(missing, "uid")
	}
	if strings.TrimSpace(j.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(j.CompanyID) == "" {
		missing = append(missing, "company_uid")
	}
	if strings.TrimSpace(j.Location) == "" {
		missing = append(missing, "location")
	}
	if len(j.Details) == 0 {
		missing = append(missing, "details")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	if !j.Seniority.Known() {
		return errors.New("seniority could not be determined")
	}
	return nil
}

// DetailsText renders the detail sections in display order as plain text.
func (j *Job) DetailsText() string {
	details := make([]Detail, len(j.Details))
	copy(details, j.Details)
	sort.SliceStable(details, func(a, b int) bool { return details[a].Order < details[b].Order })

	parts := make([]string, 0, len(details))
	for _, d := range details {
		text := preprocess.StripMarkup(d.Value)
		if text == "" {
			continue
		}
		if name := strings.TrimSpace(d.Name); name != "" {
			text = name + ": " + text
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n\n")
}

// SourceText is the text fed to the preprocessor: title followed by the details.
func (j *Job) SourceText() string {
	details := j.DetailsText()
	if details == "" {
		return j.Title
	}
	return j.Title + "\n\n" + details
}

// Derive fills Text and Keywords from the source text.
func (j *Job) Derive() {
	res := preprocess.Preprocess(j.SourceText())
	j.Text = res.Text
	j.Keywords = res.Keywords
}

// ApplyURL returns the best available link to the posting.
func (j *Job) ApplyURL() string {
	for _, u := range []string{j.PositionURL, j.URLActivePage, j.URLComeetHostedPage, j.URLRecruitHostedPage} {
		if u = strings.TrimSpace(u); u != "" {
			return u
		}
	}
	return ""
}

// IsRemote reports whether the posting advertises remote work.
func (j *Job) IsRemote() bool {
	return strings.Contains(strings.ToLower(j.Location), "remote") ||
		strings.Contains(strings.ToLower(j.WorkplaceType), "remote")
}

// Summary is a compact description handed to the explanation service.
func (j *Job) Summary() string {
	company := j.CompanyName
	if company == "" {
		company = j.CompanyID
	}
	return fmt.Sprintf("Title: %s\nCompany: %s\nLocation: %s\nSeniority: %s\nDescription: %s",
		j.Title, company, j.Location, j.Seniority, utils.TruncateForLog(j.DetailsText(), maxSummaryDetails))
}
