package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"

	"github.com/spigell/matchai/internal/candidate"
	"github.com/spigell/matchai/internal/jobs"
	"github.com/spigell/matchai/internal/repository"
	"github.com/spigell/matchai/internal/seniority"
)

type jobModel struct {
	UID                  string `gorm:"primaryKey"`
	CompanyID            string `gorm:"index"`
	CompanyName          string
	Title                string
	Department           string
	EmploymentType       string
	ExperienceLevel      string
	Seniority            int `gorm:"index"`
	Location             string
	WorkplaceType        string
	PositionURL          string
	URLActivePage        string
	URLComeetHostedPage  string
	URLRecruitHostedPage string
	TimeUpdated          string
	Details              datatypes.JSON
	Text                 string         `gorm:"type:text"`
	Keywords             pq.StringArray `gorm:"type:text[]"`
	Raw                  datatypes.JSON
	CreatedAt            time.Time
}

func (jobModel) TableName() string { return "jobs" }

type companyModel struct {
	UID           string `gorm:"primaryKey"`
	Name          string
	Token         string
	ExtractedFrom string
	CreatedAt     time.Time
}

func (companyModel) TableName() string { return "companies" }

type candidateModel struct {
	Hash      string `gorm:"primaryKey"`
	Profile   datatypes.JSON
	UpdatedAt time.Time `gorm:"index"`
}

func (candidateModel) TableName() string { return "candidates" }

type matchResultModel struct {
	ID                uint   `gorm:"primaryKey"`
	RunID             string `gorm:"index"`
	CandidateHash     string `gorm:"index"`
	JobUID            string `gorm:"index"`
	Rank              int
	Title             string
	CompanyName       string
	Location          string
	ApplyURL          string
	Similarity        float64
	SkillFraction     float64
	FinalScore        float64
	MissingSkills     pq.StringArray `gorm:"type:text[]"`
	Explanation       string         `gorm:"type:text"`
	ExplanationFailed bool
	Tips              pq.StringArray `gorm:"type:text[]"`
	CreatedAt         time.Time      `gorm:"index"`
}

func (matchResultModel) TableName() string { return "match_results" }

func toJobModel(job *jobs.Job) (jobModel, error) {
	details, err := json.Marshal(job.Details)
	if err != nil {
		return jobModel{}, fmt.Errorf("encode details of %s: %w", job.UID, err)
	}
	raw := []byte("null")
	if job.Raw != nil {
		if raw, err = json.Marshal(job.Raw); err != nil {
			return jobModel{}, fmt.Errorf("encode raw payload of %s: %w", job.UID, err)
		}
	}

	return jobModel{
		UID:                  job.UID,
		CompanyID:            job.CompanyID,
		CompanyName:          job.CompanyName,
		Title:                job.Title,
		Department:           job.Department,
		EmploymentType:       job.EmploymentType,
		ExperienceLevel:      job.ExperienceLevel,
		Seniority:            int(job.Seniority),
		Location:             job.Location,
		WorkplaceType:        job.WorkplaceType,
		PositionURL:          job.PositionURL,
		URLActivePage:        job.URLActivePage,
		URLComeetHostedPage:  job.URLComeetHostedPage,
		URLRecruitHostedPage: job.URLRecruitHostedPage,
		TimeUpdated:          job.TimeUpdated,
		Details:              datatypes.JSON(details),
		Text:                 job.Text,
		Keywords:             pq.StringArray(job.Keywords),
		Raw:                  datatypes.JSON(raw),
	}, nil
}

func (m jobModel) toJob() (*jobs.Job, error) {
	job := &jobs.Job{
		UID:                  m.UID,
		CompanyID:            m.CompanyID,
		CompanyName:          m.CompanyName,
		Title:                m.Title,
		Department:           m.Department,
		EmploymentType:       m.EmploymentType,
		ExperienceLevel:      m.ExperienceLevel,
		Seniority:            seniority.Level(m.Seniority),
		Location:             m.Location,
		WorkplaceType:        m.WorkplaceType,
		PositionURL:          m.PositionURL,
		URLActivePage:        m.URLActivePage,
		URLComeetHostedPage:  m.URLComeetHostedPage,
		URLRecruitHostedPage: m.URLRecruitHostedPage,
		TimeUpdated:          m.TimeUpdated,
		Text:                 m.Text,
		Keywords:             []string(m.Keywords),
	}
	if len(m.Details) > 0 {
		if err := json.Unmarshal(m.Details, &job.Details); err != nil {
			return nil, fmt.Errorf("decode details of %s: %w", m.UID, err)
		}
	}
	if len(m.Raw) > 0 {
		if err := json.Unmarshal(m.Raw, &job.Raw); err != nil {
			return nil, fmt.Errorf("decode raw payload of %s: %w", m.UID, err)
		}
	}
	return job, nil
}

func toCandidateModel(c *repository.Candidate) (candidateModel, error) {
	profile, err := json.Marshal(c.Profile)
	if err != nil {
		return candidateModel{}, fmt.Errorf("encode profile: %w", err)
	}
	updated := c.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}
	return candidateModel{Hash: c.Hash, Profile: datatypes.JSON(profile), UpdatedAt: updated}, nil
}

func (m candidateModel) toCandidate() (*repository.Candidate, error) {
	var profile candidate.Profile
	if err := json.Unmarshal(m.Profile, &profile); err != nil {
		return nil, fmt.Errorf("decode profile of %s: %w", m.Hash, err)
	}
	return &repository.Candidate{Hash: m.Hash, Profile: profile, UpdatedAt: m.UpdatedAt}, nil
}

func toResultModel(r repository.MatchResult) matchResultModel {
	return matchResultModel{
		RunID:             r.RunID,
		CandidateHash:     r.CandidateHash,
		JobUID:            r.JobUID,
		Rank:              r.Rank,
		Title:             r.Title,
		CompanyName:       r.CompanyName,
		Location:          r.Location,
		ApplyURL:          r.ApplyURL,
		Similarity:        r.Similarity,
		SkillFraction:     r.SkillFraction,
		FinalScore:        r.FinalScore,
		MissingSkills:     pq.StringArray(r.MissingSkills),
		Explanation:       r.Explanation,
		ExplanationFailed: r.ExplanationFailed,
		Tips:              pq.StringArray(r.Tips),
		CreatedAt:         r.CreatedAt,
	}
}

func (m matchResultModel) toResult() repository.MatchResult {
	return repository.MatchResult{
		RunID:             m.RunID,
		CandidateHash:     m.CandidateHash,
		JobUID:            m.JobUID,
		Rank:              m.Rank,
		Title:             m.Title,
		CompanyName:       m.CompanyName,
		Location:          m.Location,
		ApplyURL:          m.ApplyURL,
		Similarity:        m.Similarity,
		SkillFraction:     m.SkillFraction,
		FinalScore:        m.FinalScore,
		MissingSkills:     []string(m.MissingSkills),
		Explanation:       m.Explanation,
		ExplanationFailed: m.ExplanationFailed,
		Tips:              []string(m.Tips),
		CreatedAt:         m.CreatedAt,
	}
}
