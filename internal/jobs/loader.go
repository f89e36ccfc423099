package jobs

import (
	"fmt"
	"os"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/spigell/matchai/internal/failure"
)

// LoadBatch reads a YAML or JSON file holding a list of job records.
func LoadBatch(path string) ([]map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read job batch %q: %w", path, err)
	}

	var records []map[string]any
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse job batch %q: %w", path, err)
	}
	return records, nil
}

// LoadCompanies reads a YAML or JSON file holding a list of companies.
func LoadCompanies(path string) ([]*Company, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read companies %q: %w", path, err)
	}

	var companies []*Company
	if err := yaml.Unmarshal(data, &companies); err != nil {
		return nil, fmt.Errorf("parse companies %q: %w", path, err)
	}
	return companies, nil
}

// Decode converts untyped records into jobs. A record that cannot be decoded yields a
// validation failure and does not stop the rest.
func Decode(records []map[string]any) ([]*Job, []error) {
	out := make([]*Job, 0, len(records))
	var errs []error

	for i, record := range records {
		job, err := DecodeRecord(record)
		if err != nil {
			id := recordID(record)
			if id == "" {
				id = fmt.Sprintf("#%d", i)
			}
			errs = append(errs, failure.Validation(id, err))
			continue
		}
		out = append(out, job)
	}
	return out, errs
}

// DecodeRecord decodes a single record, keeping the original map as the raw payload.
func DecodeRecord(record map[string]any) (*Job, error) {
	if record == nil {
		return nil, fmt.Errorf("empty record")
	}

	job := &Job{}
	cfg := &mapstructure.DecoderConfig{
		Result:           job,
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.TextUnmarshallerHookFunc(),
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return nil, fmt.Errorf("build decoder: %w", err)
	}
	if err := decoder.Decode(record); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}

	job.Raw = record
	return job, nil
}

func recordID(record map[string]any) string {
	if record == nil {
		return ""
	}
	if uid, ok := record["uid"]; ok && uid != nil {
		return strings.TrimSpace(fmt.Sprint(uid))
	}
	return ""
}
