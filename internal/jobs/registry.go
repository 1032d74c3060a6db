// Package jobs loads the user's job configurations and answers
// default-duration lookups for shifts missing an end time.
package jobs

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/shiftbook/rosterscan/internal/model"
)

// Registry holds the user's job configurations in file order.
type Registry struct {
	jobs  []model.JobConfig
	byID  map[string]model.JobConfig
	known map[string]struct{}
}

// Load reads job configurations from a YAML file.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "jobs: read config %s", path)
	}

	var wrapper struct {
		Jobs []model.JobConfig `yaml:"jobs"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "jobs: parse config")
	}
	if len(wrapper.Jobs) == 0 {
		return nil, eris.Errorf("jobs: no jobs defined in %s", path)
	}

	return NewRegistry(wrapper.Jobs), nil
}

// NewRegistry builds a Registry from the given configs.
func NewRegistry(jobs []model.JobConfig) *Registry {
	r := &Registry{
		jobs:  jobs,
		byID:  make(map[string]model.JobConfig, len(jobs)),
		known: make(map[string]struct{}, len(jobs)),
	}
	for _, j := range jobs {
		r.byID[j.ID] = j
		r.known[j.ID] = struct{}{}
	}
	return r
}

// List returns all jobs in file order.
func (r *Registry) List() []model.JobConfig {
	return r.jobs
}

// Get returns the job with the given id.
func (r *Registry) Get(id string) (model.JobConfig, bool) {
	j, ok := r.byID[id]
	return j, ok
}

// KnownIDs returns the set of valid job config ids.
func (r *Registry) KnownIDs() map[string]struct{} {
	return r.known
}

// DefaultDuration returns the job's default shift length for a weekday or
// weekend date. Jobs with no configured duration report zero.
func (r *Registry) DefaultDuration(jobID string, weekend bool) time.Duration {
	j, ok := r.byID[jobID]
	if !ok {
		return 0
	}
	hours := j.WeekdayHours
	if weekend {
		hours = j.WeekendHours
	}
	if hours <= 0 {
		return 0
	}
	return time.Duration(hours * float64(time.Hour))
}
