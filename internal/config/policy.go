package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/example/dispatch/internal/core/escalation"
	"github.com/example/dispatch/internal/core/sla"
	"github.com/example/dispatch/internal/models"
)

// PolicyDocument is the YAML shape of the SLA policy file:
//
//	sla:
//	  HIGH: 8h
//	  MEDIUM: 24h
//	atRiskPercent: 80
//	escalation:
//	  lookahead: 30m
//	  repeatInterval: 4h
//	  maxTier: 5
type PolicyDocument struct {
	SLA           map[string]string `yaml:"sla"`
	AtRiskPercent float64           `yaml:"atRiskPercent"`
	Escalation    struct {
		Lookahead      string `yaml:"lookahead"`
		RepeatInterval string `yaml:"repeatInterval"`
		MaxTier        int    `yaml:"maxTier"`
	} `yaml:"escalation"`
}

// LoadPolicyFile reads and parses a policy file.
func LoadPolicyFile(path string) (*sla.Policy, escalation.Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, escalation.Rules{}, fmt.Errorf("failed to read policy file: %w", err)
	}
	return ParsePolicy(data)
}

// ParsePolicy builds the SLA policy and escalation rules from YAML. Omitted
// escalation settings keep their defaults.
func ParsePolicy(data []byte) (*sla.Policy, escalation.Rules, error) {
	var doc PolicyDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, escalation.Rules{}, fmt.Errorf("failed to parse policy: %w", err)
	}

	durations := make(map[models.Priority]time.Duration, len(doc.SLA))
	for name, value := range doc.SLA {
		priority, err := models.ParsePriority(name)
		if err != nil {
			return nil, escalation.Rules{}, fmt.Errorf("policy sla: %w", err)
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return nil, escalation.Rules{}, fmt.Errorf("policy sla %s: %w", priority, err)
		}
		durations[priority] = d
	}
	policy, err := sla.NewPolicy(durations, doc.AtRiskPercent)
	if err != nil {
		return nil, escalation.Rules{}, err
	}

	rules := escalation.DefaultRules()
	if v := doc.Escalation.Lookahead; v != "" {
		if rules.Lookahead, err = time.ParseDuration(v); err != nil {
			return nil, escalation.Rules{}, fmt.Errorf("policy escalation lookahead: %w", err)
		}
	}
	if v := doc.Escalation.RepeatInterval; v != "" {
		if rules.RepeatInterval, err = time.ParseDuration(v); err != nil {
			return nil, escalation.Rules{}, fmt.Errorf("policy escalation repeatInterval: %w", err)
		}
	}
	if doc.Escalation.MaxTier != 0 {
		rules.MaxTier = doc.Escalation.MaxTier
	}
	if err := rules.Validate(); err != nil {
		return nil, escalation.Rules{}, err
	}
	return policy, rules, nil
}
