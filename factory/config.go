/*
Package factory provides JSON to Go configuration conversion.

PURPOSE:
  Converts JSON configuration documents (role percentages, reporting settings,
  department rules, separately displayed fields) into compensation.Config
  values. Every document is validated at this boundary, before anything is
  persisted or a recompute is triggered, so a rejected write leaves the
  previous configuration in effect.

JSON SCHEMA:
  {
    "role_percentages": {
      "CLOSER": 40,
      "CLOSER_WITH_HELPER": 20,
      "HELPER_CLOSER": 20,
      "SCHEDULER": 10,
      "MANAGER": 5,
      "EXPERT": 5,
      "HANDLER": 10,
      "HELPER_HANDLER": 5,
      "DEPARTMENT_MANAGER": 2
    },
    "settings": {
      "target_income": 500000,
      "due_normalized_percentage": 50
    },
    "departments": {
      "Sales": ["s", "z", "c"],
      "Handlers": ["h", "e"]
    },
    "separate_fields": ["German Citizenship", "Austrian Citizenship"]
  }

VALIDATION:
  - Struct tags checked with go-playground/validator
  - Percentages 0-100, target income >= 0
  - Role keys must be known (CLOSER, SCHEDULER, ...)
  - Department names must be one of the rollup departments
  - Non-numeric values fail JSON decoding and are rejected the same way

SEE ALSO:
  - compensation/config.go: Config type definition
  - compensation/roles.go: Role percentage keys
*/
package factory

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/warp/contribution-engine/compensation"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// ConfigJSON is the JSON representation of the business configuration.
type ConfigJSON struct {
	RolePercentages RolePercentagesJSON `json:"role_percentages,omitempty" validate:"omitempty,dive,keys,required,endkeys,min=0,max=100"`
	Settings        *SettingsJSON       `json:"settings,omitempty"`
	Departments     map[string][]string `json:"departments,omitempty" validate:"omitempty,dive,keys,oneof=Sales Handlers Partners Marketing Finance,endkeys,dive,required"`
	SeparateFields  []string            `json:"separate_fields,omitempty" validate:"omitempty,dive,required"`
}

// RolePercentagesJSON maps a role key to a percentage.
type RolePercentagesJSON map[string]float64

// SettingsJSON represents the reporting settings.
type SettingsJSON struct {
	TargetIncome            float64  `json:"target_income" validate:"min=0"`
	DueNormalizedPercentage *float64 `json:"due_normalized_percentage,omitempty" validate:"omitempty,min=0,max=100"`
}

// rolesDocument wraps a bare role-percentage map so the map tags apply.
type rolesDocument struct {
	Roles RolePercentagesJSON `validate:"dive,keys,required,endkeys,min=0,max=100"`
}

// =============================================================================
// CONFIG FACTORY
// =============================================================================

// ConfigFactory converts JSON configuration to compensation types.
type ConfigFactory struct {
	validate *validator.Validate
}

// NewConfigFactory creates a new config factory.
func NewConfigFactory() *ConfigFactory {
	return &ConfigFactory{validate: validator.New()}
}

// ParseConfig parses a full configuration document. Sections that are absent
// keep their defaults.
func (f *ConfigFactory) ParseConfig(data []byte) (compensation.Config, error) {
	var cj ConfigJSON
	if err := decodeStrict(data, &cj); err != nil {
		return compensation.Config{}, err
	}
	return f.FromJSON(cj)
}

// FromJSON validates and converts a ConfigJSON.
func (f *ConfigFactory) FromJSON(cj ConfigJSON) (compensation.Config, error) {
	if err := f.validate.Struct(cj); err != nil {
		return compensation.Config{}, translate(err)
	}

	cfg := compensation.DefaultConfig()
	if cj.RolePercentages != nil {
		rp, err := f.rolesFromJSON(cj.RolePercentages)
		if err != nil {
			return compensation.Config{}, err
		}
		cfg.Roles = rp
	}
	if cj.Settings != nil {
		st, err := f.settingsFromJSON(*cj.Settings)
		if err != nil {
			return compensation.Config{}, err
		}
		cfg.Settings = st
	}
	if len(cj.Departments) > 0 {
		rules := compensation.DefaultDepartmentRules()
		for dept, codes := range cj.Departments {
			rules[compensation.Department(dept)] = append([]string(nil), codes...)
		}
		cfg.Departments = rules
	}
	cfg.SeparateFields = append([]string(nil), cj.SeparateFields...)
	return cfg, nil
}

// ParseRolePercentages parses a bare {"ROLE": pct} document.
func (f *ConfigFactory) ParseRolePercentages(data []byte) (compensation.RolePercentages, error) {
	var rj RolePercentagesJSON
	if err := decodeStrict(data, &rj); err != nil {
		return nil, err
	}
	if rj == nil {
		rj = RolePercentagesJSON{}
	}
	if err := f.validate.Struct(rolesDocument{Roles: rj}); err != nil {
		return nil, translate(err)
	}
	return f.rolesFromJSON(rj)
}

// ParseSettings parses a settings document. A missing due percentage is 100.
func (f *ConfigFactory) ParseSettings(data []byte) (compensation.ReportingSettings, error) {
	var sj SettingsJSON
	if err := decodeStrict(data, &sj); err != nil {
		return compensation.ReportingSettings{}, err
	}
	if err := f.validate.Struct(sj); err != nil {
		return compensation.ReportingSettings{}, translate(err)
	}
	return f.settingsFromJSON(sj)
}

func (f *ConfigFactory) rolesFromJSON(rj RolePercentagesJSON) (compensation.RolePercentages, error) {
	rp := make(compensation.RolePercentages, len(rj))
	for k, v := range rj {
		rp[compensation.PercentageKey(k)] = decimal.NewFromFloat(v)
	}
	if err := rp.Validate(); err != nil {
		return nil, err
	}
	return rp, nil
}

func (f *ConfigFactory) settingsFromJSON(sj SettingsJSON) (compensation.ReportingSettings, error) {
	st := compensation.DefaultConfig().Settings
	st.TargetIncome = decimal.NewFromFloat(sj.TargetIncome)
	if sj.DueNormalizedPercentage != nil {
		st.DueNormalizedPercentage = decimal.NewFromFloat(*sj.DueNormalizedPercentage)
	}
	if err := st.Validate(); err != nil {
		return compensation.ReportingSettings{}, err
	}
	return st, nil
}

// =============================================================================
// TO JSON
// =============================================================================

// RolesToJSON converts role percentages for output. Every known key is present.
func (f *ConfigFactory) RolesToJSON(rp compensation.RolePercentages) RolePercentagesJSON {
	out := make(RolePercentagesJSON, len(compensation.PercentageKeys()))
	for _, k := range compensation.PercentageKeys() {
		out[string(k)] = rp.Get(k).InexactFloat64()
	}
	return out
}

// SettingsToJSON converts reporting settings for output.
func (f *ConfigFactory) SettingsToJSON(st compensation.ReportingSettings) SettingsJSON {
	due := st.DueNormalizedPercentage.InexactFloat64()
	return SettingsJSON{
		TargetIncome:            st.TargetIncome.InexactFloat64(),
		DueNormalizedPercentage: &due,
	}
}

// ToJSON converts a Config to ConfigJSON.
func (f *ConfigFactory) ToJSON(cfg compensation.Config) ConfigJSON {
	settings := f.SettingsToJSON(cfg.Settings)
	cj := ConfigJSON{
		RolePercentages: f.RolesToJSON(cfg.Roles),
		Settings:        &settings,
		Departments:     make(map[string][]string, len(cfg.Departments)),
		SeparateFields:  append([]string(nil), cfg.SeparateFields...),
	}
	depts := make([]string, 0, len(cfg.Departments))
	for d := range cfg.Departments {
		depts = append(depts, string(d))
	}
	sort.Strings(depts)
	for _, d := range depts {
		cj.Departments[d] = append([]string(nil), cfg.Departments[compensation.Department(d)]...)
	}
	return cj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", compensation.ErrInvalidSettings, err)
	}
	return nil
}

// translate maps the first validation failure to a ConfigError.
func translate(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", compensation.ErrInvalidSettings, err)
	}
	fe := verrs[0]
	reason := compensation.ErrInvalidSettings
	switch fe.Tag() {
	case "min", "max":
		reason = compensation.ErrInvalidPercentage
		if fe.Field() == "TargetIncome" {
			reason = compensation.ErrInvalidSettings
		}
	case "oneof":
		reason = compensation.ErrInvalidSettings
	}
	return &compensation.ConfigError{
		Field:  fe.Namespace(),
		Value:  fmt.Sprint(fe.Value()),
		Reason: reason,
	}
}
