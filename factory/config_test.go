package factory

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/contribution-engine/compensation"
)

func TestParseConfig_FullDocument(t *testing.T) {
	f := NewConfigFactory()

	cfg, err := f.ParseConfig([]byte(`{
		"role_percentages": {"CLOSER": 40.5, "HELPER_CLOSER": 20, "HANDLER": 10},
		"settings": {"target_income": 150000, "due_normalized_percentage": 60},
		"departments": {"Sales": ["s", "x"]},
		"separate_fields": ["German Citizenship"]
	}`))
	require.NoError(t, err)

	assert.True(t, decimal.RequireFromString("40.5").Equal(cfg.Roles.Get(compensation.PctCloser)))
	assert.True(t, decimal.NewFromInt(150000).Equal(cfg.Settings.TargetIncome))
	assert.True(t, decimal.NewFromInt(60).Equal(cfg.Settings.DueNormalizedPercentage))
	assert.Equal(t, compensation.DeptSales, cfg.Departments.Classify(compensation.Employee{RoleCode: "x"}))
	assert.Equal(t, compensation.DeptHandlers, cfg.Departments.Classify(compensation.Employee{RoleCode: "h"}), "other departments keep defaults")
	assert.Equal(t, []string{"German Citizenship"}, cfg.SeparateFields)
}

func TestParseConfig_EmptyDocumentKeepsDefaults(t *testing.T) {
	cfg, err := NewConfigFactory().ParseConfig([]byte(`{}`))
	require.NoError(t, err)

	assert.Empty(t, cfg.Roles)
	assert.True(t, decimal.NewFromInt(100).Equal(cfg.Settings.DueNormalizedPercentage))
	assert.True(t, cfg.Settings.TargetIncome.IsZero())
}

func TestParseConfig_Rejections(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{"percentage above 100", `{"role_percentages": {"CLOSER": 100.5}}`, compensation.ErrInvalidPercentage},
		{"negative percentage", `{"role_percentages": {"HANDLER": -1}}`, compensation.ErrInvalidPercentage},
		{"unknown role", `{"role_percentages": {"JANITOR": 5}}`, compensation.ErrUnknownRole},
		{"non-numeric percentage", `{"role_percentages": {"CLOSER": "forty"}}`, compensation.ErrInvalidSettings},
		{"negative target", `{"settings": {"target_income": -1}}`, compensation.ErrInvalidSettings},
		{"due above 100", `{"settings": {"target_income": 0, "due_normalized_percentage": 120}}`, compensation.ErrInvalidPercentage},
		{"unknown department", `{"departments": {"Legal": ["l"]}}`, compensation.ErrInvalidSettings},
		{"unknown field", `{"bonus_pool": 5}`, compensation.ErrInvalidSettings},
		{"blank separate field", `{"separate_fields": [""]}`, compensation.ErrInvalidSettings},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConfigFactory().ParseConfig([]byte(tt.doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), err.Error())
			assert.True(t, compensation.IsClientError(err))
		})
	}
}

func TestParseRolePercentages(t *testing.T) {
	f := NewConfigFactory()

	rp, err := f.ParseRolePercentages([]byte(`{"CLOSER_WITH_HELPER": 20, "HELPER_CLOSER": 20}`))
	require.NoError(t, err)
	assert.Len(t, rp, 2)
	assert.True(t, decimal.NewFromInt(20).Equal(rp.Get(compensation.PctHelperCloser)))

	_, err = f.ParseRolePercentages([]byte(`{"SCHEDULER": 101}`))
	var cfgErr *compensation.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.True(t, errors.Is(err, compensation.ErrInvalidPercentage))

	empty, err := f.ParseRolePercentages([]byte(`null`))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestParseSettings_DefaultsDuePercentage(t *testing.T) {
	st, err := NewConfigFactory().ParseSettings([]byte(`{"target_income": 500000}`))
	require.NoError(t, err)

	assert.True(t, decimal.NewFromInt(500000).Equal(st.TargetIncome))
	assert.True(t, decimal.NewFromInt(100).Equal(st.DueNormalizedPercentage))
}

func TestToJSON_ListsEveryRole(t *testing.T) {
	f := NewConfigFactory()
	cfg := compensation.DefaultConfig()
	cfg.Roles = compensation.RolePercentages{compensation.PctCloser: decimal.NewFromInt(40)}
	cfg.SeparateFields = []string{"Austrian Citizenship"}

	cj := f.ToJSON(cfg)
	assert.Len(t, cj.RolePercentages, len(compensation.PercentageKeys()))
	assert.Equal(t, 40.0, cj.RolePercentages["CLOSER"])
	assert.Equal(t, 0.0, cj.RolePercentages["DEPARTMENT_MANAGER"])
	require.NotNil(t, cj.Settings.DueNormalizedPercentage)
	assert.Equal(t, 100.0, *cj.Settings.DueNormalizedPercentage)

	// the output document parses back to the same configuration
	data, err := json.Marshal(cj)
	require.NoError(t, err)
	back, err := f.ParseConfig(data)
	require.NoError(t, err)
	assert.True(t, cfg.Roles.Equal(back.Roles))
	assert.Equal(t, cfg.SeparateFields, back.SeparateFields)
}
