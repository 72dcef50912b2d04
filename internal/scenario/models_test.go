package scenario

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentsim/internal/agent/models"
	"agentsim/internal/simulation/queue"
	"agentsim/pkg/platform/sentinel"
)

func shoppingScenario() Scenario {
	return Scenario{
		ID:             "s1",
		Name:           "Shop",
		Type:           models.AgentTypeShopping,
		Difficulty:     DifficultyBeginner,
		InitialBalance: 500,
		Merchants:      []Merchant{{ID: "fairprice", Name: "FairPrice"}},
		Products: []models.Product{
			{ID: "p1", Name: "Milo", MerchantID: "fairprice", Price: 14.95, InStock: true},
			{ID: "p2", Name: "Keyboard", MerchantID: "challenger", Price: 129, InStock: true},
		},
		Bills: []models.Bill{{ID: "b1", Name: "SP Group", Amount: 150, Priority: models.BillEssential}},
	}
}

func TestAgentConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := shoppingScenario().AgentConfig()
		require.NoError(t, err)
		assert.Equal(t, DefaultAgentID, cfg.ID)
		assert.Equal(t, "Shop", cfg.Name)
		assert.Equal(t, float64(models.DefaultPerTransaction), cfg.SpendingLimits.PerTransaction)
		assert.Equal(t, models.DefaultMandates(), cfg.Guardrails)
	})

	t.Run("overrides", func(t *testing.T) {
		s := shoppingScenario()
		s.InitialConfig = AgentOverrides{
			ID:               "shopper",
			SpendingLimits:   &models.SpendingLimits{PerTransaction: 40, Daily: 80, AutoApproveThreshold: 10},
			BlockedMerchants: []string{"courts"},
			Guardrails: models.GuardrailSettings{
				ConfirmationThreshold: &models.MandateConstraint[float64]{Value: 20, Severity: models.SeverityMedium},
			},
		}
		cfg, err := s.AgentConfig()
		require.NoError(t, err)
		assert.Equal(t, "shopper", cfg.ID)
		assert.Equal(t, 40.0, cfg.SpendingLimits.PerTransaction)
		assert.True(t, cfg.IsMerchantBlocked("courts"))
		assert.Equal(t, 20.0, cfg.Guardrails.ConfirmationThreshold.Value)
		assert.Equal(t, 5, cfg.Guardrails.MaxTransactionsPerHour.Value, "untouched mandates keep defaults")
	})

	t.Run("invalid overrides", func(t *testing.T) {
		s := shoppingScenario()
		s.InitialConfig.RiskSettings = &models.RiskSettings{MaxRiskLevel: 9}
		_, err := s.AgentConfig()
		require.ErrorIs(t, err, sentinel.ErrInvalidInput)
	})
}

func TestKnownMerchants(t *testing.T) {
	assert.Equal(t, []string{"SP Group", "challenger", "fairprice"}, shoppingScenario().KnownMerchants())
}

func TestItems(t *testing.T) {
	s := shoppingScenario()
	items := s.Items()
	require.Len(t, items, 3)
	assert.Equal(t, "p1", items[0].ItemID())
	assert.Equal(t, "b1", items[2].ItemID())

	it, ok := s.Item("b1")
	require.True(t, ok)
	assert.IsType(t, models.Bill{}, it)
	_, ok = s.Item("missing")
	assert.False(t, ok)
}

func TestScenarioValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Scenario)
		want   string
	}{
		{"missing id", func(s *Scenario) { s.ID = "" }, "id is required"},
		{"unknown type", func(s *Scenario) { s.Type = "lottery" }, "unknown agent type"},
		{"negative balance", func(s *Scenario) { s.InitialBalance = -1 }, "initial balance"},
		{"duplicate objective", func(s *Scenario) {
			s.Objectives = []Objective{{ID: "o1"}, {ID: "o1"}}
		}, "duplicate objective"},
		{"unknown criterion", func(s *Scenario) {
			s.Objectives = []Objective{{ID: "o1", Criterion: &Criterion{Kind: "vibes"}}}
		}, "unknown criterion"},
		{"bad event", func(s *Scenario) {
			s.Events = []EventSpec{{At: -5, Type: queue.EventUserTrigger}}
		}, "time must not be negative"},
		{"bad item", func(s *Scenario) { s.Products[0].Rating = 7 }, "rating"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := shoppingScenario()
			tt.mutate(&s)
			err := s.Validate()
			require.ErrorIs(t, err, sentinel.ErrInvalidInput)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	require.NoError(t, shoppingScenario().Validate())
}
