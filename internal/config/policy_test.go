package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultTallyPolicy(t *testing.T) {
	policy := DefaultTallyPolicy()
	assert.Equal(t, "🐝", policy.Symbol)
	assert.Equal(t, 10, policy.TopLimit)
	assert.False(t, policy.FreezeZeroesHistory)
}

func TestValidateTallyPolicy(t *testing.T) {
	assert.NoError(t, validateTallyPolicy(DefaultTallyPolicy()))
	assert.Error(t, validateTallyPolicy(TallyPolicy{Symbol: "  ", TopLimit: 10}))
	assert.Error(t, validateTallyPolicy(TallyPolicy{Symbol: "🐝", TopLimit: 0}))
}

func TestHolderSwapsPolicy(t *testing.T) {
	holder := NewTallyPolicyHolderWith(DefaultTallyPolicy())
	assert.Equal(t, "🐝", holder.Get().Symbol)

	updated := TallyPolicy{Symbol: "⭐", TopLimit: 5}
	holder.current.Store(updated)
	assert.Equal(t, updated, holder.Get())
}
