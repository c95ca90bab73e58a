package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/dexharvest/models"
	"github.com/use-agent/dexharvest/session"
)

func TestDefault_Validates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Catalog)
	}{
		{"broken css", func(c *Catalog) { c.Rows = session.CSS("tbody >") }},
		{"broken xpath", func(c *Catalog) { c.ConsentDismiss = session.XPath("/html/body/[") }},
		{"empty locator", func(c *Catalog) { c.MovesTable = session.Locator{} }},
		{"empty name header", func(c *Catalog) { c.NameHeader = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.True(t, models.IsCode(err, models.ErrCodeInvalidInput))
		})
	}
}
