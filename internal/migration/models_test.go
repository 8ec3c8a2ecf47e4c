package migration

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

type dataTyper interface {
	DataTypeOf(*schema.Field) string
}

// mysql cannot index TEXT without a prefix length and has no JSONB, so every
// model must resolve to portable column types there.
func TestModelsResolveOnMySQL(t *testing.T) {
	conn, err := gorm.Open(mysql.New(mysql.Config{
		DSN:                       "bakehouse:bakehouse@tcp(127.0.0.1:3306)/bakehouse?parseTime=True",
		SkipInitializeWithVersion: true,
	}), &gorm.Config{DisableAutomaticPing: true, DryRun: true})
	require.NoError(t, err)

	migrator, ok := conn.Migrator().(dataTyper)
	require.True(t, ok)

	types := map[string]string{}
	for _, model := range Models() {
		stmt := &gorm.Statement{DB: conn}
		require.NoError(t, stmt.Parse(model))
		for _, f := range stmt.Schema.Fields {
			if f.DBName == "" {
				continue
			}
			types[stmt.Schema.Table+"."+f.DBName] = strings.ToLower(migrator.DataTypeOf(f))
		}
	}

	assert.Equal(t, "varchar(64)", types["products.code"])
	assert.Equal(t, "varchar(64)", types["materials.code"])
	assert.Equal(t, "varchar(64)", types["orders.number"])
	assert.Equal(t, "varchar(16)", types["prices.unit"])
	assert.Equal(t, "json", types["products.metadata"])
	assert.Equal(t, "json", types["materials.metadata"])
	assert.Equal(t, "json", types["stock_movements.metadata"])

	for col, typ := range types {
		assert.NotContains(t, typ, "jsonb", col)
	}
}
