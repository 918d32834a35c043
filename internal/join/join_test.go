package join

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wegman-software/osmpatch/internal/enrich"
	"github.com/wegman-software/osmpatch/internal/extract"
	"github.com/wegman-software/osmpatch/internal/osmdoc"
)

func record(id int64, key string, hasKey bool) *extract.Record {
	return &extract.Record{Ref: osmdoc.NodeRef(id), JoinKey: key, HasKey: hasKey}
}

func TestJoin(t *testing.T) {
	table := &enrich.Table{Rows: []*enrich.Row{
		{Key: "87000001", Values: map[string]string{"name": "first"}, Line: 2},
		{Key: "87000002", Values: map[string]string{"name": "B"}, Line: 3},
		{Key: "87000001", Values: map[string]string{"name": "second"}, Line: 4},
		{Key: "87000009", Values: map[string]string{"name": "orphan"}, Line: 5},
	}}
	records := []*extract.Record{
		record(1, "87000001", true),
		record(2, "87000002", true),
		record(3, " 87000002", true),
		record(4, "", false),
		record(5, "87000002", true),
	}

	res := Join(records, table)

	require.Len(t, res.Entities, 5, "left join keeps every record")
	assert.Equal(t, 3, res.Matched)

	assert.Equal(t, "second", res.Entities[0].Row.Value("name"), "last duplicate wins")
	assert.True(t, res.Entities[1].Matched())
	assert.False(t, res.Entities[2].Matched(), "keys are not trimmed")
	assert.False(t, res.Entities[3].Matched())
	assert.Same(t, res.Entities[1].Row, res.Entities[4].Row)

	assert.Equal(t, []string{"87000001"}, res.DuplicateKeys)
	assert.Equal(t, []string{"87000002"}, res.SharedKeys)
	assert.Equal(t, 1, res.UnmatchedRows)
}

func TestJoinEmptyTable(t *testing.T) {
	res := Join([]*extract.Record{record(1, "1", true)}, &enrich.Table{})
	require.Len(t, res.Entities, 1)
	assert.False(t, res.Entities[0].Matched())
	assert.Zero(t, res.Matched)
	assert.Empty(t, res.DuplicateKeys)
}
