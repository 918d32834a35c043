package enrich

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSV(t *testing.T) {
	data := "\xEF\xBB\xBFUIC;name;railway:ref;extra\n" +
		"87723197;Lyon Part-Dieu;LPD;x\n" +
		";Nowhere;;\n" +
		"87000002;Gare Test\n" +
		"0087000003;\"Quoted; name\";A1;y\n"

	tbl, err := ReadCSV(strings.NewReader(data), Options{
		KeyColumn: "UIC",
		Columns:   []string{"name", "railway:ref", "ref:FR:sncf:resarail"},
		Comma:     ';',
	})
	require.NoError(t, err)

	assert.Equal(t, "UIC", tbl.Header[0], "BOM stripped")
	assert.Equal(t, 1, tbl.SkippedEmptyKey)
	assert.Equal(t, []string{"ref:FR:sncf:resarail"}, tbl.MissingColumns)
	require.Len(t, tbl.Rows, 3)

	first := tbl.Rows[0]
	assert.Equal(t, "87723197", first.Key)
	assert.Equal(t, "Lyon Part-Dieu", first.Value("name"))
	assert.Equal(t, "LPD", first.Value("railway:ref"))
	assert.NotContains(t, first.Values, "extra")
	assert.Equal(t, 2, first.Line)

	ragged := tbl.Rows[1]
	assert.Equal(t, "Gare Test", ragged.Value("name"))
	assert.Equal(t, "", ragged.Value("railway:ref"))

	quoted := tbl.Rows[2]
	assert.Equal(t, "0087000003", quoted.Key, "keys keep leading zeros")
	assert.Equal(t, "Quoted; name", quoted.Value("name"))

	var nilRow *Row
	assert.Equal(t, "", nilRow.Value("name"))
}

func TestReadCSVSkipsMalformedRows(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader("UIC,name\n87001,Gare A\n87002,Gare d\"Ax\n87003,Gare C\n"),
		Options{KeyColumn: "UIC"})
	require.NoError(t, err)

	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, "87001", tbl.Rows[0].Key)
	assert.Equal(t, "87003", tbl.Rows[1].Key)
	assert.Equal(t, 1, tbl.SkippedMalformed)
	assert.Equal(t, []int{3}, tbl.MalformedLines)
}

func TestReadCSVSkipsRowsRejectedByTransform(t *testing.T) {
	script, err := NewScriptString(`
function transform(column, value)
  if value == "boom" then
    error("cannot normalize " .. value)
  end
  return value
end
`)
	require.NoError(t, err)
	defer script.Close()

	tbl, err := ReadCSV(strings.NewReader("UIC,name\n1,a\n2,boom\n3,c\n"), Options{
		KeyColumn: "UIC",
		Columns:   []string{"name"},
		Transform: script.Transform,
	})
	require.NoError(t, err)

	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, "1", tbl.Rows[0].Key)
	assert.Equal(t, "3", tbl.Rows[1].Key)
	assert.Equal(t, 1, tbl.SkippedMalformed)
	assert.Equal(t, []int{3}, tbl.MalformedLines)
}

func TestReadCSVMalformedHeaderFails(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("UIC,na\"me\n1,a\n"), Options{KeyColumn: "UIC"})
	assert.Error(t, err)
}

func TestReadCSVMissingKeyColumn(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("code,name\n1,a\n"), Options{KeyColumn: "UIC"})
	assert.ErrorIs(t, err, ErrNoKeyColumn)

	_, err = ReadCSV(strings.NewReader(""), Options{KeyColumn: "UIC"})
	assert.Error(t, err)
}

func TestReadCSVKeepsAllColumnsByDefault(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader("UIC,name,extra\n1,a,b\n"), Options{KeyColumn: "UIC"})
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 1)
	assert.Equal(t, map[string]string{"UIC": "1", "name": "a", "extra": "b"}, tbl.Rows[0].Values)
}

func TestLoadCSVWithScript(t *testing.T) {
	script, err := NewScriptString(`
function transform(column, value)
  if column == "name" then
    return string.upper(value)
  end
  if value == "-" then
    return nil
  end
  return value
end
`)
	require.NoError(t, err)
	defer script.Close()

	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("UIC,name,railway:ref\n1,gare,-\n"), 0644))

	tbl, err := LoadCSV(path, Options{
		KeyColumn: "UIC",
		Columns:   []string{"name", "railway:ref"},
		Transform: script.Transform,
	})
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 1)
	assert.Equal(t, "GARE", tbl.Rows[0].Value("name"))
	assert.Equal(t, "", tbl.Rows[0].Value("railway:ref"))

	_, err = LoadCSV(filepath.Join(t.TempDir(), "missing.csv"), Options{KeyColumn: "UIC"})
	assert.Error(t, err)
}

func TestScriptErrors(t *testing.T) {
	_, err := NewScriptString(`x = 1`)
	assert.Error(t, err)

	_, err = NewScriptString(`function transform(`)
	assert.Error(t, err)

	s, err := NewScriptString(`function transform(c, v) return {} end`)
	require.NoError(t, err)
	defer s.Close()
	_, err = s.Transform("name", "x")
	assert.Error(t, err)

	n, err := NewScriptString(`function transform(c, v) return 42 end`)
	require.NoError(t, err)
	defer n.Close()
	v, err := n.Transform("name", "x")
	require.NoError(t, err)
	assert.Equal(t, "42", v)
}
