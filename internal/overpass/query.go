package overpass

import (
	"fmt"
	"strings"

	"github.com/wegman-software/osmpatch/internal/profile"
)

// BuildQuery returns the Overpass QL for every node and way carrying the
// profile's category key inside the profile's country, with metadata and
// the nodes of every way.
func BuildQuery(p *profile.Profile) string {
	timeout := p.Overpass.Timeout
	if timeout <= 0 {
		timeout = 1800
	}
	area := strings.ToUpper(p.Overpass.Area)
	key := p.Category.Key

	var b strings.Builder
	fmt.Fprintf(&b, "[out:xml][timeout:%d];\n", timeout)
	fmt.Fprintf(&b, "area[\"ISO3166-1\"=%q][admin_level=2]->.a;\n", area)
	b.WriteString("(\n")
	fmt.Fprintf(&b, "  node[%q](area.a);\n", key)
	fmt.Fprintf(&b, "  way[%q](area.a);\n", key)
	b.WriteString(");\n")
	b.WriteString("out meta center;\n")
	b.WriteString(">;\n")
	b.WriteString("out meta qt;\n")
	return b.String()
}
