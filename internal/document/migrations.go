package document

import (
	"encoding/json"
	"fmt"

	"tools.zach/dev/swatchbook/internal/color"
	"tools.zach/dev/swatchbook/internal/host"
	"tools.zach/dev/swatchbook/internal/migrate"
)

func init() {
	migrate.Document.Register(migrate.Migration{
		Version:     2,
		Description: "store style colors as structured paints",
		Upgrade:     upgradeV2,
	})
}

// upgradeV2 converts version 1 styles, which stored their color as a
// serialized rgb()/rgba() string under "color", into version 2 paints.
func upgradeV2(data []byte) ([]byte, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse v1 document: %w", err)
	}

	var v1 []struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Color string `json:"color"`
	}
	if raw, ok := doc["styles"]; ok {
		if err := json.Unmarshal(raw, &v1); err != nil {
			return nil, fmt.Errorf("parse v1 styles: %w", err)
		}
	}

	styles := make([]Style, 0, len(v1))
	for _, s := range v1 {
		c, err := color.ParseStrict(s.Color)
		if err != nil {
			return nil, fmt.Errorf("style %q: %w", s.Name, err)
		}
		p, err := paintOf(c)
		if err != nil {
			return nil, fmt.Errorf("style %q: %w", s.Name, err)
		}
		styles = append(styles, Style{ID: host.StyleID(s.ID), Name: s.Name, Paint: p})
	}

	raw, err := json.Marshal(styles)
	if err != nil {
		return nil, err
	}
	doc["styles"] = raw
	doc["version"] = json.RawMessage("2")
	return json.Marshal(doc)
}
