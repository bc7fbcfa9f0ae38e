package cmd

import (
	"testing"

	"gopkg.in/yaml.v3"
)

func TestGroupFile_Decode(t *testing.T) {
	data := []byte(`
groups:
  - key: dig
    name: Dig Crew
    series_id: "123456789"
  - key: office
    name: Office Helpers
    description: Tuesday admin
`)

	var file groupFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if len(file.Groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(file.Groups))
	}

	dig := file.Groups[0]
	if dig.Key != "dig" || dig.Name != "Dig Crew" || dig.ExternalSeriesID != "123456789" {
		t.Errorf("unexpected group %+v", dig)
	}
	if dig.ID != 0 {
		t.Errorf("import must not carry ids, got %d", dig.ID)
	}
	if got := file.Groups[1].Description; got != "Tuesday admin" {
		t.Errorf("Description = %q", got)
	}
}
