package main

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/docintel/internal/intake"
	"github.com/sells-group/docintel/internal/model"
)

// manifest describes one application on disk.
type manifest struct {
	Loan      model.LoanRequest `yaml:"loan"`
	Documents []intake.Source   `yaml:"documents"`
}

// loadManifest reads a YAML manifest. Relative document paths resolve
// against the manifest's directory.
func loadManifest(path string) (*manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read manifest %s", path)
	}

	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrapf(err, "parse manifest %s", path)
	}
	if m.Loan.ApplicantID == "" {
		return nil, eris.New("manifest: loan.applicant_id is required")
	}
	if m.Loan.Type == "" {
		m.Loan.Type = model.LoanPersonal
	}

	base := filepath.Dir(path)
	for i, d := range m.Documents {
		if d.Path != "" && !filepath.IsAbs(d.Path) {
			m.Documents[i].Path = filepath.Join(base, d.Path)
		}
	}
	return &m, nil
}
