// Package arch describes the computation architectures sidegen can load:
// which inputs each network takes and which checkpoints must be acquired.
package arch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pablasso/sidegen/internal/domain"
)

// DefaultModelURLPrefix is where the published checkpoints live.
const DefaultModelURLPrefix = "https://fegemo.github.io/"

// Checkpoint is a downloadable backend bound to one (source, target) slot.
type Checkpoint struct {
	Source  domain.Domain `yaml:"source"`
	Target  domain.Domain `yaml:"target"`
	Locator string        `yaml:"locator"`
}

// Name returns a short label such as "back-to-front".
func (c Checkpoint) Name() string {
	return fmt.Sprintf("%s-to-%s", c.Source, c.Target)
}

// Architecture is the static descriptor of a computation architecture.
type Architecture struct {
	Name         string       `yaml:"name"`
	Version      string       `yaml:"version"`
	Inputs       []InputKind  `yaml:"inputs"`
	Checkpoints  []Checkpoint `yaml:"checkpoints"`
	DebugOutputs []string     `yaml:"debug_outputs,omitempty"`
}

// Validate checks the descriptor for configuration errors, including two
// checkpoints declared at the same (source, target) slot.
func (a Architecture) Validate() error {
	var errs []error
	if strings.TrimSpace(a.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if len(a.Inputs) == 0 {
		errs = append(errs, errors.New("at least one input is required"))
	}
	for _, k := range a.Inputs {
		if !k.Valid() {
			errs = append(errs, fmt.Errorf("invalid input kind %d", int(k)))
		}
	}
	if len(a.Checkpoints) == 0 {
		errs = append(errs, errors.New("at least one checkpoint is required"))
	}

	seen := make(map[domain.Pair]bool, len(a.Checkpoints))
	for i, c := range a.Checkpoints {
		if _, err := domain.Parse(string(c.Source)); err != nil {
			errs = append(errs, fmt.Errorf("checkpoint %d: source: %w", i, err))
		}
		if _, err := domain.Parse(string(c.Target)); err != nil {
			errs = append(errs, fmt.Errorf("checkpoint %d: target: %w", i, err))
		}
		if c.Target == domain.Many {
			errs = append(errs, fmt.Errorf("checkpoint %d: target cannot be %q", i, domain.Many))
		}
		if strings.TrimSpace(c.Locator) == "" {
			errs = append(errs, fmt.Errorf("checkpoint %d: locator is required", i))
		}
		key := domain.Pair{Source: c.Source, Target: c.Target}
		if seen[key] {
			errs = append(errs, fmt.Errorf("checkpoint %d: duplicate slot %s", i, c.Name()))
		}
		seen[key] = true
	}

	if len(errs) > 0 {
		return fmt.Errorf("architecture %q: %w", a.Name, errors.Join(errs...))
	}
	return nil
}

// HasInput reports whether the architecture declares kind k.
func (a Architecture) HasInput(k InputKind) bool {
	for _, in := range a.Inputs {
		if in == k {
			return true
		}
	}
	return false
}

// Builtins returns the published architectures with locators rooted at
// prefix (DefaultModelURLPrefix when empty).
func Builtins(prefix string) []Architecture {
	if prefix == "" {
		prefix = DefaultModelURLPrefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	base := func(name, version string) string {
		return fmt.Sprintf("%spixel-sides-models/%s/%s", prefix, name, version)
	}

	pix2pix := Architecture{
		Name:    "pix2pix",
		Version: "all,230224",
		Inputs:  []InputKind{InputSourceImage},
	}
	for _, p := range domain.DistinctPairs([]domain.Domain{domain.Front, domain.Right, domain.Back, domain.Left}) {
		pix2pix.Checkpoints = append(pix2pix.Checkpoints, Checkpoint{
			Source:  p.Source,
			Target:  p.Target,
			Locator: fmt.Sprintf("%s/%s-to-%s/model.json", base(pix2pix.Name, pix2pix.Version), p.Source, p.Target),
		})
	}

	stargan := Architecture{
		Name:    "stargan",
		Version: "all,200224,network-generator",
		Inputs:  []InputKind{InputSourceDomain, InputTargetDomain, InputSourceImage},
	}
	stargan.Checkpoints = []Checkpoint{{
		Source:  domain.Any,
		Target:  domain.Any,
		Locator: base(stargan.Name, stargan.Version) + "/model.json",
	}}

	collagan := Architecture{
		Name:    "collagan",
		Version: "all,280824,sbgames24",
		Inputs:  []InputKind{InputTargetDomain, InputSourceImages},
	}
	collagan.Checkpoints = []Checkpoint{{
		Source:  domain.Many,
		Target:  domain.Any,
		Locator: base(collagan.Name, collagan.Version) + "/model.json",
	}}

	return []Architecture{pix2pix, stargan, collagan}
}

// Find returns the architecture called name.
func Find(archs []Architecture, name string) (Architecture, error) {
	names := make([]string, 0, len(archs))
	for _, a := range archs {
		if strings.EqualFold(a.Name, strings.TrimSpace(name)) {
			return a, nil
		}
		names = append(names, a.Name)
	}
	return Architecture{}, fmt.Errorf("unknown architecture %q (available: %s)", name, strings.Join(names, ", "))
}

// Merge overlays extra on top of base: an entry in extra replaces the base
// architecture with the same name, other entries are appended.
func Merge(base, extra []Architecture) []Architecture {
	out := append([]Architecture(nil), base...)
	for _, e := range extra {
		replaced := false
		for i := range out {
			if strings.EqualFold(out[i].Name, e.Name) {
				out[i] = e
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, e)
		}
	}
	return out
}
