package stack

import "fmt"

// Export names one generated attribute surfaced after provisioning. Exports
// are read-only records; their values only exist once a resolver has run.
type Export struct {
	Name   string
	Source AttrRef
}

// AddExport declares a post-provisioning output. The source entity must
// already be declared and export names must be unique.
func (b *Builder) AddExport(name, logicalID, attribute string) error {
	if name == "" {
		return fmt.Errorf("export name must not be empty")
	}
	if attribute == "" {
		return fmt.Errorf("export %q: attribute must not be empty", name)
	}
	for _, ex := range b.exports {
		if ex.Name == name {
			return fmt.Errorf("export %q is already declared", name)
		}
	}
	if _, ok := b.ids[logicalID]; !ok {
		return fmt.Errorf("export %q references undeclared entity %q", name, logicalID)
	}
	b.exports = append(b.exports, Export{
		Name:   name,
		Source: AttrRef{LogicalID: logicalID, Attribute: attribute},
	})
	return nil
}
