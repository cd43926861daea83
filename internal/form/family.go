package form

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/corpbenefits/benefits-platform/internal/planconfig"
)

// FamilyComponent toggles coverage per family member.
type FamilyComponent struct{}

func (FamilyComponent) Name() string { return "family" }

func (FamilyComponent) Present(cfg *planconfig.PlanConfiguration) bool {
	return cfg != nil && cfg.FamilyDefinition != nil
}

// Render emits one toggle per member. Mandatory members are checked and disabled.
func (c FamilyComponent) Render(cfg *planconfig.PlanConfiguration, sel *Selection, errs ValidationErrors) Field {
	field := newField(c.Name(), KindToggleGroup, "Family members", cfg, errs)
	for _, member := range cfg.Members() {
		checked := member.Mandatory
		if sel != nil && sel.Family[member.Relation] {
			checked = true
		}
		field.Options = append(field.Options, Option{
			Value:    member.Relation,
			Label:    relationLabel(member.Relation),
			Checked:  checked,
			Disabled: member.Mandatory,
		})
	}
	return field
}

// Apply sets the member named by change.Key. Mandatory members stay covered.
func (c FamilyComponent) Apply(cfg *planconfig.PlanConfiguration, sel *Selection, change Change) error {
	var member *planconfig.FamilyMember
	for i, m := range cfg.Members() {
		if m.Relation == change.Key {
			member = &cfg.Members()[i]
			break
		}
	}
	if member == nil {
		return fmt.Errorf("%w: family: unknown member %q", ErrInvalidChange, change.Key)
	}
	var covered bool
	if err := decodeValue(change, &covered); err != nil {
		return err
	}
	if sel.Family == nil {
		sel.Family = map[string]bool{}
	}
	if member.Mandatory {
		sel.Family[member.Relation] = true
		return nil
	}
	sel.Family[member.Relation] = covered
	return nil
}

func relationLabel(relation string) string {
	words := strings.Fields(strings.ReplaceAll(relation, "_", " "))
	for i, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
