package settings

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/fastygo/schoolerp/domain"
)

// binding ties a module to the typed shapes its documents must decode into.
type binding struct {
	document func() any
	entry    func() any
}

var registry = map[domain.Module]binding{
	domain.ModuleSecurityFramework: {
		document: func() any { return &domain.SecurityFrameworkConfig{} },
	},
	domain.ModuleCoreSystemConfig: {
		document: func() any { return &domain.CoreSystemConfig{} },
	},
	domain.ModuleEnterpriseInfra: {
		document: func() any { return &domain.EnterpriseInfraConfig{} },
	},
	domain.ModuleFeatureFlags: {
		document: func() any { return &domain.FeatureFlagsConfig{} },
		entry:    func() any { return &domain.FeatureFlagAttributes{} },
	},
	domain.ModuleRole: {
		document: func() any { return &domain.RolesConfig{} },
		entry:    func() any { return &domain.RoleAttributes{} },
	},
}

// lookup resolves the binding of m. Only the role catalogue has a global scope, every other module
// belongs to a tenant.
func lookup(m domain.Module, tenantID string) (binding, error) {
	b, ok := registry[m]
	if !ok {
		return binding{}, domain.WrapError(domain.ErrCodeInvalid, domain.ErrInvalidModule.Message, fmt.Errorf("module %q", m))
	}
	if tenantID == "" && m != domain.ModuleRole {
		return binding{}, domain.ErrTenantRequired
	}
	return b, nil
}

func (uc *UseCase) validateDocument(b binding, doc domain.Document) error {
	dst := b.document()
	if err := decodeStrict(doc, dst, "data"); err != nil {
		return err
	}
	return uc.validator.StructAt("data", dst)
}

func (uc *UseCase) validateEntry(b binding, path string, name string, data domain.Document) error {
	if b.entry == nil {
		return domain.ErrNotCollection
	}
	if err := uc.validator.Var(path+".name", name, "required,entryname"); err != nil {
		return err
	}
	dst := b.entry()
	if err := decodeStrict(data, dst, path+".data"); err != nil {
		return err
	}
	return uc.validator.StructAt(path+".data", dst)
}

func (uc *UseCase) validateAggregate(b binding, s *domain.Settings) error {
	if err := uc.validateDocument(b, s.Data); err != nil {
		return err
	}
	for i, e := range s.Entries {
		if e.IsDeleted {
			continue
		}
		if err := uc.validateEntry(b, fmt.Sprintf("entries[%d]", i), e.Name, e.Data); err != nil {
			return err
		}
	}
	return nil
}

// decodeStrict maps doc onto dst, rejecting unknown keys and type mismatches.
func decodeStrict(doc domain.Document, dst any, path string) error {
	if doc == nil {
		doc = domain.Document{}
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return domain.WrapError(domain.ErrCodeInvalid, "invalid document", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.NewValidationError("validation failed", domain.FieldError{Field: path, Message: err.Error()})
	}
	return nil
}
