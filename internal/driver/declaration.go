package driver

import "github.com/google/uuid"

// metadataKey is where application provenance lives inside a stitched
// application's constants block.
const metadataKey = "stencil"

// stubDeclaration is the minimal document an empty remote state
// normalizes to.
func stubDeclaration() map[string]interface{} {
	return map[string]interface{}{
		"class":         "ADC",
		"schemaVersion": "3.0.0",
		"id":            "urn:uuid:" + uuid.NewString(),
	}
}

// stripLockTokens removes the transient optimistic-lock token the
// service attaches to hash-bearing reads, at the top level and per
// tenant. The token must never be cached or written back.
func stripLockTokens(decl map[string]interface{}) {
	delete(decl, "optimisticLockKey")
	for _, raw := range decl {
		if tenant, ok := raw.(map[string]interface{}); ok && tenant["class"] == "Tenant" {
			delete(tenant, "optimisticLockKey")
		}
	}
}

// stitchApplication merges an application definition into the base
// declaration, creating the tenant container when absent. Returns true
// when the tenant/application pair already existed (an update).
func stitchApplication(decl map[string]interface{}, app Application) bool {
	tenant, ok := decl[app.Tenant].(map[string]interface{})
	if !ok {
		tenant = map[string]interface{}{"class": "Tenant"}
		decl[app.Tenant] = tenant
	}

	_, existed := tenant[app.Name]

	definition := deepCopyObject(app.Definition)
	if definition == nil {
		definition = make(map[string]interface{})
	}
	if definition["class"] == nil {
		definition["class"] = "Application"
	}
	if app.Metadata != nil {
		constants, ok := definition["constants"].(map[string]interface{})
		if !ok {
			constants = map[string]interface{}{"class": "Constants"}
			definition["constants"] = constants
		}
		meta := map[string]interface{}{"template": app.Metadata.Template}
		if app.Metadata.Parameters != nil {
			meta["parameters"] = deepCopyObject(app.Metadata.Parameters)
		}
		constants[metadataKey] = meta
	}
	tenant[app.Name] = definition
	return existed
}

// removeApplication deletes one application, dropping the tenant
// container once it holds no applications.
func removeApplication(decl map[string]interface{}, tenantName, appName string) {
	tenant, ok := decl[tenantName].(map[string]interface{})
	if !ok || tenant["class"] != "Tenant" {
		return
	}
	delete(tenant, appName)

	for _, raw := range tenant {
		if app, ok := raw.(map[string]interface{}); ok && app["class"] == "Application" {
			return
		}
	}
	delete(decl, tenantName)
}

// removeAllApplications drops every tenant container and returns the
// removed tenant names.
func removeAllApplications(decl map[string]interface{}) []string {
	var tenants []string
	for name, raw := range decl {
		if tenant, ok := raw.(map[string]interface{}); ok && tenant["class"] == "Tenant" {
			tenants = append(tenants, name)
		}
	}
	for _, name := range tenants {
		delete(decl, name)
	}
	return tenants
}

// embeddedMetadata extracts the provenance block stitched into an
// application, or nil.
func embeddedMetadata(app map[string]interface{}) map[string]interface{} {
	constants, ok := app["constants"].(map[string]interface{})
	if !ok {
		return nil
	}
	meta, _ := constants[metadataKey].(map[string]interface{})
	return meta
}

func tenantsOf(apps []Application) []string {
	tenants := make([]string, 0, len(apps))
	for _, app := range apps {
		tenants = append(tenants, app.Tenant)
	}
	return uniqueStrings(tenants)
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func deepCopyObject(src map[string]interface{}) map[string]interface{} {
	if src == nil {
		return nil
	}
	dst := make(map[string]interface{}, len(src))
	for k, v := range src {
		dst[k] = deepCopyValue(v)
	}
	return dst
}

func deepCopyValue(v interface{}) interface{} {
	switch value := v.(type) {
	case map[string]interface{}:
		return deepCopyObject(value)
	case []interface{}:
		list := make([]interface{}, len(value))
		for i, item := range value {
			list[i] = deepCopyValue(item)
		}
		return list
	default:
		return v
	}
}
