package actions

// BuiltinConfig aggregates the configuration of all builtin action families.
type BuiltinConfig struct {
	Apps   AppsConfig
	System SystemConfig
	FS     FSConfig
}

// RegisterBuiltins registers all built-in automation actions in the registry.
func RegisterBuiltins(reg *Registry, cfg BuiltinConfig) error {
	all := make([]Action, 0, 8)

	all = append(all, AppsActions(cfg.Apps)...)
	all = append(all, SystemActions(cfg.System)...)
	all = append(all, FSActions(cfg.FS)...)
	all = append(all, CalcActions()...)
	all = append(all, JSONActions()...)

	for _, a := range all {
		if err := reg.Register(a); err != nil {
			return err
		}
	}
	return nil
}
