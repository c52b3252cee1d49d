package tools

// Feature names group related tools for discovery.
const (
	FeatureDeviceManagement      = "DeviceManagement"
	FeatureTemperatureController = "TemperatureController"
	FeaturePumpFluidDosing       = "PumpFluidDosingService"
)

// featureTools is the static feature catalog. Immutable after load; tools
// absent from every group belong to DeviceManagement so newly added tools
// stay discoverable without touching this table.
var featureTools = map[string][]string{
	FeatureDeviceManagement:      {"list_devices", "get_device_status"},
	FeatureTemperatureController: {"set_temperature", "get_temperature"},
	FeaturePumpFluidDosing:       {"dose_volume", "get_flow_rate"},
}

// FeatureFor returns the feature a tool belongs to.
func FeatureFor(toolName string) string {
	for feature, names := range featureTools {
		for _, name := range names {
			if name == toolName {
				return feature
			}
		}
	}
	return FeatureDeviceManagement
}

// ToolsByFeature returns the tools of one feature, or nil for an unknown
// feature.
func ToolsByFeature(feature string) []string {
	names, ok := featureTools[feature]
	if !ok {
		return nil
	}
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// Features lists every feature name.
func Features() []string {
	return []string{
		FeatureDeviceManagement,
		FeatureTemperatureController,
		FeaturePumpFluidDosing,
	}
}
