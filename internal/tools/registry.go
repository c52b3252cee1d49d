// Package tools implements the bridge's callable tool catalog: device
// management, temperature control, dosing, and pure analytics. Handlers
// return plain structured values; JSON-RPC wrapping is the MCP server's
// job.
package tools

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"

	"github.com/silabio/sila2-bridge/internal/buffer"
	"github.com/silabio/sila2-bridge/internal/bus"
)

// Handler executes one tool call.
type Handler func(ctx context.Context, args map[string]any) (any, *ToolError)

// Registry is the tool catalog and dispatcher.
type Registry struct {
	devices  DeviceService
	buffer   *buffer.Rolling
	bus      *bus.EventBus
	logger   *logrus.Logger
	handlers map[string]Handler
	defs     []mcp.Tool
	now      func() time.Time
}

// NewRegistry wires the full tool catalog. eventBus may be nil.
func NewRegistry(devices DeviceService, buf *buffer.Rolling, eventBus *bus.EventBus, logger *logrus.Logger) *Registry {
	if logger == nil {
		logger = logrus.New()
	}
	r := &Registry{
		devices:  devices,
		buffer:   buf,
		bus:      eventBus,
		logger:   logger,
		handlers: make(map[string]Handler),
		now:      time.Now,
	}
	r.registerAll()
	return r
}

// Has reports whether a tool exists.
func (r *Registry) Has(name string) bool {
	_, ok := r.handlers[name]
	return ok
}

// Tools returns the MCP tool definitions for discovery.
func (r *Registry) Tools() []mcp.Tool {
	out := make([]mcp.Tool, len(r.defs))
	copy(out, r.defs)
	return out
}

// Call dispatches one normalized tool call.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any) (any, *ToolError) {
	handler, ok := r.handlers[name]
	if !ok {
		return nil, notFound("unknown tool %q", name)
	}
	if args == nil {
		args = map[string]any{}
	}
	r.logger.Debugf("Tool call %s (feature %s)", name, FeatureFor(name))
	return handler(ctx, args)
}

func (r *Registry) register(def mcp.Tool, handler Handler) {
	r.handlers[def.Name] = handler
	r.defs = append(r.defs, def)
}

func (r *Registry) registerAll() {
	r.register(mcp.NewTool("list_devices",
		mcp.WithDescription("List all laboratory devices known to the bridge with their live status"),
	), r.listDevices)

	r.register(mcp.NewTool("get_device_status",
		mcp.WithDescription("Get the full descriptor and current status of one device"),
		mcp.WithString("device_id", mcp.Required(), mcp.Description("Device identifier, e.g. HPLC-01")),
	), r.getDeviceStatus)

	r.register(mcp.NewTool("execute_command",
		mcp.WithDescription("Execute an opaque command on a device"),
		mcp.WithString("device_id", mcp.Required(), mcp.Description("Device identifier")),
		mcp.WithString("command", mcp.Required(), mcp.Description("Operation name; validated by the device")),
		mcp.WithObject("parameters", mcp.Description("Operation parameters")),
	), r.executeCommand)

	r.register(mcp.NewTool("start_operation",
		mcp.WithDescription("Start a named operation on a device"),
		mcp.WithString("device_id", mcp.Required(), mcp.Description("Device identifier")),
		mcp.WithString("operation", mcp.Required(), mcp.Description("Operation to start")),
		mcp.WithObject("parameters", mcp.Description("Operation parameters")),
	), r.startOperation)

	r.register(mcp.NewTool("get_temperature",
		mcp.WithDescription("Read a device's current and target temperature, from the telemetry buffer when fresh data exists"),
		mcp.WithString("device_id", mcp.Required(), mcp.Description("Device identifier")),
	), r.getTemperature)

	r.register(mcp.NewTool("set_temperature",
		mcp.WithDescription("Set a device's target temperature in °C"),
		mcp.WithString("device_id", mcp.Required(), mcp.Description("Device identifier")),
		mcp.WithNumber("target", mcp.Required(), mcp.Description("Target temperature in °C")),
	), r.setTemperature)

	r.register(mcp.NewTool("get_temperature_history",
		mcp.WithDescription("Fetch buffered telemetry samples for a device over a recent window"),
		mcp.WithString("device_id", mcp.Required(), mcp.Description("Device identifier")),
		mcp.WithNumber("minutes", mcp.Description("Window in minutes, 1-60, default 5")),
	), r.getTemperatureHistory)

	r.register(mcp.NewTool("analyze_heating_rate",
		mcp.WithDescription("Compute the average heating rate over a temperature history; pure calculation, no device access"),
		mcp.WithString("device_id", mcp.Required(), mcp.Description("Device identifier the history belongs to")),
		mcp.WithArray("history", mcp.Required(), mcp.Description("Readings of {timestamp, temperature}, oldest first")),
	), r.analyzeHeatingRate)

	r.register(mcp.NewTool("dose_volume",
		mcp.WithDescription("Dose a fluid volume on a pump device"),
		mcp.WithString("device_id", mcp.Required(), mcp.Description("Device identifier")),
		mcp.WithNumber("volume_ml", mcp.Required(), mcp.Description("Volume to dose in millilitres")),
		mcp.WithNumber("flow_rate", mcp.Description("Flow rate in ml/min")),
	), r.doseVolume)

	r.register(mcp.NewTool("get_flow_rate",
		mcp.WithDescription("Read a pump device's current flow rate"),
		mcp.WithString("device_id", mcp.Required(), mcp.Description("Device identifier")),
	), r.getFlowRate)
}

func (r *Registry) listDevices(ctx context.Context, _ map[string]any) (any, *ToolError) {
	views, terr := r.devices.List(ctx)
	if terr != nil {
		return nil, terr
	}
	return map[string]any{
		"devices":   views,
		"count":     len(views),
		"timestamp": r.now().UTC(),
	}, nil
}

func (r *Registry) getDeviceStatus(ctx context.Context, args map[string]any) (any, *ToolError) {
	deviceID, terr := stringArg(args, "device_id")
	if terr != nil {
		return nil, terr
	}
	info, terr := r.devices.Info(ctx, deviceID)
	if terr != nil {
		return nil, terr
	}
	result := map[string]any{
		"device_id":   info.DeviceID,
		"device_type": info.DeviceType,
		"status":      info.Status,
		"timestamp":   info.Timestamp,
	}
	if len(info.Properties) > 0 {
		result["properties"] = info.Properties
	}
	return result, nil
}

func (r *Registry) executeCommand(ctx context.Context, args map[string]any) (any, *ToolError) {
	deviceID, terr := stringArg(args, "device_id")
	if terr != nil {
		return nil, terr
	}
	command, terr := stringArg(args, "command")
	if terr != nil {
		return nil, terr
	}
	parameters, terr := objectArg(args, "parameters")
	if terr != nil {
		return nil, terr
	}
	return r.execute(ctx, deviceID, command, parameters)
}

// startOperation is an execute_command with a "start_" operation prefix;
// the device owns its own status transitions.
func (r *Registry) startOperation(ctx context.Context, args map[string]any) (any, *ToolError) {
	deviceID, terr := stringArg(args, "device_id")
	if terr != nil {
		return nil, terr
	}
	operation, terr := stringArg(args, "operation")
	if terr != nil {
		return nil, terr
	}
	parameters, terr := objectArg(args, "parameters")
	if terr != nil {
		return nil, terr
	}
	return r.execute(ctx, deviceID, "start_"+operation, parameters)
}

func (r *Registry) execute(ctx context.Context, deviceID, operation string, parameters map[string]any) (any, *ToolError) {
	result, terr := r.devices.Execute(ctx, deviceID, operation, parameters)
	if terr != nil {
		return nil, terr
	}
	if r.bus != nil {
		r.bus.PublishCommandExecuted(deviceID, operation, result.Success)
	}
	out := map[string]any{
		"device_id":      result.DeviceID,
		"operation":      result.Operation,
		"success":        result.Success,
		"status":         result.Status,
		"timestamp":      result.Timestamp,
		"correlation_id": uuid.NewString(),
	}
	if result.Result != nil {
		out["result"] = result.Result
	}
	return out, nil
}

func (r *Registry) getTemperature(ctx context.Context, args map[string]any) (any, *ToolError) {
	deviceID, terr := stringArg(args, "device_id")
	if terr != nil {
		return nil, terr
	}

	if sample, ok := r.buffer.Latest(deviceID); ok {
		result := map[string]any{
			"device_id":          deviceID,
			"temperature":        sample.Temperature,
			"target_temperature": sample.Target,
			"timestamp":          sample.Timestamp,
			"source":             "buffer",
		}
		if sample.Scenario != "" {
			result["scenario"] = sample.Scenario
		}
		return result, nil
	}

	// No buffered telemetry yet; ask the device directly.
	info, terr := r.devices.Info(ctx, deviceID)
	if terr != nil {
		return nil, terr
	}
	result := map[string]any{
		"device_id": deviceID,
		"timestamp": info.Timestamp,
		"source":    "device",
	}
	if v, ok := parseFloatProperty(info.Properties, "current_temperature"); ok {
		result["temperature"] = v
	}
	if v, ok := parseFloatProperty(info.Properties, "target_temperature"); ok {
		result["target_temperature"] = v
	}
	return result, nil
}

func (r *Registry) setTemperature(ctx context.Context, args map[string]any) (any, *ToolError) {
	deviceID, terr := stringArg(args, "device_id")
	if terr != nil {
		return nil, terr
	}
	target, terr := numberArg(args, "target")
	if terr != nil {
		return nil, terr
	}
	return r.execute(ctx, deviceID, "set_temperature", map[string]any{"target": target})
}

func (r *Registry) getTemperatureHistory(_ context.Context, args map[string]any) (any, *ToolError) {
	deviceID, terr := stringArg(args, "device_id")
	if terr != nil {
		return nil, terr
	}
	minutes, terr := intArgDefault(args, "minutes", buffer.DefaultMaxMinutes)
	if terr != nil {
		return nil, terr
	}
	samples, err := r.buffer.History(deviceID, minutes)
	if err != nil {
		return nil, invalidArgs("%v", err)
	}
	return map[string]any{
		"device_id": deviceID,
		"count":     len(samples),
		"minutes":   minutes,
		"data":      samples,
	}, nil
}

func (r *Registry) analyzeHeatingRate(_ context.Context, args map[string]any) (any, *ToolError) {
	deviceID, terr := stringArg(args, "device_id")
	if terr != nil {
		return nil, terr
	}
	history, terr := historyArg(args, "history")
	if terr != nil {
		return nil, terr
	}
	return AnalyzeHeatingRate(deviceID, history), nil
}

func (r *Registry) doseVolume(ctx context.Context, args map[string]any) (any, *ToolError) {
	deviceID, terr := stringArg(args, "device_id")
	if terr != nil {
		return nil, terr
	}
	volume, terr := numberArg(args, "volume_ml")
	if terr != nil {
		return nil, terr
	}
	parameters := map[string]any{"volume_ml": volume}
	if _, ok := args["flow_rate"]; ok {
		v, terr := numberArg(args, "flow_rate")
		if terr != nil {
			return nil, terr
		}
		parameters["flow_rate"] = v
	}
	return r.execute(ctx, deviceID, "dose_volume", parameters)
}

func (r *Registry) getFlowRate(ctx context.Context, args map[string]any) (any, *ToolError) {
	deviceID, terr := stringArg(args, "device_id")
	if terr != nil {
		return nil, terr
	}
	info, terr := r.devices.Info(ctx, deviceID)
	if terr != nil {
		return nil, terr
	}
	result := map[string]any{
		"device_id": deviceID,
		"timestamp": info.Timestamp,
		"unit":      "ml_per_min",
	}
	if v, ok := parseFloatProperty(info.Properties, "flow_rate"); ok {
		result["flow_rate"] = v
	}
	return result, nil
}
