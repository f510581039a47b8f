package mcptools

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	apperrors "github.com/Sara3/tesla-mcp/internal/errors"
)

func (f *Factory) registerTools(s *server.MCPServer) {
	s.AddTool(mcp.NewTool("list_vehicles",
		mcp.WithDescription("List the vehicles on the authenticated Tesla account."),
		mcp.WithBoolean("force_refresh", mcp.Description("Bypass the cached vehicle list")),
	), f.handleListVehicles)

	s.AddTool(mcp.NewTool("get_vehicle_data",
		mcp.WithDescription("Get the full state of a vehicle: charge, climate, drive and vehicle state."),
		mcp.WithString("vehicle_id", mcp.Required(), mcp.Description("Vehicle id, VIN or display name")),
		mcp.WithBoolean("include_location", mcp.Description("Include location data (requires the location scope)")),
	), f.handleVehicleData)

	s.AddTool(mcp.NewTool("wake_up",
		mcp.WithDescription("Wake a sleeping vehicle. Waking takes a few seconds; retry data calls after."),
		mcp.WithString("vehicle_id", mcp.Required(), mcp.Description("Vehicle id, VIN or display name")),
	), f.handleWakeUp)

	s.AddTool(mcp.NewTool("lock_doors",
		mcp.WithDescription("Lock the vehicle's doors."),
		mcp.WithString("vehicle_id", mcp.Required(), mcp.Description("Vehicle id, VIN or display name")),
	), f.commandHandler("door_lock", nil))

	s.AddTool(mcp.NewTool("unlock_doors",
		mcp.WithDescription("Unlock the vehicle's doors."),
		mcp.WithString("vehicle_id", mcp.Required(), mcp.Description("Vehicle id, VIN or display name")),
	), f.commandHandler("door_unlock", nil))

	s.AddTool(mcp.NewTool("climate_on",
		mcp.WithDescription("Start climate preconditioning."),
		mcp.WithString("vehicle_id", mcp.Required(), mcp.Description("Vehicle id, VIN or display name")),
	), f.commandHandler("auto_conditioning_start", nil))

	s.AddTool(mcp.NewTool("climate_off",
		mcp.WithDescription("Stop climate preconditioning."),
		mcp.WithString("vehicle_id", mcp.Required(), mcp.Description("Vehicle id, VIN or display name")),
	), f.commandHandler("auto_conditioning_stop", nil))

	s.AddTool(mcp.NewTool("set_temperature",
		mcp.WithDescription("Set the cabin temperature in degrees Celsius."),
		mcp.WithString("vehicle_id", mcp.Required(), mcp.Description("Vehicle id, VIN or display name")),
		mcp.WithNumber("temperature", mcp.Required(), mcp.Description("Target temperature in °C")),
	), f.handleSetTemperature)

	s.AddTool(mcp.NewTool("charge_start",
		mcp.WithDescription("Start charging (the vehicle must be plugged in)."),
		mcp.WithString("vehicle_id", mcp.Required(), mcp.Description("Vehicle id, VIN or display name")),
	), f.commandHandler("charge_start", nil))

	s.AddTool(mcp.NewTool("charge_stop",
		mcp.WithDescription("Stop charging."),
		mcp.WithString("vehicle_id", mcp.Required(), mcp.Description("Vehicle id, VIN or display name")),
	), f.commandHandler("charge_stop", nil))

	s.AddTool(mcp.NewTool("set_charge_limit",
		mcp.WithDescription("Set the charge limit percentage."),
		mcp.WithString("vehicle_id", mcp.Required(), mcp.Description("Vehicle id, VIN or display name")),
		mcp.WithNumber("percent", mcp.Required(), mcp.Description("Charge limit, 50-100")),
	), f.handleSetChargeLimit)

	s.AddTool(mcp.NewTool("honk_horn",
		mcp.WithDescription("Honk the horn."),
		mcp.WithString("vehicle_id", mcp.Required(), mcp.Description("Vehicle id, VIN or display name")),
	), f.commandHandler("honk_horn", nil))

	s.AddTool(mcp.NewTool("flash_lights",
		mcp.WithDescription("Flash the headlights."),
		mcp.WithString("vehicle_id", mcp.Required(), mcp.Description("Vehicle id, VIN or display name")),
	), f.commandHandler("flash_lights", nil))

	s.AddTool(mcp.NewTool("navigate_to",
		mcp.WithDescription("Send a destination to the vehicle's navigation."),
		mcp.WithString("vehicle_id", mcp.Required(), mcp.Description("Vehicle id, VIN or display name")),
		mcp.WithString("destination", mcp.Required(), mcp.Description("Address or place name")),
	), f.handleNavigateTo)

	s.AddTool(mcp.NewTool("nearby_charging",
		mcp.WithDescription("List Superchargers and destination chargers near the vehicle."),
		mcp.WithString("vehicle_id", mcp.Required(), mcp.Description("Vehicle id, VIN or display name")),
	), f.handleNearbyCharging)

	if f.sms != nil {
		s.AddTool(mcp.NewTool("send_sms",
			mcp.WithDescription("Send a text message, e.g. to notify someone about the vehicle."),
			mcp.WithString("to", mcp.Required(), mcp.Description("Recipient phone number in E.164 format")),
			mcp.WithString("message", mcp.Required(), mcp.Description("Message body")),
		), f.handleSendSMS)
	}
}

func (f *Factory) handleListVehicles(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, failure := f.sessionFor(ctx)
	if failure != nil {
		return failure, nil
	}
	if !f.service.HasCredentials(sessionID) {
		return f.guidance(sessionID, apperrors.ErrAuthConfiguration), nil
	}
	if !f.service.IsAuthenticated(sessionID) {
		return f.guidance(sessionID, apperrors.ErrAuthRequired), nil
	}

	force := request.GetBool("force_refresh", false)
	vehicles := f.cache.Get(ctx, sessionID, force)
	if len(vehicles) == 0 {
		return mcp.NewToolResultText("No vehicles found on this account (or the vehicle list is temporarily unavailable)."), nil
	}
	return asJSON(vehicles), nil
}

func (f *Factory) handleVehicleData(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, failure := f.sessionFor(ctx)
	if failure != nil {
		return failure, nil
	}
	key, err := request.RequireString("vehicle_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	vehicle, failure := f.vehicle(ctx, sessionID, key)
	if failure != nil {
		return failure, nil
	}

	includeLocation := request.GetBool("include_location", false)
	data, err := f.service.VehicleData(ctx, sessionID, vehicle.IDS, includeLocation)
	if err != nil {
		return f.guidance(sessionID, err), nil
	}
	return asJSON(data), nil
}

func (f *Factory) handleWakeUp(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, failure := f.sessionFor(ctx)
	if failure != nil {
		return failure, nil
	}
	key, err := request.RequireString("vehicle_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	vehicle, failure := f.vehicle(ctx, sessionID, key)
	if failure != nil {
		return failure, nil
	}

	woken, err := f.service.WakeUp(ctx, sessionID, vehicle.IDS)
	if err != nil {
		return f.guidance(sessionID, err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Wake-up sent to %s (state: %s). Give it a few seconds before requesting data.",
		woken.DisplayName, woken.State)), nil
}

// commandHandler builds a handler for a fixed, body-less vehicle
// command.
func (f *Factory) commandHandler(command string, body map[string]interface{}) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID, failure := f.sessionFor(ctx)
		if failure != nil {
			return failure, nil
		}
		key, err := request.RequireString("vehicle_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		vehicle, failure := f.vehicle(ctx, sessionID, key)
		if failure != nil {
			return failure, nil
		}
		return f.runCommand(ctx, sessionID, vehicle.IDS, command, body)
	}
}

func (f *Factory) runCommand(ctx context.Context, sessionID, vehicleID, command string, body interface{}) (*mcp.CallToolResult, error) {
	result, err := f.service.Command(ctx, sessionID, vehicleID, command, body)
	if err != nil {
		return f.guidance(sessionID, err), nil
	}
	if !result.Result {
		reason := result.Reason
		if reason == "" {
			reason = "vehicle rejected the command"
		}
		return mcp.NewToolResultError(fmt.Sprintf("%s failed: %s", command, reason)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s succeeded.", command)), nil
}

func (f *Factory) handleSetTemperature(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, failure := f.sessionFor(ctx)
	if failure != nil {
		return failure, nil
	}
	key, err := request.RequireString("vehicle_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	temp, err := request.RequireFloat("temperature")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	vehicle, failure := f.vehicle(ctx, sessionID, key)
	if failure != nil {
		return failure, nil
	}
	return f.runCommand(ctx, sessionID, vehicle.IDS, "set_temps", map[string]interface{}{
		"driver_temp":    temp,
		"passenger_temp": temp,
	})
}

func (f *Factory) handleSetChargeLimit(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, failure := f.sessionFor(ctx)
	if failure != nil {
		return failure, nil
	}
	key, err := request.RequireString("vehicle_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	percent, err := request.RequireFloat("percent")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if percent < 50 || percent > 100 {
		return mcp.NewToolResultError("percent must be between 50 and 100"), nil
	}
	vehicle, failure := f.vehicle(ctx, sessionID, key)
	if failure != nil {
		return failure, nil
	}
	return f.runCommand(ctx, sessionID, vehicle.IDS, "set_charge_limit", map[string]interface{}{
		"percent": int(percent),
	})
}

func (f *Factory) handleNavigateTo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, failure := f.sessionFor(ctx)
	if failure != nil {
		return failure, nil
	}
	key, err := request.RequireString("vehicle_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	destination, err := request.RequireString("destination")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	vehicle, failure := f.vehicle(ctx, sessionID, key)
	if failure != nil {
		return failure, nil
	}
	return f.runCommand(ctx, sessionID, vehicle.IDS, "share", map[string]interface{}{
		"type": "share_ext_content_raw",
		"value": map[string]interface{}{
			"android.intent.extra.TEXT": destination,
		},
		"locale":       "en-US",
		"timestamp_ms": time.Now().UnixMilli(),
	})
}

func (f *Factory) handleNearbyCharging(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, failure := f.sessionFor(ctx)
	if failure != nil {
		return failure, nil
	}
	key, err := request.RequireString("vehicle_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	vehicle, failure := f.vehicle(ctx, sessionID, key)
	if failure != nil {
		return failure, nil
	}

	sites, err := f.service.NearbyCharging(ctx, sessionID, vehicle.IDS)
	if err != nil {
		return f.guidance(sessionID, err), nil
	}
	return asJSON(sites), nil
}

func (f *Factory) handleSendSMS(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if _, failure := f.sessionFor(ctx); failure != nil {
		return failure, nil
	}
	to, err := request.RequireString("to")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	message, err := request.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := f.sms.Send(ctx, to, message); err != nil {
		return mcp.NewToolResultError("Failed to send the message."), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Message sent to %s.", to)), nil
}
