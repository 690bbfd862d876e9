package tools

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultOpsGenieURL = "https://api.opsgenie.com/v2"
	defaultAlertQuery  = "status:open OR status:unacked"
)

type OpsGenieAlert struct {
	ID          string   `json:"id"`
	TinyID      string   `json:"tinyId,omitempty"`
	Message     string   `json:"message"`
	Status      string   `json:"status"`
	Priority    string   `json:"priority"`
	CreatedAt   string   `json:"createdAt,omitempty"`
	UpdatedAt   string   `json:"updatedAt,omitempty"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

type OpsGenieTeam struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type OpsGenieSchedule struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Timezone  string        `json:"timezone,omitempty"`
	Enabled   bool          `json:"enabled"`
	OwnerTeam *OpsGenieTeam `json:"ownerTeam,omitempty"`
}

type OpsGenieParticipant struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	ScheduleName string `json:"scheduleName,omitempty"`
}

// OpsGenieResponse is what every opsgenie.* tool returns. A nil collection
// means "not part of this answer"; an empty one means "none found".
type OpsGenieResponse struct {
	Status             string                `json:"status"`
	Message            string                `json:"message,omitempty"`
	Alerts             []OpsGenieAlert       `json:"alerts"`
	Schedules          []OpsGenieSchedule    `json:"schedules"`
	OnCallParticipants []OpsGenieParticipant `json:"onCallParticipants"`
	Total              int                   `json:"total,omitempty"`
}

func opsGenieError(err error) OpsGenieResponse {
	return OpsGenieResponse{Status: "error", Message: err.Error()}
}

// OpsGenie is a minimal client for the alert and schedule APIs.
type OpsGenie struct {
	api apiClient
	now func() time.Time
}

func NewOpsGenie(baseURL, apiKey string, client *http.Client) *OpsGenie {
	if baseURL == "" {
		baseURL = DefaultOpsGenieURL
	}
	return &OpsGenie{
		api: newAPIClient("OpsGenie", baseURL, client, map[string]string{
			"Authorization": "GenieKey " + apiKey,
		}),
		now: time.Now,
	}
}

func (o *OpsGenie) GetAlerts(ctx context.Context, query string, limit int) OpsGenieResponse {
	if query == "" {
		query = defaultAlertQuery
	}
	params := url.Values{}
	params.Set("query", query)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("sort", "createdAt")
	params.Set("order", "desc")

	var body struct {
		Data []OpsGenieAlert `json:"data"`
	}
	if err := o.api.do(ctx, http.MethodGet, "/alerts?"+params.Encode(), nil, &body); err != nil {
		return opsGenieError(err)
	}

	alerts := body.Data
	if alerts == nil {
		alerts = []OpsGenieAlert{}
	}
	return OpsGenieResponse{Status: "success", Alerts: alerts, Total: len(alerts)}
}

type CreateAlertRequest struct {
	Message     string   `json:"message"`
	Description string   `json:"description,omitempty"`
	Priority    string   `json:"priority"`
	Tags        []string `json:"tags,omitempty"`
}

// CreateAlert opens an alert. OpsGenie processes creation asynchronously and
// only returns a request id, which stands in for the alert id.
func (o *OpsGenie) CreateAlert(ctx context.Context, req CreateAlertRequest) OpsGenieResponse {
	if req.Priority == "" {
		req.Priority = "P3"
	}

	var body struct {
		RequestID string `json:"requestId"`
	}
	if err := o.api.do(ctx, http.MethodPost, "/alerts", req, &body); err != nil {
		return opsGenieError(err)
	}

	now := o.now().UTC().Format(time.RFC3339)
	return OpsGenieResponse{
		Status:  "success",
		Message: "Alert created successfully",
		Alerts: []OpsGenieAlert{{
			ID:          body.RequestID,
			Message:     req.Message,
			Status:      "open",
			Priority:    req.Priority,
			CreatedAt:   now,
			UpdatedAt:   now,
			Description: req.Description,
			Tags:        req.Tags,
		}},
	}
}

func (o *OpsGenie) GetSchedules(ctx context.Context, limit int) OpsGenieResponse {
	var body struct {
		Data []OpsGenieSchedule `json:"data"`
	}
	if err := o.api.do(ctx, http.MethodGet, "/schedules?limit="+strconv.Itoa(limit), nil, &body); err != nil {
		return opsGenieError(err)
	}

	schedules := body.Data
	if schedules == nil {
		schedules = []OpsGenieSchedule{}
	}
	return OpsGenieResponse{Status: "success", Schedules: schedules, Total: len(schedules)}
}

type onCallBody struct {
	Data struct {
		Parent struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"_parent"`
		OnCallParticipants []OpsGenieParticipant `json:"onCallParticipants"`
	} `json:"data"`
}

func (o *OpsGenie) onCalls(ctx context.Context, scheduleID string) (onCallBody, error) {
	var body onCallBody
	err := o.api.do(ctx, http.MethodGet, "/schedules/"+url.PathEscape(scheduleID)+"/on-calls", nil, &body)
	return body, err
}

// GetOnCall lists who is on call. With neither scheduleID nor scheduleName it
// walks every schedule.
func (o *OpsGenie) GetOnCall(ctx context.Context, scheduleID, scheduleName string) OpsGenieResponse {
	if scheduleID == "" && scheduleName == "" {
		return o.allOnCall(ctx)
	}

	if scheduleID == "" {
		schedules := o.GetSchedules(ctx, 100)
		if schedules.Status == "error" {
			return opsGenieError(fmt.Errorf("failed to fetch schedules: %s", schedules.Message))
		}
		for _, s := range schedules.Schedules {
			if s.Name == scheduleName {
				scheduleID = s.ID
				break
			}
		}
		if scheduleID == "" {
			return opsGenieError(fmt.Errorf("schedule %q not found", scheduleName))
		}
	}

	body, err := o.onCalls(ctx, scheduleID)
	if err != nil {
		return opsGenieError(err)
	}

	participants := make([]OpsGenieParticipant, 0, len(body.Data.OnCallParticipants))
	for _, p := range body.Data.OnCallParticipants {
		p.ScheduleName = body.Data.Parent.Name
		participants = append(participants, p)
	}
	return OpsGenieResponse{Status: "success", OnCallParticipants: participants, Total: len(participants)}
}

func (o *OpsGenie) allOnCall(ctx context.Context) OpsGenieResponse {
	schedules := o.GetSchedules(ctx, 100)
	if schedules.Status == "error" {
		return opsGenieError(fmt.Errorf("failed to fetch schedules: %s", schedules.Message))
	}

	participants := []OpsGenieParticipant{}
	for _, s := range schedules.Schedules {
		body, err := o.onCalls(ctx, s.ID)
		if err != nil {
			return opsGenieError(err)
		}
		for _, p := range body.Data.OnCallParticipants {
			p.ScheduleName = s.Name
			participants = append(participants, p)
		}
	}

	msg := "No one is currently on call"
	if len(participants) > 0 {
		names := make([]string, 0, len(participants))
		for _, p := range participants {
			names = append(names, fmt.Sprintf("%s (%s)", p.Name, p.ScheduleName))
		}
		msg = "Current on-call: " + strings.Join(names, ", ")
	}
	return OpsGenieResponse{
		Status:             "success",
		Message:            msg,
		OnCallParticipants: participants,
		Total:              len(participants),
	}
}

func registerOpsGenie(reg *Registry, og *OpsGenie) error {
	defs := []Tool{
		{
			Name:        "opsgenie.getAlerts",
			Description: "Get list of OpsGenie alerts",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{"type": "string", "description": "Search query to filter alerts (optional)"},
					"limit": map[string]any{"type": "number", "minimum": 1, "maximum": 100, "description": "Maximum number of alerts to return (default: 20)"},
				},
			},
			Func: func(ctx context.Context, args map[string]any) (any, error) {
				return og.GetAlerts(ctx, argString(args, "query"), argInt(args, "limit", 20)), nil
			},
		},
		{
			Name:        "opsgenie.createAlert",
			Description: "Create a new OpsGenie alert",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"message":     map[string]any{"type": "string", "description": "Alert message"},
					"description": map[string]any{"type": "string", "description": "Detailed description (optional)"},
					"priority":    map[string]any{"type": "string", "enum": []any{"P1", "P2", "P3", "P4", "P5"}, "description": "Alert priority (default: P3)"},
					"tags":        map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Tags (optional)"},
				},
				"required": []any{"message"},
			},
			Func: func(ctx context.Context, args map[string]any) (any, error) {
				return og.CreateAlert(ctx, CreateAlertRequest{
					Message:     argString(args, "message"),
					Description: argString(args, "description"),
					Priority:    argString(args, "priority"),
					Tags:        argStrings(args, "tags"),
				}), nil
			},
		},
		{
			Name:        "opsgenie.getSchedules",
			Description: "Get list of OpsGenie on-call schedules",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"limit": map[string]any{"type": "number", "minimum": 1, "maximum": 100, "description": "Maximum number of schedules to return (default: 20)"},
				},
			},
			Func: func(ctx context.Context, args map[string]any) (any, error) {
				return og.GetSchedules(ctx, argInt(args, "limit", 20)), nil
			},
		},
		{
			Name:        "opsgenie.getOnCall",
			Description: "Get who is currently on call, for one schedule or all of them",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"scheduleId":   map[string]any{"type": "string", "description": "Schedule ID (optional)"},
					"scheduleName": map[string]any{"type": "string", "description": "Schedule name (optional)"},
				},
			},
			Func: func(ctx context.Context, args map[string]any) (any, error) {
				return og.GetOnCall(ctx, argString(args, "scheduleId"), argString(args, "scheduleName")), nil
			},
		},
	}

	for _, t := range defs {
		if err := reg.Register(t); err != nil {
			return err
		}
	}
	return nil
}
