package proxy

import (
	"encoding/json"
	"strings"

	"blockhost-portal/internal/common/errors"

	"github.com/xeipuuv/gojsonschema"
)

type Action string

const (
	ActionListServers     Action = "list_servers"
	ActionServerDetails   Action = "server_details"
	ActionServerResources Action = "server_resources"
	ActionServerBackups   Action = "server_backups"
)

// Request is one of ListServers, ServerDetails, ServerResources or ServerBackups.
type Request interface {
	Action() Action
	// Target is the requested server, or "" for list requests.
	Target() string
}

type ListServers struct{}

type ServerDetails struct{ ServerID string }

type ServerResources struct{ ServerID string }

type ServerBackups struct{ ServerID string }

func (ListServers) Action() Action     { return ActionListServers }
func (ServerDetails) Action() Action   { return ActionServerDetails }
func (ServerResources) Action() Action { return ActionServerResources }
func (ServerBackups) Action() Action   { return ActionServerBackups }

func (ListServers) Target() string       { return "" }
func (r ServerDetails) Target() string   { return r.ServerID }
func (r ServerResources) Target() string { return r.ServerID }
func (r ServerBackups) Target() string   { return r.ServerID }

var envelopeSchema = gojsonschema.NewStringLoader(`{
	"type": "object",
	"properties": {
		"action": {"type": "string", "enum": ["list_servers", "server_details", "server_resources", "server_backups"]},
		"serverId": {"type": "string", "maxLength": 64}
	},
	"required": ["action"],
	"additionalProperties": false
}`)

type envelope struct {
	Action   Action `json:"action"`
	ServerID string `json:"serverId"`
}

// DecodeRequest validates the JSON envelope and returns the matching variant.
func DecodeRequest(body []byte) (Request, error) {
	result, err := gojsonschema.Validate(envelopeSchema, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, errors.NewBadRequestError("Invalid request body", err.Error())
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, errors.NewBadRequestError("Invalid request", strings.Join(msgs, "; "))
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, errors.NewBadRequestError("Invalid request body", err.Error())
	}
	serverID := strings.TrimSpace(env.ServerID)

	if env.Action == ActionListServers {
		return ListServers{}, nil
	}
	if serverID == "" {
		return nil, errors.NewBadRequestError("serverId is required", "action: "+string(env.Action))
	}
	switch env.Action {
	case ActionServerDetails:
		return ServerDetails{ServerID: serverID}, nil
	case ActionServerResources:
		return ServerResources{ServerID: serverID}, nil
	default:
		return ServerBackups{ServerID: serverID}, nil
	}
}
