// ABOUTME: Tool catalog for the casebook MCP bridge, one tool per tracker operation
// ABOUTME: Validates typed arguments before dispatch and classifies failures by kind

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/2389/casebook/internal/client"
	"github.com/2389/casebook/internal/export"
	"github.com/2389/casebook/internal/store"
)

// Tracker is the casebook API surface the bridge dispatches to. The HTTP
// client satisfies it; tests substitute fakes.
type Tracker interface {
	ListCustomers(ctx context.Context) ([]store.CustomerSummary, error)
	GetCustomer(ctx context.Context, name string) (*store.Customer, error)
	AddTickets(ctx context.Context, name string, keys []string, notes *string) (*store.Customer, error)
	RemoveTickets(ctx context.Context, name string, keys []string) (*store.Customer, error)
	AddComment(ctx context.Context, name, ticketKey, comment string) (*store.Customer, error)
	UpdateNotes(ctx context.Context, name, notes string) (*store.Customer, error)
	Export(ctx context.Context, name string, opts client.ExportOptions) (*export.Result, error)
}

// ToolHandler validates raw tool arguments and executes the operation.
type ToolHandler func(ctx context.Context, args json.RawMessage) (any, error)

// Tool is one bridge operation: the MCP definition advertised via
// tools/list plus the handler invoked on tools/call.
type Tool struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	Handler     ToolHandler
}

// Error kinds reported in tool error envelopes.
const (
	KindNotFound     = "not_found"
	KindInvalidInput = "invalid_input"
	KindUnauthorized = "unauthorized"
	KindStorageFault = "storage_fault"
	KindInternal     = "internal"
)

// ValidationError reports tool arguments that failed schema validation.
// Fields holds one message per offending field.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid arguments: " + strings.Join(e.Fields, "; ")
}

// newToolset builds the fixed tool catalog backed by the given tracker.
func newToolset(tracker Tracker) []Tool {
	h := &toolHandlers{tracker: tracker, validate: newArgumentValidator()}
	return []Tool{
		{
			Name:        "get_customer_tickets",
			Description: "Get all tickets for a specific customer",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"customer_name":{"type":"string","description":"Name of the customer"}},"required":["customer_name"]}`),
			Handler:     h.getCustomerTickets,
		},
		{
			Name:        "add_customer_tickets",
			Description: "Add tickets to a customer",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"customer_name":{"type":"string","description":"Name of the customer"},"ticket_keys":{"type":"array","items":{"type":"string"},"description":"List of JIRA ticket keys to add"},"notes":{"type":"string","description":"Optional notes for the customer"}},"required":["customer_name","ticket_keys"]}`),
			Handler:     h.addCustomerTickets,
		},
		{
			Name:        "add_ticket_comment",
			Description: "Add a comment to a specific ticket",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"customer_name":{"type":"string","description":"Name of the customer"},"ticket_key":{"type":"string","description":"JIRA ticket key"},"comment":{"type":"string","description":"Comment text to add"}},"required":["customer_name","ticket_key","comment"]}`),
			Handler:     h.addTicketComment,
		},
		{
			Name:        "update_customer_notes",
			Description: "Update customer notes",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"customer_name":{"type":"string","description":"Name of the customer"},"notes":{"type":"string","description":"New notes for the customer"}},"required":["customer_name","notes"]}`),
			Handler:     h.updateCustomerNotes,
		},
		{
			Name:        "remove_customer_tickets",
			Description: "Remove tickets from a customer",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"customer_name":{"type":"string","description":"Name of the customer"},"ticket_keys":{"type":"array","items":{"type":"string"},"description":"List of JIRA ticket keys to remove"}},"required":["customer_name","ticket_keys"]}`),
			Handler:     h.removeCustomerTickets,
		},
		{
			Name:        "list_customers",
			Description: "List all customers with their ticket counts",
			InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
			Handler:     h.listCustomers,
		},
		{
			Name:        "export_customer_data",
			Description: "Export customer ticket data as markdown or HTML",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"customer_name":{"type":"string","description":"Name of the customer to export"},"format":{"type":"string","description":"Export format: markdown or html","default":"markdown"},"include_jira":{"type":"boolean","description":"Include live JIRA enrichment columns","default":false},"save_file":{"type":"boolean","description":"Persist the export under the export directory","default":true}},"required":["customer_name"]}`),
			Handler:     h.exportCustomerData,
		},
	}
}

// newArgumentValidator builds a validator that reports offending fields by
// their wire names instead of Go struct field names.
func newArgumentValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type toolHandlers struct {
	tracker  Tracker
	validate *validator.Validate
}

// decodeArgs unmarshals raw tool arguments into in and validates the
// result. Failures come back as *ValidationError naming each offending
// field, before any tracker call is made.
func (h *toolHandlers) decodeArgs(args json.RawMessage, in any) error {
	if len(args) == 0 || string(args) == "null" {
		args = []byte("{}")
	}

	if err := json.Unmarshal(args, in); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return &ValidationError{Fields: []string{fmt.Sprintf("%s must be of type %s", typeErr.Field, typeErr.Type)}}
		}
		return &ValidationError{Fields: []string{"arguments must be a JSON object"}}
	}

	if err := h.validate.Struct(in); err != nil {
		var valErrs validator.ValidationErrors
		if errors.As(err, &valErrs) {
			fields := make([]string, len(valErrs))
			for i, fe := range valErrs {
				fields[i] = fieldErrorMessage(fe)
			}
			return &ValidationError{Fields: fields}
		}
		return fmt.Errorf("validating arguments: %w", err)
	}
	return nil
}

// fieldErrorMessage returns a user-facing message for a field validation
// failure.
func fieldErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	default:
		return fmt.Sprintf("%s failed validation for '%s'", fe.Field(), fe.Tag())
	}
}

type getCustomerTicketsInput struct {
	CustomerName string `json:"customer_name" validate:"required"`
}

func (h *toolHandlers) getCustomerTickets(ctx context.Context, args json.RawMessage) (any, error) {
	var in getCustomerTicketsInput
	if err := h.decodeArgs(args, &in); err != nil {
		return nil, err
	}
	return h.tracker.GetCustomer(ctx, in.CustomerName)
}

type addCustomerTicketsInput struct {
	CustomerName string   `json:"customer_name" validate:"required"`
	TicketKeys   []string `json:"ticket_keys" validate:"required"`
	Notes        *string  `json:"notes"`
}

func (h *toolHandlers) addCustomerTickets(ctx context.Context, args json.RawMessage) (any, error) {
	var in addCustomerTicketsInput
	if err := h.decodeArgs(args, &in); err != nil {
		return nil, err
	}
	return h.tracker.AddTickets(ctx, in.CustomerName, in.TicketKeys, in.Notes)
}

type addTicketCommentInput struct {
	CustomerName string `json:"customer_name" validate:"required"`
	TicketKey    string `json:"ticket_key" validate:"required"`
	Comment      string `json:"comment" validate:"required"`
}

func (h *toolHandlers) addTicketComment(ctx context.Context, args json.RawMessage) (any, error) {
	var in addTicketCommentInput
	if err := h.decodeArgs(args, &in); err != nil {
		return nil, err
	}
	return h.tracker.AddComment(ctx, in.CustomerName, in.TicketKey, in.Comment)
}

type updateCustomerNotesInput struct {
	CustomerName string `json:"customer_name" validate:"required"`
	// Pointer so an explicit empty string still passes validation and
	// clears the stored notes
	Notes *string `json:"notes" validate:"required"`
}

func (h *toolHandlers) updateCustomerNotes(ctx context.Context, args json.RawMessage) (any, error) {
	var in updateCustomerNotesInput
	if err := h.decodeArgs(args, &in); err != nil {
		return nil, err
	}
	return h.tracker.UpdateNotes(ctx, in.CustomerName, *in.Notes)
}

type removeCustomerTicketsInput struct {
	CustomerName string   `json:"customer_name" validate:"required"`
	TicketKeys   []string `json:"ticket_keys" validate:"required"`
}

func (h *toolHandlers) removeCustomerTickets(ctx context.Context, args json.RawMessage) (any, error) {
	var in removeCustomerTicketsInput
	if err := h.decodeArgs(args, &in); err != nil {
		return nil, err
	}
	return h.tracker.RemoveTickets(ctx, in.CustomerName, in.TicketKeys)
}

func (h *toolHandlers) listCustomers(ctx context.Context, _ json.RawMessage) (any, error) {
	summaries, err := h.tracker.ListCustomers(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{"customers": summaries, "count": len(summaries)}, nil
}

type exportCustomerDataInput struct {
	CustomerName string `json:"customer_name" validate:"required"`
	Format       string `json:"format"`
	IncludeJira  bool   `json:"include_jira"`
	SaveFile     *bool  `json:"save_file"`
}

func (h *toolHandlers) exportCustomerData(ctx context.Context, args json.RawMessage) (any, error) {
	var in exportCustomerDataInput
	if err := h.decodeArgs(args, &in); err != nil {
		return nil, err
	}

	saveFile := true
	if in.SaveFile != nil {
		saveFile = *in.SaveFile
	}

	return h.tracker.Export(ctx, in.CustomerName, client.ExportOptions{
		Format:      in.Format,
		IncludeJira: in.IncludeJira,
		SaveFile:    saveFile,
	})
}

// classifyToolError maps a handler failure onto the bridge error taxonomy.
// Validation failures never reach the tracker; API errors are mapped by
// HTTP status; anything else is an internal failure.
func classifyToolError(err error) (kind, message string) {
	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return KindInvalidInput, valErr.Error()
	}

	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusNotFound:
			return KindNotFound, apiErr.Message
		case http.StatusBadRequest:
			return KindInvalidInput, apiErr.Message
		case http.StatusUnauthorized, http.StatusForbidden:
			return KindUnauthorized, apiErr.Message
		default:
			return KindStorageFault, "storage operation failed"
		}
	}

	return KindInternal, "tool execution failed"
}
