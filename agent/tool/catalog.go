package tool

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/odoo-assistant/agent/contract"
	promptx "github.com/tanpawarit/odoo-assistant/agent/prompt"
)

const (
	ToolCreateRecord = "create_record"
	ToolUpdateRecord = "update_record"
)

// Executor runs one action request. Action failures come back inside the
// result; the returned error is reserved for faults that must abort the turn.
type Executor func(ctx context.Context, req contractx.ActionRequest) (contractx.ActionResult, error)

type handler func(ctx context.Context, args map[string]any) (any, error)

// Table is the lookup table from action name to implementation.
type Table struct {
	infos    []*schema.ToolInfo
	handlers map[string]handler
}

// BuildForDomain returns the actions a domain agent may call.
func BuildForDomain(spec promptx.DomainSpec, actions *ActionSet) (*Table, error) {
	if actions == nil {
		return nil, fmt.Errorf("%w: action set is required", contractx.ErrValidation)
	}

	t := &Table{handlers: make(map[string]handler)}
	if spec.Search.Tool != "" {
		searchModel := spec.Search.Model
		if strings.TrimSpace(searchModel) == "" {
			return nil, fmt.Errorf("%w: domain %s has a search tool without a model", contractx.ErrValidation, spec.Name)
		}
		desc := spec.Search.Description
		if desc == "" {
			desc = "Search " + searchModel + " records by name."
		}
		t.add(&schema.ToolInfo{
			Name: spec.Search.Tool,
			Desc: desc,
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"query": {Type: schema.String, Desc: "Part of the record name, matched case-insensitively", Required: true},
			}),
		}, func(ctx context.Context, args map[string]any) (any, error) {
			query, err := stringArg(args, "query")
			if err != nil {
				return nil, err
			}
			return actions.Search(ctx, searchModel, query)
		})
	}

	t.add(&schema.ToolInfo{
		Name: ToolCreateRecord,
		Desc: "Create a record and return it as stored.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"model":  {Type: schema.String, Desc: "Technical model name, e.g. res.partner", Required: true},
			"fields": {Type: schema.Object, Desc: "Field values of the new record", Required: true},
		}),
	}, func(ctx context.Context, args map[string]any) (any, error) {
		model, err := stringArg(args, "model")
		if err != nil {
			return nil, err
		}
		fields, err := objectArg(args, "fields")
		if err != nil {
			return nil, err
		}
		return actions.Create(ctx, model, fields)
	})

	t.add(&schema.ToolInfo{
		Name: ToolUpdateRecord,
		Desc: "Update fields of an existing record and return it as stored.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"model":  {Type: schema.String, Desc: "Technical model name, e.g. account.move", Required: true},
			"id":     {Type: schema.Integer, Desc: "Record id", Required: true},
			"fields": {Type: schema.Object, Desc: "Field values to change", Required: true},
		}),
	}, func(ctx context.Context, args map[string]any) (any, error) {
		model, err := stringArg(args, "model")
		if err != nil {
			return nil, err
		}
		id, err := idArg(args, "id")
		if err != nil {
			return nil, err
		}
		fields, err := objectArg(args, "fields")
		if err != nil {
			return nil, err
		}
		return actions.Update(ctx, model, id, fields)
	})

	if spec.Name == contractx.DomainAccounting {
		t.add(&schema.ToolInfo{
			Name: ToolMathEvaluate,
			Desc: "Calculate an amount, e.g. \"1,200.50 * 7%\". Supports + - * / ^, parentheses and percentages.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"expression": {Type: schema.String, Desc: "Expression to evaluate", Required: true},
			}),
		}, evaluateMath)
	}
	return t, nil
}

func (t *Table) add(info *schema.ToolInfo, h handler) {
	t.infos = append(t.infos, info)
	t.handlers[info.Name] = h
}

func (t *Table) Infos() []*schema.ToolInfo {
	return t.infos
}

func (t *Table) Names() []string {
	names := make([]string, 0, len(t.handlers))
	for name := range t.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Executor resolves requests through the table. Errors recognised by
// contract.IsActionError are turned into result text.
func (t *Table) Executor() Executor {
	return func(ctx context.Context, req contractx.ActionRequest) (contractx.ActionResult, error) {
		h, ok := t.handlers[req.Name]
		if !ok {
			err := fmt.Errorf("%w: %s", contractx.ErrUnknownAction, req.Name)
			return contractx.ActionResult{Name: req.Name, Error: err.Error()}, nil
		}

		out, err := h(ctx, req.Args)
		if err != nil {
			if contractx.IsActionError(err) {
				log.Ctx(ctx).Debug().Err(err).Str("action", req.Name).Msg("action failed")
				return contractx.ActionResult{Name: req.Name, Error: err.Error()}, nil
			}
			return contractx.ActionResult{}, fmt.Errorf("action %s: %w", req.Name, err)
		}
		return contractx.ActionResult{Name: req.Name, Result: out}, nil
	}
}

// WithRecorder reports every executed action to rec. Recorder failures are
// logged and never change the result.
func WithRecorder(next Executor, domain contractx.Domain, rec contractx.ActionRecorder) Executor {
	if rec == nil {
		return next
	}
	return func(ctx context.Context, req contractx.ActionRequest) (contractx.ActionResult, error) {
		res, err := next(ctx, req)
		if err != nil {
			return res, err
		}
		if recErr := rec.RecordAction(ctx, domain, req, res); recErr != nil {
			log.Ctx(ctx).Warn().Err(recErr).Str("action", req.Name).Msg("record action failed")
		}
		return res, nil
	}
}

func stringArg(args map[string]any, key string) (string, error) {
	raw, ok := args[key]
	if !ok {
		return "", fmt.Errorf("%w: %s is required", contractx.ErrValidation, key)
	}
	value, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string", contractx.ErrValidation, key)
	}
	return value, nil
}

func objectArg(args map[string]any, key string) (map[string]any, error) {
	raw, ok := args[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s is required", contractx.ErrValidation, key)
	}
	value, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be an object", contractx.ErrValidation, key)
	}
	return value, nil
}

func idArg(args map[string]any, key string) (int64, error) {
	switch v := args[key].(type) {
	case nil:
		return 0, fmt.Errorf("%w: %s is required", contractx.ErrValidation, key)
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%w: %s must be an integer", contractx.ErrValidation, key)
		}
		return int64(v), nil
	default:
		return 0, fmt.Errorf("%w: %s must be an integer", contractx.ErrValidation, key)
	}
}
