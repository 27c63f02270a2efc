package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"gleaner/internal/driver"
	"gleaner/internal/schema"
)

func init() {
	register("semantic", func(opts Options) (Strategy, error) {
		if opts.Service.Endpoint == "" {
			return nil, fmt.Errorf("semantic strategy requires a service endpoint")
		}
		if opts.Service.Instruction == "" {
			return nil, fmt.Errorf("semantic strategy requires an instruction")
		}
		return &semantic{
			opts:      opts,
			client:    NewServiceClient(opts.Service),
			converter: md.NewConverter("", true, nil),
		}, nil
	})
}

// semantic delegates extraction to an external natural-language service.
// The rendered page is converted to markdown before being sent, which keeps
// prompts small and strips markup the service would otherwise have to skip.
type semantic struct {
	opts      Options
	client    *ServiceClient
	converter *md.Converter
	prepared  bool
}

func (s *semantic) Name() string { return "semantic" }

func (s *semantic) Extract(ctx context.Context, page driver.Page, target schema.Target) ([]schema.CandidateRecord, error) {
	html, err := page.HTML(ctx)
	if err != nil {
		return nil, err
	}

	content, err := s.converter.ConvertString(html)
	if err != nil {
		// Markdown conversion is best-effort; the raw HTML still works.
		zap.L().Warn("markdown conversion failed, sending raw HTML", zap.Error(err))
		content = html
	}

	if s.opts.Service.Prepare != "" && !s.prepared {
		// One-shot page preparation, e.g. "dismiss the cookie banner".
		// Failure is not fatal; extraction proceeds on the page as-is.
		if ok, err := s.client.Act(ctx, s.opts.Service.Prepare, content); err != nil {
			zap.L().Warn("prepare action failed", zap.Error(err))
		} else if !ok {
			zap.L().Debug("prepare action reported no-op")
		}
		s.prepared = true
	}

	return s.client.Extract(ctx, s.opts.Service.Instruction, content, target.Fields)
}

// ServiceClient talks to the extraction service over HTTP. The service is a
// black box; no retries are attempted here, callers skip-and-continue on
// error.
type ServiceClient struct {
	http *resty.Client
	cfg  ServiceConfig
}

// NewServiceClient builds a client for the configured endpoint.
func NewServiceClient(cfg ServiceConfig) *ServiceClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	client := resty.New().
		SetBaseURL(cfg.Endpoint).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}
	return &ServiceClient{http: client, cfg: cfg}
}

type fieldDecl struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Optional bool   `json:"optional,omitempty"`
}

type extractRequest struct {
	Model       string      `json:"model,omitempty"`
	Instruction string      `json:"instruction"`
	Content     string      `json:"content"`
	Schema      []fieldDecl `json:"schema"`
}

type actRequest struct {
	Model       string `json:"model,omitempty"`
	Instruction string `json:"instruction"`
	Content     string `json:"content"`
}

type actResponse struct {
	Success bool `json:"success"`
}

// Extract sends the instruction plus target schema and parses the candidate
// records out of the response. The service may answer with a single object,
// a bare array, or {"records": [...]}.
func (c *ServiceClient) Extract(ctx context.Context, instruction, content string, fields []schema.FieldSpec) ([]schema.CandidateRecord, error) {
	decls := make([]fieldDecl, 0, len(fields))
	for _, f := range fields {
		decls = append(decls, fieldDecl{Name: f.Name, Type: string(f.Type), Optional: f.Optional})
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(extractRequest{
			Model:       c.cfg.Model,
			Instruction: instruction,
			Content:     content,
			Schema:      decls,
		}).
		Post("/extract")
	if err != nil {
		return nil, fmt.Errorf("extraction service request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("extraction service returned %s", resp.Status())
	}

	return parseCandidates(resp.Body())
}

// Act asks the service to perform a page-level action and reports whether it
// claims success.
func (c *ServiceClient) Act(ctx context.Context, instruction, content string) (bool, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(actRequest{Model: c.cfg.Model, Instruction: instruction, Content: content}).
		Post("/act")
	if err != nil {
		return false, fmt.Errorf("extraction service request failed: %w", err)
	}
	if resp.IsError() {
		return false, fmt.Errorf("extraction service returned %s", resp.Status())
	}

	var parsed actResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return false, fmt.Errorf("malformed act response: %w", err)
	}
	return parsed.Success, nil
}

func parseCandidates(body []byte) ([]schema.CandidateRecord, error) {
	var wrapped struct {
		Records []schema.CandidateRecord `json:"records"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Records != nil {
		return wrapped.Records, nil
	}

	var list []schema.CandidateRecord
	if err := json.Unmarshal(body, &list); err == nil {
		return list, nil
	}

	var single schema.CandidateRecord
	if err := json.Unmarshal(body, &single); err == nil {
		if len(single) == 0 {
			return nil, nil
		}
		return []schema.CandidateRecord{single}, nil
	}

	return nil, fmt.Errorf("unrecognized extraction service response")
}
