package extract

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"gleaner/internal/driver"
	"gleaner/internal/schema"
)

func init() {
	register("structural", func(opts Options) (Strategy, error) {
		return newStructural(opts)
	})
}

// structural extracts records by DOM selectors over a snapshot of the
// rendered page. Each field tries its selector chain in order and falls back
// to a regex over the container's text. When a record is incomplete and a
// detail link is configured, the detail page is visited in an isolated tab.
type structural struct {
	opts     Options
	patterns map[string]*regexp.Regexp
}

func newStructural(opts Options) (*structural, error) {
	patterns := make(map[string]*regexp.Regexp)
	for name, rules := range opts.Fields {
		if rules.Pattern == "" {
			continue
		}
		re, err := regexp.Compile(rules.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern for field %q: %w", name, err)
		}
		patterns[name] = re
	}
	return &structural{opts: opts, patterns: patterns}, nil
}

func (s *structural) Name() string { return "structural" }

func (s *structural) Extract(ctx context.Context, page driver.Page, target schema.Target) ([]schema.CandidateRecord, error) {
	html, err := page.HTML(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page HTML: %w", err)
	}

	containers := s.findContainers(doc)
	if containers == nil {
		return nil, nil
	}

	var records []schema.CandidateRecord
	visits := 0
	containers.Each(func(i int, sel *goquery.Selection) {
		record := s.extractFields(sel, page.URL(), target)
		if len(record) == 0 {
			return
		}
		if s.needsDetail(record, target) && visits < s.opts.MaxDetailVisits {
			if s.fillFromDetail(ctx, page, record, target) {
				visits++
			}
		}
		records = append(records, record)
	})
	return records, nil
}

// findContainers tries the configured container selectors in order and
// returns the first that matches anything.
func (s *structural) findContainers(doc *goquery.Document) *goquery.Selection {
	for _, selector := range s.opts.Containers {
		if sel := doc.Find(selector); sel.Length() > 0 {
			return sel
		}
	}
	return nil
}

func (s *structural) extractFields(container *goquery.Selection, baseURL string, target schema.Target) schema.CandidateRecord {
	record := make(schema.CandidateRecord)
	for _, spec := range target.Fields {
		rules, ok := s.opts.Fields[spec.Name]
		if !ok {
			continue
		}
		if value := s.extractField(spec.Name, container, rules, baseURL); value != "" {
			record[spec.Name] = value
		}
	}
	return record
}

func (s *structural) extractField(name string, container *goquery.Selection, rules FieldRules, baseURL string) string {
	for _, selector := range rules.Selectors {
		match := container.Find(selector).First()
		if match.Length() == 0 {
			continue
		}
		var value string
		if rules.Attr != "" {
			value, _ = match.Attr(rules.Attr)
			if rules.Attr == "href" || rules.Attr == "src" {
				value = resolveURL(baseURL, value)
			}
		} else {
			value = match.Text()
		}
		if value = strings.TrimSpace(value); value != "" {
			return value
		}
	}

	if re := s.patterns[name]; re != nil {
		if m := re.FindString(container.Text()); m != "" {
			return strings.TrimSpace(m)
		}
	}
	return ""
}

// needsDetail reports whether a required field with configured rules is
// still absent from the record.
func (s *structural) needsDetail(record schema.CandidateRecord, target schema.Target) bool {
	if s.opts.DetailLinkField == "" {
		return false
	}
	if _, ok := record[s.opts.DetailLinkField]; !ok {
		return false
	}
	for _, spec := range target.Fields {
		if spec.Optional {
			continue
		}
		if _, configured := s.opts.Fields[spec.Name]; !configured {
			continue
		}
		if _, present := record[spec.Name]; !present {
			return true
		}
	}
	return false
}

// fillFromDetail visits the record's detail page in a secondary tab and
// fills missing fields from it. The tab is closed whether or not the lookup
// succeeds. Reports whether a visit was attempted.
func (s *structural) fillFromDetail(ctx context.Context, page driver.Page, record schema.CandidateRecord, target schema.Target) bool {
	if ctx.Err() != nil || !s.opts.allowed() {
		return false
	}
	link, _ := record[s.opts.DetailLinkField].(string)
	if link == "" {
		return false
	}

	tab, err := page.NewTab(ctx, link)
	if err != nil {
		zap.L().Warn("detail page visit failed", zap.String("url", link), zap.Error(err))
		return true
	}
	defer tab.Close()

	html, err := tab.HTML(ctx)
	if err != nil {
		zap.L().Warn("detail page snapshot failed", zap.String("url", link), zap.Error(err))
		return true
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return true
	}

	for _, spec := range target.Fields {
		if _, present := record[spec.Name]; present {
			continue
		}
		rules, ok := s.opts.Fields[spec.Name]
		if !ok {
			continue
		}
		if value := s.extractField(spec.Name, doc.Selection, rules, link); value != "" {
			record[spec.Name] = value
		}
	}
	return true
}

func resolveURL(base, ref string) string {
	if ref == "" {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
