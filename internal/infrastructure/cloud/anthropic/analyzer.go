// Package anthropic analyzes parts-catalog images with Claude vision models.
package anthropic

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"partscatalog/internal/core/types"
	"partscatalog/internal/domain/analysis"
)

const providerName = "anthropic"

// Config selects the model and credentials.
type Config struct {
	APIKey    string
	Model     string
	MaxTokens int64
}

// Analyzer implements analysis.Analyzer.
type Analyzer struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
}

var _ analysis.Analyzer = (*Analyzer)(nil)

// NewAnalyzer creates an analyzer. Without an API key the analyzer reports
// itself unavailable instead of failing at startup.
func NewAnalyzer(cfg Config) *Analyzer {
	a := &Analyzer{model: cfg.Model, maxTokens: cfg.MaxTokens}
	if a.model == "" {
		a.model = "claude-sonnet-4-5"
	}
	if a.maxTokens <= 0 {
		a.maxTokens = 4096
	}
	if strings.TrimSpace(cfg.APIKey) != "" {
		client := anthropic.NewClient(option.WithAPIKey(cfg.APIKey))
		a.client = &client
	}
	return a
}

func (a *Analyzer) Provider() string { return providerName }

func (a *Analyzer) Available() bool { return a.client != nil }

// AnalyzePartsCatalog sends the page image with extraction instructions and
// parses the JSON answer.
func (a *Analyzer) AnalyzePartsCatalog(ctx context.Context, in analysis.Input) (*analysis.Result, error) {
	if a.client == nil {
		return nil, errors.New("anthropic: client not configured")
	}

	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64(in.Image.MimeType, base64.StdEncoding.EncodeToString(in.Image.Data)),
				anthropic.NewTextBlock(userPrompt(in)),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic: messages call: %w", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, errors.New("anthropic: response has no text content")
	}

	return parseResult(text.String())
}

const systemPrompt = `You read vehicle parts catalog pages and answer with JSON only, no prose and no code fences.`

func userPrompt(in analysis.Input) string {
	var b strings.Builder
	fmt.Fprintf(&b, "This is a parts catalog page for %s %s", in.Brand, in.Model)
	if in.Year != nil {
		fmt.Fprintf(&b, " (%d)", *in.Year)
	}
	b.WriteString(`.

Extract every line of the parts table:
1. line_id: the label number in the leftmost column that points into the diagram
2. part_numbers: every part number on the line (codes like 12200-KM3-000)
3. english_name: the part name translated to English
4. category: a short component group such as "engine", "brakes", "frame" or "electrical"
5. price: the listed price as a number, or null
6. description: remarks or quantity notes, or null

`)
	fmt.Fprintf(&b, "Return at most %d parts. ", in.MaxParts)
	b.WriteString(`Answer with exactly this structure:
{
  "diagram_reference": "section identifier or page reference",
  "confidence": 0.0,
  "parts_list": [
    {"line_id": "1", "part_numbers": ["..."], "english_name": "...", "category": "...", "price": null, "description": null}
  ]
}
confidence is your certainty between 0 and 1 that the extraction is complete and correct.`)
	return b.String()
}

type rawPart struct {
	LineID      json.RawMessage `json:"line_id"`
	PartNumbers []string        `json:"part_numbers"`
	EnglishName string          `json:"english_name"`
	Category    string          `json:"category"`
	Price       any             `json:"price"`
	Description *string         `json:"description"`
}

type rawResult struct {
	DiagramReference string    `json:"diagram_reference"`
	Confidence       float64   `json:"confidence"`
	PartsList        []rawPart `json:"parts_list"`
}

// parseResult validates the model answer and flattens one line with
// several part numbers into several parts.
func parseResult(text string) (*analysis.Result, error) {
	var raw rawResult
	if err := json.Unmarshal([]byte(extractJSON(text)), &raw); err != nil {
		return nil, fmt.Errorf("anthropic: invalid JSON answer: %w", err)
	}
	if raw.PartsList == nil {
		return nil, errors.New("anthropic: answer has no parts_list")
	}

	res := &analysis.Result{
		Success:          true,
		DiagramReference: strings.TrimSpace(raw.DiagramReference),
		Confidence:       min(max(raw.Confidence, 0), 1),
		Parts:            make([]analysis.Part, 0, len(raw.PartsList)),
	}

	for i, p := range raw.PartsList {
		name := strings.TrimSpace(p.EnglishName)
		if name == "" {
			return nil, fmt.Errorf("anthropic: part %d has no english_name", i)
		}
		price, err := types.ParsePrice(p.Price)
		if err != nil {
			return nil, fmt.Errorf("anthropic: part %d: %w", i, err)
		}
		lineID := lineIDString(p.LineID)

		numbers := p.PartNumbers
		if len(numbers) == 0 {
			numbers = []string{""}
		}
		for _, num := range numbers {
			res.Parts = append(res.Parts, analysis.Part{
				LineID:      lineID,
				PartName:    name,
				PartNumber:  strings.TrimSpace(num),
				Category:    strings.TrimSpace(p.Category),
				Price:       price,
				Description: p.Description,
			})
		}
	}
	res.TotalParts = len(res.Parts)
	return res, nil
}

// extractJSON strips code fences and any prose around the outermost object.
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return text
	}
	return text[start : end+1]
}

// lineIDString accepts the label as a JSON string or number.
func lineIDString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return strconv.Quote(string(raw))
}
